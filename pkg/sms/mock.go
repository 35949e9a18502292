package sms

import (
	"context"
	"sync"

	pkgerrors "TrafficWatch/pkg/errors"
)

type MockCall struct {
	Phone string
	Body  string
}

// MockClient records sends and can be told to fail, implementing Client.
type MockClient struct {
	mu    sync.Mutex
	Calls []MockCall

	// FailNext makes the next call return DeliveryFailed and then resets.
	FailNext bool
}

func NewMockClient() *MockClient {
	return &MockClient{
		Calls: make([]MockCall, 0),
	}
}

func (m *MockClient) SendMessage(ctx context.Context, phone, body string) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Phone: phone, Body: body})

	if m.FailNext {
		m.FailNext = false
		return nil, pkgerrors.DeliveryFailed
	}

	return &Receipt{
		MessageSID: "mock-message-sid",
		Status:     "queued",
		Provider:   "mock",
	}, nil
}

// Sent returns a snapshot of recorded calls.
func (m *MockClient) Sent() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MockCall, len(m.Calls))
	copy(out, m.Calls)
	return out
}
