package ride

import (
	"context"
	"sync"

	"TrafficWatch/pkg/maps"
)

// MockClient is an in-memory Client for tests. Poll results are consumed
// front to back; the last one repeats once the queue drains.
type MockClient struct {
	mu sync.Mutex

	EstimateResult *Estimate
	EstimateErr    error
	CreateErr      error
	PollResults    []Status
	PollErr        error

	BookingID     string
	CreateCalls   int
	EstimateCalls int
	PollCalls     int
}

func NewMockClient() *MockClient {
	return &MockClient{BookingID: "mock-booking-1"}
}

func (m *MockClient) RequestEstimate(ctx context.Context, creds Credentials, origin, destination maps.Coordinate, category string) (*Estimate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EstimateCalls++
	if m.EstimateErr != nil {
		return nil, m.EstimateErr
	}
	if m.EstimateResult != nil {
		return m.EstimateResult, nil
	}
	return &Estimate{FareID: "mock-fare", Available: true, EstimatedCost: 150, PickupETA: 4}, nil
}

func (m *MockClient) CreateRide(ctx context.Context, creds Credentials, origin, destination maps.Coordinate, category, fareID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	return m.BookingID, nil
}

func (m *MockClient) PollStatus(ctx context.Context, creds Credentials, bookingID string) (*Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PollCalls++
	if m.PollErr != nil {
		return nil, m.PollErr
	}
	if len(m.PollResults) == 0 {
		return &Status{State: StateAssigned, DriverName: "Mock Driver"}, nil
	}
	status := m.PollResults[0]
	if len(m.PollResults) > 1 {
		m.PollResults = m.PollResults[1:]
	}
	return &status, nil
}
