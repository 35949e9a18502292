package maps

import (
	"context"
	"sync"

	pkgerrors "TrafficWatch/pkg/errors"
)

// MockClient is a configurable oracle/geocoder for tests, implementing Client.
type MockClient struct {
	mu sync.Mutex

	// Coords maps address text to a fixed coordinate; unknown addresses
	// resolve to InvalidAddress.
	Coords map[string]Coordinate

	// Durations is consumed front-to-back, one entry per TravelMinutes call;
	// the last entry repeats once the list is exhausted.
	Durations []int

	// FailNext makes the next TravelMinutes call return OracleUnavailable
	// and then resets.
	FailNext bool

	TravelCalls int
}

func NewMockClient() *MockClient {
	return &MockClient{Coords: make(map[string]Coordinate)}
}

func (m *MockClient) Geocode(ctx context.Context, address string) (Coordinate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if coord, ok := m.Coords[address]; ok {
		return coord, nil
	}
	return Coordinate{}, pkgerrors.InvalidAddress
}

func (m *MockClient) TravelMinutes(ctx context.Context, origin, destination Coordinate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TravelCalls++

	if m.FailNext {
		m.FailNext = false
		return 0, pkgerrors.OracleUnavailable
	}

	if len(m.Durations) == 0 {
		return 0, pkgerrors.OracleUnavailable
	}

	minutes := m.Durations[0]
	if len(m.Durations) > 1 {
		m.Durations = m.Durations[1:]
	}
	return minutes, nil
}
