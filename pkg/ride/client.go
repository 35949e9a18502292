package ride

import (
	"context"
	"sync"

	"TrafficWatch/config"
	"TrafficWatch/pkg/logger"
	"TrafficWatch/pkg/maps"
)

// Credentials is the user-scoped OAuth token payload captured at
// authorization time and stored on the alert.
type Credentials struct {
	AccessToken string
}

// Estimate is the pre-booking fare lookup result. FareID, when present,
// pins upfront pricing on the subsequent booking.
type Estimate struct {
	FareID        string
	Available     bool
	EstimatedCost float64
	PickupETA     int
}

// State is the booking allocation state reported by the provider.
type State string

const (
	StateAssigned         State = "assigned"
	StateAllocationFailed State = "allocation_failed"
	StateCancelled        State = "cancelled"
	StatePending          State = "pending"
)

// Status is one poll observation of a booking.
type Status struct {
	State       State
	DriverName  string
	DriverPhone string
	Vehicle     string
	OTP         string
}

// Client is the ride-booking contract consumed by the scheduler. The
// estimate call is best-effort; CreateRide fails with errors.BookingFailed
// or errors.CategoryUnavailable.
type Client interface {
	RequestEstimate(ctx context.Context, creds Credentials, origin, destination maps.Coordinate, category string) (*Estimate, error)
	CreateRide(ctx context.Context, creds Credentials, origin, destination maps.Coordinate, category, fareID string) (string, error)
	PollStatus(ctx context.Context, creds Credentials, bookingID string) (*Status, error)
}

var (
	rideClient Client
	rideOnce   sync.Once
)

// Init wires the Ola client from config.
func Init() {
	rideOnce.Do(func() {
		cfg := config.Cfg
		rideClient = NewOlaClient(cfg.OlaBaseURL, cfg.OlaAppToken)
		logger.Logger.Info("Ride client initialized successfully")
	})
}

func GetClient() Client {
	if rideClient == nil {
		panic("ride client not initialized, call ride.Init() first")
	}
	return rideClient
}
