package maps

import (
	"context"
	"fmt"
	"sync"

	"TrafficWatch/config"
	"TrafficWatch/pkg/logger"

	"go.uber.org/zap"
)

// Coordinate is a resolved geographic point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lng)
}

// Client is the travel-time oracle plus geocoder contract.
type Client interface {
	// Geocode resolves a free-text address to coordinates.
	// Returns errors.InvalidAddress when the provider has no result.
	Geocode(ctx context.Context, address string) (Coordinate, error)

	// TravelMinutes returns the current door-to-door driving time in whole
	// minutes, ceiling-rounded, accounting for live traffic. Returns
	// errors.OracleUnavailable on transport/parse failure or when the
	// provider omits the duration.
	TravelMinutes(ctx context.Context, origin, destination Coordinate) (int, error)
}

var (
	mapsClient Client
	mapsOnce   sync.Once
	mapsErr    error
)

// Init wires the configured provider.
func Init() error {
	mapsOnce.Do(func() {
		mapsClient, mapsErr = NewGoogleClient(config.Cfg.GoogleMapsAPIKey)
		if mapsErr != nil {
			logger.Logger.Error("Failed to initialize maps client", zap.Error(mapsErr))
			return
		}

		logger.Logger.Info("Maps client initialized successfully")
	})

	return mapsErr
}

func GetClient() Client {
	if mapsClient == nil {
		panic("maps client not initialized, call maps.Init() first")
	}
	return mapsClient
}

// CeilMinutes converts seconds to whole minutes, rounding up. A 61-second
// trip reports as 2 minutes; rounding down could declare a threshold met
// prematurely.
func CeilMinutes(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	return (seconds + 59) / 60
}
