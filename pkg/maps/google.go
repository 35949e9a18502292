package maps

import (
	"context"
	"errors"

	gmaps "googlemaps.github.io/maps"

	pkgerrors "TrafficWatch/pkg/errors"
	"TrafficWatch/pkg/logger"

	"go.uber.org/zap"
)

// GoogleClient resolves addresses through the Geocoding API and measures
// live travel time through the Distance Matrix API.
type GoogleClient struct {
	client *gmaps.Client
}

func NewGoogleClient(apiKey string) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, errors.New("google maps api key is required")
	}

	c, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &GoogleClient{client: c}, nil
}

func (g *GoogleClient) Geocode(ctx context.Context, address string) (Coordinate, error) {
	results, err := g.client.Geocode(ctx, &gmaps.GeocodingRequest{Address: address})
	if err != nil {
		logger.Logger.Error("Geocoding request failed",
			zap.String("address", address),
			zap.Error(err),
		)
		return Coordinate{}, pkgerrors.InvalidAddress
	}

	if len(results) == 0 {
		logger.Logger.Warn("Geocoding returned no results",
			zap.String("address", address),
		)
		return Coordinate{}, pkgerrors.InvalidAddress
	}

	loc := results[0].Geometry.Location
	return Coordinate{Lat: loc.Lat, Lng: loc.Lng}, nil
}

func (g *GoogleClient) TravelMinutes(ctx context.Context, origin, destination Coordinate) (int, error) {
	resp, err := g.client.DistanceMatrix(ctx, &gmaps.DistanceMatrixRequest{
		Origins:       []string{origin.String()},
		Destinations:  []string{destination.String()},
		DepartureTime: "now",
		TrafficModel:  gmaps.TrafficModelBestGuess,
	})
	if err != nil {
		logger.Logger.Error("Distance matrix request failed", zap.Error(err))
		return 0, pkgerrors.OracleUnavailable
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, pkgerrors.OracleUnavailable
	}

	element := resp.Rows[0].Elements[0]
	if element.Status != "OK" {
		logger.Logger.Warn("Route calculation failed",
			zap.String("element_status", element.Status),
		)
		return 0, pkgerrors.OracleUnavailable
	}

	// Prefer the traffic-aware duration, fall back to the free-flow one.
	duration := element.DurationInTraffic
	if duration <= 0 {
		duration = element.Duration
	}
	if duration <= 0 {
		return 0, pkgerrors.OracleUnavailable
	}

	minutes := CeilMinutes(int(duration.Seconds()))

	logger.Logger.Debug("Measured travel time",
		zap.String("origin", origin.String()),
		zap.String("destination", destination.String()),
		zap.Int("minutes", minutes),
	)

	return minutes, nil
}
