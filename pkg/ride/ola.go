package ride

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	pkgerrors "TrafficWatch/pkg/errors"
	"TrafficWatch/pkg/logger"
	"TrafficWatch/pkg/maps"
)

// OlaClient talks to the Ola cabs REST API. There is no official Go SDK;
// the endpoints are plain JSON over HTTPS.
type OlaClient struct {
	baseURL  string
	appToken string
	http     *http.Client
}

func NewOlaClient(baseURL, appToken string) *OlaClient {
	return &OlaClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		appToken: appToken,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type olaCategory struct {
	Category     string `json:"category"`
	ETA          int    `json:"eta"`
	RideEstimate struct {
		FareID    string  `json:"fare_id"`
		AmountMax float64 `json:"amount_max"`
	} `json:"ride_estimate"`
}

type olaProductsResponse struct {
	Status     string        `json:"status"`
	Message    string        `json:"message"`
	Categories []olaCategory `json:"categories"`
}

func (o *OlaClient) RequestEstimate(ctx context.Context, creds Credentials, origin, destination maps.Coordinate, category string) (*Estimate, error) {
	params := url.Values{}
	params.Set("pickup_lat", fmt.Sprintf("%f", origin.Lat))
	params.Set("pickup_lng", fmt.Sprintf("%f", origin.Lng))
	params.Set("drop_lat", fmt.Sprintf("%f", destination.Lat))
	params.Set("drop_lng", fmt.Sprintf("%f", destination.Lng))
	params.Set("category", category)
	params.Set("pickup_mode", "now")

	var resp olaProductsResponse
	if err := o.do(ctx, http.MethodGet, "/v1/products?"+params.Encode(), creds, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Status != "SUCCESS" {
		return nil, fmt.Errorf("%w: %s", pkgerrors.BookingFailed, resp.Message)
	}

	for _, cat := range resp.Categories {
		if cat.Category != category {
			continue
		}
		return &Estimate{
			FareID:        cat.RideEstimate.FareID,
			Available:     cat.ETA != -1,
			EstimatedCost: cat.RideEstimate.AmountMax,
			PickupETA:     cat.ETA,
		}, nil
	}

	return nil, pkgerrors.CategoryUnavailable
}

type olaBookingRequest struct {
	PickupLat             float64 `json:"pickup_lat"`
	PickupLng             float64 `json:"pickup_lng"`
	DropLat               float64 `json:"drop_lat"`
	DropLng               float64 `json:"drop_lng"`
	Category              string  `json:"category"`
	PickupMode            string  `json:"pickup_mode"`
	PaymentInstrumentType string  `json:"payment_instrument_type"`
	FareID                string  `json:"fare_id,omitempty"`
}

type olaBookingResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	BookingID string `json:"booking_id"`
}

func (o *OlaClient) CreateRide(ctx context.Context, creds Credentials, origin, destination maps.Coordinate, category, fareID string) (string, error) {
	body := olaBookingRequest{
		PickupLat:             origin.Lat,
		PickupLng:             origin.Lng,
		DropLat:               destination.Lat,
		DropLng:               destination.Lng,
		Category:              category,
		PickupMode:            "now",
		PaymentInstrumentType: "cash",
		FareID:                fareID,
	}

	var resp olaBookingResponse
	if err := o.do(ctx, http.MethodPost, "/v1.5/bookings/create", creds, body, &resp); err != nil {
		return "", err
	}

	if resp.Status != "SUCCESS" {
		logger.Logger.Warn("Booking create rejected",
			zap.String("status", resp.Status),
			zap.String("message", resp.Message),
		)
		if strings.Contains(strings.ToLower(resp.Message), "category not available") {
			return "", pkgerrors.CategoryUnavailable
		}
		if strings.Contains(strings.ToLower(resp.Message), "no drivers available") {
			return "", pkgerrors.NoDriversAvailable
		}
		return "", pkgerrors.BookingFailed
	}

	return resp.BookingID, nil
}

type olaTrackResponse struct {
	BookingStatus string `json:"booking_status"`
	DriverName    string `json:"driver_name"`
	DriverNumber  string `json:"driver_number"`
	CabDetails    string `json:"cab_details"`
	OTP           struct {
		StartTrip struct {
			Value string `json:"value"`
		} `json:"start_trip"`
	} `json:"otp"`
}

func (o *OlaClient) PollStatus(ctx context.Context, creds Credentials, bookingID string) (*Status, error) {
	body := map[string]string{"booking_id": bookingID}

	var resp olaTrackResponse
	if err := o.do(ctx, http.MethodPost, "/v1/bookings/track_ride", creds, body, &resp); err != nil {
		return nil, err
	}

	status := &Status{
		DriverName:  resp.DriverName,
		DriverPhone: resp.DriverNumber,
		Vehicle:     resp.CabDetails,
		OTP:         resp.OTP.StartTrip.Value,
	}

	switch resp.BookingStatus {
	case "CALL_DRIVER":
		status.State = StateAssigned
	case "ALLOTMENT_FAILED":
		status.State = StateAllocationFailed
	case "BOOKING_CANCELLED":
		status.State = StateCancelled
	default:
		status.State = StatePending
	}

	return status, nil
}

func (o *OlaClient) do(ctx context.Context, method, path string, creds Credentials, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("X-APP-TOKEN", o.appToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		logger.Logger.Error("Ride API request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", pkgerrors.BookingFailed, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", pkgerrors.BookingFailed, err)
	}

	return nil
}
