package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"TrafficWatch/internal/model"
	pkgerrors "TrafficWatch/pkg/errors"
	"TrafficWatch/pkg/maps"
	"TrafficWatch/pkg/metrics"
	"TrafficWatch/pkg/ride"
)

// attemptAutoBooking books a ride for a just-completed alert. Best effort:
// every outcome ends in an SMS plus an audit entry, never an error to the
// pipeline.
func (s *Scheduler) attemptAutoBooking(ctx context.Context, alert *model.Alert) {
	creds := ride.Credentials{AccessToken: alert.AccessToken()}
	origin := maps.Coordinate{Lat: alert.OriginLat, Lng: alert.OriginLng}
	destination := maps.Coordinate{Lat: alert.DestinationLat, Lng: alert.DestinationLng}

	bookingID, status, err := s.bookAndWait(ctx, creds, origin, destination)
	if err != nil {
		metrics.RecordBooking(ctx, "failed")
		s.logger.Error("Auto-booking failed",
			zap.Int64("alert_id", alert.ID),
			zap.Error(err))

		failMessage := fmt.Sprintf("AUTO-BOOK FAILED: %s Please book manually in the ride app.", bookingFailureText(err))
		if smsErr := s.sendSMS(ctx, alert, failMessage); smsErr != nil {
			s.appendLog(ctx, alert.ID, model.NotificationSMSFailed, smsErr.Error())
		}
		s.appendLog(ctx, alert.ID, model.NotificationAutoBookFail, err.Error())
		return
	}

	metrics.RecordBooking(ctx, "success")
	successMessage := fmt.Sprintf("SUCCESS: Your ride has been booked! Booking ID: %s.", bookingID)
	if status.DriverName != "" {
		successMessage += fmt.Sprintf(" Driver: %s (%s), %s.", status.DriverName, status.DriverPhone, status.Vehicle)
	}
	if status.OTP != "" {
		successMessage += fmt.Sprintf(" OTP: %s.", status.OTP)
	}

	if smsErr := s.sendSMS(ctx, alert, successMessage); smsErr != nil {
		s.appendLog(ctx, alert.ID, model.NotificationSMSFailed, smsErr.Error())
	}
	s.appendLog(ctx, alert.ID, model.NotificationAutoBookOK,
		fmt.Sprintf("booking_id=%s driver=%s vehicle=%s", bookingID, status.DriverName, status.Vehicle))
}

// bookAndWait runs estimate, create and the allocation poll loop. The
// estimate is optional: when it fails the booking proceeds without pinned
// upfront pricing.
func (s *Scheduler) bookAndWait(ctx context.Context, creds ride.Credentials, origin, destination maps.Coordinate) (string, *ride.Status, error) {
	category := s.opts.RideCategory

	var fareID string
	estCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	estimate, err := s.rides.RequestEstimate(estCtx, creds, origin, destination, category)
	cancel()
	if err != nil {
		s.logger.Warn("Ride estimate failed, booking without fare id", zap.Error(err))
	} else if !estimate.Available {
		return "", nil, pkgerrors.CategoryUnavailable
	} else {
		fareID = estimate.FareID
	}

	createCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	bookingID, err := s.rides.CreateRide(createCtx, creds, origin, destination, category, fareID)
	cancel()
	if err != nil {
		return "", nil, err
	}

	status, err := s.pollForDriver(ctx, creds, bookingID)
	if err != nil {
		return bookingID, nil, err
	}
	return bookingID, status, nil
}

// pollForDriver polls allocation state until a driver is assigned, the
// provider gives a terminal failure, or attempts run out.
func (s *Scheduler) pollForDriver(ctx context.Context, creds ride.Credentials, bookingID string) (*ride.Status, error) {
	for attempt := 0; attempt < s.opts.PollAttempts; attempt++ {
		pollCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
		status, err := s.rides.PollStatus(pollCtx, creds, bookingID)
		cancel()
		if err != nil {
			return nil, err
		}

		switch status.State {
		case ride.StateAssigned:
			return status, nil
		case ride.StateAllocationFailed:
			return nil, pkgerrors.NoDriversAvailable
		case ride.StateCancelled:
			return nil, pkgerrors.BookingCancelled
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.opts.PollInterval):
		}
	}
	return nil, pkgerrors.AllocationTimeout
}

func bookingFailureText(err error) string {
	switch {
	case pkgerrors.Is(err, pkgerrors.NoDriversAvailable):
		return "No drivers available in your area right now."
	case pkgerrors.Is(err, pkgerrors.CategoryUnavailable):
		return "Selected ride category not available. Try booking manually."
	case pkgerrors.Is(err, pkgerrors.AllocationTimeout):
		return "Booking timed out before a driver was assigned."
	case pkgerrors.Is(err, pkgerrors.BookingCancelled):
		return "The booking was cancelled by the provider."
	default:
		return "Could not book your ride automatically."
	}
}
