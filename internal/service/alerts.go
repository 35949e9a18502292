package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TrafficWatch/internal/model"
	"TrafficWatch/internal/store"
	pkgerrors "TrafficWatch/pkg/errors"
	"TrafficWatch/pkg/maps"
	"TrafficWatch/pkg/sms"
)

// Dispatcher triggers an on-demand evaluation of one alert. Implemented by
// the scheduler; create and reactivate use it so a user never waits for
// the next sweep.
type Dispatcher interface {
	ProcessAlert(ctx context.Context, alertID int64) error
}

// Options for request validation.
type Options struct {
	MinFinalThresholdMinutes int
	DuplicateWindow          time.Duration
}

func (o *Options) applyDefaults() {
	if o.MinFinalThresholdMinutes <= 0 {
		o.MinFinalThresholdMinutes = 5
	}
	if o.DuplicateWindow <= 0 {
		o.DuplicateWindow = time.Minute
	}
}

// AlertService owns alert lifecycle operations behind the HTTP API.
type AlertService struct {
	store      *store.Store
	geocoder   maps.Client
	sms        sms.Client
	dispatcher Dispatcher
	logger     *zap.Logger
	opts       Options
}

func NewAlertService(st *store.Store, geocoder maps.Client, smsClient sms.Client, dispatcher Dispatcher, logger *zap.Logger, opts Options) *AlertService {
	opts.applyDefaults()
	return &AlertService{
		store:      st,
		geocoder:   geocoder,
		sms:        smsClient,
		dispatcher: dispatcher,
		logger:     logger,
		opts:       opts,
	}
}

// CreateAlert validates, geocodes and persists a new alert, sends the
// confirmation SMS and triggers an immediate evaluation. sessionCreds are
// the ride tokens captured during OAuth, nil when the user never
// authenticated.
func (s *AlertService) CreateAlert(ctx context.Context, req *model.CreateAlertRequest, sessionCreds model.JSONB) (*model.CreateAlertResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	phone := strings.TrimSpace(req.Phone)

	if req.OriginAddress == "" || req.DestinationAddress == "" || req.ThresholdMinutes == 0 || phone == "" || username == "" {
		return nil, pkgerrors.MissingFields
	}
	if req.ThresholdMinutes < 0 {
		return nil, pkgerrors.InvalidThreshold
	}
	if req.FinalThresholdMins != nil && *req.FinalThresholdMins < s.opts.MinFinalThresholdMinutes {
		return nil, pkgerrors.FinalThresholdTooLow
	}
	if req.AutoBook && len(sessionCreds) == 0 {
		return nil, pkgerrors.AuthRequired
	}

	taken, err := s.store.UsernameBoundToOtherPhone(ctx, username, phone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.StoreUnavailable, err)
	}
	if taken {
		return nil, pkgerrors.UsernameTaken
	}

	alert := &model.Alert{
		Username:              username,
		Phone:                 phone,
		OriginAddress:         req.OriginAddress,
		DestinationAddress:    req.DestinationAddress,
		ThresholdMinutes:      req.ThresholdMinutes,
		FinalThresholdMinutes: req.FinalThresholdMins,
		AutoBook:              req.AutoBook,
		Status:                model.AlertStatusActive,
		CreatedAt:             time.Now(),
		UpdatedAt:             time.Now(),
	}
	if req.AutoBook {
		alert.RideCredentials = sessionCreds
	}

	// Double-submits inside the window get the existing alert back, checked
	// before the one-active-alert rule so a retry is not an error.
	if dup, err := s.store.FindRecentDuplicate(ctx, alert, s.opts.DuplicateWindow); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.StoreUnavailable, err)
	} else if dup != nil {
		return &model.CreateAlertResponse{
			AlertID:                 dup.ID,
			Username:                dup.Username,
			Status:                  "created",
			ImmediateCheckTriggered: true,
		}, nil
	}

	if _, err := s.store.FindActiveByOwner(ctx, username, phone); err == nil {
		return nil, pkgerrors.ActiveAlertExists
	} else if !pkgerrors.Is(err, pkgerrors.AlertNotFound) {
		return nil, fmt.Errorf("%w: %v", pkgerrors.StoreUnavailable, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		coord, err := s.geocoder.Geocode(gctx, req.OriginAddress)
		if err != nil {
			return err
		}
		alert.OriginLat, alert.OriginLng = coord.Lat, coord.Lng
		return nil
	})
	g.Go(func() error {
		coord, err := s.geocoder.Geocode(gctx, req.DestinationAddress)
		if err != nil {
			return err
		}
		alert.DestinationLat, alert.DestinationLng = coord.Lat, coord.Lng
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.store.Insert(ctx, alert); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.StoreUnavailable, err)
	}

	s.logger.Info("Alert created",
		zap.Int64("alert_id", alert.ID),
		zap.String("username", username),
		zap.Int("threshold_minutes", alert.ThresholdMinutes),
		zap.Bool("auto_book", alert.AutoBook))

	s.sendActivationSMS(ctx, alert, "created")
	s.dispatch(alert.ID)

	return &model.CreateAlertResponse{
		AlertID:                 alert.ID,
		Username:                username,
		Status:                  "created",
		ImmediateCheckTriggered: true,
	}, nil
}

// ListUserAlerts returns all of a user's alerts, newest first.
func (s *AlertService) ListUserAlerts(ctx context.Context, username string) (*model.UserAlertsResponse, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, pkgerrors.MissingFields
	}

	alerts, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.StoreUnavailable, err)
	}

	resp := &model.UserAlertsResponse{
		Username: username,
		Alerts:   make([]model.AlertItem, 0, len(alerts)),
		Count:    len(alerts),
	}
	for _, a := range alerts {
		if a.Status == model.AlertStatusActive {
			resp.ActiveCount++
		}
		resp.Alerts = append(resp.Alerts, model.AlertItem{
			ID:                 a.ID,
			OriginAddress:      a.OriginAddress,
			DestinationAddress: a.DestinationAddress,
			ThresholdMinutes:   a.ThresholdMinutes,
			FinalThresholdMins: a.FinalThresholdMinutes,
			AutoBook:           a.AutoBook,
			Status:             string(a.Status),
			Phone:              a.Phone,
			CreatedAt:          a.CreatedAt,
			LastChecked:        a.LastChecked,
			LastDuration:       a.LastDuration,
		})
	}
	return resp, nil
}

// CancelAlert deactivates the user's alert.
func (s *AlertService) CancelAlert(ctx context.Context, username string, alertID int64) (*model.Alert, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || alertID == 0 {
		return nil, pkgerrors.MissingFields
	}

	alert, err := s.store.Cancel(ctx, username, alertID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Alert cancelled",
		zap.Int64("alert_id", alert.ID),
		zap.String("username", username))
	return alert, nil
}

// ReactivateAlert restarts a completed or cancelled alert with a fresh
// clock, confirms over SMS and triggers an immediate evaluation.
func (s *AlertService) ReactivateAlert(ctx context.Context, username string, alertID int64) (*model.Alert, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || alertID == 0 {
		return nil, pkgerrors.MissingFields
	}

	alert, err := s.store.Reactivate(ctx, username, alertID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Alert reactivated",
		zap.Int64("alert_id", alert.ID),
		zap.String("username", username))

	s.sendActivationSMS(ctx, alert, "reactivated")
	s.dispatch(alert.ID)

	return alert, nil
}

// sendActivationSMS confirms creation or reactivation with the current
// travel time when the oracle answers in time. Best effort throughout.
func (s *AlertService) sendActivationSMS(ctx context.Context, alert *model.Alert, what string) {
	var message string
	current, err := s.geocoder.TravelMinutes(ctx,
		maps.Coordinate{Lat: alert.OriginLat, Lng: alert.OriginLng},
		maps.Coordinate{Lat: alert.DestinationLat, Lng: alert.DestinationLng})
	if err != nil {
		message = fmt.Sprintf("Alert %s! Monitoring for %dmin travel time. Will notify when ready.",
			what, alert.ThresholdMinutes)
	} else {
		message = fmt.Sprintf("Alert %s! Current: %dmin, Target: %dmin. Will notify when ready.",
			what, current, alert.ThresholdMinutes)
	}

	if _, err := s.sms.SendMessage(ctx, alert.Phone, message); err != nil {
		s.logger.Warn("Activation SMS failed",
			zap.Int64("alert_id", alert.ID),
			zap.Error(err))
	}
}

// dispatch hands the alert to the scheduler outside the request path.
func (s *AlertService) dispatch(alertID int64) {
	if s.dispatcher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.dispatcher.ProcessAlert(ctx, alertID); err != nil {
			s.logger.Error("Immediate alert evaluation failed",
				zap.Int64("alert_id", alertID),
				zap.Error(err))
		}
	}()
}
