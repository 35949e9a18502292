package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TrafficWatch/internal/cache"
	"TrafficWatch/internal/model"
	"TrafficWatch/internal/store"
	pkgerrors "TrafficWatch/pkg/errors"
	"TrafficWatch/pkg/maps"
	"TrafficWatch/pkg/metrics"
	"TrafficWatch/pkg/ride"
	"TrafficWatch/pkg/sms"
)

// Options tune the scheduler independently of the global config so tests
// can shrink timeouts and intervals.
type Options struct {
	CronSpec         string
	SweepConcurrency int
	CallTimeout      time.Duration
	ClaimTTL         time.Duration
	RideCategory     string
	PollAttempts     int
	PollInterval     time.Duration
}

func (o *Options) applyDefaults() {
	if o.CronSpec == "" {
		o.CronSpec = "*/10 * * * *"
	}
	if o.SweepConcurrency <= 0 {
		o.SweepConcurrency = 4
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 8 * time.Second
	}
	if o.ClaimTTL <= 0 {
		o.ClaimTTL = 2 * time.Minute
	}
	if o.RideCategory == "" {
		o.RideCategory = "mini"
	}
	if o.PollAttempts <= 0 {
		o.PollAttempts = 30
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
}

// cronLogger adapts zap.Logger to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// Scheduler owns the periodic sweep over active alerts and the per-alert
// evaluation pipeline. On-demand triggers from the API share ProcessAlert
// with the sweep; the claim lock and the conditional status update keep
// the two paths from double-firing.
type Scheduler struct {
	store  *store.Store
	oracle maps.Client
	sms    sms.Client
	rides  ride.Client
	locker cache.Locker
	logger *zap.Logger
	opts   Options

	cron *cron.Cron

	mu       sync.Mutex
	sweeping bool
	started  bool
}

func NewScheduler(st *store.Store, oracle maps.Client, smsClient sms.Client, rides ride.Client, locker cache.Locker, logger *zap.Logger, opts Options) *Scheduler {
	opts.applyDefaults()

	cl := &cronLogger{logger: logger.Named("cron")}
	return &Scheduler{
		store:  st,
		oracle: oracle,
		sms:    smsClient,
		rides:  rides,
		locker: locker,
		logger: logger,
		opts:   opts,
		cron:   cron.New(cron.WithChain(cron.Recover(cl))),
	}
}

// Start runs one immediate sweep and then sweeps on the cron spec.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		if err := s.RunSweep(ctx); err != nil {
			s.logger.Error("Initial sweep failed", zap.Error(err))
		}
	}()

	_, err := s.cron.AddFunc(s.opts.CronSpec, func() {
		if err := s.RunSweep(context.Background()); err != nil {
			s.logger.Error("Scheduled sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep cron spec %q: %w", s.opts.CronSpec, err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", zap.String("cron_spec", s.opts.CronSpec))
	return nil
}

// Stop halts the cron timer and waits for a running sweep callback to
// return. In-flight ProcessAlert calls finish through their own contexts.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunSweep evaluates every active alert once. Overlapping sweeps collapse:
// if one is already running the call returns immediately.
func (s *Scheduler) RunSweep(ctx context.Context) error {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		s.logger.Info("Sweep already in progress, skipping")
		return nil
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	start := time.Now()

	alerts, err := s.store.GetActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.StoreUnavailable, err)
	}
	if len(alerts) == 0 {
		return nil
	}

	s.logger.Info("Sweep started", zap.Int("active_alerts", len(alerts)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.SweepConcurrency)
	for _, alert := range alerts {
		id := alert.ID
		g.Go(func() error {
			// A failed alert never aborts the sweep.
			if err := s.ProcessAlert(gctx, id); err != nil {
				s.logger.Error("Alert evaluation failed",
					zap.Int64("alert_id", id),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	metrics.RecordSweep(ctx, elapsed.Seconds(), int64(len(alerts)))
	s.logger.Info("Sweep finished",
		zap.Int("evaluated", len(alerts)),
		zap.Duration("took", elapsed))
	return nil
}

// ProcessAlert runs the full evaluation pipeline for one alert. It is safe
// to call for any ID at any time: stale, completed or concurrently claimed
// alerts fall out silently.
func (s *Scheduler) ProcessAlert(ctx context.Context, alertID int64) error {
	claimed, err := s.locker.TryLock(ctx, alertID, s.opts.ClaimTTL)
	if err != nil {
		// Lock storage down: degrade to at-least-once, the conditional
		// status update still prevents duplicate completion.
		s.logger.Warn("Alert claim unavailable, proceeding unlocked",
			zap.Int64("alert_id", alertID),
			zap.Error(err))
	} else if !claimed {
		return nil
	} else {
		defer func() {
			if err := s.locker.Unlock(context.Background(), alertID); err != nil {
				s.logger.Warn("Alert unclaim failed", zap.Int64("alert_id", alertID), zap.Error(err))
			}
		}()
	}

	// Always re-fetch: the row may have been cancelled or completed since
	// it was scheduled.
	alert, err := s.store.GetAlertByID(ctx, alertID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.AlertNotFound) {
			return nil
		}
		return err
	}
	if alert.Status != model.AlertStatusActive {
		return nil
	}

	now := time.Now()

	// Expiry is decided by the clock alone, no travel-time lookup.
	if FinalExpired(alert, now) {
		return s.completeAlert(ctx, alert, model.CompletionReasonFinalTime, 0)
	}

	currentMinutes, err := s.measure(ctx, alert)
	if err != nil {
		// The alert stays active and gets retried next sweep.
		return fmt.Errorf("%w: %v", pkgerrors.OracleUnavailable, err)
	}

	decision := Evaluate(alert, now, currentMinutes)
	s.logger.Info("Alert evaluated",
		zap.Int64("alert_id", alert.ID),
		zap.String("action", string(decision.Action)),
		zap.Int("current_minutes", currentMinutes),
		zap.Int("threshold_minutes", alert.ThresholdMinutes))

	switch decision.Action {
	case ActionThresholdMet:
		return s.completeAlert(ctx, alert, model.CompletionReasonThresholdMet, currentMinutes)
	case ActionImproving:
		return s.notifyImprovement(ctx, alert, currentMinutes)
	default:
		return s.store.UpdateProgress(ctx, alert.ID, currentMinutes)
	}
}

func (s *Scheduler) measure(ctx context.Context, alert *model.Alert) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	start := time.Now()
	minutes, err := s.oracle.TravelMinutes(callCtx,
		maps.Coordinate{Lat: alert.OriginLat, Lng: alert.OriginLng},
		maps.Coordinate{Lat: alert.DestinationLat, Lng: alert.DestinationLng})
	metrics.RecordOracleCall(ctx, time.Since(start).Seconds(), err == nil)
	return minutes, err
}

// completeAlert persists the terminal transition first, then delivers the
// notification and optionally books a ride. Losing the status race means
// another pass already owns the outcome, so everything after is skipped.
func (s *Scheduler) completeAlert(ctx context.Context, alert *model.Alert, reason model.CompletionReason, currentMinutes int) error {
	won, err := s.store.MarkCompleted(ctx, alert.ID, reason)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}
	metrics.RecordAlertCompleted(ctx, string(reason))

	var message string
	switch reason {
	case model.CompletionReasonFinalTime:
		message = fmt.Sprintf("Time expired: %d min have passed. Monitoring stopped.", *alert.FinalThresholdMinutes)
		if alert.AutoBook {
			message += " Auto-booking your cab now."
		}
	default:
		message = fmt.Sprintf("TRAFFIC ALERT: Your route is now %d minutes (threshold: %d min). Time to go!",
			currentMinutes, alert.ThresholdMinutes)
	}

	if err := s.sendSMS(ctx, alert, message); err != nil {
		s.appendLog(ctx, alert.ID, model.NotificationSMSFailed, err.Error())
	} else if reason == model.CompletionReasonThresholdMet {
		s.appendLog(ctx, alert.ID, model.NotificationThresholdMet, message)
	}

	if alert.CanAutoBook() {
		s.attemptAutoBooking(ctx, alert)
	}

	return nil
}

func (s *Scheduler) notifyImprovement(ctx context.Context, alert *model.Alert, currentMinutes int) error {
	message := fmt.Sprintf("Good news! Travel time improved from %d to %d minutes (target: %d min). Getting better!",
		*alert.LastDuration, currentMinutes, alert.ThresholdMinutes)

	if err := s.sendSMS(ctx, alert, message); err != nil {
		s.appendLog(ctx, alert.ID, model.NotificationSMSFailed, err.Error())
	} else {
		s.appendLog(ctx, alert.ID, model.NotificationImprovement,
			fmt.Sprintf("Improved from %d to %d min", *alert.LastDuration, currentMinutes))
	}

	return s.store.UpdateProgress(ctx, alert.ID, currentMinutes)
}

func (s *Scheduler) sendSMS(ctx context.Context, alert *model.Alert, body string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	_, err := s.sms.SendMessage(callCtx, alert.Phone, body)
	if err != nil {
		s.logger.Error("SMS delivery failed",
			zap.Int64("alert_id", alert.ID),
			zap.Error(err))
	}
	return err
}

// appendLog failures are swallowed, the audit trail never blocks delivery.
func (s *Scheduler) appendLog(ctx context.Context, alertID int64, typ model.NotificationType, message string) {
	if err := s.store.AppendLog(ctx, alertID, typ, message); err != nil {
		s.logger.Error("Notification log write failed",
			zap.Int64("alert_id", alertID),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}

// Status reports whether the sweep timer is running.
func (s *Scheduler) Status() model.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.SchedulerStatus{
		Running:  s.started,
		JobCount: len(s.cron.Entries()),
	}
}

// Stats aggregates alert counts from the store.
func (s *Scheduler) Stats(ctx context.Context) (*model.SchedulerStats, error) {
	return s.store.CountsByStatus(ctx)
}
