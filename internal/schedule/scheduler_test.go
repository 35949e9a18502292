package schedule

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"TrafficWatch/internal/cache"
	"TrafficWatch/internal/model"
	"TrafficWatch/internal/store"
	"TrafficWatch/pkg/logger"
	"TrafficWatch/pkg/maps"
	"TrafficWatch/pkg/ride"
	"TrafficWatch/pkg/sms"
	"TrafficWatch/pkg/snowflake"
	"TrafficWatch/storage/database"
)

type schedulerFixture struct {
	scheduler *Scheduler
	store     *store.Store
	oracle    *maps.MockClient
	sms       *sms.MockClient
	rides     *ride.MockClient
}

func newFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	logger.Logger = zap.NewNop()
	require.NoError(t, snowflake.Init(1, 1))

	db, err := gorm.Open(sqlite.Open("file:sched_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	st := store.New(db)
	oracle := maps.NewMockClient()
	smsClient := sms.NewMockClient()
	rides := ride.NewMockClient()

	sched := NewScheduler(st, oracle, smsClient, rides, cache.NewNoopLocker(), zap.NewNop(), Options{
		CallTimeout:  time.Second,
		PollAttempts: 3,
		PollInterval: time.Millisecond,
	})

	return &schedulerFixture{
		scheduler: sched,
		store:     st,
		oracle:    oracle,
		sms:       smsClient,
		rides:     rides,
	}
}

func (f *schedulerFixture) insertAlert(t *testing.T, mutate func(*model.Alert)) *model.Alert {
	t.Helper()
	a := &model.Alert{
		Username:           "ravi",
		Phone:              "+919876500001",
		OriginAddress:      "HSR Layout, Bangalore",
		DestinationAddress: "Indiranagar, Bangalore",
		OriginLat:          12.9116,
		OriginLng:          77.6412,
		DestinationLat:     12.9719,
		DestinationLng:     77.6412,
		ThresholdMinutes:   25,
		Status:             model.AlertStatusActive,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	if mutate != nil {
		mutate(a)
	}
	require.NoError(t, f.store.Insert(context.Background(), a))
	return a
}

func logTypes(t *testing.T, f *schedulerFixture, alertID int64) []model.NotificationType {
	t.Helper()
	logs, err := f.store.GetLogs(context.Background(), alertID)
	require.NoError(t, err)
	types := make([]model.NotificationType, 0, len(logs))
	for _, l := range logs {
		types = append(types, l.Type)
	}
	return types
}

func TestAlertLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.insertAlert(t, nil)
	f.oracle.Durations = []int{40, 30, 22}

	// First check: above threshold, no prior measurement, silent.
	require.NoError(t, f.scheduler.ProcessAlert(ctx, a.ID))
	require.Empty(t, f.sms.Sent())
	got, err := f.store.GetAlertByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 40, *got.LastDuration)

	// Second check: improving.
	require.NoError(t, f.scheduler.ProcessAlert(ctx, a.ID))
	sent := f.sms.Sent()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Body, "improved from 40 to 30")
	require.Equal(t, []model.NotificationType{model.NotificationImprovement}, logTypes(t, f, a.ID))

	// Third check: threshold met, alert completes.
	require.NoError(t, f.scheduler.ProcessAlert(ctx, a.ID))
	sent = f.sms.Sent()
	require.Len(t, sent, 2)
	require.Contains(t, sent[1].Body, "TRAFFIC ALERT")
	require.Contains(t, sent[1].Body, "22 minutes")

	got, err = f.store.GetAlertByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, model.AlertStatusCompleted, got.Status)
	require.Equal(t, model.CompletionReasonThresholdMet, *got.CompletionReason)
	require.Contains(t, logTypes(t, f, a.ID), model.NotificationThresholdMet)
}

func TestProcessAlertIdempotentAfterCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.insertAlert(t, nil)
	f.oracle.Durations = []int{20}

	require.NoError(t, f.scheduler.ProcessAlert(ctx, a.ID))
	require.Len(t, f.sms.Sent(), 1)
	calls := f.oracle.TravelCalls

	// Completed alerts fall out before the travel-time lookup.
	require.NoError(t, f.scheduler.ProcessAlert(ctx, a.ID))
	require.Len(t, f.sms.Sent(), 1)
	require.Equal(t, calls, f.oracle.TravelCalls)
}

func TestProcessAlertMissingIDIsSilent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.scheduler.ProcessAlert(context.Background(), 424242))
	require.Empty(t, f.sms.Sent())
}

func TestOracleFailureKeepsAlertActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.insertAlert(t, nil)
	f.oracle.FailNext = true
	f.oracle.Durations = []int{50}

	require.Error(t, f.scheduler.ProcessAlert(ctx, a.ID))
	require.Empty(t, f.sms.Sent())

	got, err := f.store.GetAlertByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, model.AlertStatusActive, got.Status)
	require.Nil(t, got.LastDuration)

	// Next pass succeeds normally.
	require.NoError(t, f.scheduler.ProcessAlert(ctx, a.ID))
	got, err = f.store.GetAlertByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 50, *got.LastDuration)
}

func TestFinalExpirySkipsOracle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	final := 60
	a := f.insertAlert(t, func(a *model.Alert) {
		a.CreatedAt = time.Now().Add(-61 * time.Minute)
		a.FinalThresholdMinutes = &final
	})
	f.oracle.Durations = []int{10}

	require.NoError(t, f.scheduler.ProcessAlert(ctx, a.ID))

	// Expiry is decided without a travel-time lookup.
	require.Zero(t, f.oracle.TravelCalls)

	got, err := f.store.GetAlertByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, model.AlertStatusCompleted, got.Status)
	require.Equal(t, model.CompletionReasonFinalTime, *got.CompletionReason)

	sent := f.sms.Sent()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Body, "Time expired: 60 min")
	require.NotContains(t, sent[0].Body, "Auto-booking")
}

func TestSMSFailureStillCompletesAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.insertAlert(t, nil)
	f.oracle.Durations = []int{20}
	f.sms.FailNext = true

	require.NoError(t, f.scheduler.ProcessAlert(ctx, a.ID))

	got, err := f.store.GetAlertByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, model.AlertStatusCompleted, got.Status)
	require.Equal(t, []model.NotificationType{model.NotificationSMSFailed}, logTypes(t, f, a.ID))
}

func TestAutoBookingSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.insertAlert(t, func(a *model.Alert) {
		a.AutoBook = true
		a.RideCredentials = model.JSONB{"access_token": "tok-1"}
	})
	f.oracle.Durations = []int{20}
	f.rides.PollResults = []ride.Status{
		{State: ride.StatePending},
		{State: ride.StateAssigned, DriverName: "Suresh", DriverPhone: "+911234", Vehicle: "KA-01 Swift", OTP: "4821"},
	}

	require.NoError(t, f.scheduler.ProcessAlert(ctx, a.ID))

	sent := f.sms.Sent()
	require.Len(t, sent, 2)
	require.Contains(t, sent[1].Body, "has been booked")
	require.Contains(t, sent[1].Body, "Suresh")
	require.Contains(t, sent[1].Body, "OTP: 4821")

	types := logTypes(t, f, a.ID)
	require.Contains(t, types, model.NotificationThresholdMet)
	require.Contains(t, types, model.NotificationAutoBookOK)
	require.Equal(t, 1, f.rides.CreateCalls)
}

func TestAutoBookingSkippedWithoutCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Flag set but no stored token: booking silently skipped.
	a := f.insertAlert(t, func(a *model.Alert) {
		a.AutoBook = true
	})
	f.oracle.Durations = []int{20}

	require.NoError(t, f.scheduler.ProcessAlert(ctx, a.ID))
	require.Zero(t, f.rides.CreateCalls)
	require.Len(t, f.sms.Sent(), 1)
}

func TestAutoBookingAllocationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.insertAlert(t, func(a *model.Alert) {
		a.AutoBook = true
		a.RideCredentials = model.JSONB{"access_token": "tok-1"}
	})
	f.oracle.Durations = []int{20}
	f.rides.PollResults = []ride.Status{{State: ride.StateAllocationFailed}}

	require.NoError(t, f.scheduler.ProcessAlert(ctx, a.ID))

	sent := f.sms.Sent()
	require.Len(t, sent, 2)
	require.Contains(t, sent[1].Body, "AUTO-BOOK FAILED")
	require.Contains(t, sent[1].Body, "No drivers available")
	require.Contains(t, logTypes(t, f, a.ID), model.NotificationAutoBookFail)
}

func TestAutoBookingAllocationTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.insertAlert(t, func(a *model.Alert) {
		a.AutoBook = true
		a.RideCredentials = model.JSONB{"access_token": "tok-1"}
	})
	f.oracle.Durations = []int{20}
	f.rides.PollResults = []ride.Status{{State: ride.StatePending}}

	require.NoError(t, f.scheduler.ProcessAlert(ctx, a.ID))

	require.Equal(t, 3, f.rides.PollCalls)
	sent := f.sms.Sent()
	require.Len(t, sent, 2)
	require.True(t, strings.Contains(sent[1].Body, "timed out"))
}

func TestRunSweepEvaluatesAllActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.insertAlert(t, func(a *model.Alert) { a.Phone = "+919876500011" })
	f.insertAlert(t, func(a *model.Alert) {
		a.Username = "meera"
		a.Phone = "+919876500012"
	})
	completed := f.insertAlert(t, func(a *model.Alert) {
		a.Username = "asha"
		a.Phone = "+919876500013"
	})
	_, err := f.store.MarkCompleted(ctx, completed.ID, model.CompletionReasonThresholdMet)
	require.NoError(t, err)

	f.oracle.Durations = []int{50}

	require.NoError(t, f.scheduler.RunSweep(ctx))
	require.Equal(t, 2, f.oracle.TravelCalls)
}

func TestSchedulerStatusAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.False(t, f.scheduler.Status().Running)
	require.NoError(t, f.scheduler.Start(ctx))
	status := f.scheduler.Status()
	require.True(t, status.Running)
	require.Equal(t, 1, status.JobCount)

	f.scheduler.Stop()
	require.False(t, f.scheduler.Status().Running)

	f.insertAlert(t, nil)
	stats, err := f.scheduler.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.ActiveAlerts)
}
