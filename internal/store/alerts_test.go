package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"TrafficWatch/internal/model"
	pkgerrors "TrafficWatch/pkg/errors"
	"TrafficWatch/pkg/logger"
	"TrafficWatch/pkg/snowflake"
	"TrafficWatch/storage/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger.Logger = zap.NewNop()
	require.NoError(t, snowflake.Init(1, 1))

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	return New(db)
}

func newAlert(username, phone string) *model.Alert {
	return &model.Alert{
		Username:           username,
		Phone:              phone,
		OriginAddress:      "HSR Layout, Bangalore",
		DestinationAddress: "Indiranagar, Bangalore",
		OriginLat:          12.9116,
		OriginLng:          77.6412,
		DestinationLat:     12.9719,
		DestinationLng:     77.6412,
		ThresholdMinutes:   20,
		Status:             model.AlertStatusActive,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
}

func TestInsertAndGetActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newAlert("ravi", "+919876500001")
	require.NoError(t, s.Insert(ctx, a))
	require.NotZero(t, a.ID)

	active, err := s.GetActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, a.ID, active[0].ID)

	got, err := s.GetAlertByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "ravi", got.Username)

	_, err = s.GetAlertByID(ctx, 999)
	require.True(t, pkgerrors.Is(err, pkgerrors.AlertNotFound))
}

func TestMarkCompletedIsFirstWriterWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newAlert("ravi", "+919876500002")
	require.NoError(t, s.Insert(ctx, a))

	won, err := s.MarkCompleted(ctx, a.ID, model.CompletionReasonThresholdMet)
	require.NoError(t, err)
	require.True(t, won)

	// Second transition must observe zero rows affected.
	won, err = s.MarkCompleted(ctx, a.ID, model.CompletionReasonFinalTime)
	require.NoError(t, err)
	require.False(t, won)

	got, err := s.GetAlertByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, model.AlertStatusCompleted, got.Status)
	require.NotNil(t, got.CompletionReason)
	require.Equal(t, model.CompletionReasonThresholdMet, *got.CompletionReason)
	require.NotNil(t, got.CompletedAt)
}

func TestUpdateProgressOnlyTouchesActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newAlert("ravi", "+919876500003")
	require.NoError(t, s.Insert(ctx, a))

	require.NoError(t, s.UpdateProgress(ctx, a.ID, 34))
	got, err := s.GetAlertByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastDuration)
	require.Equal(t, 34, *got.LastDuration)
	require.NotNil(t, got.LastChecked)

	_, err = s.MarkCompleted(ctx, a.ID, model.CompletionReasonThresholdMet)
	require.NoError(t, err)

	require.NoError(t, s.UpdateProgress(ctx, a.ID, 12))
	got, err = s.GetAlertByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 34, *got.LastDuration)
}

func TestCancelAndReactivateResetsProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newAlert("ravi", "+919876500004")
	a.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.Insert(ctx, a))
	require.NoError(t, s.UpdateProgress(ctx, a.ID, 40))

	cancelled, err := s.Cancel(ctx, "ravi", a.ID)
	require.NoError(t, err)
	require.Equal(t, model.AlertStatusCancelled, cancelled.Status)

	_, err = s.Cancel(ctx, "ravi", a.ID)
	require.True(t, pkgerrors.Is(err, pkgerrors.AlertNotFound))

	// Wrong owner never reactivates someone else's alert.
	_, err = s.Reactivate(ctx, "meera", a.ID)
	require.True(t, pkgerrors.Is(err, pkgerrors.AlertNotFound))

	reactivated, err := s.Reactivate(ctx, "ravi", a.ID)
	require.NoError(t, err)
	require.Equal(t, model.AlertStatusActive, reactivated.Status)
	require.Nil(t, reactivated.LastChecked)
	require.Nil(t, reactivated.LastDuration)
	require.Nil(t, reactivated.CompletionReason)
	require.Nil(t, reactivated.CompletedAt)
	// The elapsed clock restarts.
	require.WithinDuration(t, time.Now(), reactivated.CreatedAt, 5*time.Second)

	_, err = s.Reactivate(ctx, "ravi", a.ID)
	require.True(t, pkgerrors.Is(err, pkgerrors.AlertAlreadyActive))
}

func TestUsernameBoundToOtherPhone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, newAlert("ravi", "+919876500005")))

	taken, err := s.UsernameBoundToOtherPhone(ctx, "ravi", "+910000000000")
	require.NoError(t, err)
	require.True(t, taken)

	taken, err = s.UsernameBoundToOtherPhone(ctx, "ravi", "+919876500005")
	require.NoError(t, err)
	require.False(t, taken)

	taken, err = s.UsernameBoundToOtherPhone(ctx, "newuser", "+919876500005")
	require.NoError(t, err)
	require.False(t, taken)
}

func TestFindRecentDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newAlert("ravi", "+919876500006")
	require.NoError(t, s.Insert(ctx, a))

	dup, err := s.FindRecentDuplicate(ctx, newAlert("ravi", "+919876500006"), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, dup)
	require.Equal(t, a.ID, dup.ID)

	other := newAlert("ravi", "+919876500006")
	other.ThresholdMinutes = 15
	dup, err = s.FindRecentDuplicate(ctx, other, time.Minute)
	require.NoError(t, err)
	require.Nil(t, dup)
}

func TestCountsByStatusAndLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newAlert("ravi", "+919876500007")
	require.NoError(t, s.Insert(ctx, a))
	b := newAlert("meera", "+919876500008")
	require.NoError(t, s.Insert(ctx, b))
	_, err := s.MarkCompleted(ctx, b.ID, model.CompletionReasonFinalTime)
	require.NoError(t, err)
	c := newAlert("anil", "+919876500009")
	require.NoError(t, s.Insert(ctx, c))
	_, err = s.Cancel(ctx, "anil", c.ID)
	require.NoError(t, err)

	stats, err := s.CountsByStatus(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.ActiveAlerts)
	require.EqualValues(t, 1, stats.CompletedAlerts)
	require.EqualValues(t, 2, stats.TotalAlerts)

	require.NoError(t, s.AppendLog(ctx, b.ID, model.NotificationThresholdMet, "travel time dropped"))
	require.NoError(t, s.AppendLog(ctx, b.ID, model.NotificationAutoBookOK, "ride booked"))

	logs, err := s.GetLogs(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, model.NotificationThresholdMet, logs[0].Type)
}
