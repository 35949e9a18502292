package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"TrafficWatch/internal/model"
	"TrafficWatch/internal/store"
	pkgerrors "TrafficWatch/pkg/errors"
	"TrafficWatch/pkg/logger"
	"TrafficWatch/pkg/maps"
	"TrafficWatch/pkg/sms"
	"TrafficWatch/pkg/snowflake"
	"TrafficWatch/storage/database"
)

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []int64
	ch  chan int64
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{ch: make(chan int64, 8)}
}

func (d *recordingDispatcher) ProcessAlert(ctx context.Context, alertID int64) error {
	d.mu.Lock()
	d.ids = append(d.ids, alertID)
	d.mu.Unlock()
	d.ch <- alertID
	return nil
}

func (d *recordingDispatcher) waitForDispatch(t *testing.T) int64 {
	t.Helper()
	select {
	case id := <-d.ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("no dispatch observed")
		return 0
	}
}

type serviceFixture struct {
	svc        *AlertService
	store      *store.Store
	oracle     *maps.MockClient
	sms        *sms.MockClient
	dispatcher *recordingDispatcher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	logger.Logger = zap.NewNop()
	require.NoError(t, snowflake.Init(1, 1))

	db, err := gorm.Open(sqlite.Open("file:svc_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	st := store.New(db)
	oracle := maps.NewMockClient()
	oracle.Coords["HSR Layout, Bangalore"] = maps.Coordinate{Lat: 12.9116, Lng: 77.6412}
	oracle.Coords["Indiranagar, Bangalore"] = maps.Coordinate{Lat: 12.9719, Lng: 77.6412}
	smsClient := sms.NewMockClient()
	dispatcher := newRecordingDispatcher()

	svc := NewAlertService(st, oracle, smsClient, dispatcher, zap.NewNop(), Options{
		MinFinalThresholdMinutes: 5,
	})

	return &serviceFixture{svc: svc, store: st, oracle: oracle, sms: smsClient, dispatcher: dispatcher}
}

func validRequest() *model.CreateAlertRequest {
	return &model.CreateAlertRequest{
		OriginAddress:      "HSR Layout, Bangalore",
		DestinationAddress: "Indiranagar, Bangalore",
		ThresholdMinutes:   25,
		Phone:              "+919876500001",
		Username:           "  Ravi ",
	}
}

func TestCreateAlert(t *testing.T) {
	f := newServiceFixture(t)
	f.oracle.Durations = []int{42}

	resp, err := f.svc.CreateAlert(context.Background(), validRequest(), nil)
	require.NoError(t, err)
	require.NotZero(t, resp.AlertID)
	require.Equal(t, "ravi", resp.Username)
	require.True(t, resp.ImmediateCheckTriggered)

	got, err := f.store.GetAlertByID(context.Background(), resp.AlertID)
	require.NoError(t, err)
	require.Equal(t, "ravi", got.Username)
	require.InDelta(t, 12.9116, got.OriginLat, 0.0001)
	require.InDelta(t, 12.9719, got.DestinationLat, 0.0001)

	sent := f.sms.Sent()
	require.Len(t, sent, 1)
	require.Contains(t, sent[0].Body, "Alert created!")
	require.Contains(t, sent[0].Body, "Current: 42min")

	require.Equal(t, resp.AlertID, f.dispatcher.waitForDispatch(t))
}

func TestCreateAlertValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	req := validRequest()
	req.Username = ""
	_, err := f.svc.CreateAlert(ctx, req, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.MissingFields))

	req = validRequest()
	req.ThresholdMinutes = -3
	_, err = f.svc.CreateAlert(ctx, req, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.InvalidThreshold))

	low := 3
	req = validRequest()
	req.FinalThresholdMins = &low
	_, err = f.svc.CreateAlert(ctx, req, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.FinalThresholdTooLow))

	req = validRequest()
	req.AutoBook = true
	_, err = f.svc.CreateAlert(ctx, req, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.AuthRequired))

	req = validRequest()
	req.OriginAddress = "Nowhere Street"
	_, err = f.svc.CreateAlert(ctx, req, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.InvalidAddress))
}

func TestCreateAlertUsernameBinding(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.oracle.Durations = []int{42}

	_, err := f.svc.CreateAlert(ctx, validRequest(), nil)
	require.NoError(t, err)
	f.dispatcher.waitForDispatch(t)

	// Same username under a different phone is rejected.
	req := validRequest()
	req.Phone = "+910000000000"
	_, err = f.svc.CreateAlert(ctx, req, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.UsernameTaken))

	// Same owner pair already has an active alert; a different threshold
	// dodges the duplicate short-circuit.
	req = validRequest()
	req.ThresholdMinutes = 15
	_, err = f.svc.CreateAlert(ctx, req, nil)
	require.True(t, pkgerrors.Is(err, pkgerrors.ActiveAlertExists))
}

func TestCreateAlertDuplicateWindow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.oracle.Durations = []int{42}

	resp, err := f.svc.CreateAlert(ctx, validRequest(), nil)
	require.NoError(t, err)
	f.dispatcher.waitForDispatch(t)

	// Cancelled alerts never absorb a resubmit.
	_, err = f.svc.CancelAlert(ctx, "ravi", resp.AlertID)
	require.NoError(t, err)

	req := validRequest()
	resp2, err := f.svc.CreateAlert(ctx, req, nil)
	require.NoError(t, err)
	require.NotEqual(t, resp.AlertID, resp2.AlertID)
	f.dispatcher.waitForDispatch(t)

	// Identical immediate resubmit returns the live alert unchanged.
	resp3, err := f.svc.CreateAlert(ctx, req, nil)
	require.NoError(t, err)
	require.Equal(t, resp2.AlertID, resp3.AlertID)

	alerts, err := f.store.FindByUsername(ctx, "ravi")
	require.NoError(t, err)
	require.Len(t, alerts, 2)
}

func TestCreateAlertStoresCredentialsOnlyWhenAutoBook(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.oracle.Durations = []int{42}

	creds := model.JSONB{"access_token": "tok-1"}

	req := validRequest()
	req.AutoBook = true
	resp, err := f.svc.CreateAlert(ctx, req, creds)
	require.NoError(t, err)
	f.dispatcher.waitForDispatch(t)

	got, err := f.store.GetAlertByID(ctx, resp.AlertID)
	require.NoError(t, err)
	require.True(t, got.CanAutoBook())
	require.Equal(t, "tok-1", got.AccessToken())

	// Session tokens present but auto_book off: nothing stored.
	req2 := validRequest()
	req2.Username = "meera"
	req2.Phone = "+919876500002"
	resp2, err := f.svc.CreateAlert(ctx, req2, creds)
	require.NoError(t, err)
	f.dispatcher.waitForDispatch(t)

	got2, err := f.store.GetAlertByID(ctx, resp2.AlertID)
	require.NoError(t, err)
	require.False(t, got2.CanAutoBook())
	require.Empty(t, got2.AccessToken())
}

func TestListUserAlerts(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.oracle.Durations = []int{42}

	resp, err := f.svc.CreateAlert(ctx, validRequest(), nil)
	require.NoError(t, err)
	f.dispatcher.waitForDispatch(t)

	list, err := f.svc.ListUserAlerts(ctx, "RAVI")
	require.NoError(t, err)
	require.Equal(t, "ravi", list.Username)
	require.Equal(t, 1, list.Count)
	require.Equal(t, 1, list.ActiveCount)
	require.Equal(t, resp.AlertID, list.Alerts[0].ID)

	empty, err := f.svc.ListUserAlerts(ctx, "nobody")
	require.NoError(t, err)
	require.Zero(t, empty.Count)

	_, err = f.svc.ListUserAlerts(ctx, "  ")
	require.True(t, pkgerrors.Is(err, pkgerrors.MissingFields))
}

func TestCancelAndReactivate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.oracle.Durations = []int{42}

	resp, err := f.svc.CreateAlert(ctx, validRequest(), nil)
	require.NoError(t, err)
	f.dispatcher.waitForDispatch(t)

	cancelled, err := f.svc.CancelAlert(ctx, "ravi", resp.AlertID)
	require.NoError(t, err)
	require.Equal(t, model.AlertStatusCancelled, cancelled.Status)

	_, err = f.svc.CancelAlert(ctx, "ravi", resp.AlertID)
	require.True(t, pkgerrors.Is(err, pkgerrors.AlertNotFound))

	reactivated, err := f.svc.ReactivateAlert(ctx, "ravi", resp.AlertID)
	require.NoError(t, err)
	require.Equal(t, model.AlertStatusActive, reactivated.Status)
	require.Equal(t, resp.AlertID, f.dispatcher.waitForDispatch(t))

	sent := f.sms.Sent()
	require.Contains(t, sent[len(sent)-1].Body, "Alert reactivated!")

	_, err = f.svc.ReactivateAlert(ctx, "ravi", resp.AlertID)
	require.True(t, pkgerrors.Is(err, pkgerrors.AlertAlreadyActive))
}
