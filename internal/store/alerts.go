package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"TrafficWatch/internal/model"
	pkgerrors "TrafficWatch/pkg/errors"
	"TrafficWatch/pkg/snowflake"
)

// Store is the persistence layer for alerts and their notification log.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetActiveAlerts returns every alert still being monitored, oldest first.
func (s *Store) GetActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	var alerts []model.Alert
	err := s.db.WithContext(ctx).
		Where("status = ?", model.AlertStatusActive).
		Order("created_at ASC").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *Store) GetAlertByID(ctx context.Context, id int64) (*model.Alert, error) {
	var alert model.Alert
	err := s.db.WithContext(ctx).First(&alert, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.AlertNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// Insert assigns a snowflake ID and persists the alert.
func (s *Store) Insert(ctx context.Context, alert *model.Alert) error {
	id, err := snowflake.NextID()
	if err != nil {
		return err
	}
	alert.ID = id
	return s.db.WithContext(ctx).Create(alert).Error
}

// MarkCompleted flips an alert to completed with the given reason. The
// status guard makes the transition first-writer-wins: a concurrent pass
// that lost the race sees zero rows affected and must not notify.
func (s *Store) MarkCompleted(ctx context.Context, id int64, reason model.CompletionReason) (bool, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.Alert{}).
		Where("id = ? AND status = ?", id, model.AlertStatusActive).
		Updates(map[string]interface{}{
			"status":            model.AlertStatusCompleted,
			"completion_reason": reason,
			"completed_at":      now,
			"updated_at":        now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateProgress records one successful measurement on a still-active alert.
func (s *Store) UpdateProgress(ctx context.Context, id int64, durationMinutes int) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&model.Alert{}).
		Where("id = ? AND status = ?", id, model.AlertStatusActive).
		Updates(map[string]interface{}{
			"last_checked":  now,
			"last_duration": durationMinutes,
			"updated_at":    now,
		}).Error
}

// Cancel deactivates an alert on user request. Only the owner's active
// alert can be cancelled; anything else reports not found.
func (s *Store) Cancel(ctx context.Context, username string, alertID int64) (*model.Alert, error) {
	var alert model.Alert
	err := s.db.WithContext(ctx).
		Where("id = ? AND username = ? AND status = ?", alertID, username, model.AlertStatusActive).
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.AlertNotFound
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.Alert{}).
		Where("id = ? AND status = ?", alert.ID, model.AlertStatusActive).
		Updates(map[string]interface{}{
			"status":       model.AlertStatusCancelled,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.AlertNotFound
	}
	alert.Status = model.AlertStatusCancelled
	return &alert, nil
}

// Reactivate restarts monitoring on a non-active alert. The elapsed clock
// and all progress fields reset so the alert behaves like a fresh one.
func (s *Store) Reactivate(ctx context.Context, username string, alertID int64) (*model.Alert, error) {
	var alert model.Alert
	err := s.db.WithContext(ctx).
		Where("id = ? AND username = ?", alertID, username).
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.AlertNotFound
	}
	if err != nil {
		return nil, err
	}
	if alert.Status == model.AlertStatusActive {
		return nil, pkgerrors.AlertAlreadyActive
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.Alert{}).
		Where("id = ? AND status != ?", alert.ID, model.AlertStatusActive).
		Updates(map[string]interface{}{
			"status":            model.AlertStatusActive,
			"created_at":        now,
			"updated_at":        now,
			"completion_reason": nil,
			"completed_at":      nil,
			"last_checked":      nil,
			"last_duration":     nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.AlertAlreadyActive
	}
	return s.GetAlertByID(ctx, alert.ID)
}

// FindActiveByOwner returns the active alert for a (username, phone) pair.
func (s *Store) FindActiveByOwner(ctx context.Context, username, phone string) (*model.Alert, error) {
	var alert model.Alert
	err := s.db.WithContext(ctx).
		Where("username = ? AND phone = ? AND status = ?", username, phone, model.AlertStatusActive).
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.AlertNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// FindByUsername returns all alerts for a username, newest first.
func (s *Store) FindByUsername(ctx context.Context, username string) ([]model.Alert, error) {
	var alerts []model.Alert
	err := s.db.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at DESC").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// UsernameBoundToOtherPhone reports whether the username already belongs
// to a different phone number. Usernames bind to the phone of their first
// alert.
func (s *Store) UsernameBoundToOtherPhone(ctx context.Context, username, phone string) (bool, error) {
	var existing model.Alert
	err := s.db.WithContext(ctx).
		Select("phone").
		Where("username = ?", username).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.Phone != phone, nil
}

// FindRecentDuplicate looks for an identical-route active alert created
// within the window. Used to absorb double-submits.
func (s *Store) FindRecentDuplicate(ctx context.Context, alert *model.Alert, window time.Duration) (*model.Alert, error) {
	var existing model.Alert
	err := s.db.WithContext(ctx).
		Where("username = ? AND phone = ? AND origin_address = ? AND destination_address = ? AND threshold_minutes = ? AND status = ? AND created_at > ?",
			alert.Username, alert.Phone, alert.OriginAddress, alert.DestinationAddress,
			alert.ThresholdMinutes, model.AlertStatusActive, time.Now().Add(-window)).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// AttachCredentials stores ride tokens on the user's most recent active
// alert, so an OAuth round-trip after creation still enables auto-booking.
func (s *Store) AttachCredentials(ctx context.Context, username string, creds model.JSONB) error {
	var alert model.Alert
	err := s.db.WithContext(ctx).
		Where("username = ? AND status = ?", username, model.AlertStatusActive).
		Order("created_at DESC").
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Model(&model.Alert{}).
		Where("id = ?", alert.ID).
		Updates(map[string]interface{}{
			"ride_credentials": creds,
			"updated_at":       time.Now(),
		}).Error
}

// CountsByStatus returns aggregate alert counts for the stats endpoint.
func (s *Store) CountsByStatus(ctx context.Context) (*model.SchedulerStats, error) {
	stats := &model.SchedulerStats{}

	rows := []struct {
		Status model.AlertStatus
		Count  int64
	}{}
	err := s.db.WithContext(ctx).Model(&model.Alert{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		switch r.Status {
		case model.AlertStatusActive:
			stats.ActiveAlerts = r.Count
		case model.AlertStatusCompleted:
			stats.CompletedAlerts = r.Count
		}
	}
	// Cancelled alerts are not part of the total.
	stats.TotalAlerts = stats.ActiveAlerts + stats.CompletedAlerts
	return stats, nil
}

// AppendLog writes one audit entry. The log is append-only.
func (s *Store) AppendLog(ctx context.Context, alertID int64, typ model.NotificationType, message string) error {
	id, err := snowflake.NextID()
	if err != nil {
		return err
	}
	entry := &model.NotificationLog{
		ID:        id,
		AlertID:   alertID,
		Type:      typ,
		Message:   message,
		CreatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// GetLogs returns the audit trail for one alert, oldest first.
func (s *Store) GetLogs(ctx context.Context, alertID int64) ([]model.NotificationLog, error) {
	var logs []model.NotificationLog
	err := s.db.WithContext(ctx).
		Where("alert_id = ?", alertID).
		Order("created_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
