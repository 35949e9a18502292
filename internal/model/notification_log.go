package model

import "time"

// NotificationType categorizes entries in the append-only notification log.
type NotificationType string

const (
	NotificationThresholdMet NotificationType = "threshold_met"
	NotificationImprovement  NotificationType = "traffic_improvement"
	NotificationSMSFailed    NotificationType = "sms_failed"
	NotificationAutoBookOK   NotificationType = "auto_book_success"
	NotificationAutoBookFail NotificationType = "auto_book_failed"
)

// NotificationLog is an append-only audit record. Entries are never mutated
// or deleted.
type NotificationLog struct {
	ID        int64            `gorm:"primaryKey" json:"id"` // snowflake, assigned at insert
	AlertID   int64            `gorm:"not null;index" json:"alert_id"`
	Type      NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time        `gorm:"not null" json:"created_at"`
}

func (NotificationLog) TableName() string {
	return "alert_logs"
}
