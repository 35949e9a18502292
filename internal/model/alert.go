package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// AlertStatus lifecycle states.
type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "active"
	AlertStatusCompleted AlertStatus = "completed"
	AlertStatusCancelled AlertStatus = "cancelled"
)

// CompletionReason records why a completed alert stopped monitoring.
type CompletionReason string

const (
	CompletionReasonFinalTime    CompletionReason = "final_time_reached"
	CompletionReasonThresholdMet CompletionReason = "threshold_met"
)

// Alert is a user's standing request to be notified when the live travel
// time of a route drops to or below a threshold. Route coordinates and
// thresholds are set at creation/reactivation and never mutated while the
// alert is non-active.
type Alert struct {
	ID        int64     `gorm:"primaryKey" json:"id"` // snowflake, assigned at insert
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	Username string `gorm:"type:varchar(64);not null;index:idx_alerts_owner" json:"username"`
	Phone    string `gorm:"type:varchar(32);not null;index:idx_alerts_owner" json:"phone"`

	OriginAddress      string  `gorm:"type:varchar(255);not null" json:"origin_address"`
	DestinationAddress string  `gorm:"type:varchar(255);not null" json:"destination_address"`
	OriginLat          float64 `gorm:"not null" json:"origin_lat"`
	OriginLng          float64 `gorm:"not null" json:"origin_lng"`
	DestinationLat     float64 `gorm:"not null" json:"destination_lat"`
	DestinationLng     float64 `gorm:"not null" json:"destination_lng"`

	ThresholdMinutes      int  `gorm:"not null" json:"threshold_minutes"`
	FinalThresholdMinutes *int `json:"final_threshold_minutes,omitempty"`

	AutoBook        bool  `gorm:"not null;default:false" json:"auto_book"`
	RideCredentials JSONB `gorm:"type:jsonb" json:"-"`

	Status           AlertStatus       `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	CompletionReason *CompletionReason `gorm:"type:varchar(32)" json:"completion_reason,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`

	// Null until the first successful measurement.
	LastChecked  *time.Time `json:"last_checked,omitempty"`
	LastDuration *int       `json:"last_duration,omitempty"`
}

func (Alert) TableName() string {
	return "alerts"
}

// HasFinalThreshold reports whether a hard time-box is configured.
func (a *Alert) HasFinalThreshold() bool {
	return a.FinalThresholdMinutes != nil
}

// CanAutoBook reports whether booking should be attempted: the flag alone is
// not enough, stored credentials must be present too. A missing-credentials
// alert with auto_book=true skips booking and is not an error.
func (a *Alert) CanAutoBook() bool {
	return a.AutoBook && len(a.RideCredentials) > 0
}

// AccessToken extracts the ride provider token from the credential payload.
func (a *Alert) AccessToken() string {
	if a.RideCredentials == nil {
		return ""
	}
	if tok, ok := a.RideCredentials["access_token"].(string); ok {
		return tok
	}
	return ""
}

// JSONB stores an opaque JSON object column.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return errors.New("failed to unmarshal JSONB value")
	}
}
