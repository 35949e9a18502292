package model

import "time"

// CreateAlertRequest is the body of POST /v1/alerts.
type CreateAlertRequest struct {
	OriginAddress      string `json:"origin_address"`
	DestinationAddress string `json:"destination_address"`
	ThresholdMinutes   int    `json:"threshold_minutes"`
	FinalThresholdMins *int   `json:"final_threshold_minutes,omitempty"`
	AutoBook           bool   `json:"auto_book"`
	Phone              string `json:"phone"`
	Username           string `json:"username"`
}

// CreateAlertResponse echoes the created (or deduplicated) alert.
type CreateAlertResponse struct {
	AlertID                 int64  `json:"alert_id"`
	Username                string `json:"username"`
	Status                  string `json:"status"`
	ImmediateCheckTriggered bool   `json:"immediate_check_triggered"`
}

// AlertItem is the list representation of one alert.
type AlertItem struct {
	ID                 int64      `json:"id"`
	OriginAddress      string     `json:"origin_address"`
	DestinationAddress string     `json:"destination_address"`
	ThresholdMinutes   int        `json:"threshold_minutes"`
	FinalThresholdMins *int       `json:"final_threshold_minutes,omitempty"`
	AutoBook           bool       `json:"auto_book"`
	Status             string     `json:"status"`
	Phone              string     `json:"phone"`
	CreatedAt          time.Time  `json:"created_at"`
	LastChecked        *time.Time `json:"last_checked,omitempty"`
	LastDuration       *int       `json:"last_duration,omitempty"`
}

// UserAlertsResponse is the body of GET /v1/alerts/users/:username.
type UserAlertsResponse struct {
	Username    string      `json:"username"`
	Alerts      []AlertItem `json:"alerts"`
	Count       int         `json:"count"`
	ActiveCount int         `json:"active_count"`
}

// AlertActionRequest identifies an alert for cancel/reactivate.
type AlertActionRequest struct {
	Username string `json:"username"`
	AlertID  int64  `json:"alert_id"`
}

// SchedulerStatus reports whether the sweep timer is running.
type SchedulerStatus struct {
	Running  bool `json:"running"`
	JobCount int  `json:"job_count"`
}

// SchedulerStats aggregates alert counts.
type SchedulerStats struct {
	ActiveAlerts    int64 `json:"active_alerts"`
	CompletedAlerts int64 `json:"completed_alerts"`
	TotalAlerts     int64 `json:"total_alerts"`
}

// SaveRideTokenRequest carries the OAuth token payload posted back by the
// provider callback page.
type SaveRideTokenRequest struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}
