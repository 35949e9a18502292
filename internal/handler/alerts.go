package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/sessions"

	"TrafficWatch/internal/model"
	"TrafficWatch/pkg/response"
)

// CreateAlert creates a travel-time alert and triggers an immediate check.
// POST /v1/alerts
func CreateAlert(ctx context.Context, c *app.RequestContext) {
	var req model.CreateAlertRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := alertService.CreateAlert(ctx, &req, sessionRideCredentials(c))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// GetUserAlerts lists all alerts of one user.
// GET /v1/alerts/users/:username
func GetUserAlerts(ctx context.Context, c *app.RequestContext) {
	username := c.Param("username")

	result, err := alertService.ListUserAlerts(ctx, username)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// CancelAlert deactivates one of the user's alerts.
// POST /v1/alerts/cancel
func CancelAlert(ctx context.Context, c *app.RequestContext) {
	var req model.AlertActionRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	alert, err := alertService.CancelAlert(ctx, req.Username, req.AlertID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"message": "Alert cancelled successfully",
		"cancelled_alert": map[string]interface{}{
			"id":    alert.ID,
			"route": alert.OriginAddress + " -> " + alert.DestinationAddress,
		},
	})
}

// ReactivateAlert restarts a completed or cancelled alert.
// POST /v1/alerts/reactivate
func ReactivateAlert(ctx context.Context, c *app.RequestContext) {
	var req model.AlertActionRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	alert, err := alertService.ReactivateAlert(ctx, req.Username, req.AlertID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"message":  "Alert reactivated successfully",
		"alert_id": alert.ID,
	})
}

// sessionRideCredentials pulls the ride tokens captured during OAuth out
// of the session, nil when the user never linked an account.
func sessionRideCredentials(c *app.RequestContext) model.JSONB {
	session := sessions.Default(c)
	token, ok := session.Get(sessionKeyRideToken).(string)
	if !ok || token == "" {
		return nil
	}
	return model.JSONB{"access_token": token}
}
