package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/sessions"
	"go.uber.org/zap"

	"TrafficWatch/config"
	"TrafficWatch/internal/model"
	"TrafficWatch/pkg/logger"
	"TrafficWatch/pkg/response"
)

const (
	sessionKeyRideToken       = "ride_access_token"
	sessionKeyPendingUsername = "pending_username"
)

// callbackPage extracts the access token from the URL fragment the ride
// provider appends on redirect (implicit grant) and posts it back to the
// server, which never sees fragments itself.
const callbackPage = `<!DOCTYPE html>
<html>
<head><title>Ride Authorization</title></head>
<body>
<h2>Processing authorization...</h2>
<script>
const params = new URLSearchParams(window.location.hash.substring(1));
const accessToken = params.get('access_token');
if (accessToken) {
    fetch('/auth/ola/save-token', {
        method: 'POST',
        headers: {'Content-Type': 'application/json'},
        body: JSON.stringify({
            access_token: accessToken,
            expires_in: parseInt(params.get('expires_in')) || 0,
            token_type: params.get('token_type'),
            scope: params.get('scope')
        })
    })
    .then(r => r.json())
    .then(() => { window.location.href = '/?ola_auth=success'; })
    .catch(() => { window.location.href = '/?error=token_save_failed'; });
} else {
    window.location.href = '/?error=ola_auth_failed';
}
</script>
</body>
</html>`

// RideAuthRedirect sends the user to the ride provider's OAuth page,
// remembering which username to attach the token to.
// GET /auth/ola
func RideAuthRedirect(ctx context.Context, c *app.RequestContext) {
	session := sessions.Default(c)
	if username := c.Query("username"); username != "" {
		session.Set(sessionKeyPendingUsername, strings.ToLower(strings.TrimSpace(username)))
		if err := session.Save(); err != nil {
			logger.Logger.Warn("Session save failed", zap.Error(err))
		}
	}

	authURL := fmt.Sprintf("%s/oauth2/authorize?response_type=token&client_id=%s&redirect_uri=%s&scope=profile%%20booking&state=%s",
		config.Cfg.OlaBaseURL,
		url.QueryEscape(config.Cfg.OlaClientID),
		url.QueryEscape(config.Cfg.OlaRedirectURI),
		url.QueryEscape("tw-auth"),
	)
	c.Redirect(http.StatusFound, []byte(authURL))
}

// RideAuthCallback serves the fragment-extraction page.
// GET /auth/ola/callback
func RideAuthCallback(ctx context.Context, c *app.RequestContext) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.WriteString(callbackPage)
}

// SaveRideToken stores the token in the session and on the user's latest
// active alert.
// POST /auth/ola/save-token
func SaveRideToken(ctx context.Context, c *app.RequestContext) {
	var req model.SaveRideTokenRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}
	if req.AccessToken == "" {
		response.BindError(ctx, c, fmt.Errorf("access_token is required"))
		return
	}

	session := sessions.Default(c)
	session.Set(sessionKeyRideToken, req.AccessToken)
	if err := session.Save(); err != nil {
		logger.Logger.Error("Session save failed", zap.Error(err))
	}

	if username, ok := session.Get(sessionKeyPendingUsername).(string); ok && username != "" {
		creds := model.JSONB{"access_token": req.AccessToken}
		if err := alertStore.AttachCredentials(ctx, username, creds); err != nil {
			logger.Logger.Error("Failed to attach ride credentials to alert",
				zap.String("username", username),
				zap.Error(err))
		} else {
			logger.Logger.Info("Ride credentials attached", zap.String("username", username))
		}
	}

	response.Success(ctx, c, map[string]interface{}{"success": true})
}

// RideAuthStatus reports whether this session holds a ride token.
// GET /auth/ola/status
func RideAuthStatus(ctx context.Context, c *app.RequestContext) {
	session := sessions.Default(c)
	token, _ := session.Get(sessionKeyRideToken).(string)
	response.Success(ctx, c, map[string]interface{}{
		"authenticated": token != "",
	})
}
