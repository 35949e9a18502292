package middleware

import (
	"context"
	"net/http"
	"runtime/debug"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"TrafficWatch/config"
	"TrafficWatch/pkg/logger"
	"TrafficWatch/pkg/response"
)

// RecoverMiddleware turns handler panics into 500 responses. Stack traces
// stay in the log; production responses carry only a generic message.
func RecoverMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				logger.Logger.Error("Handler panic recovered",
					zap.Any("panic", err),
					zap.String("path", string(c.Path())),
					zap.String("method", string(c.Method())),
					zap.ByteString("stack", debug.Stack()),
				)

				message := "Internal server error"
				if !config.Cfg.IsProduction() {
					if e, ok := err.(error); ok {
						message = e.Error()
					}
				}
				c.JSON(http.StatusInternalServerError, response.ErrorResponse{
					Error: response.ErrorDetail{
						Code:    "INTERNAL_SERVER_ERROR",
						Message: message,
					},
				})
				c.Abort()
			}
		}()

		c.Next(ctx)
	}
}
