package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"TrafficWatch/pkg/metrics"
)

var tracer = otel.Tracer("trafficwatch/http")

// toValidUTF8 cleans user-controlled strings so invalid UTF-8 never breaks
// trace or metric serialization.
func toValidUTF8(val string) string {
	return strings.ToValidUTF8(val, "")
}

// OpenTelemetryMiddleware opens a server span per request and records the
// HTTP metrics.
func OpenTelemetryMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		method := toValidUTF8(string(c.Method()))
		path := toValidUTF8(string(c.Path()))

		ctx, span := tracer.Start(ctx, method+" "+path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(method),
				semconv.HTTPRoute(path),
				attribute.String("client.address", toValidUTF8(c.ClientIP())),
			),
		)
		defer span.End()

		metrics.AddActiveRequest(ctx, 1)
		start := time.Now()

		c.Next(ctx)

		statusCode := c.Response.StatusCode()
		span.SetAttributes(semconv.HTTPStatusCode(statusCode))
		if statusCode >= 500 {
			span.SetStatus(codes.Error, "server error")
		}

		metrics.AddActiveRequest(ctx, -1)
		metrics.RecordHTTPRequest(ctx, method, path, statusCode, time.Since(start).Seconds())
	}
}
