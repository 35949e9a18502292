package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics is the instrument set for the alert service. All record
// helpers nil-check the global so tests and mock deployments can skip
// InitMetrics entirely.
type OTelMetrics struct {
	SweepDuration       metric.Float64Histogram
	AlertsEvaluated     metric.Int64Counter
	AlertsCompleted     metric.Int64Counter
	SMSSentTotal        metric.Int64Counter
	BookingsTotal       metric.Int64Counter
	OracleCallDuration  metric.Float64Histogram
	SchedulerSweepTotal metric.Int64Counter

	HTTPServerRequestTotal   metric.Int64Counter
	HTTPServerDuration       metric.Float64Histogram
	HTTPServerActiveRequests metric.Int64UpDownCounter
}

var (
	metrics *OTelMetrics
	meter   = otel.Meter("trafficwatch")
)

// InitMetrics registers the service instruments on the global meter.
func InitMetrics() error {
	var err error

	m := &OTelMetrics{}

	m.SweepDuration, err = meter.Float64Histogram(
		"scheduler_sweep_duration_seconds",
		metric.WithDescription("Time spent running one alert sweep in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.SchedulerSweepTotal, err = meter.Int64Counter(
		"scheduler_sweep_total",
		metric.WithDescription("Total number of sweep passes"),
		metric.WithUnit("{sweep}"),
	)
	if err != nil {
		return err
	}

	m.AlertsEvaluated, err = meter.Int64Counter(
		"alerts_evaluated_total",
		metric.WithDescription("Total number of alert evaluations"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return err
	}

	m.AlertsCompleted, err = meter.Int64Counter(
		"alerts_completed_total",
		metric.WithDescription("Total number of alerts completed, by reason"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return err
	}

	m.SMSSentTotal, err = meter.Int64Counter(
		"sms_sent_total",
		metric.WithDescription("Total number of SMS sent"),
		metric.WithUnit("{sms}"),
	)
	if err != nil {
		return err
	}

	m.BookingsTotal, err = meter.Int64Counter(
		"ride_bookings_total",
		metric.WithDescription("Total number of auto-booking attempts, by outcome"),
		metric.WithUnit("{booking}"),
	)
	if err != nil {
		return err
	}

	m.OracleCallDuration, err = meter.Float64Histogram(
		"oracle_call_duration_seconds",
		metric.WithDescription("Time spent querying the travel-time oracle in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.HTTPServerRequestTotal, err = meter.Int64Counter(
		"http_server_request_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	m.HTTPServerDuration, err = meter.Float64Histogram(
		"http_server_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	m.HTTPServerActiveRequests, err = meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	metrics = m
	return nil
}

// GetMetrics returns the global instrument set, nil when InitMetrics was
// never called.
func GetMetrics() *OTelMetrics {
	return metrics
}

func RecordSweep(ctx context.Context, seconds float64, evaluated int64) {
	if metrics == nil {
		return
	}
	metrics.SchedulerSweepTotal.Add(ctx, 1)
	metrics.SweepDuration.Record(ctx, seconds)
	metrics.AlertsEvaluated.Add(ctx, evaluated)
}

func RecordAlertCompleted(ctx context.Context, reason string) {
	if metrics == nil {
		return
	}
	metrics.AlertsCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

func RecordSMSSent(provider string, ok bool) {
	if metrics == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failed"
	}
	metrics.SMSSentTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

func RecordBooking(ctx context.Context, outcome string) {
	if metrics == nil {
		return
	}
	metrics.BookingsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func RecordOracleCall(ctx context.Context, seconds float64, ok bool) {
	if metrics == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failed"
	}
	metrics.OracleCallDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("status", status),
	))
}

func RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, seconds float64) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	)
	metrics.HTTPServerRequestTotal.Add(ctx, 1, attrs)
	metrics.HTTPServerDuration.Record(ctx, seconds, attrs)
}

func AddActiveRequest(ctx context.Context, delta int64) {
	if metrics == nil {
		return
	}
	metrics.HTTPServerActiveRequests.Add(ctx, delta)
}
