package schedule

import (
	"time"

	"TrafficWatch/internal/model"
)

// Action is the single outcome of evaluating one alert against one
// measurement. Exactly one action applies per evaluation.
type Action string

const (
	// ActionExpireFinal deactivates the alert because its hard time-box
	// elapsed. Takes precedence over everything, including a measurement
	// that would have met the threshold.
	ActionExpireFinal Action = "expire_final"
	// ActionThresholdMet deactivates the alert because the live travel
	// time dropped to or below the threshold.
	ActionThresholdMet Action = "threshold_met"
	// ActionImproving keeps the alert active but notifies that traffic
	// is trending down.
	ActionImproving Action = "improving"
	// ActionNoChange keeps the alert active and just records progress.
	ActionNoChange Action = "no_change"
)

// Decision is the evaluator output consumed by the pipeline.
type Decision struct {
	Action         Action
	ElapsedMinutes int
	CurrentMinutes int
}

// FinalExpired reports whether the alert's hard time-box has elapsed at
// now. Callers check this before paying for a travel-time lookup, the
// expiry outcome does not depend on the measurement.
func FinalExpired(alert *model.Alert, now time.Time) bool {
	if !alert.HasFinalThreshold() {
		return false
	}
	return elapsedMinutes(alert, now) >= *alert.FinalThresholdMinutes
}

// Evaluate applies the decision rules in strict precedence order:
// final expiry, then threshold met (inclusive), then improvement, then
// no change. It is pure, persistence and delivery happen elsewhere.
func Evaluate(alert *model.Alert, now time.Time, currentMinutes int) Decision {
	d := Decision{
		ElapsedMinutes: elapsedMinutes(alert, now),
		CurrentMinutes: currentMinutes,
	}

	if FinalExpired(alert, now) {
		d.Action = ActionExpireFinal
		return d
	}

	if currentMinutes <= alert.ThresholdMinutes {
		d.Action = ActionThresholdMet
		return d
	}

	// Improvement needs a prior measurement: the first check never
	// reports a trend.
	if alert.LastDuration != nil && currentMinutes < *alert.LastDuration {
		d.Action = ActionImproving
		return d
	}

	d.Action = ActionNoChange
	return d
}

// elapsedMinutes measures from activation. Reactivation resets CreatedAt,
// so the clock restarts with the alert.
func elapsedMinutes(alert *model.Alert, now time.Time) int {
	return int(now.Sub(alert.CreatedAt).Minutes())
}
