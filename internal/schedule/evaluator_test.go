package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"TrafficWatch/internal/model"
)

func intPtr(v int) *int { return &v }

func baseAlert(createdAgo time.Duration) *model.Alert {
	return &model.Alert{
		ID:               1,
		CreatedAt:        time.Now().Add(-createdAgo),
		Username:         "ravi",
		Phone:            "+919876500001",
		ThresholdMinutes: 20,
		Status:           model.AlertStatusActive,
	}
}

func TestEvaluateThresholdMetInclusive(t *testing.T) {
	now := time.Now()

	a := baseAlert(10 * time.Minute)
	require.Equal(t, ActionThresholdMet, Evaluate(a, now, 20).Action)
	require.Equal(t, ActionThresholdMet, Evaluate(a, now, 18).Action)
	require.Equal(t, ActionNoChange, Evaluate(a, now, 21).Action)
}

func TestEvaluateImprovementNeedsPriorMeasurement(t *testing.T) {
	now := time.Now()

	// First check: no trend even if the value would qualify later.
	a := baseAlert(10 * time.Minute)
	require.Equal(t, ActionNoChange, Evaluate(a, now, 25).Action)

	a.LastDuration = intPtr(30)
	require.Equal(t, ActionImproving, Evaluate(a, now, 25).Action)

	// Equal or worse than last is not an improvement.
	require.Equal(t, ActionNoChange, Evaluate(a, now, 30).Action)
	require.Equal(t, ActionNoChange, Evaluate(a, now, 35).Action)

	// At or below threshold wins over improvement.
	require.Equal(t, ActionThresholdMet, Evaluate(a, now, 20).Action)
}

func TestEvaluateFinalExpiryPrecedence(t *testing.T) {
	now := time.Now()

	a := baseAlert(61 * time.Minute)
	a.FinalThresholdMinutes = intPtr(60)
	a.LastDuration = intPtr(40)

	// Expiry beats even a measurement that meets the threshold.
	d := Evaluate(a, now, 15)
	require.Equal(t, ActionExpireFinal, d.Action)
	require.GreaterOrEqual(t, d.ElapsedMinutes, 60)

	require.True(t, FinalExpired(a, now))
}

func TestEvaluateFinalNotYetExpired(t *testing.T) {
	now := time.Now()

	a := baseAlert(30 * time.Minute)
	a.FinalThresholdMinutes = intPtr(60)

	require.False(t, FinalExpired(a, now))
	require.Equal(t, ActionNoChange, Evaluate(a, now, 45).Action)
}

func TestEvaluateNoFinalThresholdNeverExpires(t *testing.T) {
	now := time.Now()

	a := baseAlert(48 * time.Hour)
	require.False(t, FinalExpired(a, now))
	require.Equal(t, ActionNoChange, Evaluate(a, now, 45).Action)
}

func TestFinalExpiredExactBoundary(t *testing.T) {
	a := baseAlert(60 * time.Minute)
	a.FinalThresholdMinutes = intPtr(60)

	// Elapsed equal to the final threshold counts as expired.
	require.True(t, FinalExpired(a, time.Now()))
}
