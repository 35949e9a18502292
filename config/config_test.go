package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Package init parses defaults only; an empty environment must never kill
// a test binary that links this package.
func TestInitParsesDefaults(t *testing.T) {
	require.NotEmpty(t, Cfg.ServiceName)
	require.NotEmpty(t, Cfg.SweepCronSpec)
	require.Positive(t, Cfg.SweepConcurrency)
}

func TestValidateRequiresSessionSecret(t *testing.T) {
	cfg := Config{SMSProvider: "mock"}
	require.Error(t, cfg.Validate())

	cfg.SessionSecret = "s3cret"
	require.NoError(t, cfg.Validate())
}
