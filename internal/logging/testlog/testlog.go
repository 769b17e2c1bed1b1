// Package testlog routes component logs into the test output.
package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/hive/internal/logging"
)

// New returns a logger on the test profile that writes through t.Log,
// tagged with the test name.
func New(t testing.TB) zerolog.Logger {
	t.Helper()
	cfg := logging.ProfileConfig(logging.ProfileTest)
	cfg.Out = zerolog.NewTestWriter(t)
	return logging.New(cfg).With().Str("test", t.Name()).Logger()
}
