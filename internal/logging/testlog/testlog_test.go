package testlog

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/hive/internal/logging"
)

func TestNewUsesTestProfile(t *testing.T) {
	l := New(t)
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())
	l.Debug().Str("method", "307").Msg("visible in -v output")
}

func TestTestProfileOmitsTimestamp(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.ProfileConfig(logging.ProfileTest)
	cfg.Out = &buf
	logger := logging.New(cfg)
	logger.Debug().Msg("plain")

	assert.Contains(t, buf.String(), "DBG plain")
}
