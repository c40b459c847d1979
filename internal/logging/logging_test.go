package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("debug", false, &buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	logger.Debug().Str("scenario", "smoke").Msg("starting")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "smoke", entry["scenario"])
	assert.Contains(t, entry, "time")
}

func TestSetupUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("chatty", false, &buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	logger.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	logger.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupPretty(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("info", true, &buf)
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

func TestFailureLoggerThrottles(t *testing.T) {
	var buf bytes.Buffer
	fl := NewFailureLogger(zerolog.New(&buf), 5)

	written := 0
	for i := 0; i < 50; i++ {
		if fl.Log(Failure{Worker: i, Request: "create_order", Status: 409, Outcome: "stock_exhausted"}) {
			written++
		}
	}
	assert.GreaterOrEqual(t, written, 5)
	assert.Less(t, written, 50)
	assert.Equal(t, int64(50-written), fl.Suppressed())
	assert.Equal(t, written, strings.Count(buf.String(), "\n"))
}

func TestFailureLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	fl := NewFailureLogger(zerolog.New(&buf), 0)
	require.True(t, fl.Log(Failure{
		Worker:  3,
		Request: "bestsellers",
		Outcome: "transport_failure",
		Checks:  []string{"status is 200"},
		Err:     errors.New("connection refused"),
	}))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, float64(3), entry["worker"])
	assert.Equal(t, "connection refused", entry["error"])
	assert.NotContains(t, entry, "status")
	assert.Equal(t, []any{"status is 200"}, entry["failed_checks"])
}

func TestNilFailureLogger(t *testing.T) {
	var fl *FailureLogger
	assert.False(t, fl.Log(Failure{}))
	assert.Zero(t, fl.Suppressed())
}
