package cli

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// TestSelectLevel verifies flag-to-level mapping.
func TestSelectLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, selectLevel(true, false))
	assert.Equal(t, zerolog.WarnLevel, selectLevel(false, true))
	assert.Equal(t, zerolog.InfoLevel, selectLevel(false, false))
}

// TestInitLoggerWithWriter verifies level filtering through a custom writer.
func TestInitLoggerWithWriter(t *testing.T) {
	t.Run("default level drops debug", func(t *testing.T) {
		var buf bytes.Buffer
		logger := InitLoggerWithWriter(false, false, &buf)

		logger.Debug().Msg("hidden")
		logger.Info().Msg("visible")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("quiet drops info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := InitLoggerWithWriter(false, true, &buf)

		logger.Info().Msg("hidden")
		logger.Warn().Msg("visible")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("timestamp field is ts", func(t *testing.T) {
		var buf bytes.Buffer
		logger := InitLoggerWithWriter(false, false, &buf)

		logger.Info().Msg("stamped")
		assert.Contains(t, buf.String(), `"ts":`)
		assert.Contains(t, buf.String(), `"event":"stamped"`)
	})
}

// TestCloseLogFileIdempotent verifies cleanup can run without an open file.
func TestCloseLogFileIdempotent(t *testing.T) {
	CloseLogFile()
	CloseLogFile()
}
