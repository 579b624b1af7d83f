package logging_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/journal-monitor/backend/internal/logging"
)

func TestContextLogger(t *testing.T) {
	tl := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), tl.Logger)
	ctx = logging.WithSession(ctx, "sess-1")

	logging.FromContext(ctx).Info().Msg("polled")

	tl.AssertContains(t, "sess-1")
	tl.AssertContains(t, "polled")
	assert.Len(t, tl.Lines(), 1)
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Equal(t, logging.Default(), logging.FromContext(context.Background()))
}

func TestNewLoggerFromConfig(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantInfo  bool
		wantError bool
	}{
		{name: "info level", level: "info", wantInfo: true, wantError: true},
		{name: "error level only", level: "error", wantInfo: false, wantError: true},
		{name: "disabled", level: "off", wantInfo: false, wantError: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			old := zerolog.GlobalLevel()
			defer zerolog.SetGlobalLevel(old)

			buf := &bytes.Buffer{}
			logger := logging.NewLoggerFromConfig(&logging.Config{Level: tc.level, Format: "json", Output: "discard"})
			logger = logger.Output(buf)

			logger.Info().Msg("info")
			logger.Error().Msg("error")

			assert.Equal(t, tc.wantInfo, bytes.Contains(buf.Bytes(), []byte(`"level":"info"`)))
			assert.Equal(t, tc.wantError, bytes.Contains(buf.Bytes(), []byte(`"level":"error"`)))
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, logging.ParseLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, logging.ParseLevel("bogus"))
	assert.Equal(t, zerolog.Disabled, logging.ParseLevel("none"))
}
