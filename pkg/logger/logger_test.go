package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("engine", &buf)

	l.Info("started %d timers", 3)

	out := buf.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "[engine]")
	assert.Contains(t, out, "started 3 timers")
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("engine", &buf).With("persistence")

	l.Error("write failed")

	assert.Contains(t, buf.String(), "[engine/persistence]")
}

func TestLoggerLevelFilter(t *testing.T) {
	defer SetLevel(LevelInfo)

	var buf bytes.Buffer
	l := NewWithWriter("", &buf)

	SetLevel(LevelWarn)
	l.Info("hidden")
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "[WARN] shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
