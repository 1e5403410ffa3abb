// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := GetLevel()
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prev)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{" Error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"chatty", LevelInfo, false},
		{"", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := captureOutput(t)
	l := New("Session")

	SetLevel(LevelWarn)
	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN]  Session: shown 2")
}

func TestConfigureDebugOverridesLevel(t *testing.T) {
	captureOutput(t)

	Configure("error", true)
	assert.Equal(t, LevelDebug, GetLevel())

	Configure("error", false)
	assert.Equal(t, LevelError, GetLevel())
}

func TestPackageLevelFunctionsAreUntagged(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelDebug)

	Debugf("value=%v", 3)

	assert.Contains(t, buf.String(), "[DEBUG] value=3")
}
