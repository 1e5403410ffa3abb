// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
audio:
  source: tone
  sample_rate: 48000
  frames_per_buffer: 1024
  input_channels: 2
  tones: [440, 880]
analysis:
  mode: doppler
  resolution: 6
  tick_period: 100ms
  window: blackman
  backend: godsp
  channel: 1
transport:
  udp_enabled: true
  udp_target_address: 10.0.0.2:7000
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, SourceTone, cfg.Audio.Source)
	assert.Equal(t, 48000.0, cfg.Audio.SampleRate)
	assert.Equal(t, []float64{440, 880}, cfg.Audio.Tones)
	assert.Equal(t, "doppler", cfg.Analysis.Mode)
	assert.Equal(t, 100*time.Millisecond, cfg.Analysis.TickPeriod)
	assert.Equal(t, 1, cfg.Analysis.Channel)
	assert.True(t, cfg.Transport.UDPEnabled)

	// Untouched keys keep their defaults.
	assert.Equal(t, MinDeviceID, cfg.Audio.InputDevice)
	assert.Equal(t, DefaultBitDepth, cfg.Recording.BitDepth)
	assert.Equal(t, 8, cfg.Analysis.FlankWidth)
	assert.True(t, cfg.Transport.Log)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "analysis:\n  mode: sonar\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "analysis.mode")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Config)
		substr string
	}{
		{"Defaults", func(c *Config) {}, ""},
		{"Log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"Source", func(c *Config) { c.Audio.Source = "radio" }, "audio.source"},
		{"File missing", func(c *Config) { c.Audio.Source = SourceFile }, "audio.file"},
		{"Device", func(c *Config) { c.Audio.InputDevice = -5 }, "audio.input_device"},
		{"Sample rate low", func(c *Config) { c.Audio.SampleRate = 4000 }, "audio.sample_rate"},
		{"Sample rate high", func(c *Config) { c.Audio.SampleRate = 384000 }, "audio.sample_rate"},
		{"Frames not pow2", func(c *Config) { c.Audio.FramesPerBuffer = 500 }, "frames_per_buffer"},
		{"Frames too big", func(c *Config) { c.Audio.FramesPerBuffer = 16384 }, "frames_per_buffer"},
		{"Channels", func(c *Config) { c.Audio.InputChannels = 0 }, "input_channels"},
		{"No tones", func(c *Config) { c.Audio.Source = SourceTone; c.Audio.Tones = nil }, "audio.tones"},
		{"Tone above Nyquist", func(c *Config) { c.Audio.Source = SourceTone; c.Audio.Tones = []float64{30000} }, "audio.tones"},
		{"Tone amplitude", func(c *Config) { c.Audio.Source = SourceTone; c.Audio.ToneAmplitude = 2 }, "tone_amplitude"},
		{"Window", func(c *Config) { c.Analysis.Window = "kaiser" }, "analysis.window"},
		{"Backend", func(c *Config) { c.Analysis.Backend = "fftw" }, "analysis.backend"},
		{"Resolution", func(c *Config) { c.Analysis.Resolution = 0 }, "analysis.resolution"},
		{"Resolution too coarse", func(c *Config) { c.Analysis.Resolution = 40000 }, "analysis.resolution"},
		{"Resolution too fine", func(c *Config) { c.Analysis.Resolution = 0.01 }, "analysis.resolution"},
		{"Tick", func(c *Config) { c.Analysis.TickPeriod = time.Millisecond }, "tick_period"},
		{"Channel", func(c *Config) { c.Analysis.Channel = 1 }, "analysis.channel"},
		{"Gate", func(c *Config) { c.Analysis.GateThreshold = 1.5 }, "gate_threshold"},
		{"Peak width", func(c *Config) { c.Analysis.PeakWindowWidth = 1 }, "peak window width"},
		{"Flank", func(c *Config) { c.Analysis.FlankWidth = 0 }, "flank width"},
		{"Bit depth", func(c *Config) { c.Recording.Enabled = true; c.Recording.BitDepth = 8 }, "bit_depth"},
		{"UDP address", func(c *Config) { c.Transport.UDPEnabled = true; c.Transport.UDPTargetAddress = "localhost" }, "udp_target_address"},
		{"WebSocket address", func(c *Config) { c.Transport.WebSocketEnabled = true; c.Transport.WebSocketAddress = "8080" }, "websocket_address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.substr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Audio.FramesPerBuffer = 500
	cfg.Audio.Source = " Tone "

	cfg.Normalize()
	assert.Equal(t, 512, cfg.Audio.FramesPerBuffer)
	assert.Equal(t, SourceTone, cfg.Audio.Source)
	assert.NoError(t, cfg.Validate())
}

func TestDerivedSizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sampleRate, resolution float64
		window, frame          int
		effective              float64
	}{
		{44100, 3, 14700, 7350, 3},
		{48000, 7, 6857, 3428, 48000.0 / 6857},
		{8000, 10, 800, 400, 10},
	}

	for _, tt := range tests {
		cfg := Default()
		cfg.Audio.SampleRate = tt.sampleRate
		cfg.Analysis.Resolution = tt.resolution

		assert.Equal(t, tt.window, cfg.WindowSize())
		assert.Equal(t, tt.frame, cfg.FrameSize())
		assert.InDelta(t, tt.effective, cfg.EffectiveResolution(), 1e-9)
	}

	cfg := Default()
	assert.InDelta(t, float64(time.Second)/3, float64(cfg.WindowDuration()), float64(time.Millisecond))
}

func TestRecordingPath(t *testing.T) {
	t.Parallel()
	cfg := Default()
	now := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	assert.Equal(t, filepath.Join(DefaultOutputDir, "doppler-20250314-150926.wav"), cfg.RecordingPath(now))

	cfg.Recording.OutputFile = "take.wav"
	assert.Equal(t, "take.wav", cfg.RecordingPath(now))
}
