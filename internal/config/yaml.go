// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"doppler/internal/analysis"
	applog "doppler/internal/log"
	"doppler/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Force debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Sample source settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Session and analyzer tunables.
	Recording RecordingConfig `yaml:"recording"` // WAV recording of the input.
	Transport TransportConfig `yaml:"transport"` // Result sinks.
}

// AudioConfig holds settings related to the sample source.
type AudioConfig struct {
	Source          string    `yaml:"source"`            // "device", "file" or "tone".
	InputDevice     int       `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64   `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int       `yaml:"frames_per_buffer"` // Frames per source callback, power of two.
	LowLatency      bool      `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int       `yaml:"input_channels"`    // Channels to capture.
	File            string    `yaml:"file"`              // WAV file replayed when source is "file".
	Loop            bool      `yaml:"loop"`              // Loop the WAV file.
	Tones           []float64 `yaml:"tones"`             // Frequencies in Hz when source is "tone".
	ToneAmplitude   float64   `yaml:"tone_amplitude"`    // Amplitude of each synthetic tone.
}

// AnalysisConfig holds the session and analyzer tunables.
type AnalysisConfig struct {
	Mode            string        `yaml:"mode"`              // "peaks" or "doppler".
	Resolution      float64       `yaml:"resolution"`        // Requested frequency resolution in Hz.
	TickPeriod      time.Duration `yaml:"tick_period"`       // Time between analyses.
	Window          string        `yaml:"window"`            // Window function name.
	Backend         string        `yaml:"backend"`           // FFT backend ("gonum" or "godsp").
	Channel         int           `yaml:"channel"`           // Channel analyzed.
	GateThreshold   float64       `yaml:"gate_threshold"`    // Skip windows quieter than this (0 disables).
	PeakWindowWidth int           `yaml:"peak_window_width"` // Bins per local-maximum window.
	MinPeakWindows  int           `yaml:"min_peak_windows"`  // Surviving windows required.
	FlankWidth      int           `yaml:"flank_width"`       // Bins averaged each side of the carrier.
	MotionHistory   int           `yaml:"motion_history"`    // Smoothing buffer length.
	MotionThreshold float64       `yaml:"motion_threshold"`  // dB rise counted as motion.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Record the input to WAV.
	OutputDir  string `yaml:"output_dir"`  // Directory for generated file names.
	OutputFile string `yaml:"output_file"` // Explicit file name, overrides OutputDir.
	BitDepth   int    `yaml:"bit_depth"`   // 16, 24 or 32.
}

// TransportConfig holds the result sinks.
type TransportConfig struct {
	Log              bool   `yaml:"log"`                // Log every result.
	UDPEnabled       bool   `yaml:"udp_enabled"`        // Publish binary result packets over UDP.
	UDPTargetAddress string `yaml:"udp_target_address"` // host:port for UDP packets.
	WebSocketEnabled bool   `yaml:"websocket_enabled"`  // Serve JSON results over WebSocket.
	WebSocketAddress string `yaml:"websocket_address"`  // Listen address for the WebSocket server.
	TUI              bool   `yaml:"tui"`                // Run the terminal monitor.
}

// Default returns the built-in configuration.
func Default() *Config {
	p := analysis.DefaultParams()
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			Source:          DefaultSource,
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultChannels,
			Tones:           []float64{1000, 1200},
			ToneAmplitude:   DefaultToneAmplitude,
		},
		Analysis: AnalysisConfig{
			Mode:            DefaultMode,
			Resolution:      DefaultResolution,
			TickPeriod:      DefaultTickPeriod,
			Window:          DefaultWindow,
			Backend:         DefaultBackend,
			PeakWindowWidth: p.PeakWindowWidth,
			MinPeakWindows:  p.MinPeakWindows,
			FlankWidth:      p.FlankWidth,
			MotionHistory:   p.MotionHistory,
			MotionThreshold: p.MotionThreshold,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultOutputDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			Log:              true,
			UDPTargetAddress: DefaultUDPTargetAddress,
			WebSocketAddress: DefaultWebSocketAddress,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. Values missing from the file keep their defaults. The result is
// normalized and validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{"config.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("configuration: Loaded %s", path)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Normalize fixes values that have an obvious nearest valid setting.
func (c *Config) Normalize() {
	c.Audio.Source = strings.ToLower(strings.TrimSpace(c.Audio.Source))
	if c.Audio.Source == "" {
		c.Audio.Source = DefaultSource
	}

	if n := c.Audio.FramesPerBuffer; n > 0 && !bitint.IsPowerOfTwo(n) {
		c.Audio.FramesPerBuffer = bitint.NextPowerOfTwo(n)
		applog.Warnf("configuration: frames_per_buffer %d rounded up to %d", n, c.Audio.FramesPerBuffer)
	}
}

// Validate checks ranges and names. It returns the first problem found.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}

	// Audio
	a := c.Audio
	switch a.Source {
	case SourceDevice, SourceFile, SourceTone:
	default:
		return fmt.Errorf("audio.source must be one of device, file, tone; got %q", a.Source)
	}
	if a.Source == SourceFile && a.File == "" {
		return fmt.Errorf("audio.file must be set when audio.source is file")
	}
	if a.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device %d is invalid", a.InputDevice)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside %d-%d Hz", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if !bitint.IsPowerOfTwo(a.FramesPerBuffer) || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer must be a power of two up to %d, got %d", MaxBufferFrames, a.FramesPerBuffer)
	}
	if a.InputChannels < 1 || a.InputChannels > MaxChannels {
		return fmt.Errorf("audio.input_channels must be 1-%d, got %d", MaxChannels, a.InputChannels)
	}
	if a.Source == SourceTone {
		if len(a.Tones) == 0 {
			return fmt.Errorf("audio.tones must list at least one frequency when audio.source is tone")
		}
		for _, f := range a.Tones {
			if f <= 0 || f >= a.SampleRate/2 {
				return fmt.Errorf("audio.tones entry %.1f Hz outside 0-%.0f Hz", f, a.SampleRate/2)
			}
		}
		if a.ToneAmplitude <= 0 || a.ToneAmplitude > 1 {
			return fmt.Errorf("audio.tone_amplitude must be in (0, 1], got %f", a.ToneAmplitude)
		}
	}

	// Analysis
	an := c.Analysis
	if _, err := analysis.ParseMode(an.Mode); err != nil {
		return fmt.Errorf("analysis.mode: %w", err)
	}
	if _, err := analysis.ParseWindowFunc(an.Window); err != nil {
		return fmt.Errorf("analysis.window: %w", err)
	}
	if _, err := analysis.ParseBackend(an.Backend); err != nil {
		return fmt.Errorf("analysis.backend: %w", err)
	}
	if an.Resolution <= 0 {
		return fmt.Errorf("analysis.resolution must be positive, got %f", an.Resolution)
	}
	if w := c.WindowSize(); w < 2 {
		return fmt.Errorf("analysis.resolution %.2f Hz leaves a window of %d samples", an.Resolution, w)
	}
	if c.WindowDuration() > MaxWindowLength {
		return fmt.Errorf("analysis.resolution %.3f Hz needs a %s window, limit is %s", an.Resolution, c.WindowDuration(), MaxWindowLength)
	}
	if an.TickPeriod < MinTickPeriod {
		return fmt.Errorf("analysis.tick_period must be at least %s, got %s", MinTickPeriod, an.TickPeriod)
	}
	if an.Channel < 0 || an.Channel >= a.InputChannels {
		return fmt.Errorf("analysis.channel %d outside 0-%d", an.Channel, a.InputChannels-1)
	}
	if an.GateThreshold < 0 || an.GateThreshold > 1 {
		return fmt.Errorf("analysis.gate_threshold must be 0-1, got %f", an.GateThreshold)
	}
	if _, err := analysis.NewFrameAnalyzer(analysis.ModePeaks, c.AnalysisParams()); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if _, err := analysis.NewFrameAnalyzer(analysis.ModeDoppler, c.AnalysisParams()); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	// Recording
	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth)
		}
		if c.Recording.OutputFile == "" && c.Recording.OutputDir == "" {
			return fmt.Errorf("recording needs output_file or output_dir")
		}
	}

	// Transport
	t := c.Transport
	if t.UDPEnabled && !strings.Contains(t.UDPTargetAddress, ":") {
		return fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", t.UDPTargetAddress)
	}
	if t.WebSocketEnabled && !strings.Contains(t.WebSocketAddress, ":") {
		return fmt.Errorf("transport.websocket_address '%s' appears invalid (missing port?)", t.WebSocketAddress)
	}

	return nil
}
