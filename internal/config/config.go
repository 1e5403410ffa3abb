// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for capture and analysis.
const (
	// Audio defaults
	DefaultSource          = SourceDevice
	DefaultChannels        = 1           // Mono audio
	DefaultDeviceID        = MinDeviceID // Default to system default device
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultLowLatency      = false       // Standard latency mode
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultToneAmplitude   = 0.4         // Per tone, relative to full scale

	// Analysis defaults
	DefaultMode       = "peaks"
	DefaultResolution = 3.0 // Hz per bin
	DefaultTickPeriod = 250 * time.Millisecond
	DefaultWindow     = "hann"
	DefaultBackend    = "gonum"

	// Recording and transport defaults
	DefaultBitDepth         = 16
	DefaultOutputDir        = "./recordings"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultWebSocketAddress = ":8080"
	DefaultLogLevel         = "info"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MaxChannels     = 32
	MinTickPeriod   = 10 * time.Millisecond
	MaxWindowLength = 10 * time.Second // longest analysis window
)

// Sample sources selectable with audio.source.
const (
	SourceDevice = "device"
	SourceFile   = "file"
	SourceTone   = "tone"
)
