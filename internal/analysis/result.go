// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects which analyzer a session runs. It is fixed at session start.
type Mode int

const (
	ModePeaks   Mode = iota // two dominant tones
	ModeDoppler             // motion around the dominant tone
)

func (m Mode) String() string {
	switch m {
	case ModePeaks:
		return "peaks"
	case ModeDoppler:
		return "doppler"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText lets Mode appear by name in JSON and YAML.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode converts a mode name to a Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "peaks", "peak", "peakdetection", "a", "":
		return ModePeaks, nil
	case "doppler", "motion", "dopplermotion", "b":
		return ModeDoppler, nil
	default:
		return ModePeaks, fmt.Errorf("unknown analysis mode: '%s'", name)
	}
}

// MotionState is the discrete motion classification for one tick.
type MotionState int

const (
	Stationary MotionState = iota
	Approaching
	Withdrawing
)

func (s MotionState) String() string {
	switch s {
	case Stationary:
		return "stationary"
	case Approaching:
		return "approaching"
	case Withdrawing:
		return "withdrawing"
	default:
		return fmt.Sprintf("MotionState(%d)", int(s))
	}
}

// MarshalText lets MotionState appear by name in JSON.
func (s MotionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PeakCandidate is one spectral peak found during a tick.
type PeakCandidate struct {
	Bin       int     `json:"bin"`
	Frequency float64 `json:"frequency"` // Hz, interpolated
	Magnitude float64 `json:"magnitude"` // dB
}

// PeakPair holds the two strongest distinct peaks, loudest first.
type PeakPair struct {
	First  PeakCandidate `json:"first"`
	Second PeakCandidate `json:"second"`
}

// Frequencies returns (First, Second) in Hz.
func (p PeakPair) Frequencies() (float64, float64) {
	return p.First.Frequency, p.Second.Frequency
}

// MotionReading is a motion classification plus the values it was derived
// from.
type MotionReading struct {
	State       MotionState `json:"state"`
	Bin         int         `json:"bin"`
	Frequency   float64     `json:"frequency"`
	Left        float64     `json:"left"`
	Right       float64     `json:"right"`
	StableLeft  float64     `json:"stable_left"`
	StableRight float64     `json:"stable_right"`
}

// Result is what a session publishes for a tick that produced an answer.
// Exactly one of Peaks and Motion is set, matching Mode.
type Result struct {
	Sequence  uint64         `json:"sequence"`
	Timestamp time.Time      `json:"timestamp"`
	Mode      Mode           `json:"mode"`
	Peaks     *PeakPair      `json:"peaks,omitempty"`
	Motion    *MotionReading `json:"motion,omitempty"`
}

// String renders a one-line summary for logs.
func (r Result) String() string {
	switch {
	case r.Peaks != nil:
		return fmt.Sprintf("#%d peaks %.2f Hz (%.1f dB), %.2f Hz (%.1f dB)", r.Sequence,
			r.Peaks.First.Frequency, r.Peaks.First.Magnitude,
			r.Peaks.Second.Frequency, r.Peaks.Second.Magnitude)
	case r.Motion != nil:
		return fmt.Sprintf("#%d motion %s near %.2f Hz", r.Sequence, r.Motion.State, r.Motion.Frequency)
	default:
		return fmt.Sprintf("#%d empty", r.Sequence)
	}
}
