// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// FrameAnalyzer is the per-tick stage that runs after the spectrum engine.
// Analyze fills the mode-specific part of r or returns an error wrapping
// ErrNoResult. Implementations keep pre-allocated state and are driven by a
// single goroutine.
type FrameAnalyzer interface {
	Mode() Mode
	Analyze(frame SpectrumFrame, r *Result) error
	Reset()
}

// Compile-time checks for interface implementations.
var _ FrameAnalyzer = (*PeakDetector)(nil)
var _ FrameAnalyzer = (*MotionClassifier)(nil)

// Params carries the tunables of both analyzers.
type Params struct {
	PeakWindowWidth int     // bins per local-maximum window
	MinPeakWindows  int     // surviving windows required to report peaks
	FlankWidth      int     // bins averaged on each side of the dominant bin
	MotionHistory   int     // smoothing buffer length
	MotionThreshold float64 // dB rise that counts as motion
}

// DefaultParams returns the reference configuration.
func DefaultParams() Params {
	return Params{
		PeakWindowWidth: DefaultPeakWindowWidth,
		MinPeakWindows:  DefaultMinPeakWindows,
		FlankWidth:      DefaultFlankWidth,
		MotionHistory:   DefaultMotionHistory,
		MotionThreshold: DefaultMotionThreshold,
	}
}

// NewFrameAnalyzer builds exactly one analyzer for mode.
func NewFrameAnalyzer(mode Mode, p Params) (FrameAnalyzer, error) {
	switch mode {
	case ModePeaks:
		return NewPeakDetector(p.PeakWindowWidth, p.MinPeakWindows)
	case ModeDoppler:
		return NewMotionClassifier(p.FlankWidth, p.MotionHistory, p.MotionThreshold)
	default:
		return nil, fmt.Errorf("unsupported analysis mode %v", mode)
	}
}
