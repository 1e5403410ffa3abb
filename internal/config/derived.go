// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"doppler/internal/analysis"
)

// WindowSize returns the analysis window in samples, round(sampleRate/resolution).
func (c *Config) WindowSize() int {
	if c.Analysis.Resolution <= 0 {
		return 0
	}
	return int(math.Round(c.Audio.SampleRate / c.Analysis.Resolution))
}

// FrameSize returns the number of bins in one spectrum frame.
func (c *Config) FrameSize() int {
	return c.WindowSize() / 2
}

// EffectiveResolution returns the bin width actually achieved after rounding
// the window to whole samples.
func (c *Config) EffectiveResolution() float64 {
	w := c.WindowSize()
	if w == 0 {
		return 0
	}
	return c.Audio.SampleRate / float64(w)
}

// WindowDuration returns how much audio one analysis covers.
func (c *Config) WindowDuration() time.Duration {
	if c.Audio.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.WindowSize()) / c.Audio.SampleRate * float64(time.Second))
}

// AnalysisParams returns the analyzer tunables.
func (c *Config) AnalysisParams() analysis.Params {
	return analysis.Params{
		PeakWindowWidth: c.Analysis.PeakWindowWidth,
		MinPeakWindows:  c.Analysis.MinPeakWindows,
		FlankWidth:      c.Analysis.FlankWidth,
		MotionHistory:   c.Analysis.MotionHistory,
		MotionThreshold: c.Analysis.MotionThreshold,
	}
}

// RecordingPath returns the explicit output file, or a timestamped name in
// the output directory.
func (c *Config) RecordingPath(now time.Time) string {
	if c.Recording.OutputFile != "" {
		return c.Recording.OutputFile
	}
	name := fmt.Sprintf("doppler-%s.wav", now.Format("20060102-150405"))
	return filepath.Join(c.Recording.OutputDir, name)
}
