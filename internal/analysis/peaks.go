// SPDX-License-Identifier: MIT
package analysis

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

const (
	// DefaultPeakWindowWidth is floor(50 Hz tone separation / 3 Hz resolution).
	DefaultPeakWindowWidth = 50 / 3
	// DefaultMinPeakWindows is the number of surviving windows needed before
	// the top two are trusted.
	DefaultMinPeakWindows = 3

	// peakFrequencyScale undoes the half-width bin units the detector
	// interpolates in.
	peakFrequencyScale = 2.0

	// concavityEpsilon is how far below zero the interpolation denominator
	// must be for the triple to count as a peak.
	concavityEpsilon = 1e-9
)

// PeakDetector finds the two strongest distinct peaks of a spectrum frame
// by windowed local-maximum search with quadratic interpolation.
type PeakDetector struct {
	windowWidth int
	minWindows  int
	candidates  []PeakCandidate // reused between frames
}

// NewPeakDetector validates the tunables and returns a detector.
func NewPeakDetector(windowWidth, minWindows int) (*PeakDetector, error) {
	if windowWidth < 2 {
		return nil, fmt.Errorf("peak window width must be at least 2 bins, got %d", windowWidth)
	}
	if minWindows < 2 {
		return nil, fmt.Errorf("peak detector needs at least 2 windows, got %d", minWindows)
	}
	return &PeakDetector{
		windowWidth: windowWidth,
		minWindows:  minWindows,
	}, nil
}

// Mode implements FrameAnalyzer.
func (d *PeakDetector) Mode() Mode { return ModePeaks }

// Reset implements FrameAnalyzer. The detector keeps no history.
func (d *PeakDetector) Reset() {}

// Analyze implements FrameAnalyzer.
func (d *PeakDetector) Analyze(frame SpectrumFrame, r *Result) error {
	pair, err := d.Detect(frame)
	if err != nil {
		return err
	}
	r.Peaks = &pair
	return nil
}

// Detect returns the two loudest local maxima of frame, loudest first.
//
// Bins after DC are cut into windows of windowWidth. A window contributes its
// maximum only when the maximum is finite, its first bin is strictly below
// the maximum and its last bin does not exceed it; a window that only holds
// the flank of a neighbouring peak is thereby skipped. Survivors are ranked
// by magnitude with ties going to the lower bin.
func (d *PeakDetector) Detect(frame SpectrumFrame) (PeakPair, error) {
	bins := frame.Bins
	d.candidates = d.candidates[:0]

	for start := 1; start < len(bins); start += d.windowWidth {
		end := min(start+d.windowWidth, len(bins))
		w := bins[start:end]

		maxIdx := 0
		for i := 1; i < len(w); i++ {
			if w[i] > w[maxIdx] {
				maxIdx = i
			}
		}
		peak := w[maxIdx]

		if math.IsInf(peak, 0) || math.IsNaN(peak) {
			continue
		}
		if !(w[0] < peak && w[len(w)-1] <= peak) {
			continue
		}
		d.candidates = append(d.candidates, PeakCandidate{Bin: start + maxIdx, Magnitude: peak})
	}

	if len(d.candidates) < d.minWindows {
		return PeakPair{}, ErrInsufficientPeaks
	}

	slices.SortStableFunc(d.candidates, func(a, b PeakCandidate) int {
		return cmp.Compare(b.Magnitude, a.Magnitude)
	})

	// Interpolate in half-width units, then scale back to Hz.
	binWidth := frame.Resolution / peakFrequencyScale

	first, err := refinePeak(bins, d.candidates[0], binWidth)
	if err != nil {
		return PeakPair{}, err
	}
	second, err := refinePeak(bins, d.candidates[1], binWidth)
	if err != nil {
		return PeakPair{}, err
	}

	return PeakPair{First: first, Second: second}, nil
}

func refinePeak(bins []float64, c PeakCandidate, binWidth float64) (PeakCandidate, error) {
	f, err := InterpolatePeak(bins, c.Bin, binWidth)
	if err != nil {
		logger.Debugf("rejecting peak at bin %d (%.1f dB): %v", c.Bin, c.Magnitude, err)
		return PeakCandidate{}, err
	}
	c.Frequency = f * peakFrequencyScale
	return c, nil
}

// InterpolatePeak refines bin index to a sub-bin frequency by fitting a
// parabola through the magnitudes at index-1, index and index+1:
//
//	f = index*binWidth + (mL - mR) / (mL - 2mC + mR) * binWidth/2
//
// The first and last bins have no neighbours and return their center
// frequency. A flat or non-concave triple returns ErrDegeneratePeak, and the
// correction is clamped so the estimate stays within half a bin.
func InterpolatePeak(bins []float64, index int, binWidth float64) (float64, error) {
	if index < 0 || index >= len(bins) {
		return 0, fmt.Errorf("%w: bin %d outside frame of %d", ErrDegeneratePeak, index, len(bins))
	}

	center := float64(index) * binWidth
	if index == 0 || index == len(bins)-1 {
		return center, nil
	}

	mL, mC, mR := bins[index-1], bins[index], bins[index+1]
	den := mL - 2*mC + mR
	if !(den < -concavityEpsilon) {
		return 0, ErrDegeneratePeak
	}

	c := (mL - mR) / den
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, ErrDegeneratePeak
	}
	c = math.Max(-1, math.Min(1, c))

	return center + c*(binWidth/2), nil
}
