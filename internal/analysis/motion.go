// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"doppler/internal/buffer"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultFlankWidth      = 8   // bins averaged on each side of the dominant bin
	DefaultMotionHistory   = 10  // flank averages kept for the stable mean
	DefaultMotionThreshold = 1.0 // dB
)

// SmoothingBuffer keeps the most recent flank averages. Until it has been
// filled once, its mean includes zero placeholders and Warm reports false.
type SmoothingBuffer struct {
	ring    *buffer.RingBuffer
	scratch []float32
}

// NewSmoothingBuffer returns a history of length slots.
func NewSmoothingBuffer(length int) (*SmoothingBuffer, error) {
	ring, err := buffer.New(1, length)
	if err != nil {
		return nil, fmt.Errorf("smoothing buffer: %w", err)
	}
	return &SmoothingBuffer{
		ring:    ring,
		scratch: make([]float32, length),
	}, nil
}

// Push inserts v, discarding the oldest value.
func (s *SmoothingBuffer) Push(v float64) {
	s.scratch[0] = float32(v)
	s.ring.Write(0, s.scratch[:1])
}

// Mean averages the whole history.
func (s *SmoothingBuffer) Mean() float64 {
	n := s.ring.ReadFresh(0, s.scratch)
	var sum float64
	for _, v := range s.scratch[:n] {
		sum += float64(v)
	}
	return sum / float64(n)
}

// Warm reports whether every slot holds a real measurement.
func (s *SmoothingBuffer) Warm() bool {
	return s.ring.Written(0) >= uint64(s.ring.Capacity())
}

// Len returns the history length.
func (s *SmoothingBuffer) Len() int { return s.ring.Capacity() }

// Reset forgets all history.
func (s *SmoothingBuffer) Reset() { s.ring.Reset() }

// MotionClassifier watches the energy just left and right of the loudest
// bin. A rise on the right flank means the reflector is approaching (the
// reflected tone shifts up), a rise on the left means it is withdrawing.
type MotionClassifier struct {
	flankWidth int
	threshold  float64
	left       *SmoothingBuffer
	right      *SmoothingBuffer
}

// NewMotionClassifier validates the tunables and allocates both histories.
func NewMotionClassifier(flankWidth, history int, threshold float64) (*MotionClassifier, error) {
	if flankWidth < 1 {
		return nil, fmt.Errorf("motion flank width must be positive, got %d", flankWidth)
	}
	if threshold < 0 || math.IsNaN(threshold) {
		return nil, fmt.Errorf("motion threshold must be non-negative, got %f", threshold)
	}
	left, err := NewSmoothingBuffer(history)
	if err != nil {
		return nil, err
	}
	right, err := NewSmoothingBuffer(history)
	if err != nil {
		return nil, err
	}
	return &MotionClassifier{
		flankWidth: flankWidth,
		threshold:  threshold,
		left:       left,
		right:      right,
	}, nil
}

// Mode implements FrameAnalyzer.
func (c *MotionClassifier) Mode() Mode { return ModeDoppler }

// Reset implements FrameAnalyzer.
func (c *MotionClassifier) Reset() {
	c.left.Reset()
	c.right.Reset()
}

// Analyze implements FrameAnalyzer.
func (c *MotionClassifier) Analyze(frame SpectrumFrame, r *Result) error {
	reading, err := c.Classify(frame)
	if err != nil {
		return err
	}
	r.Motion = &reading
	return nil
}

// Classify locates the dominant bin of frame, averages its flanks and feeds
// them to Observe.
func (c *MotionClassifier) Classify(frame SpectrumFrame) (MotionReading, error) {
	if frame.Len() == 0 {
		return MotionReading{}, ErrFlankOutOfRange
	}

	peak := floats.MaxIdx(frame.Bins)
	left, right, err := FlankAverages(frame.Bins, peak, c.flankWidth)
	if err != nil {
		return MotionReading{}, err
	}

	reading, err := c.Observe(left, right)
	reading.Bin = peak
	reading.Frequency = frame.Frequency(peak)
	return reading, err
}

// Observe records one pair of flank averages and classifies it against the
// stable history of each flank. It returns ErrWarmingUp, with the partial
// reading, until both histories are full.
func (c *MotionClassifier) Observe(left, right float64) (MotionReading, error) {
	c.right.Push(right)
	c.left.Push(left)

	reading := MotionReading{
		State:       Stationary,
		Left:        left,
		Right:       right,
		StableLeft:  c.left.Mean(),
		StableRight: c.right.Mean(),
	}

	if !c.left.Warm() || !c.right.Warm() {
		return reading, ErrWarmingUp
	}

	switch {
	case right-reading.StableRight > c.threshold:
		reading.State = Approaching
	case left-reading.StableLeft > c.threshold:
		reading.State = Withdrawing
	}

	return reading, nil
}

// FlankAverages returns the mean magnitude of up to width bins strictly left
// and strictly right of index. Windows are clamped at the frame edges; an
// empty side or a non-finite mean returns ErrFlankOutOfRange.
func FlankAverages(bins []float64, index, width int) (left, right float64, err error) {
	if index < 0 || index >= len(bins) {
		return 0, 0, ErrFlankOutOfRange
	}

	lo := max(index-width, 0)
	hi := min(index+1+width, len(bins))
	leftBins := bins[lo:index]
	rightBins := bins[index+1 : hi]
	if len(leftBins) == 0 || len(rightBins) == 0 {
		return 0, 0, ErrFlankOutOfRange
	}

	left = floats.Sum(leftBins) / float64(len(leftBins))
	right = floats.Sum(rightBins) / float64(len(rightBins))
	if math.IsNaN(left) || math.IsInf(left, 0) || math.IsNaN(right) || math.IsInf(right, 0) {
		return 0, 0, ErrFlankOutOfRange
	}
	return left, right, nil
}
