// SPDX-License-Identifier: MIT
package analysis

// Gate skips analysis of windows whose peak amplitude never reaches the
// threshold. Threshold is relative to full scale (0.0-1.0); 0 keeps the
// gate permanently open.
type Gate struct {
	threshold float32
}

// NewGate returns a gate with the threshold clamped to 0.0-1.0.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	return g
}

// SetThreshold adjusts the gate threshold, clamped to 0.0-1.0 where
// 0=always open and 1=only full-scale signals pass.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold = float32(threshold)
}

// Threshold returns the current threshold.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold)
}

// Enabled reports whether the gate can ever close.
func (g *Gate) Enabled() bool {
	return g.threshold > 0
}

// Open reports whether any sample of window reaches the threshold.
func (g *Gate) Open(window []float32) bool {
	if g.threshold <= 0 {
		return true
	}
	var peak float32
	for _, s := range window {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak >= g.threshold
}
