// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"testing"

	"doppler/pkg/utils"
)

var (
	loudWindow  = utils.GenerateSineWave(1024, testSampleRate, 440)
	quietWindow = scaled(loudWindow, 0.001)
)

func scaled(in []float32, gain float32) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = s * gain
	}
	return out
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0}, // Below min
		{0.0, 0.0},  // Minimum
		{0.5, 0.5},  // Middle
		{1.0, 1.0},  // Maximum
		{1.5, 1.0},  // Above max
	}

	g := NewGate(0)

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.1f", tt.input), func(t *testing.T) {
			g.SetThreshold(tt.input)
			got := g.Threshold()

			if math.Abs(got-tt.expected) > 0.001 {
				t.Errorf("Gate threshold: got %.3f, want %.3f", got, tt.expected)
			}
			if g.Enabled() != (tt.expected > 0) {
				t.Errorf("Gate enabled = %v for threshold %.3f", g.Enabled(), got)
			}
		})
	}
}

func TestGateOpen(t *testing.T) {
	tests := []struct {
		desc      string
		window    []float32
		threshold float64
		open      bool
	}{
		{"Disabled/Quiet signal", quietWindow, 0, true},
		{"Disabled/Silence", make([]float32, 64), 0, true},
		{"Quiet signal/Low threshold", quietWindow, 0.0001, true},
		{"Quiet signal/Mid threshold", quietWindow, 0.1, false},
		{"Loud signal/Mid threshold", loudWindow, 0.1, true},
		{"Loud signal/High threshold", loudWindow, 0.999, false},
		{"Negative peak", []float32{0, -0.5, 0.1}, 0.4, true},
		{"Empty window", nil, 0.1, false},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			g := NewGate(tt.threshold)
			if got := g.Open(tt.window); got != tt.open {
				t.Errorf("Gate open = %v, want %v (threshold %.4f)", got, tt.open, tt.threshold)
			}
		})
	}
}

func BenchmarkGateOpen(b *testing.B) {
	g := NewGate(0.1)
	window := utils.GenerateSineWave(testWindowSize, testSampleRate, 1000)

	b.ReportAllocs()
	for b.Loop() {
		_ = g.Open(window)
	}
}
