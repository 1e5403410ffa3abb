// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"os"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 44100
	testFrequency  = 440.0 // A4 note
)

var testMagnitudes []float64

func TestMain(m *testing.M) {
	// A "hill" with its peak at testSize/4.
	testMagnitudes = GaussianSpectrum(testSize, 0, GaussianPeak{Center: testSize / 4, Height: 1, Width: 7})

	os.Exit(m.Run())
}

func TestGenerateTones(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		tones      []Tone
	}{
		{"Single", 1024, 44100, []Tone{{440, 0.5}}},
		{"Two Tone", 14700, 44100, []Tone{{1000, 0.5}, {1200, 0.3}}},
		{"Small", 16, 8000, []Tone{{1000, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateTones(tt.size, tt.sampleRate, tt.tones...)

			if len(result) != tt.size {
				t.Fatalf("GenerateTones() buffer size = %d, want %d", len(result), tt.size)
			}

			var limit float64
			for _, tone := range tt.tones {
				limit += tone.Amplitude
			}
			hasNonZero := false
			for _, v := range result {
				if math.Abs(float64(v)) > limit+1e-6 {
					t.Fatalf("sample %f exceeds summed amplitude %f", v, limit)
				}
				if v != 0 {
					hasNonZero = true
				}
			}
			if !hasNonZero {
				t.Errorf("GenerateTones() produced all zeros")
			}
		})
	}
}

func TestFillTonesIsPhaseContinuous(t *testing.T) {
	whole := GenerateTones(300, testSampleRate, Tone{testFrequency, 0.7})

	first := make([]float32, 120)
	second := make([]float32, 180)
	FillTones(first, 0, testSampleRate, Tone{testFrequency, 0.7})
	FillTones(second, 120, testSampleRate, Tone{testFrequency, 0.7})

	joined := append(first, second...)
	for i := range whole {
		if whole[i] != joined[i] {
			t.Fatalf("sample %d differs: %f vs %f", i, whole[i], joined[i])
		}
	}
}

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", 1024, 44100, 440.0},
		{"Middle C", 1024, 44100, 261.63},
		{"High Sample Rate", 1024, 192000, 440.0},
		{"Low Sample Rate", 1024, 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(tt.size, tt.sampleRate, tt.frequency)

			if len(result) != tt.size {
				t.Errorf("GenerateSineWave() buffer size = %d, want %d",
					len(result), tt.size)
			}

			// Expect roughly two zero crossings per cycle.
			samplesPerCycle := tt.sampleRate / tt.frequency
			if samplesPerCycle > 2 && float64(tt.size) > samplesPerCycle {
				crossCount := 0
				for i := 1; i < tt.size; i++ {
					if (result[i-1] < 0 && result[i] >= 0) ||
						(result[i-1] >= 0 && result[i] < 0) {
						crossCount++
					}
				}

				expectedCrossings := float64(tt.size) / (samplesPerCycle / 2)
				tolerance := 0.2 * expectedCrossings

				if math.Abs(float64(crossCount)-expectedCrossings) > tolerance {
					t.Errorf("GenerateSineWave() zero crossings = %d, expected approximately %.1f±%.1f",
						crossCount, expectedCrossings, tolerance)
				}
			}
		})
	}
}

func TestGaussianSpectrum(t *testing.T) {
	bins := GaussianSpectrum(200, -100,
		GaussianPeak{Center: 50, Height: 60, Width: 2},
		GaussianPeak{Center: 150, Height: 40, Width: 2},
	)

	if got := FindPeakBin(bins, 0, 99); got != 50 {
		t.Errorf("first peak at %d, want 50", got)
	}
	if got := FindPeakBin(bins, 100, 199); got != 150 {
		t.Errorf("second peak at %d, want 150", got)
	}
	if math.Abs(bins[0]+100) > 1e-9 {
		t.Errorf("floor = %f, want -100", bins[0])
	}
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", testMagnitudes, 0, testSize - 1, testSize / 4},
		{"Partial Range Start", testMagnitudes, testSize / 8, testSize - 1, testSize / 4},
		{"Partial Range End", testMagnitudes, 0, testSize / 3, testSize / 4},
		{"Negative Start", testMagnitudes, -10, testSize - 1, testSize / 4},
		{"Out of Range End", testMagnitudes, 0, testSize * 2, testSize / 4},
		{"Empty Slice", []float64{}, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindPeakBin(tt.mags, tt.start, tt.end)

			if result != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", result, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(testMagnitudes, 0, len(testMagnitudes)-1)
	})

	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkGenerateTones(b *testing.B) {
	benchmarks := []struct {
		name string
		size int
	}{
		{"Small", 64},
		{"Standard", 1024},
		{"Window", 14700},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()

			for b.Loop() {
				GenerateTones(bm.size, testSampleRate, Tone{1000, 0.5}, Tone{1200, 0.3})
			}
		})
	}
}
