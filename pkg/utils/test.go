// SPDX-License-Identifier: MIT
//
// Package utils holds signal and spectrum generators shared by tests,
// benchmarks and the synthetic tone source.
package utils

import "math"

// Tone is one sinusoidal component.
type Tone struct {
	Frequency float64 // Hz
	Amplitude float64 // relative to full scale
}

// GenerateTones returns size samples of the sum of tones starting at phase 0.
func GenerateTones(size int, sampleRate float64, tones ...Tone) []float32 {
	buffer := make([]float32, size)
	FillTones(buffer, 0, sampleRate, tones...)
	return buffer
}

// FillTones writes the sum of tones into buffer, starting at sample index
// offset so consecutive calls stay phase-continuous.
func FillTones(buffer []float32, offset int64, sampleRate float64, tones ...Tone) {
	for i := range buffer {
		tm := float64(offset+int64(i)) / sampleRate
		var signal float64
		for _, tone := range tones {
			signal += tone.Amplitude * math.Sin(2*math.Pi*tone.Frequency*tm)
		}
		buffer[i] = float32(signal)
	}
}

// GenerateSineWave returns a single 0.9 full-scale sine.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	return GenerateTones(size, sampleRate, Tone{Frequency: frequency, Amplitude: 0.9})
}

// GaussianPeak describes one bump of a synthetic spectrum.
type GaussianPeak struct {
	Center float64 // bin, may be fractional
	Height float64 // dB above the floor
	Width  float64 // standard deviation in bins
}

// GaussianSpectrum returns size dB bins sitting at floor with the given
// peaks added on top.
func GaussianSpectrum(size int, floor float64, peaks ...GaussianPeak) []float64 {
	bins := make([]float64, size)
	for i := range bins {
		v := floor
		for _, p := range peaks {
			d := float64(i) - p.Center
			v += p.Height * math.Exp(-d*d/(2*p.Width*p.Width))
		}
		bins[i] = v
	}
	return bins
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
