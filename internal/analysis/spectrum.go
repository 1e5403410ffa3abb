// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// DecibelFloor is the value reported for bins with zero (or vanishing)
// magnitude, keeping silent frames finite and flat.
const DecibelFloor = -200.0

// SpectrumFrame is one half-spectrum of dB magnitudes. Bin i sits at
// i*Resolution Hz.
type SpectrumFrame struct {
	Bins       []float64
	Resolution float64
}

// Len returns the number of bins in the frame.
func (f SpectrumFrame) Len() int { return len(f.Bins) }

// Frequency returns the center frequency (Hz) of bin.
func (f SpectrumFrame) Frequency(bin int) float64 {
	return float64(bin) * f.Resolution
}

// Transformer maps a time window of Size() samples to a SpectrumFrame of
// Size()/2 bins. The returned frame aliases the transformer's workspace and
// is only valid until the next call to Transform. Implementations are not
// safe for concurrent use.
type Transformer interface {
	Size() int
	Transform(samples []float32) SpectrumFrame
}

// Backend selects the FFT library behind a Transformer.
type Backend int

const (
	BackendGonum Backend = iota // gonum.org/v1/gonum/dsp/fourier
	BackendGoDSP                // github.com/mjibson/go-dsp/fft
)

func (b Backend) String() string {
	switch b {
	case BackendGonum:
		return "gonum"
	case BackendGoDSP:
		return "godsp"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// ParseBackend converts a backend name to a Backend.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gonum", "":
		return BackendGonum, nil
	case "godsp", "go-dsp", "dsp":
		return BackendGoDSP, nil
	default:
		return BackendGonum, fmt.Errorf("unknown FFT backend: '%s'", name)
	}
}

// NewTransformer builds the engine for backend.
func NewTransformer(backend Backend, size int, sampleRate float64, windowType WindowFunc) (Transformer, error) {
	switch backend {
	case BackendGonum:
		return NewFFTEngine(size, sampleRate, windowType)
	case BackendGoDSP:
		return NewDSPEngine(size, sampleRate, windowType)
	default:
		return nil, fmt.Errorf("unsupported FFT backend %v", backend)
	}
}

// spectrumWorkspace holds the pre-allocated buffers shared by both engines.
type spectrumWorkspace struct {
	size       int
	resolution float64
	scale      float64   // converts |X| to amplitude relative to full scale
	input      []float64 // windowed input signal
	window     []float64 // pre-calculated window coefficients
	bins       []float64 // dB magnitudes, size/2
}

func newSpectrumWorkspace(size int, sampleRate float64, windowType WindowFunc) (spectrumWorkspace, error) {
	if size < 2 {
		return spectrumWorkspace{}, fmt.Errorf("fft size must be at least 2, got %d", size)
	}
	if sampleRate <= 0 {
		return spectrumWorkspace{}, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	coeffs := windowCoefficients(size, windowType)
	var sum float64
	for _, c := range coeffs {
		sum += c
	}
	// Coherent gain: a full-scale sine lands at 0 dB.
	scale := 2.0 / float64(size)
	if sum > 0 {
		scale = 2.0 / sum
	}

	return spectrumWorkspace{
		size:       size,
		resolution: sampleRate / float64(size),
		scale:      scale,
		input:      make([]float64, size),
		window:     coeffs,
		bins:       make([]float64, size/2),
	}, nil
}

// load applies the window to samples, zero-padding short input.
func (w *spectrumWorkspace) load(samples []float32) {
	n := min(len(samples), w.size)
	for i := range n {
		w.input[i] = float64(samples[i]) * w.window[i]
	}
	for i := n; i < w.size; i++ {
		w.input[i] = 0
	}
}

// decibels fills the frame from the first size/2 coefficients.
func (w *spectrumWorkspace) decibels(coeffs []complex128) SpectrumFrame {
	for i := range w.bins {
		mag := cmplx.Abs(coeffs[i]) * w.scale
		db := DecibelFloor
		if mag > 0 {
			db = math.Max(20*math.Log10(mag), DecibelFloor)
		}
		w.bins[i] = db
	}
	return SpectrumFrame{Bins: w.bins, Resolution: w.resolution}
}

// FFTEngine is the default Transformer, built on gonum's FFTPACK port. It
// handles any size, including the non power-of-two windows produced by
// sampleRate/resolution.
type FFTEngine struct {
	fft       *fourier.FFT
	workspace spectrumWorkspace
	coeffs    []complex128
}

var _ Transformer = (*FFTEngine)(nil)

// NewFFTEngine pre-allocates every buffer Transform needs.
func NewFFTEngine(size int, sampleRate float64, windowType WindowFunc) (*FFTEngine, error) {
	ws, err := newSpectrumWorkspace(size, sampleRate, windowType)
	if err != nil {
		return nil, err
	}

	logger.Infof("initializing gonum FFT engine (Size: %d, Resolution: %.3f Hz, Window: %v)",
		size, ws.resolution, windowType)

	return &FFTEngine{
		fft:       fourier.NewFFT(size),
		workspace: ws,
		coeffs:    make([]complex128, size/2+1),
	}, nil
}

// Size returns the window length in samples.
func (e *FFTEngine) Size() int { return e.workspace.size }

// Transform windows samples, runs the FFT and converts to dB. It does not
// allocate.
func (e *FFTEngine) Transform(samples []float32) SpectrumFrame {
	e.workspace.load(samples)
	e.fft.Coefficients(e.coeffs, e.workspace.input)
	return e.workspace.decibels(e.coeffs)
}

// DSPEngine is the Transformer behind the "godsp" backend, built on
// mjibson/go-dsp. It produces the same frames as FFTEngine but allocates
// the coefficient slice on every call.
type DSPEngine struct {
	workspace spectrumWorkspace
}

var _ Transformer = (*DSPEngine)(nil)

// NewDSPEngine pre-allocates the windowing workspace.
func NewDSPEngine(size int, sampleRate float64, windowType WindowFunc) (*DSPEngine, error) {
	ws, err := newSpectrumWorkspace(size, sampleRate, windowType)
	if err != nil {
		return nil, err
	}

	logger.Infof("initializing go-dsp FFT engine (Size: %d, Resolution: %.3f Hz, Window: %v)",
		size, ws.resolution, windowType)

	return &DSPEngine{workspace: ws}, nil
}

// Size returns the window length in samples.
func (e *DSPEngine) Size() int { return e.workspace.size }

// Transform windows samples, runs the FFT and converts to dB.
func (e *DSPEngine) Transform(samples []float32) SpectrumFrame {
	e.workspace.load(samples)
	return e.workspace.decibels(dspfft.FFTReal(e.workspace.input))
}
