// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes interleaved float32 samples to an integer PCM WAV file.
type Recorder struct {
	sampleRate int
	channels   int
	bitDepth   int
	peak       int // largest encodable sample

	isRecording atomic.Bool
	mu          sync.Mutex // guards the encoder between Write and Stop
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // reusable conversion buffer
}

// NewRecorder validates the format. Bit depth must be 16, 24 or 32.
func NewRecorder(sampleRate float64, channels, bitDepth, framesPerBuffer int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported recording bit depth %d", bitDepth)
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("recorder needs a positive sample rate and channel count")
	}

	return &Recorder{
		sampleRate: int(sampleRate),
		channels:   channels,
		bitDepth:   bitDepth,
		peak:       1<<(bitDepth-1) - 1,
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  int(sampleRate),
			},
			SourceBitDepth: bitDepth,
			Data:           make([]int, max(framesPerBuffer, 1)*channels),
		},
	}, nil
}

// Recording reports whether a file is open.
func (r *Recorder) Recording() bool { return r.isRecording.Load() }

// Start creates filename and begins accepting samples.
func (r *Recorder) Start(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRecording.Load() {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	r.outputFile = file
	r.wavEncoder = wav.NewEncoder(file, r.sampleRate, r.bitDepth, r.channels, 1)

	r.isRecording.Store(true)
	logger.Infof("Recording to %s (%d-bit, %d Hz, %d ch)", filename, r.bitDepth, r.sampleRate, r.channels)
	return nil
}

// Write encodes one interleaved buffer. It is a no-op while not recording.
func (r *Recorder) Write(samples []float32) {
	if !r.isRecording.Load() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wavEncoder == nil {
		return
	}

	n := len(samples) - len(samples)%r.channels
	if cap(r.sampleBuf.Data) < n {
		r.sampleBuf.Data = make([]int, n)
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:n]

	for i, s := range samples[:n] {
		v := int(float64(s) * float64(r.peak))
		r.sampleBuf.Data[i] = max(-r.peak, min(r.peak, v))
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		logger.Errorf("Error writing to WAV file: %v", err)
	}
}

// Stop finalizes the WAV header and closes the file.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRecording.Load() {
		return nil
	}
	r.isRecording.Store(false)

	var errs []error
	if r.wavEncoder != nil {
		errs = append(errs, r.wavEncoder.Close())
		r.wavEncoder = nil
	}
	if r.outputFile != nil {
		errs = append(errs, r.outputFile.Close())
		r.outputFile = nil
	}
	logger.Infof("Recording stopped")
	return errors.Join(errs...)
}

// RecordingSource tees every buffer of the wrapped source into a Recorder
// before handing it on.
type RecordingSource struct {
	Source
	recorder *Recorder
}

// NewRecordingSource wraps src. The recorder must already be started.
func NewRecordingSource(src Source, recorder *Recorder) *RecordingSource {
	return &RecordingSource{Source: src, recorder: recorder}
}

// Start starts the wrapped source with a teeing sink.
func (s *RecordingSource) Start(sink SampleSink) error {
	if sink == nil {
		return fmt.Errorf("recording source: nil sink")
	}
	return s.Source.Start(func(in []float32) {
		s.recorder.Write(in)
		sink(in)
	})
}

// Stop stops the wrapped source, then the recorder.
func (s *RecordingSource) Stop() error {
	return errors.Join(s.Source.Stop(), s.recorder.Stop())
}
