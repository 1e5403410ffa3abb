// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-audio/wav"
)

// FileSource replays a decoded PCM WAV file in framesPerBuffer chunks at
// real-time pace, optionally looping.
type FileSource struct {
	name            string
	sampleRate      float64
	channels        int
	framesPerBuffer int
	loop            bool

	samples []float32 // whole file, interleaved
	chunk   []float32
	pos     int

	pacer     *pacer
	ended     chan struct{}
	endedOnce sync.Once
}

// NewFileSource decodes the WAV file at path.
func NewFileSource(path string, framesPerBuffer int, loop bool) (*FileSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	return NewFileSourceFromReader(path, file, framesPerBuffer, loop)
}

// NewFileSourceFromReader decodes a WAV stream; name is used for logging.
func NewFileSourceFromReader(name string, r io.ReadSeeker, framesPerBuffer int, loop bool) (*FileSource, error) {
	if framesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", framesPerBuffer)
	}

	samples, sampleRate, channels, err := decodeWAV(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	logger.Infof("Loaded %s (%d frames, %.0f Hz, %d ch)", name, len(samples)/channels, sampleRate, channels)

	return &FileSource{
		name:            name,
		sampleRate:      sampleRate,
		channels:        channels,
		framesPerBuffer: framesPerBuffer,
		loop:            loop,
		samples:         samples,
		chunk:           make([]float32, framesPerBuffer*channels),
		pacer:           newPacer(framesPerBuffer, sampleRate),
		ended:           make(chan struct{}),
	}, nil
}

// decodeWAV reads integer PCM and scales it to [-1, 1) by bit depth.
func decodeWAV(r io.ReadSeeker) ([]float32, float64, int, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("not a valid WAV file")
	}
	if decoder.WavAudioFormat != 1 {
		return nil, 0, 0, fmt.Errorf("unsupported WAV format %d, only integer PCM is supported", decoder.WavAudioFormat)
	}

	bitDepth := int(decoder.BitDepth)
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, 0, 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode PCM data: %w", err)
	}

	channels := int(decoder.NumChans)
	if channels <= 0 {
		return nil, 0, 0, fmt.Errorf("WAV file declares %d channels", channels)
	}

	scale := float32(int64(1) << (bitDepth - 1))
	frames := len(buf.Data) / channels
	samples := make([]float32, frames*channels)
	for i := range samples {
		samples[i] = float32(buf.Data[i]) / scale
	}

	return samples, float64(decoder.SampleRate), channels, nil
}

func (s *FileSource) SampleRate() float64 { return s.sampleRate }
func (s *FileSource) Channels() int       { return s.channels }

// Frames returns the length of the file in frames.
func (s *FileSource) Frames() int { return len(s.samples) / s.channels }

// Done is closed once a non-looping source has delivered its last chunk.
func (s *FileSource) Done() <-chan struct{} { return s.ended }

// Start begins delivering chunks to sink.
func (s *FileSource) Start(sink SampleSink) error {
	if sink == nil {
		return fmt.Errorf("file source: nil sink")
	}
	if len(s.samples) == 0 {
		return fmt.Errorf("file source %s holds no samples", s.name)
	}
	logger.Infof("Replaying %s (loop: %v)", s.name, s.loop)
	return s.pacer.start(func() bool {
		chunk, more := s.next()
		if len(chunk) > 0 {
			sink(chunk)
		}
		if !more {
			logger.Infof("Reached end of %s", s.name)
			s.endedOnce.Do(func() { close(s.ended) })
		}
		return more
	})
}

// Stop halts replay. The position is kept so Start resumes.
func (s *FileSource) Stop() error {
	s.pacer.stop()
	return nil
}

// next copies the following chunk and reports whether more data remains.
func (s *FileSource) next() ([]float32, bool) {
	n := copy(s.chunk, s.samples[s.pos:])
	s.pos += n

	for n < len(s.chunk) && s.loop {
		s.pos = 0
		c := copy(s.chunk[n:], s.samples)
		s.pos += c
		n += c
	}

	if s.pos >= len(s.samples) {
		if !s.loop {
			return s.chunk[:n], false
		}
		s.pos = 0
	}
	return s.chunk[:n], true
}
