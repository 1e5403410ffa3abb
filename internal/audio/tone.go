// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"

	"doppler/pkg/utils"
)

// ToneSource synthesizes a phase-continuous sum of sines, duplicated on
// every channel, and delivers it in real time.
type ToneSource struct {
	sampleRate      float64
	channels        int
	framesPerBuffer int
	tones           []utils.Tone

	mono   []float32
	frame  []float32
	offset int64

	pacer *pacer
}

// NewToneSource validates the shape and pre-allocates one callback buffer.
func NewToneSource(sampleRate float64, channels, framesPerBuffer int, tones ...utils.Tone) (*ToneSource, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("tone source sample rate must be positive, got %f", sampleRate)
	}
	if channels <= 0 || framesPerBuffer <= 0 {
		return nil, fmt.Errorf("tone source needs positive channels and frames, got %d and %d", channels, framesPerBuffer)
	}
	for _, t := range tones {
		if t.Frequency < 0 || t.Frequency >= sampleRate/2 {
			return nil, fmt.Errorf("tone at %.1f Hz is outside 0-%.1f Hz", t.Frequency, sampleRate/2)
		}
	}

	return &ToneSource{
		sampleRate:      sampleRate,
		channels:        channels,
		framesPerBuffer: framesPerBuffer,
		tones:           append([]utils.Tone(nil), tones...),
		mono:            make([]float32, framesPerBuffer),
		frame:           make([]float32, framesPerBuffer*channels),
		pacer:           newPacer(framesPerBuffer, sampleRate),
	}, nil
}

func (s *ToneSource) SampleRate() float64 { return s.sampleRate }
func (s *ToneSource) Channels() int       { return s.channels }

// Start begins delivering one buffer per buffer-duration to sink.
func (s *ToneSource) Start(sink SampleSink) error {
	if sink == nil {
		return fmt.Errorf("tone source: nil sink")
	}
	logger.Infof("Tone source started (%d tones, %.0f Hz, %d ch)", len(s.tones), s.sampleRate, s.channels)
	return s.pacer.start(func() bool {
		sink(s.next())
		return true
	})
}

// Stop halts delivery and waits for the last callback to return.
func (s *ToneSource) Stop() error {
	s.pacer.stop()
	return nil
}

// next renders the following buffer.
func (s *ToneSource) next() []float32 {
	utils.FillTones(s.mono, s.offset, s.sampleRate, s.tones...)
	s.offset += int64(len(s.mono))

	if s.channels == 1 {
		return s.mono
	}
	for i, v := range s.mono {
		for ch := range s.channels {
			s.frame[i*s.channels+ch] = v
		}
	}
	return s.frame
}
