// SPDX-License-Identifier: MIT
/*
Package audio provides the sample sources that feed an analysis session:
- PortAudio capture from an input device
- WAV file replay at real-time pace
- Synthetic tone generation
- WAV recording of any source

Thread Safety:
- Each source delivers samples from exactly one goroutine or audio thread
- Sinks must not retain the slice they are handed
- Buffers are pre-allocated so the delivery path does not allocate
*/
package audio

import (
	"errors"

	applog "doppler/internal/log"
)

var logger = applog.New("Audio")

// ErrAlreadyStarted is returned by Start on a running source.
var ErrAlreadyStarted = errors.New("source already started")

// SampleSink receives frame-interleaved float32 samples in [-1, 1]. The
// slice is only valid for the duration of the call.
type SampleSink func(interleaved []float32)

// Source is a stream of interleaved samples at a fixed rate and channel
// count.
type Source interface {
	SampleRate() float64
	Channels() int
	Start(sink SampleSink) error
	Stop() error
}

// Compile-time checks for interface implementations.
var (
	_ Source = (*DeviceSource)(nil)
	_ Source = (*FileSource)(nil)
	_ Source = (*ToneSource)(nil)
	_ Source = (*RecordingSource)(nil)
)
