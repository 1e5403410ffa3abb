// SPDX-License-Identifier: MIT
package audio

import (
	"sync/atomic"
	"testing"
	"time"

	"doppler/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToneSourceValidates(t *testing.T) {
	_, err := NewToneSource(0, 1, 512)
	assert.Error(t, err)

	_, err = NewToneSource(testSampleRate, 0, 512)
	assert.Error(t, err)

	_, err = NewToneSource(testSampleRate, 1, 512, utils.Tone{Frequency: 30000, Amplitude: 1})
	assert.Error(t, err)
}

func TestToneSourceIsContinuous(t *testing.T) {
	tones := []utils.Tone{{Frequency: 1000, Amplitude: 0.5}, {Frequency: 1200, Amplitude: 0.3}}
	src, err := NewToneSource(testSampleRate, 1, 100, tones...)
	require.NoError(t, err)

	want := utils.GenerateTones(300, testSampleRate, tones...)
	var got []float32
	for range 3 {
		got = append(got, src.next()...)
	}
	assert.Equal(t, want, got)
}

func TestToneSourceDuplicatesChannels(t *testing.T) {
	src, err := NewToneSource(testSampleRate, 3, 8, utils.Tone{Frequency: 440, Amplitude: 0.9})
	require.NoError(t, err)

	frame := src.next()
	require.Len(t, frame, 24)
	for i := 0; i < len(frame); i += 3 {
		assert.Equal(t, frame[i], frame[i+1])
		assert.Equal(t, frame[i], frame[i+2])
	}
}

func TestToneSourceStartStop(t *testing.T) {
	src, err := NewToneSource(testSampleRate, 2, testFrameSize, utils.Tone{Frequency: 440, Amplitude: 0.5})
	require.NoError(t, err)

	var calls atomic.Int32
	require.NoError(t, src.Start(func(in []float32) {
		if len(in) == 2*testFrameSize {
			calls.Add(1)
		}
	}))
	assert.ErrorIs(t, src.Start(func([]float32) {}), ErrAlreadyStarted)

	require.Eventually(t, func() bool { return calls.Load() >= 5 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, src.Stop())
	require.NoError(t, src.Stop())

	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "callbacks after Stop")

	// A stopped source can be restarted.
	require.NoError(t, src.Start(func([]float32) { calls.Add(1) }))
	require.NoError(t, src.Stop())
}

func TestToneSourceHotPath(t *testing.T) {
	src, err := NewToneSource(testSampleRate, 2, testFrameSize, utils.Tone{Frequency: 440, Amplitude: 0.5})
	require.NoError(t, err)

	allocs := testing.AllocsPerRun(100, func() {
		src.next()
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations rendering tones, got %.1f", allocs)
	}
}
