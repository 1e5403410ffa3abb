// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"doppler/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSampleRate = 44100
	testFrameSize  = 512
)

func newTestRecorder(t *testing.T, bitDepth int) *Recorder {
	t.Helper()
	rec, err := NewRecorder(testSampleRate, 2, bitDepth, testFrameSize)
	require.NoError(t, err)
	return rec
}

func TestRecordingStartStop(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_recording.wav")
	rec := newTestRecorder(t, 16)

	if err := rec.Start(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	if !rec.Recording() {
		t.Error("Recorder should be in recording state")
	}
	if rec.outputFile == nil {
		t.Error("Output file should be initialized")
	}
	if rec.wavEncoder == nil {
		t.Error("WAV encoder should be initialized")
	}
	if rec.sampleBuf.Format.NumChannels != 2 {
		t.Errorf("Buffer channels mismatch: got %d, want 2", rec.sampleBuf.Format.NumChannels)
	}
	if len(rec.sampleBuf.Data) != testFrameSize*2 {
		t.Errorf("Buffer size mismatch: got %d, want %d", len(rec.sampleBuf.Data), testFrameSize*2)
	}

	// Store reference to check file closure.
	outputFile := rec.outputFile

	if err := rec.Stop(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}

	if rec.Recording() {
		t.Error("Recorder should not be in recording state after stopping")
	}
	if rec.outputFile != nil {
		t.Error("Output file should be nil after stopping")
	}
	if rec.wavEncoder != nil {
		t.Error("WAV encoder should be nil after stopping")
	}
	if err := outputFile.Close(); err == nil {
		t.Error("File should already be closed")
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		t.Error("Recording file was not created")
	}
}

func TestRecordingErrorCases(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		desc          string
		filename      string
		preStart      bool
		expectError   bool
		errorContains string
	}{
		{"Already recording", filepath.Join(dir, "valid.wav"), true, true, "already recording"},
		{"Invalid path", "/nonexistent/path/file.wav", false, true, ""},
		{"Valid path", filepath.Join(dir, "test.wav"), false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			rec := newTestRecorder(t, 16)
			if tt.preStart {
				require.NoError(t, rec.Start(filepath.Join(dir, "first.wav")))
			}

			err := rec.Start(tt.filename)
			defer rec.Stop()

			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.errorContains != "" && err != nil && !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Error %q does not contain %q", err.Error(), tt.errorContains)
			}
		})
	}

	t.Run("Stop when not recording", func(t *testing.T) {
		rec := newTestRecorder(t, 16)
		assert.NoError(t, rec.Stop())
	})

	t.Run("Bad bit depth", func(t *testing.T) {
		_, err := NewRecorder(testSampleRate, 2, 12, testFrameSize)
		assert.Error(t, err)
	})
}

func TestRecordingRoundTrip(t *testing.T) {
	for _, bitDepth := range []int{16, 24, 32} {
		t.Run(fmt.Sprintf("%d-bit", bitDepth), func(t *testing.T) {
			filename := filepath.Join(t.TempDir(), "roundtrip.wav")
			rec, err := NewRecorder(testSampleRate, 1, bitDepth, testFrameSize)
			require.NoError(t, err)
			require.NoError(t, rec.Start(filename))

			want := utils.GenerateTones(4*testFrameSize, testSampleRate, utils.Tone{Frequency: 1000, Amplitude: 0.5})
			for i := 0; i < len(want); i += testFrameSize {
				rec.Write(want[i : i+testFrameSize])
			}
			require.NoError(t, rec.Stop())

			src, err := NewFileSource(filename, testFrameSize, false)
			require.NoError(t, err)
			assert.Equal(t, float64(testSampleRate), src.SampleRate())
			assert.Equal(t, 1, src.Channels())
			require.Equal(t, len(want), src.Frames())

			tolerance := math.Max(2.0/float64(int64(1)<<(bitDepth-1)), 1e-6)
			for i := range want {
				require.InDelta(t, want[i], src.samples[i], tolerance, "sample %d", i)
			}
		})
	}
}

func TestRecordingClipsOutOfRange(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "clip.wav")
	rec, err := NewRecorder(testSampleRate, 1, 16, 4)
	require.NoError(t, err)
	require.NoError(t, rec.Start(filename))

	rec.Write([]float32{2, -2, 1, -1})
	assert.Equal(t, []int{32767, -32767, 32767, -32767}, rec.sampleBuf.Data)
	require.NoError(t, rec.Stop())
}

func TestRecordingSourceTees(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "tee.wav")
	rec, err := NewRecorder(testSampleRate, 1, 16, testFrameSize)
	require.NoError(t, err)
	require.NoError(t, rec.Start(filename))

	tone, err := NewToneSource(testSampleRate, 1, testFrameSize, utils.Tone{Frequency: 440, Amplitude: 0.5})
	require.NoError(t, err)

	src := NewRecordingSource(tone, rec)
	assert.Equal(t, float64(testSampleRate), src.SampleRate())

	received := make(chan int, 64)
	require.NoError(t, src.Start(func(in []float32) {
		select {
		case received <- len(in):
		default:
		}
	}))

	require.Eventually(t, func() bool { return len(received) >= 3 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, src.Stop())
	assert.False(t, rec.Recording())

	replay, err := NewFileSource(filename, testFrameSize, false)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, replay.Frames(), 3*testFrameSize)
}

func BenchmarkRecorderWrite(b *testing.B) {
	rec, _ := NewRecorder(testSampleRate, 2, 16, testFrameSize)
	filename := filepath.Join(b.TempDir(), "bench_process.wav")
	_ = rec.Start(filename)
	defer rec.Stop()

	buffer := utils.GenerateTones(testFrameSize*2, testSampleRate, utils.Tone{Frequency: 440, Amplitude: 0.5})

	b.ReportAllocs()
	for b.Loop() {
		rec.Write(buffer)
	}
}
