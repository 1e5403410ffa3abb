// SPDX-License-Identifier: MIT
package session

import (
	"fmt"
	"math"
	"time"

	"doppler/internal/analysis"
)

// DefaultTickPeriod is the time between analyses.
const DefaultTickPeriod = 250 * time.Millisecond

// Settings fixes everything about a session at construction time.
type Settings struct {
	SampleRate    float64             // Hz, must match the source
	Channels      int                 // interleaved channels delivered by the source
	Channel       int                 // channel analyzed
	Resolution    float64             // requested Hz per bin
	TickPeriod    time.Duration       // time between analyses
	Mode          analysis.Mode       // analyzer, fixed for the session
	Window        analysis.WindowFunc // window applied before the transform
	Backend       analysis.Backend    // FFT implementation
	GateThreshold float64             // skip windows quieter than this, 0 disables
	Params        analysis.Params     // analyzer tunables
}

// DefaultSettings returns mono 44.1 kHz peak detection at 3 Hz resolution.
func DefaultSettings() Settings {
	return Settings{
		SampleRate: 44100,
		Channels:   1,
		Resolution: 3,
		TickPeriod: DefaultTickPeriod,
		Mode:       analysis.ModePeaks,
		Window:     analysis.Hann,
		Backend:    analysis.BackendGonum,
		Params:     analysis.DefaultParams(),
	}
}

// WindowSize returns round(SampleRate / Resolution).
func (s Settings) WindowSize() int {
	if s.Resolution <= 0 {
		return 0
	}
	return int(math.Round(s.SampleRate / s.Resolution))
}

// EffectiveResolution returns SampleRate / WindowSize.
func (s Settings) EffectiveResolution() float64 {
	w := s.WindowSize()
	if w == 0 {
		return 0
	}
	return s.SampleRate / float64(w)
}

func (s Settings) validate() error {
	if s.SampleRate <= 0 || math.IsNaN(s.SampleRate) {
		return fmt.Errorf("sample rate must be positive, got %f", s.SampleRate)
	}
	if s.Channels < 1 {
		return fmt.Errorf("channels must be at least 1, got %d", s.Channels)
	}
	if s.Channel < 0 || s.Channel >= s.Channels {
		return fmt.Errorf("analysis channel %d outside 0-%d", s.Channel, s.Channels-1)
	}
	if s.Resolution <= 0 || math.IsNaN(s.Resolution) {
		return fmt.Errorf("resolution must be positive, got %f", s.Resolution)
	}
	if w := s.WindowSize(); w < 2 {
		return fmt.Errorf("resolution %.2f Hz at %.0f Hz leaves a window of %d samples", s.Resolution, s.SampleRate, w)
	}
	if s.TickPeriod <= 0 {
		return fmt.Errorf("tick period must be positive, got %s", s.TickPeriod)
	}
	if s.GateThreshold < 0 || s.GateThreshold > 1 {
		return fmt.Errorf("gate threshold must be 0-1, got %f", s.GateThreshold)
	}
	return nil
}
