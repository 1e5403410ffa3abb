// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"doppler/internal/analysis"
	"doppler/internal/audio"
	"doppler/internal/config"
	"doppler/internal/session"
	"doppler/pkg/utils"
)

// NewSource builds the sample source named by cfg.Audio.Source. PortAudio
// must already be initialized for the device source.
func NewSource(cfg *config.Config) (audio.Source, error) {
	a := cfg.Audio
	switch a.Source {
	case config.SourceDevice:
		return audio.NewDeviceSource(audio.DeviceConfig{
			DeviceID:        a.InputDevice,
			Channels:        a.InputChannels,
			SampleRate:      a.SampleRate,
			FramesPerBuffer: a.FramesPerBuffer,
			LowLatency:      a.LowLatency,
		})
	case config.SourceFile:
		return audio.NewFileSource(a.File, a.FramesPerBuffer, a.Loop)
	case config.SourceTone:
		tones := make([]utils.Tone, len(a.Tones))
		for i, f := range a.Tones {
			tones[i] = utils.Tone{Frequency: f, Amplitude: a.ToneAmplitude}
		}
		return audio.NewToneSource(a.SampleRate, a.InputChannels, a.FramesPerBuffer, tones...)
	default:
		return nil, fmt.Errorf("unknown audio source %q", a.Source)
	}
}

// SessionSettings converts cfg into session settings. The sample rate and
// channel count come from src, since a WAV file dictates its own.
func SessionSettings(cfg *config.Config, src audio.Source) (session.Settings, error) {
	mode, err := analysis.ParseMode(cfg.Analysis.Mode)
	if err != nil {
		return session.Settings{}, err
	}
	window, err := analysis.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return session.Settings{}, err
	}
	backend, err := analysis.ParseBackend(cfg.Analysis.Backend)
	if err != nil {
		return session.Settings{}, err
	}

	settings := session.Settings{
		SampleRate:    cfg.Audio.SampleRate,
		Channels:      cfg.Audio.InputChannels,
		Channel:       cfg.Analysis.Channel,
		Resolution:    cfg.Analysis.Resolution,
		TickPeriod:    cfg.Analysis.TickPeriod,
		Mode:          mode,
		Window:        window,
		Backend:       backend,
		GateThreshold: cfg.Analysis.GateThreshold,
		Params:        cfg.AnalysisParams(),
	}
	if src != nil {
		settings.SampleRate = src.SampleRate()
		settings.Channels = src.Channels()
	}
	if settings.Channel >= settings.Channels {
		return session.Settings{}, fmt.Errorf("analysis channel %d, but the source has %d channel(s)",
			settings.Channel, settings.Channels)
	}
	return settings, nil
}
