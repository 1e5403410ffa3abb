// SPDX-License-Identifier: MIT
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"doppler/cmd"
	"doppler/internal/audio"
	"doppler/internal/config"
	applog "doppler/internal/log"
	"doppler/internal/session"
	"doppler/internal/transport"
	"doppler/internal/transport/udp"
	"doppler/internal/tui"
	"doppler/pkg/build"
)

// main is the entry point for the analyzer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and configuration
//   - Initialize PortAudio when a device is involved
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start the sample source and the analysis session
//   - Publish results to the configured sinks
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals, end of file or TUI exit
//   - Stop the session, which stops the source and any recording
//   - Close the sinks
func main() {
	os.Exit(run())
}

func run() int {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Debugf("build: development build: %v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	switch opts.Command {
	case cmd.CommandNone:
		return 0
	case cmd.CommandVersion:
		fmt.Println(build.Get())
		return 0
	}

	cfg := opts.Config
	applog.Configure(cfg.LogLevel, cfg.Debug)

	if opts.Command == cmd.CommandList || cfg.Audio.Source == config.SourceDevice {
		if err := audio.Initialize(); err != nil {
			applog.Errorf("%v", err)
			return 1
		}
		defer audio.Terminate()
	}

	if opts.Command == cmd.CommandList {
		if err := listDevices(opts.Interactive); err != nil {
			applog.Errorf("%v", err)
			return 1
		}
		return 0
	}

	if err := analyze(cfg); err != nil {
		applog.Errorf("%v", err)
		return 1
	}
	return 0
}

func listDevices(interactive bool) error {
	if !interactive {
		return audio.ListDevices(os.Stdout)
	}

	sel, err := tui.PickDevice()
	if err != nil {
		return err
	}
	if sel != nil {
		fmt.Printf("%s: %s\n", sel.Name, sel.Flags())
	}
	return nil
}

// sinks collects the result transports so they can be closed together.
type sinks []transport.Transport

func (s sinks) Close() error {
	var errs []error
	for _, t := range s {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

func analyze(cfg *config.Config) error {
	applog.Debugf("config: %d-sample window (%.3f Hz/bin), %d-sample frames",
		cfg.WindowSize(), cfg.EffectiveResolution(), cfg.FrameSize())

	src, err := cmd.NewSource(cfg)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}

	var (
		recordingPath string
		rec           *audio.Recorder
		started       bool
	)
	if cfg.Recording.Enabled {
		recordingPath = cfg.RecordingPath(time.Now())
		if err := os.MkdirAll(filepath.Dir(recordingPath), 0o755); err != nil {
			return fmt.Errorf("recording directory: %w", err)
		}
		rec, err = audio.NewRecorder(src.SampleRate(), src.Channels(), cfg.Recording.BitDepth, cfg.Audio.FramesPerBuffer)
		if err != nil {
			return err
		}
		if err := rec.Start(recordingPath); err != nil {
			return err
		}
		// Session.Stop closes the file once the session has started.
		defer func() {
			if !started {
				if err := rec.Stop(); err != nil {
					applog.Warnf("recording: %v", err)
				}
			}
		}()
		src = audio.NewRecordingSource(src, rec)
	}

	settings, err := cmd.SessionSettings(cfg, src)
	if err != nil {
		return err
	}
	sess, err := session.New(settings, src)
	if err != nil {
		return err
	}

	var out sinks
	defer func() {
		if err := out.Close(); err != nil {
			applog.Warnf("closing transports: %v", err)
		}
	}()

	// The monitor owns the terminal, so results are not logged under it.
	if cfg.Transport.Log && !cfg.Transport.TUI {
		lt := transport.NewLoggingTransport()
		out = append(out, lt)
		sess.Subscribe(transport.Subscriber(lt))
	}
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		pub, err := udp.NewPublisher(sender)
		if err != nil {
			return err
		}
		out = append(out, pub)
		sess.Subscribe(transport.Subscriber(pub))
		if err := pub.StartSpectrum(sess, settings.TickPeriod); err != nil {
			return err
		}
	}
	if cfg.Transport.WebSocketEnabled {
		wst := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		wst.ListenAndServe()
		out = append(out, wst)
		sess.Subscribe(transport.Subscriber(wst))
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if err := sess.Start(); err != nil {
		if errors.Is(err, session.ErrSourceUnavailable) {
			return fmt.Errorf("session cannot start: %w", err)
		}
		return err
	}
	started = true

	if cfg.Transport.TUI {
		title := fmt.Sprintf("doppler %s", sess.Mode())
		if err := tui.RunMonitor(sess, title); err != nil {
			applog.Errorf("monitor: %v", err)
		}
	} else {
		waitForShutdown(src)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	stopErr := sess.Stop()
	if recordingPath != "" {
		fmt.Printf("\nRecording saved to: %s\n", recordingPath)
	}
	st := sess.Stats()
	applog.Infof("%d results from %d ticks", st.Results, st.Ticks)
	return stopErr
}

// waitForShutdown blocks until SIGINT/SIGTERM or, for a non-looping file
// source, the end of the file.
func waitForShutdown(src audio.Source) {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	var ended <-chan struct{}
	if rs, ok := src.(*audio.RecordingSource); ok {
		src = rs.Source
	}
	if fs, ok := src.(*audio.FileSource); ok {
		ended = fs.Done()
	}

	select {
	case sig := <-done:
		applog.Infof("received %s, shutting down", sig)
	case <-ended:
		applog.Infof("end of input file")
	}
}
