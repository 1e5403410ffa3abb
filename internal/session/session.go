// SPDX-License-Identifier: MIT

// Package session schedules periodic spectral analysis over a live sample
// source and publishes the results to subscribers.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"doppler/internal/analysis"
	"doppler/internal/audio"
	"doppler/internal/buffer"
)

type state int

const (
	stateCreated state = iota
	stateRunning
	stateClosed
)

// Option configures a Session at construction.
type Option func(*Session)

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session owns one ring buffer, one spectrum engine and one analyzer. The
// source writes into the ring from its own goroutine; a ticker goroutine
// reads the newest window each period, analyzes it and publishes.
type Session struct {
	settings Settings
	source   audio.Source
	now      func() time.Time

	ring     *buffer.RingBuffer
	engine   analysis.Transformer
	analyzer analysis.FrameAnalyzer
	gate     *analysis.Gate
	window   []float32
	sequence uint64

	subs subscriberList

	mu       sync.Mutex
	state    state
	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup

	ticks    atomic.Uint64
	results  atomic.Uint64
	noResult atomic.Uint64
	skipped  atomic.Uint64
	errCount atomic.Uint64

	snapMu     sync.RWMutex
	snapWindow []float32
	snapBins   []float64
	snapRes    float64
	snapValid  bool
	lastResult *analysis.Result
}

// New validates settings and allocates every buffer the tick loop needs.
// A nil source is accepted here; Start reports it.
func New(settings Settings, src audio.Source, opts ...Option) (*Session, error) {
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid session settings: %w", err)
	}

	size := settings.WindowSize()
	ring, err := buffer.New(settings.Channels, size)
	if err != nil {
		return nil, fmt.Errorf("failed to create ring buffer: %w", err)
	}
	engine, err := analysis.NewTransformer(settings.Backend, size, settings.SampleRate, settings.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to create spectrum engine: %w", err)
	}
	analyzer, err := analysis.NewFrameAnalyzer(settings.Mode, settings.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	s := &Session{
		settings:   settings,
		source:     src,
		now:        time.Now,
		ring:       ring,
		engine:     engine,
		analyzer:   analyzer,
		gate:       analysis.NewGate(settings.GateThreshold),
		window:     make([]float32, size),
		snapWindow: make([]float32, size),
		snapBins:   make([]float64, size/2),
	}
	for _, opt := range opts {
		opt(s)
	}

	logger.Debugf("created: %s mode, window %d samples, %.3f Hz per bin, tick %s",
		settings.Mode, size, settings.EffectiveResolution(), settings.TickPeriod)
	return s, nil
}

// Settings returns the settings the session was built with.
func (s *Session) Settings() Settings { return s.settings }

// Mode returns the analyzer mode fixed at construction.
func (s *Session) Mode() analysis.Mode { return s.analyzer.Mode() }

// Start starts the source and then the tick loop. Any problem with the
// source returns an error wrapping ErrSourceUnavailable and leaves the
// session startable.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateRunning:
		return ErrAlreadyRunning
	case stateClosed:
		return ErrSessionClosed
	}

	if err := s.checkSource(); err != nil {
		return err
	}
	if err := s.source.Start(s.ring.WriteInterleaved); err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	s.ticker = time.NewTicker(s.settings.TickPeriod)
	s.doneChan = make(chan struct{})
	s.state = stateRunning

	s.wg.Add(1)
	go s.run(s.ticker, s.doneChan)

	logger.Infof("started: %s mode at %.0f Hz, analyzing channel %d", s.Mode(), s.settings.SampleRate, s.settings.Channel)
	return nil
}

func (s *Session) checkSource() error {
	if s.source == nil {
		return fmt.Errorf("%w: no source configured", ErrSourceUnavailable)
	}
	if rate := s.source.SampleRate(); rate != s.settings.SampleRate {
		return fmt.Errorf("%w: source runs at %.0f Hz, session expects %.0f Hz", ErrSourceUnavailable, rate, s.settings.SampleRate)
	}
	if ch := s.source.Channels(); ch != s.settings.Channels {
		return fmt.Errorf("%w: source delivers %d channels, session expects %d", ErrSourceUnavailable, ch, s.settings.Channels)
	}
	return nil
}

// Stop ends the tick loop, waits for an in-flight tick, stops the source
// and clears the buffers. It is safe to call more than once and on a
// session that never started.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != stateRunning {
		s.state = stateClosed
		s.mu.Unlock()
		return nil
	}
	close(s.doneChan)
	s.ticker.Stop()
	s.state = stateClosed
	s.mu.Unlock()

	s.wg.Wait()

	var err error
	if stopErr := s.source.Stop(); stopErr != nil {
		err = fmt.Errorf("failed to stop source: %w", stopErr)
	}

	s.ring.Reset()
	s.analyzer.Reset()

	st := s.Stats()
	logger.Infof("stopped after %d ticks: %d results, %d without result, %d skipped",
		st.Ticks, st.Results, st.NoResult, st.Skipped)
	return err
}

// Running reports whether the tick loop is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning
}

// Subscribe registers sub for every future result.
func (s *Session) Subscribe(sub Subscriber, opts ...SubscribeOption) *Subscription {
	subscription := &Subscription{
		session:    s,
		subscriber: sub,
	}
	subscription.active.Store(true)
	for _, opt := range opts {
		opt(subscription)
	}
	s.subs.add(subscription)
	return subscription
}

func (s *Session) removeSubscription(sub *Subscription) {
	s.subs.remove(sub)
}

// run ticks until doneChan closes. A tick that outlasts the period drops
// the ticks it overlapped.
func (s *Session) run(ticker *time.Ticker, doneChan <-chan struct{}) {
	defer s.wg.Done()
	period := s.settings.TickPeriod

	for {
		select {
		case <-doneChan:
			return
		case <-ticker.C:
			start := time.Now()
			s.tick(s.now())

			if elapsed := time.Since(start); elapsed >= period {
				missed := uint64(elapsed / period)
				s.skipped.Add(missed)
				logger.Warnf("tick took %s, dropping %d overlapping tick(s)", elapsed, missed)
				select {
				case <-ticker.C:
				default:
				}
			}
		}
	}
}

// tick runs one analysis and publishes its result, if any. It must only
// be called from one goroutine at a time.
func (s *Session) tick(now time.Time) {
	s.ticks.Add(1)
	s.sequence++

	r := analysis.Result{
		Sequence:  s.sequence,
		Timestamp: now,
		Mode:      s.analyzer.Mode(),
	}

	err := s.analyze(&r)
	switch {
	case err == nil:
		s.results.Add(1)
		s.storeResult(r)
		s.publish(r)
	case analysis.IsNoResult(err):
		s.noResult.Add(1)
		logger.Debugf("tick %d: %v", r.Sequence, err)
	default:
		s.errCount.Add(1)
		logger.Errorf("tick %d: %v", r.Sequence, err)
	}
}

func (s *Session) analyze(r *analysis.Result) error {
	ch := s.settings.Channel
	if s.ring.Written(ch) < uint64(len(s.window)) {
		return ErrWindowFilling
	}
	s.ring.ReadFresh(ch, s.window)

	if !s.gate.Open(s.window) {
		return analysis.ErrGateClosed
	}

	frame := s.engine.Transform(s.window)
	s.storeFrame(frame)

	return s.analyzer.Analyze(frame, r)
}

func (s *Session) publish(r analysis.Result) {
	for _, sub := range s.subs.snapshot() {
		sub.deliver(r)
	}
}

func (s *Session) storeFrame(frame analysis.SpectrumFrame) {
	s.snapMu.Lock()
	copy(s.snapWindow, s.window)
	copy(s.snapBins, frame.Bins)
	s.snapRes = frame.Resolution
	s.snapValid = true
	s.snapMu.Unlock()
}

func (s *Session) storeResult(r analysis.Result) {
	s.snapMu.Lock()
	s.lastResult = &r
	s.snapMu.Unlock()
}

// Stats is a point-in-time view of the session counters.
type Stats struct {
	Ticks       uint64 // ticks run
	Results     uint64 // ticks that published a result
	NoResult    uint64 // ticks that ended without a result
	Skipped     uint64 // ticks dropped because analysis overran the period
	Errors      uint64 // ticks that failed unexpectedly
	Samples     uint64 // samples written to the analyzed channel
	Subscribers int
}

// Stats returns the current counters.
func (s *Session) Stats() Stats {
	return Stats{
		Ticks:       s.ticks.Load(),
		Results:     s.results.Load(),
		NoResult:    s.noResult.Load(),
		Skipped:     s.skipped.Load(),
		Errors:      s.errCount.Load(),
		Samples:     s.ring.Written(s.settings.Channel),
		Subscribers: len(s.subs.snapshot()),
	}
}

// Snapshot holds copies of the data behind the most recent analysis.
type Snapshot struct {
	Window   []float32              // time-domain window, oldest first
	Spectrum analysis.SpectrumFrame // dB magnitudes of Window
	Result   *analysis.Result       // last published result, nil if none
}

// ErrNoSnapshot is returned by Snapshot before the first transform.
var ErrNoSnapshot = errors.New("no analysis has run yet")

// Snapshot returns copies of the latest analyzed window, its spectrum and
// the last published result, for graphing.
func (s *Session) Snapshot() (Snapshot, error) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	if !s.snapValid {
		return Snapshot{}, ErrNoSnapshot
	}

	snap := Snapshot{
		Window: append([]float32(nil), s.snapWindow...),
		Spectrum: analysis.SpectrumFrame{
			Bins:       append([]float64(nil), s.snapBins...),
			Resolution: s.snapRes,
		},
	}
	if s.lastResult != nil {
		r := *s.lastResult
		snap.Result = &r
	}
	return snap, nil
}
