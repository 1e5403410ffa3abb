// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"doppler/internal/analysis"
	"doppler/internal/session"
	"doppler/internal/transport"
)

// SnapshotSource supplies the spectrum streamed by Publisher.
// *session.Session satisfies it.
type SnapshotSource interface {
	Snapshot() (session.Snapshot, error)
}

// Publisher packs results into the binary format described in packet.go
// and sends them with a Sender. It can also stream the latest spectrum at
// a fixed interval on its own goroutine, managed by StartSpectrum and Stop.
type Publisher struct {
	sender *Sender

	// Spectrum stream.
	snapshots SnapshotSource
	interval  time.Duration
	ticker    *time.Ticker
	doneChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	mu        sync.Mutex // Protects ticker and doneChan during Start/Stop.

	// Packet assembly, shared by Send and the stream goroutine.
	packetMu     sync.Mutex
	sequenceNum  uint32
	packetBuffer *bytes.Buffer
	f32Buffer    []float32
	now          func() time.Time
}

// NewPublisher creates a Publisher that owns sender.
func NewPublisher(sender *Sender) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("UDP sender cannot be nil")
	}
	return &Publisher{
		sender:       sender,
		packetBuffer: new(bytes.Buffer),
		now:          time.Now,
	}, nil
}

// Send encodes r and transmits it immediately.
func (p *Publisher) Send(r analysis.Result) error {
	p.packetMu.Lock()
	defer p.packetMu.Unlock()

	p.packetBuffer.Reset()
	if err := encodeResult(p.packetBuffer, p.sequenceNum+1, r); err != nil {
		return fmt.Errorf("failed to pack result %d: %w", r.Sequence, err)
	}
	p.sequenceNum++
	return p.sender.Send(p.packetBuffer.Bytes())
}

// StartSpectrum streams src's latest spectrum every interval. If the
// interval is invalid (<= 0), it defaults to 100ms.
func (p *Publisher) StartSpectrum(src SnapshotSource, interval time.Duration) error {
	if src == nil {
		return errors.New("spectrum source cannot be nil")
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
		logger.Warnf("invalid spectrum interval, defaulting to %s", interval)
	}

	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		return errors.New("spectrum stream already running")
	}

	p.snapshots = src
	p.interval = interval
	p.ticker = time.NewTicker(interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Infof("spectrum stream started (interval: %s)", interval)
		for {
			select {
			case <-ticker.C:
				p.sendSpectrum()
			case <-doneChan:
				return
			}
		}
	}()
	return nil
}

// Stop ends the spectrum stream and waits for its goroutine. It is safe to
// call when no stream is running.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	logger.Debugf("spectrum stream stopped")
}

func (p *Publisher) sendSpectrum() {
	snap, err := p.snapshots.Snapshot()
	if err != nil {
		// Nothing analyzed yet.
		return
	}

	p.packetMu.Lock()
	defer p.packetMu.Unlock()

	p.packetBuffer.Reset()
	p.f32Buffer, err = encodeSpectrum(p.packetBuffer, p.sequenceNum+1, p.now(), snap.Spectrum, p.f32Buffer)
	if err != nil {
		logger.Errorf("error packing spectrum: %v", err)
		return
	}
	p.sequenceNum++

	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		logger.Warnf("spectrum packet %d: %v", p.sequenceNum, err)
		return
	}
	logger.Debugf("sent spectrum packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
}

// Close stops the spectrum stream and closes the sender.
func (p *Publisher) Close() error {
	p.Stop()
	return p.sender.Close()
}

// Ensure Publisher satisfies the transport interface at compile time.
var _ transport.Transport = (*Publisher)(nil)
