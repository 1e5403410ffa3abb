// SPDX-License-Identifier: MIT
package audio

import (
	"sync"
	"time"
)

// pacer drives a callback at a fixed interval on its own goroutine until
// stopped or until the callback returns false. It backs the sources that
// have no hardware clock of their own.
type pacer struct {
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
}

func newPacer(frames int, sampleRate float64) *pacer {
	interval := time.Duration(float64(frames) / sampleRate * float64(time.Second))
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &pacer{interval: interval}
}

func (p *pacer) start(step func() bool) error {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				if !step() {
					return
				}
			case <-doneChan:
				return
			}
		}
	}()
	return nil
}

func (p *pacer) stop() {
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
}
