// SPDX-License-Identifier: MIT
package session

import (
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the queue length used when NewQueueDispatcher gets a
// non-positive size.
const DefaultQueueSize = 16

// QueueDispatcher runs deliveries in order on one goroutine. A full queue
// drops the delivery so the tick loop never waits on a slow subscriber.
type QueueDispatcher struct {
	queue    chan func()
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	dropped atomic.Uint64
}

// NewQueueDispatcher starts the delivery goroutine.
func NewQueueDispatcher(size int) *QueueDispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	d := &QueueDispatcher{
		queue:    make(chan func(), size),
		doneChan: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()
	return d
}

func (d *QueueDispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case fn := <-d.queue:
			fn()
		case <-d.doneChan:
			return
		}
	}
}

// Dispatch implements Dispatcher.
func (d *QueueDispatcher) Dispatch(fn func()) bool {
	select {
	case <-d.doneChan:
		return false
	default:
	}

	select {
	case d.queue <- fn:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

// Dropped returns how many deliveries were refused because the queue was
// full.
func (d *QueueDispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close stops the goroutine after the delivery in progress. Queued
// deliveries are discarded.
func (d *QueueDispatcher) Close() error {
	d.stopOnce.Do(func() {
		close(d.doneChan)
	})
	d.wg.Wait()
	return nil
}
