// SPDX-License-Identifier: MIT
package session

import (
	"slices"
	"sync"
	"sync/atomic"

	"doppler/internal/analysis"
)

// Subscriber receives every result a session publishes.
type Subscriber interface {
	OnResult(r analysis.Result)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(r analysis.Result)

// OnResult implements Subscriber.
func (f SubscriberFunc) OnResult(r analysis.Result) { f(r) }

// Dispatcher moves a delivery off the tick goroutine. Dispatch returns false
// when the delivery was dropped.
type Dispatcher interface {
	Dispatch(fn func()) bool
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*Subscription)

// WithDispatcher delivers results through d instead of calling the
// subscriber on the tick goroutine.
func WithDispatcher(d Dispatcher) SubscribeOption {
	return func(s *Subscription) {
		s.dispatcher = d
	}
}

// Subscription is the handle returned by Session.Subscribe.
type Subscription struct {
	session    *Session
	subscriber Subscriber
	dispatcher Dispatcher

	mu     sync.Mutex // held for the length of each delivery
	active atomic.Bool

	dropped atomic.Uint64
}

// Unsubscribe stops delivery. Once it returns the subscriber is never
// called again; a delivery already running is waited for. From inside the
// subscription's own OnResult use Cancel instead.
func (s *Subscription) Unsubscribe() {
	s.Cancel()

	// Wait out a delivery in progress.
	s.mu.Lock()
	defer s.mu.Unlock()
}

// Cancel stops delivery without waiting for a delivery in progress. It is
// safe to call from the subscriber's own OnResult, which then finishes
// normally and is the last call the subscriber receives.
func (s *Subscription) Cancel() {
	if s.active.Swap(false) {
		s.session.removeSubscription(s)
	}
}

// Active reports whether the subscription still receives results.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

// Dropped returns how many results the dispatcher refused.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscription) deliver(r analysis.Result) {
	if s.dispatcher == nil {
		s.invoke(r)
		return
	}
	if !s.dispatcher.Dispatch(func() { s.invoke(r) }) {
		s.dropped.Add(1)
	}
}

func (s *Subscription) invoke(r analysis.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active.Load() {
		return
	}
	s.subscriber.OnResult(r)
}

// subscriberList is copy-on-write so publishing never takes a lock that a
// subscriber callback could also need.
type subscriberList struct {
	mu   sync.Mutex
	list atomic.Pointer[[]*Subscription]
}

func (l *subscriberList) add(s *Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var next []*Subscription
	if cur := l.list.Load(); cur != nil {
		next = slices.Clone(*cur)
	}
	next = append(next, s)
	l.list.Store(&next)
}

func (l *subscriberList) remove(s *Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.list.Load()
	if cur == nil {
		return
	}
	next := slices.DeleteFunc(slices.Clone(*cur), func(x *Subscription) bool { return x == s })
	l.list.Store(&next)
}

func (l *subscriberList) snapshot() []*Subscription {
	if cur := l.list.Load(); cur != nil {
		return *cur
	}
	return nil
}
