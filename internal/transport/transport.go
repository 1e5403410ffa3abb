// SPDX-License-Identifier: MIT

// Package transport carries published analysis results out of the process.
package transport

import (
	"doppler/internal/analysis"
	applog "doppler/internal/log"
	"doppler/internal/session"
)

// Transport defines a sink for analysis results.
// Implementations should be thread-safe and must not block the caller for
// longer than a local write.
type Transport interface {
	Send(r analysis.Result) error
	Close() error
}

// Subscriber adapts t to a session subscriber. Send errors are logged and
// otherwise ignored.
func Subscriber(t Transport) session.Subscriber {
	logger := applog.New("Transport")
	return session.SubscriberFunc(func(r analysis.Result) {
		if err := t.Send(r); err != nil {
			logger.Warnf("%T: result %d not sent: %v", t, r.Sequence, err)
		}
	})
}
