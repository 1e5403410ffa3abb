// SPDX-License-Identifier: MIT
package session

import (
	"errors"
	"fmt"

	"doppler/internal/analysis"
	applog "doppler/internal/log"
)

var logger = applog.New("Session")

var (
	// ErrSourceUnavailable: the session has no usable source. Start wraps
	// it together with the cause and does not begin ticking.
	ErrSourceUnavailable = errors.New("audio source unavailable")

	// ErrSessionClosed: Start was called after Stop.
	ErrSessionClosed = errors.New("session closed")

	// ErrAlreadyRunning: Start was called twice.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrWindowFilling: the ring buffer does not hold a full window yet.
	ErrWindowFilling = fmt.Errorf("%w: analysis window still filling", analysis.ErrNoResult)
)
