// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"

	applog "doppler/internal/log"
)

var logger = applog.New("Analysis")

// ErrNoResult marks a tick that produced nothing worth publishing. It is
// never fatal; repeated no-results are normal while buffers warm up.
var ErrNoResult = errors.New("no result this tick")

var (
	// ErrInsufficientPeaks: fewer local-maximum windows survived than required.
	ErrInsufficientPeaks = fmt.Errorf("%w: not enough peak windows", ErrNoResult)

	// ErrDegeneratePeak: the interpolation triple is flat or not concave.
	ErrDegeneratePeak = fmt.Errorf("%w: degenerate peak interpolation", ErrNoResult)

	// ErrFlankOutOfRange: the dominant bin has no bins on one side.
	ErrFlankOutOfRange = fmt.Errorf("%w: flank window out of range", ErrNoResult)

	// ErrWarmingUp: smoothing history is not full yet.
	ErrWarmingUp = fmt.Errorf("%w: smoothing history warming up", ErrNoResult)

	// ErrGateClosed: the time window stayed below the gate threshold.
	ErrGateClosed = fmt.Errorf("%w: signal below gate threshold", ErrNoResult)
)

// IsNoResult reports whether err is one of the non-fatal no-result errors.
func IsNoResult(err error) bool {
	return errors.Is(err, ErrNoResult)
}
