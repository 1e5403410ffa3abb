// SPDX-License-Identifier: MIT
package transport

import (
	"doppler/internal/analysis"
	applog "doppler/internal/log"
)

// LoggingTransport implements the Transport interface by logging each result.
type LoggingTransport struct {
	logger *applog.Logger
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{logger: applog.New("Result")}
	lt.logger.Debugf("logging transport ready")
	return lt
}

// Send logs a one-line summary of r.
func (lt *LoggingTransport) Send(r analysis.Result) error {
	lt.logger.Infof("%s", r)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.logger.Debugf("logging transport closed")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
