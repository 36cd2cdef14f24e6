// Package errors holds the sentinel errors and validation error types
// shared by the runtime.
package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrFilterRequired    = sterrors.New("stanzaflow: a filter chain is required")
	ErrLoggerRequired    = sterrors.New("stanzaflow: a logger is required")
	ErrConfigRequired    = sterrors.New("stanzaflow: a config is required")
	ErrTransportClosed   = sterrors.New("stanzaflow: transport stream closed")
	ErrServiceNotRunning = sterrors.New("stanzaflow: service is not running")
)

// ConfigValidationError reports one invalid configuration field.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("stanzaflow: invalid config field %s: %s", e.Field, e.Reason)
}
