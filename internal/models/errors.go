package models

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed input synchronously; it is the only
// error class surfaced directly to the caller. Everything else is absorbed
// into the record state machines and observed by polling status.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ProviderError reports a rejected send attempt from the messaging channel.
// It is retried per policy until the attempt budget is exhausted.
type ProviderError struct {
	Code int
	Msg  string
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("provider: %s (code %d)", e.Msg, e.Code)
	}
	return "provider: " + e.Msg
}

var ErrProviderNotReady = errors.New("provider not ready")
