// File: internal/booking/errors.go
package booking

import (
	"errors"
	"fmt"

	"github.com/wabisuke-dev/thsrbot/internal/captcha"
)

// Kind is a string type used for structured classification of workflow
// failures. Using a custom type ensures only the predefined constants reach
// the retry logic.
type Kind string

const (
	// KindTransport covers network failures and timeouts; retryable.
	KindTransport Kind = "TRANSPORT"
	// KindSession marks a start-session page missing its cookie or captcha
	// reference; retried once, then fatal.
	KindSession Kind = "SESSION"
	// KindCaptchaMismatch means the server rejected the security code;
	// retryable after a captcha refresh.
	KindCaptchaMismatch Kind = "CAPTCHA_MISMATCH"
	// KindValidation is any other remote-reported form error; retryable a
	// bounded number of times.
	KindValidation Kind = "VALIDATION"
	// KindUnavailable is sold out, booking window closed, or an empty train
	// list; terminal.
	KindUnavailable Kind = "UNAVAILABLE"
	// KindParse means an expected markup anchor is missing; terminal, the
	// remote contract changed.
	KindParse Kind = "PARSE"
	// KindRecognition is a captcha-backend failure; retryable.
	KindRecognition Kind = "RECOGNITION"
)

// Error is a workflow failure tagged with its Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a kinded error.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds a kinded error around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from an error chain. Recognition-backend errors
// are mapped to KindRecognition; anything unclassified is treated as a
// transport failure, the safest retryable default.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	var re *captcha.RecognitionError
	if errors.As(err, &re) {
		return KindRecognition
	}
	return KindTransport
}

// Retryable reports whether a failure kind may be retried at all.
func Retryable(kind Kind) bool {
	switch kind {
	case KindTransport, KindCaptchaMismatch, KindValidation, KindRecognition:
		return true
	default:
		return false
	}
}
