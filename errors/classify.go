package errors

import (
	"context"
	"errors"
	"strings"
)

// ClassifiedError attaches a class and its origin to an error.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message == "" {
		return ce.Err.Error()
	}
	return ce.Message
}

func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// transientHints mark unclassified errors from other libraries as retryable.
var transientHints = []string{"timeout", "connection", "network", "temporary", "unavailable"}

// explicitClass returns the class of the outermost ClassifiedError in err's chain.
func explicitClass(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	return 0, false
}

// IsTransient reports whether err is worth retrying. Besides explicit
// classification and the transport sentinels, context errors and messages that
// look like network trouble count as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorTransient
	}
	if s, ok := lookup(err); ok && s.class == ErrorTransient {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range transientHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

func hasClass(err error, want ErrorClass) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == want
	}
	s, ok := lookup(err)
	return ok && s.class == want
}

// IsFatal reports whether err should stop processing.
func IsFatal(err error) bool { return hasClass(err, ErrorFatal) }

// IsInvalid reports whether err was caused by bad input.
func IsInvalid(err error) bool { return hasClass(err, ErrorInvalid) }

// Classify returns the class of err. Anything not recognised as invalid or fatal
// is treated as transient, including nil.
func Classify(err error) ErrorClass {
	switch {
	case IsInvalid(err):
		return ErrorInvalid
	case IsFatal(err):
		return ErrorFatal
	default:
		return ErrorTransient
	}
}

// Reason returns a short stable label for err, used as a metric label and in
// run reports.
func Reason(err error) string {
	if err == nil {
		return "none"
	}
	if s, ok := lookup(err); ok && s.reason != "" {
		return s.reason
	}
	return Classify(err).String()
}
