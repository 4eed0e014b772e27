package errors

import (
	"errors"
)

// ErrorClass tells callers how to react to a failure.
type ErrorClass int

const (
	// ErrorTransient failures may succeed when retried.
	ErrorTransient ErrorClass = iota
	// ErrorInvalid failures come from bad input and will fail again.
	ErrorInvalid
	// ErrorFatal failures stop the component.
	ErrorFatal
)

var classNames = [...]string{"transient", "invalid", "fatal"}

func (ec ErrorClass) String() string {
	if ec < 0 || int(ec) >= len(classNames) {
		return "unknown"
	}
	return classNames[ec]
}

// Transport.
var (
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrServerException   = errors.New("server exception")
)

// Input.
var (
	ErrInvalidData   = errors.New("invalid data format")
	ErrDataCorrupted = errors.New("data corrupted")
	ErrParsingFailed = errors.New("parsing failed")
)

// Ingestion failure points. Each one has a Reason label.
var (
	ErrEnvelope       = errors.New("invalid envelope")
	ErrRecord         = errors.New("invalid record")
	ErrSchemaConflict = errors.New("field type conflict")
	ErrGeometry       = errors.New("invalid geometry")
	ErrKeyFetch       = errors.New("key fetch failed")
	ErrDecryption     = errors.New("decryption failed")
	ErrAuthentication = errors.New("authentication tag mismatch")
	ErrSignature      = errors.New("signature verification failed")
	ErrKeyNotFound    = errors.New("key not found")
)

// Configuration and control.
var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingConfig      = errors.New("missing required configuration")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// sentinel describes how a sentinel error is classified and labelled. An empty
// reason falls back to the class name.
type sentinel struct {
	err    error
	class  ErrorClass
	reason string
}

// sentinels is checked in order; the first match wins. More specific errors
// come before the errors they are usually wrapped with, so a tag mismatch
// wrapped in ErrDecryption still reports "authentication".
var sentinels = []sentinel{
	{ErrEnvelope, ErrorInvalid, "envelope"},
	{ErrKeyFetch, ErrorTransient, "key_fetch"},
	{ErrAuthentication, ErrorInvalid, "authentication"},
	{ErrKeyNotFound, ErrorInvalid, "decryption"},
	{ErrDecryption, ErrorInvalid, "decryption"},
	{ErrSignature, ErrorInvalid, "signature"},
	{ErrSchemaConflict, ErrorInvalid, "schema"},
	{ErrGeometry, ErrorInvalid, "geometry"},
	{ErrRecord, ErrorInvalid, "record"},
	{ErrInvalidData, ErrorInvalid, ""},
	{ErrParsingFailed, ErrorInvalid, ""},
	{ErrInvalidConfig, ErrorFatal, ""},
	{ErrMissingConfig, ErrorFatal, ""},
	{ErrDataCorrupted, ErrorFatal, ""},
	{ErrConnectionLost, ErrorTransient, ""},
	{ErrConnectionTimeout, ErrorTransient, ""},
	{ErrServerException, ErrorTransient, ""},
}

func lookup(err error) (sentinel, bool) {
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s, true
		}
	}
	return sentinel{}, false
}
