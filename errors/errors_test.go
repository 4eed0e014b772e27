package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(999).String())
	assert.Equal(t, "unknown", ErrorClass(-1).String())
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class ErrorClass
	}{
		{"timeout", ErrConnectionTimeout, ErrorTransient},
		{"lost", fmt.Errorf("publish: %w", ErrConnectionLost), ErrorTransient},
		{"key server down", ErrKeyFetch, ErrorTransient},
		{"deadline", context.DeadlineExceeded, ErrorTransient},
		{"network looking message", fmt.Errorf("dial tcp: connection refused"), ErrorTransient},
		{"tag mismatch", fmt.Errorf("%w: tag", ErrAuthentication), ErrorInvalid},
		{"bad geometry", ErrGeometry, ErrorInvalid},
		{"conflict", ErrSchemaConflict, ErrorInvalid},
		{"unknown kid", ErrKeyNotFound, ErrorInvalid},
		{"parse", ErrParsingFailed, ErrorInvalid},
		{"config", ErrInvalidConfig, ErrorFatal},
		{"missing config", ErrMissingConfig, ErrorFatal},
		{"corrupted", ErrDataCorrupted, ErrorFatal},
		{"explicit beats sentinel", &ClassifiedError{Class: ErrorFatal, Err: ErrGeometry}, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, Classify(tt.err))
			assert.Equal(t, tt.class == ErrorInvalid, IsInvalid(tt.err))
			assert.Equal(t, tt.class == ErrorFatal, IsFatal(tt.err))
			assert.Equal(t, tt.class == ErrorTransient, IsTransient(tt.err))
		})
	}
}

func TestClassification_Nil(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(nil))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsTransient(errors.New("something odd")))
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{ErrEnvelope, "envelope"},
		{fmt.Errorf("x: %w", ErrKeyFetch), "key_fetch"},
		{WrapInvalid(ErrAuthentication, "Decryptor", "Message", "verify"), "authentication"},
		{fmt.Errorf("%w: %w", ErrDecryption, ErrAuthentication), "authentication"},
		{ErrKeyNotFound, "decryption"},
		{ErrSignature, "signature"},
		{ErrSchemaConflict, "schema"},
		{ErrGeometry, "geometry"},
		{ErrRecord, "record"},
		{ErrInvalidData, "invalid"},
		{ErrInvalidConfig, "fatal"},
		{errors.New("odd"), "transient"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Reason(tt.err), "%v", tt.err)
	}
}

func TestClassifiedError(t *testing.T) {
	base := errors.New("base error")

	ce := &ClassifiedError{Class: ErrorInvalid, Err: base, Message: "custom message"}
	assert.Equal(t, "custom message", ce.Error())
	assert.ErrorIs(t, ce, base)

	bare := &ClassifiedError{Class: ErrorFatal, Err: base}
	assert.Equal(t, "base error", bare.Error())
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))

	err := Wrap(ErrInvalidData, "Decoder", "Decode", "coordinate parse")
	assert.EqualError(t, err, "Decoder.Decode: coordinate parse failed: invalid data format")
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestWrapClassified(t *testing.T) {
	wrappers := map[ErrorClass]func(error, string, string, string) error{
		ErrorTransient: WrapTransient,
		ErrorInvalid:   WrapInvalid,
		ErrorFatal:     WrapFatal,
	}

	for class, wrap := range wrappers {
		t.Run(class.String(), func(t *testing.T) {
			assert.NoError(t, wrap(nil, "c", "m", "a"))

			err := wrap(ErrDataCorrupted, "Store", "Load", "catalog check")
			var ce *ClassifiedError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, class, ce.Class)
			assert.Equal(t, "Store", ce.Component)
			assert.Equal(t, "Load", ce.Operation)
			assert.EqualError(t, err, "Store.Load: catalog check failed: data corrupted")
			assert.ErrorIs(t, err, ErrDataCorrupted)
			assert.Equal(t, class, Classify(err))
		})
	}
}

func TestRetryConfig_ShouldRetry(t *testing.T) {
	rc := DefaultRetryConfig()

	assert.False(t, rc.ShouldRetry(nil, 0))
	assert.True(t, rc.ShouldRetry(ErrConnectionTimeout, 0))
	assert.True(t, rc.ShouldRetry(ErrConnectionTimeout, rc.MaxRetries-1))
	assert.False(t, rc.ShouldRetry(ErrConnectionTimeout, rc.MaxRetries))
	assert.False(t, rc.ShouldRetry(ErrDecryption, 0))
}

func TestRetryConfig_BackoffDelay(t *testing.T) {
	rc := RetryConfig{
		MaxRetries:    5,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
	}
	for attempt, delay := range want {
		assert.Equal(t, delay, rc.BackoffDelay(attempt), "attempt %d", attempt)
	}
	assert.Equal(t, time.Second, rc.BackoffDelay(10))
}
