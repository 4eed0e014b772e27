package ingest

import (
	"time"

	"github.com/c360/stanagfeed/health"
)

// RecordError describes one skipped record.
type RecordError struct {
	Index   int    `json:"index"`
	KeyID   string `json:"kid,omitempty"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
	Err     error  `json:"-"`
}

// Report summarizes one Parse call.
type Report struct {
	RunID         string        `json:"run_id"`
	Started       time.Time     `json:"started"`
	Duration      time.Duration `json:"duration"`
	Valid         bool          `json:"valid"`
	EnvelopeError string        `json:"envelope_error,omitempty"`
	Attempted     int           `json:"attempted"`
	Processed     int           `json:"processed"`
	Errors        []RecordError `json:"errors,omitempty"`
	Published     int           `json:"published,omitempty"`
	PublishError  string        `json:"publish_error,omitempty"`
	Health        health.Status `json:"health"`
}

// Skipped returns the number of records dropped.
func (r *Report) Skipped() int {
	return r.Attempted - r.Processed
}

// LastError returns the most recent failure message, or "".
func (r *Report) LastError() string {
	if r.EnvelopeError != "" {
		return r.EnvelopeError
	}
	if n := len(r.Errors); n > 0 {
		return r.Errors[n-1].Message
	}
	return ""
}
