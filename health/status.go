package health

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Pre-compiled regexes for error message sanitization
var (
	httpURLRegex    = regexp.MustCompile(`https?://[^\s]+`)
	natsURLRegex    = regexp.MustCompile(`nats://[^\s]+`)
	unixPathRegex   = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|key_verifier|secret|challenge)[^a-zA-Z]*[:=][^,\s}&]+`)
)

// Status represents the health state of an ingestion source
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"` // true if status is "healthy"
	Status      string    `json:"status"`  // "healthy", "unhealthy", "degraded"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics contains per-run counters
type Metrics struct {
	Duration         time.Duration `json:"duration"`
	ErrorCount       int           `json:"error_count"`
	RecordsAttempted int           `json:"records_attempted"`
	RecordsKept      int           `json:"records_kept"`
}

// Level returns 2 for healthy, 1 for degraded and 0 for unhealthy. It feeds the
// health gauge.
func (s Status) Level() int {
	switch s.Status {
	case statusHealthy:
		return 2
	case statusDegraded:
		return 1
	default:
		return 0
	}
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == statusHealthy
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == statusDegraded
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == statusUnhealthy
}

// WithMetrics returns a copy of the status with metrics attached
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// sanitizeErrorMessage strips URLs, paths, addresses and credentials so that key
// server locations and challenges never end up in health output.
func sanitizeErrorMessage(err string) string {
	if err == "" {
		return ""
	}

	sanitized := credentialRegex.ReplaceAllString(err, "[REDACTED]")
	sanitized = httpURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = natsURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	return strings.TrimSpace(sanitized)
}

// FromRun classifies one ingestion run.
func FromRun(component string, attempted, kept int, valid bool, lastError string) Status {
	var s Status
	switch {
	case !valid:
		s = NewUnhealthy(component, sanitizeErrorMessage(lastError))
	case kept < attempted:
		msg := fmt.Sprintf("%d of %d records dropped", attempted-kept, attempted)
		if lastError != "" {
			msg += ": " + sanitizeErrorMessage(lastError)
		}
		s = NewDegraded(component, msg)
	default:
		s = NewHealthy(component, fmt.Sprintf("%d records ingested", kept))
	}
	errorCount := attempted - kept
	if !valid {
		errorCount++
	}
	return s.WithMetrics(&Metrics{
		ErrorCount:       errorCount,
		RecordsAttempted: attempted,
		RecordsKept:      kept,
	})
}
