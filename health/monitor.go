package health

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

// Monitor remembers the most recent run status of every ingestion source.
// It is safe for concurrent use.
type Monitor struct {
	mu      sync.RWMutex
	latest  map[string]Status
	updates int
}

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{latest: map[string]Status{}}
}

// Update stores status as the latest for source, stamping the source name and,
// if missing, the current time.
func (m *Monitor) Update(source string, status Status) {
	status.Component = source
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.latest[source] = status
	m.updates++
	m.mu.Unlock()
}

// Get returns the latest status for source.
func (m *Monitor) Get(source string) (Status, bool) {
	m.mu.RLock()
	status, ok := m.latest[source]
	m.mu.RUnlock()
	return status, ok
}

// Updates counts every status recorded since the monitor was created.
func (m *Monitor) Updates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updates
}

func (m *Monitor) sources() []Status {
	m.mu.RLock()
	out := make([]Status, 0, len(m.latest))
	for _, status := range m.latest {
		out = append(out, status)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Status) int {
		return strings.Compare(a.Component, b.Component)
	})
	return out
}

// AggregateHealth rolls every source up under systemName. Sub-statuses are
// ordered by source name.
func (m *Monitor) AggregateHealth(systemName string) Status {
	return Aggregate(systemName, m.sources())
}

// Handler serves the aggregate status as JSON, answering 503 while any source
// is unhealthy.
func (m *Monitor) Handler(systemName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := m.AggregateHealth(systemName)
		code := http.StatusOK
		if status.IsUnhealthy() {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
}
