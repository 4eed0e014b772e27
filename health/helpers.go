package health

import (
	"fmt"
	"strings"
	"time"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == statusHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy reports a source whose last run kept every record.
func NewHealthy(component, message string) Status {
	return newStatus(component, statusHealthy, message)
}

// NewUnhealthy reports a source whose last envelope was rejected.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, statusUnhealthy, message)
}

// NewDegraded reports a source whose last run dropped records.
func NewDegraded(component, message string) Status {
	return newStatus(component, statusDegraded, message)
}

// Aggregate rolls source statuses up into one. The result takes the worst level
// among subStatuses and names the sources at that level.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "No ingestion runs yet")
	}

	worst := subStatuses[0].Level()
	for _, sub := range subStatuses[1:] {
		worst = min(worst, sub.Level())
	}

	var names []string
	for _, sub := range subStatuses {
		if sub.Level() == worst {
			names = append(names, sub.Component)
		}
	}

	var status Status
	switch worst {
	case 2:
		status = NewHealthy(component, fmt.Sprintf("%d sources healthy", len(subStatuses)))
	case 1:
		status = NewDegraded(component, fmt.Sprintf("Degraded sources: %s", strings.Join(names, ", ")))
	default:
		status = NewUnhealthy(component, fmt.Sprintf("Unhealthy sources: %s", strings.Join(names, ", ")))
	}
	status.SubStatuses = append([]Status(nil), subStatuses...)
	return status
}
