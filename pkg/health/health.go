package health

import (
	"context"
	"time"

	"github.com/cuemby/fleetguard/pkg/metrics"
	"github.com/cuemby/fleetguard/pkg/types"
)

// statusGaugeValue maps an overall health status to the numeric scale
// NodeHealthStatus reports (0=healthy,1=warning,2=critical,3=unknown).
func statusGaugeValue(status types.HealthStatus) float64 {
	switch status {
	case types.HealthStatusHealthy:
		return 0
	case types.HealthStatusWarning:
		return 1
	case types.HealthStatusCritical:
		return 2
	default:
		return 3
	}
}

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeExec CheckType = "exec"
)

// Result represents the outcome of a single health check.
type Result struct {
	Status    types.HealthStatus
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Name identifies this check within a HealthReport.
	Name() string

	// Type returns the type of health check
	Type() CheckType
}

// Config contains common configuration for all health checks
type Config struct {
	// Interval is the time between health checks
	Interval time.Duration

	// Timeout is the maximum time to wait for a health check to complete
	Timeout time.Duration

	// Retries is the number of consecutive failures before marking as unhealthy
	Retries int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
		Retries:  3,
	}
}

// RunAll runs every checker and aggregates the results into a
// HealthReport. Precedence matches the original health probe: any
// critical check makes the whole report critical; else any warning
// makes it a warning; else any unknown makes it unknown; else healthy.
func RunAll(ctx context.Context, systemID string, checkedAt time.Time, checkers []Checker) types.HealthReport {
	report := types.HealthReport{
		SystemID:      systemID,
		Timestamp:     checkedAt,
		OverallStatus: types.HealthStatusHealthy,
	}

	sawWarning, sawUnknown := false, false
	for _, c := range checkers {
		result := c.Check(ctx)
		report.Checks = append(report.Checks, types.CheckResult{
			Name:   c.Name(),
			Status: result.Status,
			Metrics: map[string]any{
				"message":     result.Message,
				"duration_ms": result.Duration.Milliseconds(),
			},
		})
		switch result.Status {
		case types.HealthStatusCritical:
			report.OverallStatus = types.HealthStatusCritical
		case types.HealthStatusWarning:
			sawWarning = true
		case types.HealthStatusUnknown:
			sawUnknown = true
		}
	}

	if report.OverallStatus != types.HealthStatusCritical {
		switch {
		case sawWarning:
			report.OverallStatus = types.HealthStatusWarning
		case sawUnknown:
			report.OverallStatus = types.HealthStatusUnknown
		}
	}
	metrics.NodeHealthStatus.Set(statusGaugeValue(report.OverallStatus))
	return report
}

// Status tracks a single check's running state across repeated
// evaluations, for callers that want consecutive-failure debouncing
// before acting on a status change.
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastCheck            time.Time
	LastResult           Result
	Healthy              bool
	StartedAt            time.Time
}

// NewStatus creates a new Status with default values
func NewStatus(now time.Time) *Status {
	return &Status{Healthy: true, StartedAt: now}
}

// Update updates the status based on a new health check result
func (s *Status) Update(result Result, config Config) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Status == types.HealthStatusHealthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		s.Healthy = true
		return
	}

	s.ConsecutiveFailures++
	s.ConsecutiveSuccesses = 0
	if s.ConsecutiveFailures >= config.Retries {
		s.Healthy = false
	}
}
