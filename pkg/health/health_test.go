package health

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/fleetguard/pkg/types"
)

type fakeChecker struct {
	name   string
	status types.HealthStatus
}

func (f fakeChecker) Check(ctx context.Context) Result {
	return Result{Status: f.status, Message: string(f.status), CheckedAt: time.Now()}
}
func (f fakeChecker) Name() string    { return f.name }
func (f fakeChecker) Type() CheckType { return CheckTypeExec }

func TestRunAll_CriticalTakesPrecedence(t *testing.T) {
	checkers := []Checker{
		fakeChecker{"a", types.HealthStatusHealthy},
		fakeChecker{"b", types.HealthStatusWarning},
		fakeChecker{"c", types.HealthStatusCritical},
		fakeChecker{"d", types.HealthStatusUnknown},
	}
	report := RunAll(context.Background(), "sys1", time.Now(), checkers)
	if report.OverallStatus != types.HealthStatusCritical {
		t.Errorf("expected critical, got %s", report.OverallStatus)
	}
	if len(report.Checks) != 4 {
		t.Errorf("expected 4 checks, got %d", len(report.Checks))
	}
}

func TestRunAll_WarningWithoutCritical(t *testing.T) {
	checkers := []Checker{
		fakeChecker{"a", types.HealthStatusHealthy},
		fakeChecker{"b", types.HealthStatusWarning},
		fakeChecker{"d", types.HealthStatusUnknown},
	}
	report := RunAll(context.Background(), "sys1", time.Now(), checkers)
	if report.OverallStatus != types.HealthStatusWarning {
		t.Errorf("expected warning, got %s", report.OverallStatus)
	}
}

func TestRunAll_UnknownWithoutCriticalOrWarning(t *testing.T) {
	checkers := []Checker{
		fakeChecker{"a", types.HealthStatusHealthy},
		fakeChecker{"d", types.HealthStatusUnknown},
	}
	report := RunAll(context.Background(), "sys1", time.Now(), checkers)
	if report.OverallStatus != types.HealthStatusUnknown {
		t.Errorf("expected unknown, got %s", report.OverallStatus)
	}
}

func TestRunAll_AllHealthy(t *testing.T) {
	checkers := []Checker{
		fakeChecker{"a", types.HealthStatusHealthy},
		fakeChecker{"b", types.HealthStatusHealthy},
	}
	report := RunAll(context.Background(), "sys1", time.Now(), checkers)
	if report.OverallStatus != types.HealthStatusHealthy {
		t.Errorf("expected healthy, got %s", report.OverallStatus)
	}
}

func TestStatus_UpdateDebouncesFailures(t *testing.T) {
	start := time.Now()
	status := NewStatus(start)
	config := Config{Retries: 3}

	status.Update(Result{Status: types.HealthStatusCritical, CheckedAt: start}, config)
	if !status.Healthy {
		t.Error("expected still healthy before reaching retry threshold")
	}

	status.Update(Result{Status: types.HealthStatusCritical, CheckedAt: start}, config)
	status.Update(Result{Status: types.HealthStatusCritical, CheckedAt: start}, config)
	if status.Healthy {
		t.Error("expected unhealthy after reaching retry threshold")
	}
	if status.ConsecutiveFailures != 3 {
		t.Errorf("expected 3 consecutive failures, got %d", status.ConsecutiveFailures)
	}

	status.Update(Result{Status: types.HealthStatusHealthy, CheckedAt: start}, config)
	if !status.Healthy {
		t.Error("expected healthy again after a successful check")
	}
	if status.ConsecutiveFailures != 0 {
		t.Errorf("expected consecutive failures reset to 0, got %d", status.ConsecutiveFailures)
	}
}
