package health

import (
	"context"
	"testing"

	"github.com/cuemby/fleetguard/pkg/types"
)

func TestExecChecker_Success(t *testing.T) {
	checker := NewExecChecker("true_check", []string{"true"})
	result := checker.Check(context.Background())

	if result.Status != types.HealthStatusHealthy {
		t.Errorf("expected healthy, got %s: %s", result.Status, result.Message)
	}
}

func TestExecChecker_Failure(t *testing.T) {
	checker := NewExecChecker("false_check", []string{"false"})
	result := checker.Check(context.Background())

	if result.Status != types.HealthStatusCritical {
		t.Errorf("expected critical, got %s: %s", result.Status, result.Message)
	}
}

func TestExecChecker_NoCommand(t *testing.T) {
	checker := NewExecChecker("empty", nil)
	result := checker.Check(context.Background())

	if result.Status != types.HealthStatusUnknown {
		t.Errorf("expected unknown, got %s: %s", result.Status, result.Message)
	}
}

func TestExecChecker_Name(t *testing.T) {
	checker := NewExecChecker("custom_name", []string{"true"})
	if checker.Name() != "custom_name" {
		t.Errorf("expected name 'custom_name', got %s", checker.Name())
	}
}

func TestDiskSpaceChecker_ReportsUsage(t *testing.T) {
	checker := NewDiskSpaceChecker("/")
	result := checker.Check(context.Background())

	switch result.Status {
	case types.HealthStatusHealthy, types.HealthStatusWarning, types.HealthStatusCritical, types.HealthStatusUnknown:
	default:
		t.Errorf("unexpected status %s", result.Status)
	}
}

func TestMemoryChecker_ReportsUsage(t *testing.T) {
	checker := NewMemoryChecker()
	result := checker.Check(context.Background())

	switch result.Status {
	case types.HealthStatusHealthy, types.HealthStatusWarning, types.HealthStatusCritical, types.HealthStatusUnknown:
	default:
		t.Errorf("unexpected status %s", result.Status)
	}
}

func TestStatusForUsage_Thresholds(t *testing.T) {
	cases := []struct {
		pct  float64
		want types.HealthStatus
	}{
		{10, types.HealthStatusHealthy},
		{79.9, types.HealthStatusHealthy},
		{80, types.HealthStatusWarning},
		{94.9, types.HealthStatusWarning},
		{95, types.HealthStatusCritical},
		{100, types.HealthStatusCritical},
	}
	for _, c := range cases {
		if got := statusForUsage(c.pct); got != c.want {
			t.Errorf("statusForUsage(%v) = %s, want %s", c.pct, got, c.want)
		}
	}
}
