package health

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/fleetguard/pkg/types"
)

// ExecChecker performs exec-based health checks by running a command on
// the local host and treating a zero exit code as healthy.
type ExecChecker struct {
	CheckName string
	Command   []string
	Timeout   time.Duration
}

// NewExecChecker creates a new exec health checker
func NewExecChecker(name string, command []string) *ExecChecker {
	return &ExecChecker{CheckName: name, Command: command, Timeout: 10 * time.Second}
}

// Check performs the exec health check
func (e *ExecChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if len(e.Command) == 0 {
		return Result{Status: types.HealthStatusUnknown, Message: "no command specified", CheckedAt: start, Duration: time.Since(start)}
	}

	execCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, e.Command[0], e.Command[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("command %v failed: %v", e.Command, err)
		if stderr.Len() > 0 {
			message = fmt.Sprintf("%s (stderr: %s)", message, strings.TrimSpace(stderr.String()))
		}
		return Result{Status: types.HealthStatusCritical, Message: message, CheckedAt: start, Duration: time.Since(start)}
	}

	return Result{Status: types.HealthStatusHealthy, Message: strings.TrimSpace(stdout.String()), CheckedAt: start, Duration: time.Since(start)}
}

// Name identifies this check within a HealthReport.
func (e *ExecChecker) Name() string { return e.CheckName }

// Type returns the health check type
func (e *ExecChecker) Type() CheckType {
	return CheckTypeExec
}

// WithTimeout sets the execution timeout
func (e *ExecChecker) WithTimeout(timeout time.Duration) *ExecChecker {
	e.Timeout = timeout
	return e
}

// thresholds below which usage is healthy, and below which it is a
// warning rather than critical — matches the original health probe's
// disk and memory bands.
const (
	warningUsagePct  = 80
	criticalUsagePct = 95
)

func statusForUsage(pct float64) types.HealthStatus {
	switch {
	case pct >= criticalUsagePct:
		return types.HealthStatusCritical
	case pct >= warningUsagePct:
		return types.HealthStatusWarning
	default:
		return types.HealthStatusHealthy
	}
}

// DiskSpaceChecker reports the used-space percentage of Path via `df`.
type DiskSpaceChecker struct {
	Path string
}

func NewDiskSpaceChecker(path string) *DiskSpaceChecker { return &DiskSpaceChecker{Path: path} }

func (d *DiskSpaceChecker) Name() string     { return "disk_space" }
func (d *DiskSpaceChecker) Type() CheckType  { return CheckTypeExec }
func (d *DiskSpaceChecker) Check(ctx context.Context) Result {
	start := time.Now()
	path := d.Path
	if path == "" {
		path = "/"
	}

	out, err := exec.CommandContext(ctx, "df", path).Output()
	if err != nil {
		return Result{Status: types.HealthStatusUnknown, Message: fmt.Sprintf("df failed: %v", err), CheckedAt: start, Duration: time.Since(start)}
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return Result{Status: types.HealthStatusUnknown, Message: "unexpected df output", CheckedAt: start, Duration: time.Since(start)}
	}
	fields := strings.Fields(lines[1])
	if len(fields) < 5 {
		return Result{Status: types.HealthStatusUnknown, Message: "unexpected df output", CheckedAt: start, Duration: time.Since(start)}
	}
	usedPct, err := strconv.Atoi(strings.TrimSuffix(fields[4], "%"))
	if err != nil {
		return Result{Status: types.HealthStatusUnknown, Message: fmt.Sprintf("parse used%%: %v", err), CheckedAt: start, Duration: time.Since(start)}
	}

	return Result{
		Status:    statusForUsage(float64(usedPct)),
		Message:   fmt.Sprintf("%s used %d%%", path, usedPct),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// MemoryChecker reports used-memory percentage from /proc/meminfo.
type MemoryChecker struct{}

func NewMemoryChecker() *MemoryChecker { return &MemoryChecker{} }

func (m *MemoryChecker) Name() string    { return "memory_usage" }
func (m *MemoryChecker) Type() CheckType { return CheckTypeExec }
func (m *MemoryChecker) Check(ctx context.Context) Result {
	start := time.Now()

	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return Result{Status: types.HealthStatusUnknown, Message: fmt.Sprintf("open /proc/meminfo: %v", err), CheckedAt: start, Duration: time.Since(start)}
	}
	defer f.Close()

	var total, available int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			total = parseMeminfoKB(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			available = parseMeminfoKB(line)
		}
	}

	if total == 0 {
		return Result{Status: types.HealthStatusUnknown, Message: "could not determine total memory", CheckedAt: start, Duration: time.Since(start)}
	}

	usedPct := float64(total-available) / float64(total) * 100
	return Result{
		Status:    statusForUsage(usedPct),
		Message:   fmt.Sprintf("memory used %.2f%%", usedPct),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

func parseMeminfoKB(line string) int64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, _ := strconv.ParseInt(fields[1], 10, 64)
	return v
}
