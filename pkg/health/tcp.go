package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cuemby/fleetguard/pkg/types"
)

// TCPChecker performs TCP-based health checks
type TCPChecker struct {
	CheckName string
	Address   string
	Timeout   time.Duration
}

// NewTCPChecker creates a new TCP health checker
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{CheckName: "tcp", Address: address, Timeout: 5 * time.Second}
}

// Check performs the TCP health check
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return Result{Status: types.HealthStatusCritical, Message: fmt.Sprintf("connection failed: %v", err), CheckedAt: start, Duration: time.Since(start)}
	}
	defer conn.Close()

	return Result{Status: types.HealthStatusHealthy, Message: fmt.Sprintf("TCP connection to %s successful", t.Address), CheckedAt: start, Duration: time.Since(start)}
}

// Name identifies this check within a HealthReport.
func (t *TCPChecker) Name() string { return t.CheckName }

// Type returns the health check type
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithTimeout sets the connection timeout
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
