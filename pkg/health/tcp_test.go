package health

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cuemby/fleetguard/pkg/types"
)

func TestTCPChecker_HealthyEndpoint(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	checker := NewTCPChecker(listener.Addr().String())
	result := checker.Check(context.Background())

	if result.Status != types.HealthStatusHealthy {
		t.Errorf("expected healthy, got %s: %s", result.Status, result.Message)
	}
}

func TestTCPChecker_UnreachableEndpoint(t *testing.T) {
	checker := NewTCPChecker("127.0.0.1:1").WithTimeout(200 * time.Millisecond)
	result := checker.Check(context.Background())

	if result.Status != types.HealthStatusCritical {
		t.Errorf("expected critical, got %s: %s", result.Status, result.Message)
	}
}

func TestTCPChecker_Name(t *testing.T) {
	checker := NewTCPChecker("127.0.0.1:9999")
	if checker.Name() != "tcp" {
		t.Errorf("expected default name 'tcp', got %s", checker.Name())
	}
}

func TestTCPChecker_Type(t *testing.T) {
	checker := NewTCPChecker("127.0.0.1:9999")
	if checker.Type() != CheckTypeTCP {
		t.Errorf("expected type %s, got %s", CheckTypeTCP, checker.Type())
	}
}
