/*
Package health provides health check mechanisms for monitoring fleet nodes
and feeding the rollout controller's automatic rollback decision.

This package implements three types of health checks: HTTP, TCP, and Exec,
plus two built-in resource checkers (disk space, memory). A node's agent
runs its configured checkers on an interval and submits the aggregated
result as a types.HealthReport; the rollout controller folds a window of
recent reports into a rollback decision.

# Architecture

	┌─────────────────────────────────────────────────────────────┐
	│                   Health Check System                       │
	└─────┬──────────────────────────────────────────────────────┘
	      │
	      ▼
	┌──────────────────────────────────────────────────────────────┐
	│                     Checker Interface                        │
	│  • Check(ctx) Result                                         │
	│  • Name() string                                             │
	│  • Type() CheckType                                          │
	└────────┬─────────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┬──────────┬────────────┬────────────┐
	    ▼           ▼          ▼            ▼            ▼
	┌────────┐  ┌──────┐  ┌────────┐  ┌──────────┐  ┌────────┐
	│  HTTP  │  │ TCP  │  │  Exec  │  │DiskSpace │  │ Memory │
	│Checker │  │Checker│ │Checker │  │ Checker  │  │Checker │
	└────────┘  └──────┘  └────────┘  └──────────┘  └────────┘

## Health Check Flow

 1. Agent builds its checker set (disk, memory, optional HTTP/TCP/exec)
 2. RunAll executes every checker and folds the results by severity
 3. Agent submits the resulting types.HealthReport to the controller
 4. Controller appends it to the active rollout's report window
 5. If the critical fraction of the window exceeds the configured
    threshold and automatic rollback is enabled, the controller rolls
    the update back

# Health Check Types

## HTTP Health Checks

HTTP checks perform HTTP requests to verify a service is responding:

	Check Type: HTTP
	Configuration:
	├── URL
	├── Method: GET, POST, HEAD
	├── Headers: custom HTTP headers
	├── Expected Status: 200-399 (configurable)
	└── Timeout

## TCP Health Checks

TCP checks verify that a port is listening and accepting connections.
No data is sent; the three-way handshake succeeding is the whole check.

## Exec Health Checks

Exec checks run a command and check its exit code: 0 is healthy,
anything else is not. Useful for node-local checks that have no network
surface (package manager state, filesystem integrity, a local daemon's
own CLI).

## DiskSpaceChecker and MemoryChecker

Resource checkers read from the node's own filesystem and memory
counters rather than probing a remote endpoint. These are the default
checkers an agent runs even with no HTTP/TCP/exec checks configured,
since a node with no free disk space cannot reliably finish applying an
update regardless of what the update's own health endpoint reports.

# Core Components

## Checker Interface

	type Checker interface {
		Check(ctx context.Context) Result
		Name() string
		Type() CheckType
	}

## Result and CheckResult

A Checker returns a Result (Status, Message, CheckedAt, Duration).
RunAll folds each Result into a types.CheckResult carried on the
submitted types.HealthReport, with message and duration recorded under
CheckResult.Metrics so the wire format stays a flat status plus an
open metrics bag rather than a per-checker-type schema.

## Status Tracking

Status debounces failures so a single transient failure does not
flip a node from healthy to unhealthy on every check:

	type Status struct {
		ConsecutiveFailures  int
		ConsecutiveSuccesses int
		LastCheck            time.Time
		LastResult           Result
		Healthy              bool
		StartedAt            time.Time
	}

## Configuration

	type Config struct {
		Interval time.Duration // time between checks (default: 30s)
		Timeout  time.Duration // max check duration (default: 10s)
		Retries  int           // failures before unhealthy (default: 3)
	}

# Usage

## Building an agent's checker set

	checkers := []health.Checker{
		health.NewDiskSpaceChecker("/"),
		health.NewMemoryChecker(),
		health.NewHTTPChecker("http://localhost:9100/health"),
	}

	report := health.RunAll(ctx, systemID, time.Now(), checkers)

RunAll's overall status is the worst status among the individual
checks: critical beats warning, warning beats unknown, unknown beats
healthy.

## HTTP Health Check

	checker := health.NewHTTPChecker("http://127.0.0.1:8080/health")
	checker.WithMethod("GET").
		WithHeader("User-Agent", "fleetguard-agent/1.0").
		WithStatusRange(200, 299).
		WithTimeout(5 * time.Second)

	result := checker.Check(ctx)

## TCP Health Check

	checker := health.NewTCPChecker("127.0.0.1:6379")
	checker.WithTimeout(3 * time.Second)
	result := checker.Check(ctx)

## Exec Health Check

	checker := health.NewExecChecker("disk-integrity", []string{"fsck", "-n", "/dev/sda1"})
	result := checker.Check(ctx)

# Integration Points

## Agent Integration

cmd/fleetguard's agent subcommand builds the checker set, calls RunAll
on an interval, and POSTs the resulting report to the rollout
controller's health-report endpoint.

## Rollout Controller Integration

rollout.Controller.ReportHealth appends each incoming report to a
bounded history and re-evaluates the rollback heuristic over the most
recent window. See pkg/rollout for the threshold and cohort logic.

# Design Patterns

## Strategy Pattern

Different checkers implement the Checker interface, letting RunAll
treat HTTP, TCP, exec and resource checks uniformly:

	Checker (interface)
	├── HTTPChecker
	├── TCPChecker
	├── ExecChecker
	├── DiskSpaceChecker
	└── MemoryChecker

## Builder Pattern

HTTP and TCP checkers use fluent builders for optional configuration:

	checker := health.NewHTTPChecker(url).
		WithMethod("POST").
		WithHeader("Authorization", token).
		WithTimeout(5 * time.Second)

## Hysteresis Pattern

Status tracking requires consecutive failures before flipping to
unhealthy, while a single success flips it straight back:

	Healthy → 1 failure  → still healthy
	Healthy → 3 failures → unhealthy
	Unhealthy → 1 success → healthy

## Context-Based Cancellation

All checks respect context deadlines:

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result := checker.Check(ctx)

# Recommended Check Intervals

  - HTTP: 10-30 seconds
  - TCP: 5-15 seconds
  - Exec: 30-60 seconds
  - Resource checks (disk, memory): every agent report cycle

# Security Considerations

## HTTP Health Checks

  - Health endpoints should not require authentication on the loopback
    interface the agent probes
  - Don't expose sensitive information in health responses

## Exec Health Checks

  - Never build the exec checker's command from unvalidated input
  - Limit command execution time via the checker's timeout

# See Also

  - pkg/rollout - folds submitted health reports into a rollback decision
  - cmd/fleetguard - agent subcommand that runs checkers and submits reports
  - pkg/types - HealthReport and CheckResult wire shapes
*/
package health
