/*
Package events provides an in-memory event broker for fleetguard's live
observers.

The events package implements a lightweight event bus for broadcasting
fleet-wide notifications — rollout progress, health reports, certificate
issuance — to interested subscribers. It supports asynchronous event
delivery with buffered channels, so a slow dashboard or alerting sidecar
can never block the rollout controller it's watching. The transparency
log remains the durable, verifiable record of these events; the broker
exists purely for live consumers that want to react as they happen.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                    │          │
	│  │  - In-memory message bus                    │          │
	│  │  - All events broadcast (no topic filter)   │          │
	│  │  - Non-blocking publish                     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 100)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                       │          │
	│  │                                              │          │
	│  │  Update Events:                             │          │
	│  │    - update.verified, update.fetched        │          │
	│  │                                              │          │
	│  │  Rollout Events:                            │          │
	│  │    - rollout.started, rollout.advanced      │          │
	│  │    - rollout.rolled_back, rollout.completed │          │
	│  │                                              │          │
	│  │  Log Events:                                │          │
	│  │    - health.reported, log.entry_appended    │          │
	│  │                                              │          │
	│  │  Receiver Events:                           │          │
	│  │    - certificate.issued                      │          │
	│  │    - receiver.batch_stored                   │          │
	│  └────────────────────────────────────────────┘           │
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Subscribers                      │          │
	│  │                                              │          │
	│  │  Dashboards: render live rollout progress   │          │
	│  │  Alerting: page on rollout.rolled_back      │          │
	│  │  Metrics: count events for Prometheus       │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Non-blocking publish (buffered channel)
  - Graceful shutdown via stop channel

Event:
  - ID: unique event identifier (optional, caller-assigned)
  - Type: event type (rollout.started, health.reported, etc.)
  - Timestamp: when the event occurred
  - Message: human-readable description
  - Metadata: key-value pairs for additional context (e.g. update_id)

Subscriber:
  - Channel that receives Event pointers
  - Buffered (50 events) to handle bursts
  - Created via broker.Subscribe()
  - Closed via broker.Unsubscribe()

# Event Flow

Publish Flow:
 1. Publisher calls broker.Publish(event)
 2. Event added to the main event channel (non-blocking)
 3. Broadcast loop receives the event
 4. Event sent to all subscriber channels
 5. Subscribers receive the event asynchronously
 6. Full subscriber buffers skip the event rather than block

# Usage

Creating and starting a broker:

	import "github.com/cuemby/fleetguard/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Subscribing to events:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
		}
	}()

Attaching a broker to the rollout controller:

	c := rollout.NewController(config, stateDir, eventRecorder)
	c.SetBroker(broker)

Every StartRollout, ReportHealth, AbortRollout and CompleteRollout call
on that controller now also publishes a matching events.Event.

# Integration Points

This package integrates with:

  - pkg/rollout: publishes rollout.started/rolled_back/completed
    and health.reported as the controller processes a rollout
  - cmd/fleetguard: the rollout subcommand attaches a process-wide broker
    to every controller it opens

# Design Patterns

Non-Blocking Publish:
  - Publish sends to a buffered channel and returns immediately
  - Events may be dropped if the buffer is full
  - Trade-off: throughput over guaranteed delivery

Fan-Out Pattern:
  - A single event is broadcast to all subscribers
  - Each subscriber has its own channel and processing rate
  - A full subscriber buffer skips that event rather than blocking others

Fire-and-Forget:
  - No acknowledgment from subscribers, no retry on delivery failure
  - Suitable for live observability, not for anything that needs a
    durable audit trail — that's what the transparency log is for

# Limitations

  - In-memory only, no persistence or replay
  - No guaranteed delivery (best effort)
  - No topic-based filtering — subscribers filter by Type themselves

# See Also

  - pkg/rollout - publishes rollout lifecycle events
  - pkg/translog - the durable, verifiable record these events summarize
*/
package events
