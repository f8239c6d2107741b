/*
Package metrics provides Prometheus metrics collection and exposition for
fleetguard.

The metrics package defines and registers all fleetguard metrics using the
Prometheus client library, providing observability into update verification,
staged rollout progress, transparency log growth, and log receiver outcomes.
Metrics are exposed via HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Update: verification results, durations    │          │
	│  │  Rollout: stage, rollback, completion       │          │
	│  │  Translog: appends, tree size               │          │
	│  │  Receiver: upload outcomes, chain length    │          │
	│  │  CA: certificates issued                    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

Update Metrics:

fleetguard_update_verifications_total{role, result}:
  - Type: Counter
  - Description: TUF metadata verifications by role (root/timestamp/snapshot/targets) and result (verified/malformed/invalid_signature)
  - Example: fleetguard_update_verifications_total{role="targets",result="verified"} 42

fleetguard_update_refresh_duration_seconds:
  - Type: Histogram
  - Description: Time to refresh and verify the full metadata chain

fleetguard_target_download_duration_seconds:
  - Type: Histogram
  - Description: Time to download and hash-verify a target artifact

Rollout Metrics:

fleetguard_rollouts_active:
  - Type: Gauge
  - Description: Whether a rollout is currently active (1) or not (0)

fleetguard_rollout_stage_percentage:
  - Type: Gauge
  - Description: Percentage of the fleet targeted by the current rollout stage

fleetguard_rollout_rollbacks_total{reason}:
  - Type: Counter
  - Description: Rollouts rolled back, by reason (health_threshold/operator_abort)

fleetguard_rollout_completions_total:
  - Type: Counter
  - Description: Rollouts that completed successfully

fleetguard_health_reports_total{status}:
  - Type: Counter
  - Description: Health reports received by the rollout controller, by overall status

Transparency Log Metrics:

fleetguard_log_appends_total{entry_type}:
  - Type: Counter
  - Description: Entries appended to the transparency log, by entry type

fleetguard_log_tree_size:
  - Type: Gauge
  - Description: Current number of entries in the transparency log

Log Receiver Metrics:

fleetguard_receiver_outcomes_total{outcome}:
  - Type: Counter
  - Description: Log-upload outcomes (accepted/unauthenticated/bad_signature/tamper_suspected/malformed/server_error)

fleetguard_receiver_upload_duration_seconds:
  - Type: Histogram
  - Description: Time to ingest a received log batch

fleetguard_receiver_chain_length{client_id}:
  - Type: Gauge
  - Description: Number of records in a client's hash chain

Certificate Authority Metrics:

fleetguard_certificates_issued_total{role}:
  - Type: Counter
  - Description: Certificates issued by the fleet CA, by role (the role given to IssueNodeCertificate, e.g. receiver; client for IssueClientCertificate)

# Usage

Recording a verification result:

	metrics.UpdateVerificationsTotal.WithLabelValues("targets", "verified").Inc()

Timing an operation:

	timer := metrics.NewTimer()
	// ... refresh metadata ...
	timer.ObserveDuration(metrics.UpdateRefreshDuration)

Exposing the endpoint:

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

# Integration Points

This package integrates with:

  - pkg/tufclient: Records verification and download metrics
  - pkg/rollout: Reports rollout stage, rollback, and completion metrics
  - pkg/translog: Reports append and tree-size metrics
  - pkg/receiver: Reports upload outcome and chain-length metrics
  - pkg/security: Reports certificate issuance metrics
  - Prometheus: Scrapes /metrics endpoint

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels
  - Avoid high-cardinality labels (system IDs, timestamps) except where the
    label set itself is the point (receiver chain length per client)

Timer Pattern:
  - Create timer at operation start
  - Call ObserveDuration once the operation completes

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
