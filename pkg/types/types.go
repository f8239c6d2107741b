package types

import (
	"time"

	"github.com/cuemby/fleetguard/pkg/sig"
)

// Role names the four top-level TUF-style signing roles.
type Role string

const (
	RoleRoot      Role = "root"
	RoleTimestamp Role = "timestamp"
	RoleSnapshot  Role = "snapshot"
	RoleTargets   Role = "targets"
)

// RoleEntry is one role's slot in a root metadata's role table: the key
// IDs trusted for the role and the signature threshold it requires.
type RoleEntry struct {
	KeyIDs    []string `json:"key_ids"`
	Threshold int      `json:"threshold"`
}

// RootMetadata is the self-describing trust root: a key table and a role
// table naming which keys sign for which role, at which threshold. Root
// verifies itself — its own embedded keys and role entry are the ones
// used to check its own envelope.
type RootMetadata struct {
	Type    string               `json:"_type"`
	Version int                  `json:"version"`
	Expires string               `json:"expires"`
	Keys    map[string]sig.Key   `json:"keys"`
	Roles   map[Role]RoleEntry   `json:"roles"`
}

// FileReference is how one metadata file names another: the length and
// hash a referencing file must match, plus the version the referenced
// file claimed at the time of reference (used to detect version
// regression between what was cached and what is newly referenced).
type FileReference struct {
	Version int    `json:"version"`
	Length  int    `json:"length"`
	SHA256  string `json:"sha256"`
}

// TimestampMetadata is the most frequently rotated metadata file: it
// does nothing but point at the current snapshot.
type TimestampMetadata struct {
	Type    string                   `json:"_type"`
	Version int                      `json:"version"`
	Expires string                   `json:"expires"`
	Meta    map[string]FileReference `json:"meta"` // key "snapshot.json"
}

// SnapshotMetadata pins the versions of every other metadata file,
// guarding against mix-and-match attacks across targets metadata.
type SnapshotMetadata struct {
	Type    string                   `json:"_type"`
	Version int                      `json:"version"`
	Expires string                   `json:"expires"`
	Meta    map[string]FileReference `json:"meta"` // key "targets.json"
}

// TargetFileInfo is one target's integrity record: the exact length and
// both hash digests a fetched artifact must match.
type TargetFileInfo struct {
	Length int            `json:"length"`
	SHA256 string          `json:"sha256"`
	SHA512 string          `json:"sha512"`
	Custom map[string]any `json:"custom,omitempty"`
}

// TargetsMetadata lists every artifact the update server currently
// offers, keyed by target name.
type TargetsMetadata struct {
	Type    string                    `json:"_type"`
	Version int                       `json:"version"`
	Expires string                    `json:"expires"`
	Targets map[string]TargetFileInfo `json:"targets"`
}

// Stage is one ordered phase of a staged rollout: nodes whose cohort
// bucket falls under Percentage become eligible once the stage's time
// window opens.
type Stage struct {
	Name          string `json:"name"`
	Percentage    int    `json:"percentage"`
	DurationHours int    `json:"duration_hours"`
}

// Thresholds gates automatic rollback and (future) promotion decisions.
type Thresholds struct {
	FailureThresholdPct int `json:"failure_threshold_pct"`
	SuccessThresholdPct int `json:"success_threshold_pct"`
}

// RollbackPolicy controls whether, and how, a rollout reacts to a
// failing health signal.
type RollbackPolicy struct {
	Enabled   bool `json:"enabled"`
	Automatic bool `json:"automatic"`
}

// RolloutConfig is the operator-authored description of how an update
// should be staged out across the fleet.
type RolloutConfig struct {
	Stages     []Stage        `json:"stages"`
	Thresholds Thresholds     `json:"thresholds"`
	Rollback   RollbackPolicy `json:"rollback"`
}

// RolloutStatus is the rollout state machine's terminal/non-terminal
// classification.
type RolloutStatus string

const (
	RolloutStatusActive     RolloutStatus = "active"
	RolloutStatusRolledBack RolloutStatus = "rolled_back"
	RolloutStatusComplete   RolloutStatus = "complete"
)

// HealthStatus is a health probe's (or a report's aggregate) verdict.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusCritical HealthStatus = "critical"
	HealthStatusUnknown  HealthStatus = "unknown"
)

// CheckResult is one named probe's outcome within a health report.
type CheckResult struct {
	Name    string         `json:"name"`
	Status  HealthStatus   `json:"status"`
	Metrics map[string]any `json:"metrics,omitempty"`
}

// HealthReport is a single system's health snapshot submitted to the
// rollout controller.
type HealthReport struct {
	SystemID      string        `json:"system_id"`
	Timestamp     time.Time     `json:"timestamp"`
	OverallStatus HealthStatus  `json:"overall_status"`
	Checks        []CheckResult `json:"checks,omitempty"`
}

// RolloutState is the mutable record of one update's progress through
// its stages, including the rollback decision history.
type RolloutState struct {
	UpdateID          string         `json:"update_id"`
	StartTime         time.Time      `json:"start_time"`
	Stages            []Stage        `json:"stages"`
	HealthReports     []HealthReport `json:"health_reports"`
	RollbackTriggered bool           `json:"rollback_triggered"`
	RollbackTime      *time.Time     `json:"rollback_time,omitempty"`
	Status            RolloutStatus  `json:"status"`
}

// EntryType classifies a transparency log entry's payload.
type EntryType string

const (
	EntryTypeUpdateRelease EntryType = "update_release"
	EntryTypeRolloutEvent  EntryType = "rollout_event"
	EntryTypeSecurityEvent EntryType = "security_event"
)

// LogEntry is one append to the transparency log. Data is opaque to the
// log itself — it is canonicalized and hashed, never interpreted.
type LogEntry struct {
	LogIndex  int64     `json:"log_index"`
	Timestamp time.Time `json:"timestamp"`
	EntryType EntryType `json:"entry_type"`
	Data      any       `json:"data"`
	LogID     string    `json:"log_id"`
}

// UpdateReleaseData is the payload of an EntryTypeUpdateRelease entry.
type UpdateReleaseData struct {
	UpdateID      string                    `json:"update_id"`
	TargetsVer    int                       `json:"targets_version"`
	Targets       map[string]TargetFileInfo `json:"targets,omitempty"`
}

// RolloutEventData is the payload of an EntryTypeRolloutEvent entry.
type RolloutEventData struct {
	UpdateID string `json:"update_id"`
	Event    string `json:"event"` // e.g. "rollback", "complete"
}

// SecurityEventSeverity classifies a security_event entry.
type SecurityEventSeverity string

const SeverityCritical SecurityEventSeverity = "critical"

// SecurityEventData is the payload of an EntryTypeSecurityEvent entry.
type SecurityEventData struct {
	Severity SecurityEventSeverity `json:"severity"`
	Kind     string                `json:"kind"`
	Detail   string                `json:"detail"`
}

// TreeHead is the persisted summary of a Merkle tree's current state.
type TreeHead struct {
	TreeSize  int64     `json:"tree_size"`
	RootHash  string    `json:"root_hash"`
	Timestamp time.Time `json:"timestamp"`
}

// LogConfig is a transparency log's identity record.
type LogConfig struct {
	LogID       string    `json:"log_id"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description"`
	TreeSize    int64     `json:"tree_size"`
}

// ChainRecord is one link in a log receiver's per-client hash chain.
type ChainRecord struct {
	Timestamp time.Time `json:"timestamp"`
	LogHash   string    `json:"log_hash"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	// NextHash is sha256(prev.log_hash || this.log_hash), the chain
	// advance computed at append time, empty for a client's first record.
	NextHash string `json:"next_hash,omitempty"`
}

// IntegrityStatus is the response body for a client's integrity query.
type IntegrityStatus struct {
	ClientID        string    `json:"client_id"`
	TotalLogs       int       `json:"total_logs"`
	LastUpdate      time.Time `json:"last_update"`
	IntegrityStatus string    `json:"integrity_status"`
	HashChain       []string  `json:"hash_chain"`
}
