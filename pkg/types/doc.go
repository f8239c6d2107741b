// Package types defines the wire and state records shared across
// fleetguard's subsystems: TUF-style metadata, rollout state, transparency
// log entries, and the log receiver's per-client chain records.
//
// Every type here is JSON-serializable and designed to round-trip through
// canon.Canonicalize unchanged — field order in struct definitions is for
// readability only, never for wire shape.
package types
