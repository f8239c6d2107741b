// Package log provides structured logging for fleetguard using zerolog.
//
// A single package-level Logger is initialized once via Init and shared by
// every subsystem. Component loggers (WithComponent and friends) attach a
// fixed set of fields so verification failures, rollback triggers, and
// tamper events always carry the identifiers an operator needs (key_id,
// update_id, client_id, log_index) as structured fields rather than
// interpolated strings.
package log
