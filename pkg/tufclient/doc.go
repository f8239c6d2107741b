// Package tufclient implements the update verification pipeline: root
// bootstrap and self-upgrade, the timestamp→snapshot→targets refresh
// sequence, and verified target-artifact download.
//
// A Client holds the currently trusted root metadata and the most
// recently verified timestamp/snapshot/targets documents. Every mutation
// goes through a local candidate first and is only committed once the
// full chain of checks for that operation succeeds — a failed refresh
// leaves the previous cache exactly as it was.
//
// Verification always runs against the raw bytes received on the wire
// (kept as json.RawMessage through the fetch) rather than against a
// re-marshaled Go struct, so canonicalization sees exactly what was
// signed.
package tufclient
