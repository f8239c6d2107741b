// Package translog implements fleetguard's append-only transparency log:
// an RFC 6962-style Merkle tree over update releases, rollout events, and
// security events, with inclusion proofs a third party can verify against
// a published root hash.
//
// The journal (one canonical-JSON entry per line) is the durable source
// of truth; the Merkle tree is rebuilt from it on every append and on
// load. Append, Root, Entry and Prove share one mutex, so a Log is safe
// for concurrent use within a process and readers see a consistent
// snapshot; a read waits while an Append is in progress. Two Log values
// opened on the same directory are not coordinated with each other.
package translog
