// Package receiver implements the tamper-evident log receiver: an mTLS
// HTTP endpoint that ingests signed log batches from hardened-OS clients,
// verifies them, and maintains a per-client hash chain recording every
// accepted batch.
//
// Client identity comes from the subject Common Name on the verified
// transport certificate, never from a request body field. Each client's
// chain is serialized by its own mutex so concurrent uploads from
// different clients never block each other, matching the log server's
// multi-task, per-client-serialized concurrency model.
package receiver
