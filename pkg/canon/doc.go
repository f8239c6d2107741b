// Package canon implements canonical-JSON serialization and the hash
// primitives used to sign and verify every record in fleetguard.
//
// Canonicalization is the pure function from an abstract record value to
// a deterministic byte string: UTF-8 JSON, object keys sorted ascending
// lexicographically, no insignificant whitespace, integers in minimal
// form, no trailing newline. Any two in-memory values that are equal as
// abstract values (same keys, same values, map order irrelevant) encode
// to byte-identical canonical output, on any machine, in any process.
// That determinism is what lets a signature over canonical bytes mean
// anything: the signer and the verifier must derive the same bytes from
// the same logical record without coordinating on field order.
package canon
