// Package sig implements multi-signature threshold verification over
// canonical bytes.
//
// A signed envelope pairs an arbitrary record with zero or more detached
// signatures. Verifying an envelope against a role spec (the role's key
// table, its member key IDs, and its threshold) means: canonicalize the
// signed record, check each signature whose key_id belongs to the role
// with the algorithm the key table says that key uses, and accept once a
// threshold number of *distinct* key IDs have produced a valid signature.
// Unrecognized key IDs and algorithm mismatches are not fatal by
// themselves — only failing to reach the threshold is.
//
// Algorithms are registered behind a small Verifier capability interface
// rather than dispatched on a string switch, so adding an algorithm never
// touches the envelope-verification logic itself.
package sig
