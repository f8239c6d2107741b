// Package rollout implements the staged rollout controller: deterministic
// per-node cohort assignment, time/percentage stage gating, health-report
// aggregation, and the automatic rollback state machine.
//
// A Controller owns at most one active rollout state at a time. Stage
// selection first finds the current stage by elapsed time alone (the
// earliest stage whose time window has not yet elapsed), then checks the
// node's cohort bucket against that stage's percentage — it never
// cascades forward into a later, wider-percentage stage just because the
// current stage's percentage excluded the bucket. Doing otherwise would
// let nodes jump straight to full rollout the moment any later stage's
// duration-independent final entry is reached, which contradicts the
// rollout's own monotonicity guarantee.
package rollout
