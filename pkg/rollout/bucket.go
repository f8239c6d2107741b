package rollout

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/cuemby/fleetguard/pkg/types"
)

// CohortBucket deterministically places (updateID, systemID) into one of
// 100 buckets [0, 100). The same pair always yields the same bucket,
// across restarts and processes, since it depends only on its inputs.
func CohortBucket(updateID, systemID string) int {
	sum := sha256.Sum256([]byte(updateID + ":" + systemID))
	v := binary.BigEndian.Uint32(sum[0:4])
	return int(v % 100)
}

// CurrentStage returns the current stage by elapsed time alone: the
// first stage (in order) whose cumulative duration has not yet elapsed,
// or whose duration is the open-ended final 0. It does not consider any
// cohort bucket — callers check eligibility against the returned stage
// separately.
func CurrentStage(stages []types.Stage, elapsedHours float64) (types.Stage, bool) {
	cumulative := 0.0
	for _, s := range stages {
		cumulative += float64(s.DurationHours)
		if elapsedHours <= cumulative || s.DurationHours == 0 {
			return s, true
		}
	}
	return types.Stage{}, false
}
