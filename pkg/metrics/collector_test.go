package metrics

import (
	"testing"
	"time"

	"github.com/cuemby/fleetguard/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeRolloutSource struct {
	state *types.RolloutState
}

func (f *fakeRolloutSource) State() *types.RolloutState { return f.state }

type fakeLogSource struct {
	size int64
	root string
}

func (f *fakeLogSource) Root() (int64, string) { return f.size, f.root }

func gaugeValue(g prometheus.Gauge) float64 {
	return testutil.ToFloat64(g)
}

func TestCollector_NoActiveRollout(t *testing.T) {
	c := NewCollector(&fakeRolloutSource{state: nil}, &fakeLogSource{size: 3, root: "abc"})
	c.collect()

	if got := gaugeValue(RolloutsActive); got != 0 {
		t.Errorf("RolloutsActive = %v, want 0", got)
	}
	if got := gaugeValue(LogTreeSize); got != 3 {
		t.Errorf("LogTreeSize = %v, want 3", got)
	}
}

func TestCollector_ActiveRolloutStage(t *testing.T) {
	state := &types.RolloutState{
		UpdateID:  "upd-1",
		StartTime: time.Now().Add(-2 * time.Hour),
		Status:    types.RolloutStatusActive,
		Stages: []types.Stage{
			{Name: "canary", Percentage: 5, DurationHours: 1},
			{Name: "broad", Percentage: 50, DurationHours: 4},
		},
	}
	c := NewCollector(&fakeRolloutSource{state: state}, &fakeLogSource{size: 10, root: "root"})
	c.collect()

	if got := gaugeValue(RolloutsActive); got != 1 {
		t.Errorf("RolloutsActive = %v, want 1", got)
	}
	if got := gaugeValue(RolloutStageGauge); got != 50 {
		t.Errorf("RolloutStageGauge = %v, want 50 (elapsed 2h falls in second stage)", got)
	}
}

func TestCollector_NilSources(t *testing.T) {
	c := NewCollector(nil, nil)
	c.collect() // must not panic
}

func TestCollector_StartStop(t *testing.T) {
	c := NewCollector(&fakeRolloutSource{}, &fakeLogSource{})
	c.Start()
	c.Stop()
}
