package metrics

import (
	"time"

	"github.com/cuemby/fleetguard/pkg/types"
)

// RolloutSource is the subset of rollout.Controller the collector polls.
// Kept as an interface so this package never imports pkg/rollout directly.
type RolloutSource interface {
	State() *types.RolloutState
}

// LogSource is the subset of translog.Log the collector polls.
type LogSource interface {
	Root() (int64, string)
}

// Collector periodically samples rollout and transparency-log state into
// the gauges exported by this package.
type Collector struct {
	rollout RolloutSource
	log     LogSource
	stopCh  chan struct{}
}

// NewCollector builds a Collector. Either source may be nil, in which case
// the corresponding gauges are simply never updated.
func NewCollector(rollout RolloutSource, log LogSource) *Collector {
	return &Collector{
		rollout: rollout,
		log:     log,
		stopCh:  make(chan struct{}),
	}
}

// Start begins periodic collection on a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectRolloutMetrics()
	c.collectLogMetrics()
}

func (c *Collector) collectRolloutMetrics() {
	if c.rollout == nil {
		return
	}
	state := c.rollout.State()
	if state == nil {
		RolloutsActive.Set(0)
		return
	}

	if state.Status == types.RolloutStatusActive {
		RolloutsActive.Set(1)
	} else {
		RolloutsActive.Set(0)
	}

	elapsed := time.Since(state.StartTime).Hours()
	var cumulative float64
	for _, stage := range state.Stages {
		cumulative += float64(stage.DurationHours)
		if elapsed <= cumulative || stage.DurationHours == 0 {
			RolloutStageGauge.Set(float64(stage.Percentage))
			break
		}
	}
}

func (c *Collector) collectLogMetrics() {
	if c.log == nil {
		return
	}
	size, _ := c.log.Root()
	LogTreeSize.Set(float64(size))
}
