package rollout

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/fleetguard/pkg/events"
	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
	"github.com/cuemby/fleetguard/pkg/log"
	"github.com/cuemby/fleetguard/pkg/metrics"
	"github.com/cuemby/fleetguard/pkg/storage"
	"github.com/cuemby/fleetguard/pkg/types"
)

// EventRecorder appends a rollout-related entry to the transparency log.
// Kept as an interface here, implemented by pkg/translog, so this
// package never imports the log package directly.
type EventRecorder interface {
	AppendRolloutEvent(data types.RolloutEventData) error
}

// reportWindow and minReportsToEvaluate bound the rollback heuristic:
// only the most recent reports are considered, and too few reports never
// trigger a decision either way.
const (
	healthReportHistoryLimit = 100
	reportWindow             = 10
	minReportsToEvaluate     = 5
)

// Controller drives one fleet's staged rollout: starting it, answering
// per-node eligibility, recording health, and deciding rollback.
type Controller struct {
	mu       sync.Mutex
	config   types.RolloutConfig
	state    *types.RolloutState
	stateDir string
	events   EventRecorder
	broker   *events.Broker
	now      func() time.Time
	logger   zerolog.Logger
}

// SetBroker attaches a live event broker; dashboards and alerting sidecars
// subscribe to it to observe rollout progress without polling State().
func (c *Controller) SetBroker(b *events.Broker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broker = b
}

func (c *Controller) publish(typ events.EventType, updateID, message string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(&events.Event{
		Type:     typ,
		Message:  message,
		Metadata: map[string]string{"update_id": updateID},
	})
}

// NewController builds a Controller. stateDir is where rollout-state.json
// is persisted; events receives rollback/complete notifications for the
// transparency log.
func NewController(config types.RolloutConfig, stateDir string, events EventRecorder) *Controller {
	return &Controller{
		config:   config,
		stateDir: stateDir,
		events:   events,
		now:      time.Now,
		logger:   log.WithComponent("rollout"),
	}
}

func (c *Controller) statePath() string {
	return filepath.Join(c.stateDir, "rollout-state.json")
}

// LoadState restores a previously persisted rollout state, if any.
// Absence is not an error — the controller simply starts with no active
// rollout.
func (c *Controller) LoadState() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var state types.RolloutState
	if err := storage.ReadJSON(c.statePath(), &state); err != nil {
		return nil
	}
	c.state = &state
	return nil
}

func (c *Controller) persistLocked() error {
	return storage.WriteJSONAtomic(c.statePath(), c.state)
}

// StartRollout begins a new rollout for updateID. It rejects if an
// active rollout already exists for a different update — the caller
// must explicitly AbortRollout or CompleteRollout that one first.
func (c *Controller) StartRollout(updateID string) error {
	const op = "rollout.StartRollout"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != nil && c.state.Status == types.RolloutStatusActive && c.state.UpdateID != updateID {
		return fleetguarderr.New(op, fleetguarderr.StateConflict,
			fmt.Errorf("rollout %q is active; abort or complete it before starting %q", c.state.UpdateID, updateID))
	}

	c.state = &types.RolloutState{
		UpdateID:      updateID,
		StartTime:     c.now(),
		Stages:        c.config.Stages,
		HealthReports: nil,
		Status:        types.RolloutStatusActive,
	}
	if err := c.persistLocked(); err != nil {
		return err
	}
	log.WithUpdateID(updateID).Info().Msg("rollout started")
	metrics.RolloutsActive.Set(1)
	c.publish(events.EventRolloutStarted, updateID, "rollout started")
	return nil
}

// CurrentStage returns the stage that applies right now, given the
// active rollout's elapsed time. systemID is not used.
func (c *Controller) CurrentStage(systemID string) (types.Stage, error) {
	const op = "rollout.CurrentStage"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return types.Stage{}, fleetguarderr.New(op, fleetguarderr.NotInitialized, fmt.Errorf("no rollout state"))
	}

	elapsed := c.now().Sub(c.state.StartTime).Hours()
	stage, ok := CurrentStage(c.state.Stages, elapsed)
	if !ok {
		return types.Stage{}, fleetguarderr.New(op, fleetguarderr.StateConflict, fmt.Errorf("no stage covers elapsed time %.2fh", elapsed))
	}
	_ = systemID // bucket is computed by callers against UpdateID; kept for API symmetry
	return stage, nil
}

// ShouldReceive answers whether systemID is currently eligible to
// receive updateID.
func (c *Controller) ShouldReceive(updateID, systemID string) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil || c.state.UpdateID != updateID || c.state.Status != types.RolloutStatusActive {
		if c.state != nil && c.state.UpdateID == updateID && c.state.RollbackTriggered {
			return false, "rolled_back"
		}
		return false, "no_active_rollout"
	}
	if c.state.RollbackTriggered {
		return false, "rolled_back"
	}

	bucket := CohortBucket(updateID, systemID)
	elapsed := c.now().Sub(c.state.StartTime).Hours()
	stage, ok := CurrentStage(c.state.Stages, elapsed)
	if !ok {
		return false, "no_current_stage"
	}
	metrics.RolloutStageGauge.Set(float64(stage.Percentage))
	if bucket < stage.Percentage {
		return true, stage.Name
	}
	return false, "not_yet_in_stage"
}

// ReportHealth records a health report against the active rollout and
// re-evaluates the rollback condition.
func (c *Controller) ReportHealth(report types.HealthReport) error {
	const op = "rollout.ReportHealth"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return fleetguarderr.New(op, fleetguarderr.NotInitialized, fmt.Errorf("no rollout state"))
	}

	c.state.HealthReports = append(c.state.HealthReports, report)
	if len(c.state.HealthReports) > healthReportHistoryLimit {
		c.state.HealthReports = c.state.HealthReports[len(c.state.HealthReports)-healthReportHistoryLimit:]
	}
	metrics.HealthReportsTotal.WithLabelValues(string(report.OverallStatus)).Inc()

	if c.state.Status == types.RolloutStatusActive {
		if err := c.evaluateRollbackLocked(); err != nil {
			return err
		}
	}
	c.publish(events.EventHealthReported, c.state.UpdateID, string(report.OverallStatus))
	return c.persistLocked()
}

// evaluateRollbackLocked runs the rollback heuristic over the most
// recent reportWindow reports. Callers must hold c.mu.
func (c *Controller) evaluateRollbackLocked() error {
	reports := c.state.HealthReports
	if len(reports) < minReportsToEvaluate {
		return nil
	}
	if len(reports) > reportWindow {
		reports = reports[len(reports)-reportWindow:]
	}

	critical := 0
	for _, r := range reports {
		if r.OverallStatus == types.HealthStatusCritical {
			critical++
		}
	}
	failurePct := float64(critical) / float64(len(reports)) * 100

	if failurePct <= float64(c.config.Thresholds.FailureThresholdPct) {
		return nil
	}
	if !c.config.Rollback.Enabled || !c.config.Rollback.Automatic {
		return nil
	}

	now := c.now()
	c.state.RollbackTriggered = true
	c.state.RollbackTime = &now
	c.state.Status = types.RolloutStatusRolledBack

	log.WithUpdateID(c.state.UpdateID).Warn().
		Int("critical", critical).
		Int("window", len(reports)).
		Msg("rollback triggered")
	metrics.RolloutRollbacksTotal.WithLabelValues("health_threshold").Inc()
	metrics.RolloutsActive.Set(0)

	if c.events != nil {
		if err := c.events.AppendRolloutEvent(types.RolloutEventData{UpdateID: c.state.UpdateID, Event: "rollback"}); err != nil {
			c.logger.Error().Err(err).Msg("failed to record rollback event to transparency log")
		}
	}
	c.publish(events.EventRolloutRolledBack, c.state.UpdateID, "rollback triggered by health threshold")
	return nil
}

// AbortRollout ends the active rollout without completing it — an
// explicit operator decision, distinct from an automatic rollback.
func (c *Controller) AbortRollout(updateID string) error {
	const op = "rollout.AbortRollout"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil || c.state.UpdateID != updateID {
		return fleetguarderr.New(op, fleetguarderr.StateConflict, fmt.Errorf("no active rollout for %q", updateID))
	}
	if c.state.Status != types.RolloutStatusActive {
		return fleetguarderr.New(op, fleetguarderr.StateConflict, fmt.Errorf("rollout %q is not active", updateID))
	}

	now := c.now()
	c.state.RollbackTriggered = true
	c.state.RollbackTime = &now
	c.state.Status = types.RolloutStatusRolledBack
	metrics.RolloutRollbacksTotal.WithLabelValues("operator_abort").Inc()
	metrics.RolloutsActive.Set(0)
	if c.events != nil {
		if err := c.events.AppendRolloutEvent(types.RolloutEventData{UpdateID: updateID, Event: "abort"}); err != nil {
			c.logger.Error().Err(err).Msg("failed to record abort event to transparency log")
		}
	}
	c.publish(events.EventRolloutRolledBack, updateID, "rollout aborted by operator")
	return c.persistLocked()
}

// CompleteRollout marks the active rollout as successfully finished.
func (c *Controller) CompleteRollout(updateID string) error {
	const op = "rollout.CompleteRollout"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil || c.state.UpdateID != updateID {
		return fleetguarderr.New(op, fleetguarderr.StateConflict, fmt.Errorf("no active rollout for %q", updateID))
	}
	if c.state.Status != types.RolloutStatusActive {
		return fleetguarderr.New(op, fleetguarderr.StateConflict, fmt.Errorf("rollout %q is not active", updateID))
	}

	c.state.Status = types.RolloutStatusComplete
	metrics.RolloutCompletionsTotal.Inc()
	metrics.RolloutsActive.Set(0)
	if c.events != nil {
		if err := c.events.AppendRolloutEvent(types.RolloutEventData{UpdateID: updateID, Event: "complete"}); err != nil {
			c.logger.Error().Err(err).Msg("failed to record complete event to transparency log")
		}
	}
	c.publish(events.EventRolloutCompleted, updateID, "rollout completed")
	return c.persistLocked()
}

// State returns a copy of the current rollout state, or nil if none.
func (c *Controller) State() *types.RolloutState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil
	}
	cp := *c.state
	return &cp
}
