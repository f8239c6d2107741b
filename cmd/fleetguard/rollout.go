package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/fleetguard/pkg/events"
	"github.com/cuemby/fleetguard/pkg/rollout"
	"github.com/cuemby/fleetguard/pkg/translog"
	"github.com/cuemby/fleetguard/pkg/types"
)

// rolloutEvents fans out rollout state changes to any attached observer.
// A single process-wide broker is enough: each CLI invocation is
// short-lived and exits once its subcommand returns.
var rolloutEvents = events.NewBroker()

func init() {
	rolloutEvents.Start()
}

var rolloutCmd = &cobra.Command{
	Use:   "rollout",
	Short: "Manage staged rollouts of signed updates across the fleet",
}

func init() {
	rolloutApplyCmd.Flags().StringP("file", "f", "", "YAML file describing the rollout's stages, thresholds and rollback policy (required)")
	rolloutApplyCmd.Flags().String("update-id", "", "identifier of the update being rolled out (defaults to a generated UUID)")
	rolloutApplyCmd.Flags().String("state-dir", "/var/lib/fleetguard/rollout", "directory holding rollout-state.json")
	rolloutApplyCmd.Flags().String("log-dir", "/var/lib/fleetguard/translog", "transparency log directory")
	_ = rolloutApplyCmd.MarkFlagRequired("file")

	rolloutAbortCmd.Flags().String("state-dir", "/var/lib/fleetguard/rollout", "directory holding rollout-state.json")
	rolloutAbortCmd.Flags().String("log-dir", "/var/lib/fleetguard/translog", "transparency log directory")

	rolloutCompleteCmd.Flags().String("state-dir", "/var/lib/fleetguard/rollout", "directory holding rollout-state.json")
	rolloutCompleteCmd.Flags().String("log-dir", "/var/lib/fleetguard/translog", "transparency log directory")

	rolloutStatusCmd.Flags().String("state-dir", "/var/lib/fleetguard/rollout", "directory holding rollout-state.json")

	rolloutCmd.AddCommand(rolloutApplyCmd, rolloutAbortCmd, rolloutCompleteCmd, rolloutStatusCmd)
}

var rolloutApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Start a staged rollout from a YAML-described configuration",
	Long: `Apply a rollout configuration and begin staging an update. If
--update-id is omitted, a UUID is generated and printed so it can be
passed to "rollout abort" or "rollout complete" later.

Example:
  fleetguard rollout apply -f rollout.yaml --update-id 2026.07.31-1`,
	RunE: runRolloutApply,
}

var rolloutAbortCmd = &cobra.Command{
	Use:   "abort <update-id>",
	Short: "Abort the active rollout for an update",
	Args:  cobra.ExactArgs(1),
	RunE:  runRolloutAbort,
}

var rolloutCompleteCmd = &cobra.Command{
	Use:   "complete <update-id>",
	Short: "Mark the active rollout for an update as successfully finished",
	Args:  cobra.ExactArgs(1),
	RunE:  runRolloutComplete,
}

var rolloutStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current rollout state as JSON",
	RunE:  runRolloutStatus,
}

func openController(stateDir, logDir string) (*rollout.Controller, error) {
	var events rollout.EventRecorder
	if logDir != "" {
		l, err := translog.Open(logDir)
		if err != nil {
			return nil, fmt.Errorf("open transparency log: %w", err)
		}
		events = l
	}

	var config types.RolloutConfig
	c := rollout.NewController(config, stateDir, events)
	c.SetBroker(rolloutEvents)
	if err := c.LoadState(); err != nil {
		return nil, fmt.Errorf("load rollout state: %w", err)
	}
	return c, nil
}

func runRolloutApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	updateID, _ := cmd.Flags().GetString("update-id")
	stateDir, _ := cmd.Flags().GetString("state-dir")
	logDir, _ := cmd.Flags().GetString("log-dir")

	if updateID == "" {
		updateID = uuid.New().String()
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read rollout config: %w", err)
	}

	var config types.RolloutConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parse rollout config: %w", err)
	}
	if len(config.Stages) == 0 {
		return fmt.Errorf("rollout config must name at least one stage")
	}

	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	var events rollout.EventRecorder
	if logDir != "" {
		l, err := translog.Open(logDir)
		if err != nil {
			return fmt.Errorf("open transparency log: %w", err)
		}
		events = l
	}

	c := rollout.NewController(config, stateDir, events)
	c.SetBroker(rolloutEvents)
	if err := c.LoadState(); err != nil {
		return fmt.Errorf("load rollout state: %w", err)
	}
	if err := c.StartRollout(updateID); err != nil {
		return fmt.Errorf("start rollout: %w", err)
	}

	fmt.Printf("rollout %s started with %d stage(s)\n", updateID, len(config.Stages))
	return nil
}

func runRolloutAbort(cmd *cobra.Command, args []string) error {
	stateDir, _ := cmd.Flags().GetString("state-dir")
	logDir, _ := cmd.Flags().GetString("log-dir")

	c, err := openController(stateDir, logDir)
	if err != nil {
		return err
	}
	if err := c.AbortRollout(args[0]); err != nil {
		return fmt.Errorf("abort rollout: %w", err)
	}
	fmt.Printf("rollout %s aborted\n", args[0])
	return nil
}

func runRolloutComplete(cmd *cobra.Command, args []string) error {
	stateDir, _ := cmd.Flags().GetString("state-dir")
	logDir, _ := cmd.Flags().GetString("log-dir")

	c, err := openController(stateDir, logDir)
	if err != nil {
		return err
	}
	if err := c.CompleteRollout(args[0]); err != nil {
		return fmt.Errorf("complete rollout: %w", err)
	}
	fmt.Printf("rollout %s complete\n", args[0])
	return nil
}

func runRolloutStatus(cmd *cobra.Command, args []string) error {
	stateDir, _ := cmd.Flags().GetString("state-dir")

	c, err := openController(stateDir, "")
	if err != nil {
		return err
	}
	state := c.State()
	if state == nil {
		fmt.Println("{}")
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}
