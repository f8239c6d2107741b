package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cuemby/fleetguard/pkg/health"
	"github.com/cuemby/fleetguard/pkg/log"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the fleet-node agent: local health checks reported to the rollout controller",
}

func init() {
	agentReportCmd.Flags().String("system-id", "", "this system's identifier (defaults to hostname)")
	agentReportCmd.Flags().String("controller-url", "", "rollout controller's health-report endpoint (required)")
	agentReportCmd.Flags().String("exec-check", "", "optional shell command to run as an additional exec health check")

	agentRunCmd.Flags().String("system-id", "", "this system's identifier (defaults to hostname)")
	agentRunCmd.Flags().String("controller-url", "", "rollout controller's health-report endpoint (required)")
	agentRunCmd.Flags().String("exec-check", "", "optional shell command to run as an additional exec health check")
	agentRunCmd.Flags().Duration("interval", 30*time.Second, "time between health reports")
	_ = agentRunCmd.MarkFlagRequired("controller-url")
	_ = agentReportCmd.MarkFlagRequired("controller-url")

	agentCmd.AddCommand(agentReportCmd, agentRunCmd)
}

var agentReportCmd = &cobra.Command{
	Use:   "report-health",
	Short: "Run local health checks once and submit the report",
	RunE:  runAgentReport,
}

var agentRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Continuously run local health checks and submit reports on an interval",
	RunE:  runAgentRun,
}

func buildCheckers(execCheck string) []health.Checker {
	checkers := []health.Checker{
		health.NewDiskSpaceChecker("/"),
		health.NewMemoryChecker(),
	}
	if execCheck != "" {
		checkers = append(checkers, health.NewExecChecker("custom", []string{"sh", "-c", execCheck}))
	}
	return checkers
}

func systemIDOrHostname(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

func submitHealthReport(controllerURL string, checkers []health.Checker, systemID string) error {
	report := health.RunAll(context.Background(), systemID, time.Now(), checkers)

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal health report: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, controllerURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit health report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("controller rejected health report: status %d", resp.StatusCode)
	}

	log.Logger.Info().Str("system_id", systemID).Str("status", string(report.OverallStatus)).Msg("health report submitted")
	return nil
}

func runAgentReport(cmd *cobra.Command, args []string) error {
	systemID, _ := cmd.Flags().GetString("system-id")
	controllerURL, _ := cmd.Flags().GetString("controller-url")
	execCheck, _ := cmd.Flags().GetString("exec-check")

	return submitHealthReport(controllerURL, buildCheckers(execCheck), systemIDOrHostname(systemID))
}

func runAgentRun(cmd *cobra.Command, args []string) error {
	systemID, _ := cmd.Flags().GetString("system-id")
	controllerURL, _ := cmd.Flags().GetString("controller-url")
	execCheck, _ := cmd.Flags().GetString("exec-check")
	interval, _ := cmd.Flags().GetDuration("interval")

	id := systemIDOrHostname(systemID)
	checkers := buildCheckers(execCheck)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := submitHealthReport(controllerURL, checkers, id); err != nil {
		log.Logger.Error().Err(err).Msg("initial health report failed")
	}

	for range ticker.C {
		if err := submitHealthReport(controllerURL, checkers, id); err != nil {
			log.Logger.Error().Err(err).Msg("health report failed")
		}
	}
	return nil
}
