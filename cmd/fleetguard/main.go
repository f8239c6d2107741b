package main

import (
	"fmt"
	"os"

	"github.com/cuemby/fleetguard/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetguard",
	Short: "fleetguard - secure update and audit backbone for a hardened fleet",
	Long: `fleetguard verifies signed update metadata, stages rollouts across a
fleet of nodes with automatic rollback on regression, and operates a
tamper-evident transparency log for update and security events.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"fleetguard version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(rolloutCmd)
	rootCmd.AddCommand(translogCmd)
	rootCmd.AddCommand(receiverCmd)
	rootCmd.AddCommand(agentCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
