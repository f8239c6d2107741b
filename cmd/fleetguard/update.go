package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cuemby/fleetguard/pkg/log"
	"github.com/cuemby/fleetguard/pkg/tufclient"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Verify and fetch signed updates from an update server",
}

func init() {
	updateInitRootCmd.Flags().String("root-file", "", "root metadata envelope to trust (required)")
	updateInitRootCmd.Flags().String("cache-dir", "/var/lib/fleetguard/update-cache", "directory holding verified metadata envelopes")
	updateInitRootCmd.Flags().Bool("self-upgrade", false, "verify the candidate root against the currently trusted root instead of accepting it on faith")
	_ = updateInitRootCmd.MarkFlagRequired("root-file")

	updateRefreshCmd.Flags().String("server", "", "base URL of the update server (required)")
	updateRefreshCmd.Flags().String("cache-dir", "/var/lib/fleetguard/update-cache", "directory holding verified metadata envelopes")
	updateRefreshCmd.Flags().String("targets-dir", "/var/lib/fleetguard/targets", "directory where verified targets land")
	_ = updateRefreshCmd.MarkFlagRequired("server")

	updateFetchCmd.Flags().String("server", "", "base URL of the update server (required)")
	updateFetchCmd.Flags().String("cache-dir", "/var/lib/fleetguard/update-cache", "directory holding verified metadata envelopes")
	updateFetchCmd.Flags().String("targets-dir", "/var/lib/fleetguard/targets", "directory where verified targets land")
	_ = updateFetchCmd.MarkFlagRequired("server")

	updateCmd.AddCommand(updateInitRootCmd, updateRefreshCmd, updateFetchCmd)
}

var updateInitRootCmd = &cobra.Command{
	Use:   "init-root",
	Short: "Install or upgrade the trusted root metadata",
	RunE:  runUpdateInitRoot,
}

var updateRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh timestamp, snapshot and targets metadata from the update server",
	RunE:  runUpdateRefresh,
}

var updateFetchCmd = &cobra.Command{
	Use:   "fetch <target-name>",
	Short: "Download and verify a target artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdateFetch,
}

func newClient(server, cacheDir, targetsDir string) *tufclient.Client {
	source := tufclient.NewHTTPSource(server)
	return tufclient.NewClient(source, cacheDir, targetsDir)
}

func runUpdateInitRoot(cmd *cobra.Command, args []string) error {
	rootFile, _ := cmd.Flags().GetString("root-file")
	cacheDir, _ := cmd.Flags().GetString("cache-dir")
	selfUpgrade, _ := cmd.Flags().GetBool("self-upgrade")

	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	rootBytes, err := os.ReadFile(rootFile)
	if err != nil {
		return fmt.Errorf("read root file: %w", err)
	}

	c := tufclient.NewClient(nil, cacheDir, "")
	if err := c.LoadCache(); err != nil {
		return fmt.Errorf("load cache: %w", err)
	}

	mode := tufclient.ModeBootstrap
	if selfUpgrade {
		mode = tufclient.ModeSelfUpgrade
	}
	if err := c.InitializeRoot(context.Background(), rootBytes, mode); err != nil {
		return fmt.Errorf("initialize root: %w", err)
	}

	fmt.Println("root metadata installed")
	return nil
}

func runUpdateRefresh(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	cacheDir, _ := cmd.Flags().GetString("cache-dir")
	targetsDir, _ := cmd.Flags().GetString("targets-dir")

	c := newClient(server, cacheDir, targetsDir)
	if err := c.LoadCache(); err != nil {
		return fmt.Errorf("load cache: %w", err)
	}
	if err := c.RefreshMetadata(context.Background()); err != nil {
		return fmt.Errorf("refresh metadata: %w", err)
	}

	log.WithComponent("update").Info().Msg("metadata refreshed and verified")
	fmt.Println("metadata refreshed")
	return nil
}

func runUpdateFetch(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	cacheDir, _ := cmd.Flags().GetString("cache-dir")
	targetsDir, _ := cmd.Flags().GetString("targets-dir")

	c := newClient(server, cacheDir, targetsDir)
	if err := c.LoadCache(); err != nil {
		return fmt.Errorf("load cache: %w", err)
	}
	if err := c.RefreshMetadata(context.Background()); err != nil {
		return fmt.Errorf("refresh metadata: %w", err)
	}

	path, err := c.FetchTarget(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("fetch target: %w", err)
	}

	fmt.Printf("target %s verified and written to %s\n", args[0], path)
	return nil
}
