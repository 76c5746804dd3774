// Command surveil runs the market-microstructure surveillance service: the
// live Supervisor (C12), a CSV replay harness (C13), and small config/venue
// inspection helpers. Grounded on cmd/cryptorun/main.go's cobra root command
// tree, trimmed to this service's actual subcommands.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

const appName = "surveil"

func main() {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Real-time cryptocurrency market-microstructure surveillance",
		Version: "v1.0.0",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Bring up the Supervisor and surveil live venue feeds",
		RunE:  runServe,
	}
	runCmd.Flags().String("env", "", "Path to the .env file (default .env)")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded CSV trade stream through the detector suite",
		RunE:  runReplay,
	}
	replayCmd.Flags().String("csv", "", "Path to the recorded trade CSV (required)")
	replayCmd.Flags().Float64("speed", 1.0, "Replay pace multiplier (0 = as fast as possible, 1 = wall-clock)")
	replayCmd.Flags().String("thresholds", "", "Path to a thresholds YAML file (default config/thresholds.yaml)")
	_ = replayCmd.MarkFlagRequired("csv")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	configValidateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the startup and thresholds layers and report any errors",
		RunE:  runConfigValidate,
	}
	configValidateCmd.Flags().String("env", "", "Path to the .env file (default .env)")
	configValidateCmd.Flags().String("thresholds", "", "Path to a thresholds YAML file (default config/thresholds.yaml)")
	configCmd.AddCommand(configValidateCmd)

	venuesCmd := &cobra.Command{
		Use:   "venues",
		Short: "Inspect configured venues",
	}
	venuesListCmd := &cobra.Command{
		Use:   "list",
		Short: "List every configured venue and its monitored market types",
		RunE:  runVenuesList,
	}
	venuesListCmd.Flags().String("env", "", "Path to the .env file (default .env)")
	venuesCmd.AddCommand(venuesListCmd)

	rootCmd.AddCommand(runCmd, replayCmd, configCmd, venuesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitError lets a subcommand's RunE carry a specific process exit code
// (§6: 0 clean shutdown, 1 fatal init failure, 2 unrecoverable shard
// exhaustion under restart policy B) through cobra's plain error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func exitCodeFor(err error) int {
	if ee, ok := err.(*exitError); ok {
		return ee.ExitCode()
	}
	return 1
}
