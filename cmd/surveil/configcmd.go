package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cryptosurveil/surveil/internal/config"
)

// runConfigValidate loads both configuration layers and reports success or
// the first validation error, without starting any venue connection.
func runConfigValidate(cmd *cobra.Command, args []string) error {
	envPath, _ := cmd.Flags().GetString("env")
	thresholdsPath, _ := cmd.Flags().GetString("thresholds")
	if thresholdsPath == "" {
		thresholdsPath = "config/thresholds.yaml"
	}

	cfg, err := config.LoadStartup(envPath)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	thresholds, err := config.LoadThresholds(thresholdsPath)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	if err := thresholds.Validate(); err != nil {
		return &exitError{code: 1, err: err}
	}

	fmt.Printf("config ok: %d venue(s), market selector=%s, restart policy=%s\n",
		len(cfg.Venues), cfg.MarketSelector, cfg.RestartPolicy)
	return nil
}
