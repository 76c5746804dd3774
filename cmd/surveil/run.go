package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/errkind"
	"github.com/cryptosurveil/surveil/internal/logging"
	"github.com/cryptosurveil/surveil/internal/supervisor"
)

// runServe implements the `run` subcommand: wire up the Supervisor from the
// two configuration layers, run until SIGINT/SIGTERM (or an unrecoverable
// shard exhaustion under restart policy B), and drain gracefully. Grounded
// on monitor_main.go's signal.Notify/select/Shutdown shape, generalized from
// one HTTP server to the full Supervisor run loop.
func runServe(cmd *cobra.Command, args []string) error {
	envPath, _ := cmd.Flags().GetString("env")

	cfg, err := config.LoadStartup(envPath)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	log := logging.Init(nil, cfg.LogFilePath)

	hot, err := config.NewHot(cfg.ThresholdsFilePath, log)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	sup, err := supervisor.New(cfg, hot, log)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			log.Info().Msg("surveil: SIGHUP received, triggering hot config reload")
			sup.TriggerReload()
		}
	}()

	runErr := sup.Run(ctx)
	signal.Stop(reload)
	close(reload)

	if runErr == nil {
		log.Info().Msg("surveil: clean shutdown")
		return nil
	}
	if errors.Is(runErr, errkind.ErrShardExhausted) {
		log.Error().Err(runErr).Msg("surveil: exiting after unrecoverable shard exhaustion")
		return &exitError{code: 2, err: runErr}
	}
	return &exitError{code: 1, err: runErr}
}
