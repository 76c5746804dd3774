package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cryptosurveil/surveil/internal/config"
	"github.com/cryptosurveil/surveil/internal/dispatch"
	"github.com/cryptosurveil/surveil/internal/logging"
	"github.com/cryptosurveil/surveil/internal/replay"
)

// runReplay implements the `replay` subcommand: load a recorded CSV trade
// stream and drive it through the same detector/gate/dispatch pipeline the
// live Supervisor uses (§4.13), logging every resulting alert instead of
// surfacing it on push/store sinks.
func runReplay(cmd *cobra.Command, args []string) error {
	csvPath, _ := cmd.Flags().GetString("csv")
	speed, _ := cmd.Flags().GetFloat64("speed")
	thresholdsPath, _ := cmd.Flags().GetString("thresholds")
	if thresholdsPath == "" {
		thresholdsPath = "config/thresholds.yaml"
	}

	log := logging.Init(nil, "")

	hot, err := config.NewHot(thresholdsPath, log)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	events, err := replay.LoadCSV(csvPath)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	fanout := dispatch.NewFanout(dispatch.NewLogSink(log, hot.Get().Dispatch.SinkQueueDepth))
	runner := replay.NewRunner(hot, fanout, nil, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("csv", csvPath).Float64("speed", speed).Int("events", len(events)).Msg("surveil: starting replay")

	fanoutDone := make(chan struct{})
	go func() {
		fanout.Run(ctx)
		close(fanoutDone)
	}()

	if err := runner.Run(ctx, events, speed); err != nil {
		stop()
		<-fanoutDone
		return &exitError{code: 1, err: err}
	}
	stop()
	<-fanoutDone

	log.Info().Msg("surveil: replay complete")
	return nil
}
