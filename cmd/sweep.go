package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/enrichment"
)

var sweepLoop bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Check every in-flight agent task and import finished ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "sweep")
		if err != nil {
			return err
		}
		defer env.Close()

		sweeper := enrichment.NewSweeper(env.Store, env.Poller, cfg.Sweep.Concurrency)

		if sweepLoop {
			interval := time.Duration(cfg.Sweep.IntervalSecs) * time.Second
			if interval <= 0 {
				interval = time.Duration(cfg.Poll.IntervalSecs) * time.Second
			}
			zap.L().Info("sweeping until interrupted", zap.Duration("interval", interval))
			return sweeper.Run(ctx, interval)
		}

		report, err := sweeper.Sweep(ctx)
		if err != nil {
			return eris.Wrap(err, "sweep")
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepLoop, "loop", false, "keep sweeping every sweep.interval_secs")
	rootCmd.AddCommand(sweepCmd)
}
