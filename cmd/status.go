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

var statusForce bool

var statusCmd = &cobra.Command{
	Use:   "status <signal-id>",
	Short: "Check an enrichment once, importing contacts if the agent task finished",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "enrichment")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Poller.CheckStatus(ctx, args[0], statusForce)
		if err != nil {
			return eris.Wrap(err, "check status")
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var (
	watchInterval  time.Duration
	watchMaxChecks int
)

var watchCmd = &cobra.Command{
	Use:   "watch <signal-id>",
	Short: "Poll an enrichment until the agent task completes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "enrichment")
		if err != nil {
			return err
		}
		defer env.Close()

		interval := watchInterval
		if interval == 0 {
			interval = time.Duration(cfg.Poll.IntervalSecs) * time.Second
		}
		maxChecks := watchMaxChecks
		if maxChecks == 0 {
			maxChecks = cfg.Poll.MaxChecks
		}

		w := enrichment.NewWatcher(env.Poller, interval, enrichment.WithMaxChecks(maxChecks))
		res, err := w.Watch(ctx, args[0], func(r *enrichment.StatusResult) {
			zap.L().Info("status checked",
				zap.String("signal_id", args[0]),
				zap.String("status", string(r.Status)),
				zap.String("remote_status", r.RemoteStatus),
			)
		})
		if err != nil {
			return eris.Wrap(err, "watch enrichment")
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusForce, "force", false, "re-read the task output of a completed enrichment")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "delay between checks (default from poll.interval_secs)")
	watchCmd.Flags().IntVar(&watchMaxChecks, "max-checks", 0, "stop after this many checks, 0 for no limit (default from poll.max_checks)")
	rootCmd.AddCommand(statusCmd, watchCmd)
}
