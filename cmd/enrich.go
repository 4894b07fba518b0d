package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <signal-id>",
	Short: "Request enrichment for a signal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "enrichment")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Requestor.RequestEnrichment(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "request enrichment")
		}

		zap.L().Info("enrichment requested",
			zap.String("signal_id", args[0]),
			zap.Bool("accepted", res.Accepted),
			zap.String("source", string(res.Source)),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
