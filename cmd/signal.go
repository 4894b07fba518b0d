package main

import (
	"bytes"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
)

var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "Create signals to enrich",
}

var signalAddFlags struct {
	company string
	kind    string
	event   string
	score   int
}

var signalAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create one signal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sig := model.Signal{
			CompanyName: strings.TrimSpace(signalAddFlags.company),
			SignalType:  strings.TrimSpace(signalAddFlags.kind),
			EventDetail: strings.TrimSpace(signalAddFlags.event),
			Score:       signalAddFlags.score,
		}
		if err := validateSignal(sig); err != nil {
			return err
		}

		if err := cfg.Validate("enrichment"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if err := st.CreateSignal(ctx, &sig); err != nil {
			return eris.Wrap(err, "create signal")
		}
		return printJSON(cmd.OutOrStdout(), sig)
	},
}

var signalImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create or update signals from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}
		sigs, err := parseSignals(data)
		if err != nil {
			return err
		}

		if err := cfg.Validate("enrichment"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		n, err := st.UpsertSignals(ctx, sigs)
		if err != nil {
			return eris.Wrap(err, "upsert signals")
		}
		zap.L().Info("signals imported", zap.String("file", args[0]), zap.Int64("rows", n))
		return printJSON(cmd.OutOrStdout(), sigs)
	},
}

// signalFile accepts either a bare list or a document with a signals key.
type signalFile struct {
	Signals []model.Signal `yaml:"signals"`
}

// parseSignals decodes and validates a signal file, assigning ids to entries
// without one.
func parseSignals(data []byte) ([]model.Signal, error) {
	var sigs []model.Signal
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("-")) {
		if err := yaml.Unmarshal(data, &sigs); err != nil {
			return nil, eris.Wrap(err, "parse signal list")
		}
	} else {
		var f signalFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "parse signal file")
		}
		sigs = f.Signals
	}
	if len(sigs) == 0 {
		return nil, eris.New("no signals in file")
	}

	for i := range sigs {
		sigs[i].CompanyName = strings.TrimSpace(sigs[i].CompanyName)
		sigs[i].SignalType = strings.TrimSpace(sigs[i].SignalType)
		if err := validateSignal(sigs[i]); err != nil {
			return nil, eris.Wrapf(err, "signal %d", i+1)
		}
		if sigs[i].ID == "" {
			sigs[i].ID = uuid.New().String()
		}
	}
	return sigs, nil
}

func validateSignal(sig model.Signal) error {
	if sig.CompanyName == "" {
		return eris.New("company name is required")
	}
	if sig.SignalType == "" {
		return eris.New("signal type is required")
	}
	if sig.Score < 1 || sig.Score > 5 {
		return eris.Errorf("score must be between 1 and 5, got %d", sig.Score)
	}
	return nil
}

func init() {
	f := signalAddCmd.Flags()
	f.StringVar(&signalAddFlags.company, "company", "", "company name (required)")
	f.StringVar(&signalAddFlags.kind, "type", "", "signal type, e.g. levee_fonds, nomination, anniversaire (required)")
	f.StringVar(&signalAddFlags.event, "event", "", "event detail")
	f.IntVar(&signalAddFlags.score, "score", 3, "signal score 1-5")
	_ = signalAddCmd.MarkFlagRequired("company")
	_ = signalAddCmd.MarkFlagRequired("type")

	signalCmd.AddCommand(signalAddCmd, signalImportCmd)
	rootCmd.AddCommand(signalCmd)
}
