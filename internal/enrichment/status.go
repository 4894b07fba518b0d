package enrichment

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/store"
)

// transition moves the record to status and mirrors it onto the signal. The
// record transition is validated strictly. The signal follows the record:
// when it has drifted (a crash between the two writes) the mismatch is
// logged and the signal is brought back in line.
func transition(ctx context.Context, st store.Store, rec *model.EnrichmentRecord, to model.EnrichmentStatus, force bool) error {
	if err := model.ValidateTransition(rec.Status, to, force); err != nil {
		return eris.Wrapf(err, "enrichment: record %s", rec.ID)
	}
	rec.Status = to
	if err := st.UpdateEnrichment(ctx, rec); err != nil {
		return eris.Wrapf(err, "enrichment: update record %s", rec.ID)
	}
	return syncSignalStatus(ctx, st, rec.SignalID, to, force)
}

func syncSignalStatus(ctx context.Context, st store.Store, signalID string, to model.EnrichmentStatus, force bool) error {
	sig, err := st.GetSignal(ctx, signalID)
	if err != nil {
		return eris.Wrapf(err, "enrichment: get signal %s", signalID)
	}
	if sig == nil {
		return eris.Wrapf(ErrNotFound, "signal %s", signalID)
	}
	if err := model.ValidateTransition(sig.EnrichmentStatus, to, force); err != nil {
		if !errors.Is(err, model.ErrInvalidTransition) {
			return err
		}
		if sig.EnrichmentStatus == to {
			return nil
		}
		zap.L().Warn("enrichment: signal status out of sync with record, realigning",
			zap.String("signal_id", signalID),
			zap.String("signal_status", string(sig.EnrichmentStatus)),
			zap.String("record_status", string(to)),
		)
	}
	if err := st.UpdateSignalEnrichmentStatus(ctx, signalID, to); err != nil {
		return eris.Wrapf(err, "enrichment: update signal status %s", signalID)
	}
	return nil
}
