package enrichment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/normalize"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/store"
)

// completion is everything a finished provider run hands to the persister.
type completion struct {
	result normalize.Result
	output json.RawMessage
	// agentErr is the remote task's own error, used when the output carries
	// none.
	agentErr     string
	remoteStatus string
	force        bool
}

// persisted reports what the persister wrote.
type persisted struct {
	Inserted int
	Total    int
	Error    string
}

// persist writes contacts under the insert-once guard, merges the provider
// payload into the record and marks record and signal completed.
func persist(ctx context.Context, st store.Store, rec *model.EnrichmentRecord, c completion, now time.Time) (persisted, error) {
	var out persisted

	if len(c.result.Contacts) > 0 {
		n, err := st.InsertContactsIfEmpty(ctx, rec.ID, rec.SignalID, c.result.Contacts)
		if err != nil {
			return out, eris.Wrapf(err, "enrichment: insert contacts for signal %s", rec.SignalID)
		}
		out.Inserted = n
	}

	total, err := st.CountContacts(ctx, rec.SignalID)
	if err != nil {
		return out, eris.Wrapf(err, "enrichment: count contacts for signal %s", rec.SignalID)
	}
	out.Total = total

	mergeRaw(&rec.RawData, c, now)
	rec.Company.Merge(c.result.CompanyInfo)

	agentErr := c.result.Error
	if agentErr == "" {
		agentErr = c.agentErr
	}
	switch {
	case len(c.result.Contacts) == 0 && agentErr != "":
		rec.ErrorMessage = agentErr
		out.Error = agentErr
	case len(c.result.Contacts) > 0:
		rec.ErrorMessage = ""
	}

	if err := transition(ctx, st, rec, model.EnrichmentStatusCompleted, c.force); err != nil {
		return out, err
	}
	return out, nil
}

// mergeRaw folds the new output into the stored payload. Task fields are
// never touched, and empty values do not erase earlier ones.
func mergeRaw(raw *model.RawData, c completion, now time.Time) {
	if len(c.output) > 0 {
		raw.Output = c.output
	}
	if c.result.FileURL != "" {
		raw.OutputFileURL = c.result.FileURL
	}
	if c.result.SearchMethod != "" {
		raw.SearchMethod = c.result.SearchMethod
	}
	if len(c.result.CompanyInfo) > 0 {
		if raw.CompanyInfo == nil {
			raw.CompanyInfo = make(map[string]any, len(c.result.CompanyInfo))
		}
		for k, v := range c.result.CompanyInfo {
			if s, ok := v.(string); ok && model.IsAbsent(s) {
				continue
			}
			raw.CompanyInfo[k] = v
		}
	}
	if c.result.Error != "" {
		raw.AgentError = c.result.Error
	} else if c.agentErr != "" {
		raw.AgentError = c.agentErr
	}
	if c.remoteStatus != "" {
		raw.RemoteStatus = c.remoteStatus
	}
	checked := now
	raw.CheckedAt = &checked
}
