package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
)

var (
	// ErrNotFound is returned by updates that matched no row.
	ErrNotFound = eris.New("store: not found")
	// ErrDuplicate is returned when a signal already owns an enrichment record.
	ErrDuplicate = eris.New("store: enrichment already exists for signal")
)

// Store defines the persistence interface for the enrichment workflow.
// Lookups return (nil, nil) when the row does not exist.
type Store interface {
	// Signals
	GetSignal(ctx context.Context, id string) (*model.Signal, error)
	CreateSignal(ctx context.Context, sig *model.Signal) error
	UpsertSignals(ctx context.Context, sigs []model.Signal) (int64, error)
	UpdateSignalEnrichmentStatus(ctx context.Context, id string, status model.EnrichmentStatus) error

	// Enrichment records
	GetEnrichmentBySignal(ctx context.Context, signalID string) (*model.EnrichmentRecord, error)
	CreateEnrichment(ctx context.Context, rec *model.EnrichmentRecord) error
	UpdateEnrichment(ctx context.Context, rec *model.EnrichmentRecord) error
	ListEnrichmentsByStatus(ctx context.Context, status model.EnrichmentStatus, limit int) ([]model.EnrichmentRecord, error)

	// Contacts
	ListContacts(ctx context.Context, signalID string) ([]model.Contact, error)
	CountContacts(ctx context.Context, signalID string) (int, error)
	// InsertContactsIfEmpty writes contacts only when the signal has none yet
	// and returns how many rows were inserted.
	InsertContactsIfEmpty(ctx context.Context, enrichmentID, signalID string, contacts []model.Contact) (int, error)
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	UpdateContactOutreach(ctx context.Context, id string, status model.OutreachStatus) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// SettingManusAPIKey is the settings row holding the agent credential when it
// is not configured through the environment.
const SettingManusAPIKey = "manus_api_key"

// contactColumns is the column order shared by both drivers' contact inserts.
var contactColumns = []string{
	"id", "enrichment_id", "signal_id", "full_name", "first_name", "last_name",
	"job_title", "department", "location", "email_principal", "email_alternatif",
	"phone", "linkedin_url", "is_priority_target", "priority_score", "outreach_status",
	"created_at",
}

const contactSelect = `SELECT id, enrichment_id, signal_id, full_name, first_name, last_name,
	job_title, department, location, email_principal, email_alternatif,
	phone, linkedin_url, is_priority_target, priority_score, outreach_status, created_at
	FROM contacts`

const enrichmentSelect = `SELECT id, signal_id, company_name, status, enrichment_source, raw_data,
	domain, website, industry, employee_count, headquarters, error_message, created_at, updated_at
	FROM company_enrichment`

const signalSelect = `SELECT id, company_name, signal_type, event_detail, score, enrichment_status,
	created_at, updated_at FROM signals`

// contactRow flattens a contact into contactColumns order.
func contactRow(c model.Contact) []any {
	return []any{
		c.ID, c.EnrichmentID, c.SignalID, c.FullName, c.FirstName, c.LastName,
		c.JobTitle, c.Department, c.Location, c.EmailPrincipal, c.EmailAlternative,
		c.Phone, c.LinkedInURL, c.IsPriorityTarget, c.PriorityScore, string(c.OutreachStatus),
		c.CreatedAt,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanContactInto(row scannable, c *model.Contact) error {
	var outreach string
	if err := row.Scan(&c.ID, &c.EnrichmentID, &c.SignalID, &c.FullName, &c.FirstName, &c.LastName,
		&c.JobTitle, &c.Department, &c.Location, &c.EmailPrincipal, &c.EmailAlternative,
		&c.Phone, &c.LinkedInURL, &c.IsPriorityTarget, &c.PriorityScore, &outreach, &c.CreatedAt); err != nil {
		return err
	}
	c.OutreachStatus = model.OutreachStatus(outreach)
	return nil
}

func scanSignalInto(row scannable, sig *model.Signal) error {
	var status string
	if err := row.Scan(&sig.ID, &sig.CompanyName, &sig.SignalType, &sig.EventDetail, &sig.Score,
		&status, &sig.CreatedAt, &sig.UpdatedAt); err != nil {
		return err
	}
	sig.EnrichmentStatus = model.EnrichmentStatus(status)
	return nil
}

func scanEnrichmentInto(row scannable, rec *model.EnrichmentRecord) error {
	var status, source string
	var raw []byte
	if err := row.Scan(&rec.ID, &rec.SignalID, &rec.CompanyName, &status, &source, &raw,
		&rec.Company.Domain, &rec.Company.Website, &rec.Company.Industry,
		&rec.Company.EmployeeCount, &rec.Company.Headquarters, &rec.ErrorMessage,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return err
	}
	rec.Status = model.EnrichmentStatus(status)
	rec.Source = model.Source(source)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rec.RawData); err != nil {
			return eris.Wrap(err, "unmarshal raw_data")
		}
	}
	return nil
}

// prepareContacts fills ids, owners and defaults before insertion.
func prepareContacts(enrichmentID, signalID string, contacts []model.Contact, now time.Time) []model.Contact {
	out := make([]model.Contact, len(contacts))
	for i, c := range contacts {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.EnrichmentID = enrichmentID
		c.SignalID = signalID
		if c.OutreachStatus == "" {
			c.OutreachStatus = model.OutreachNew
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		out[i] = c
	}
	return out
}
