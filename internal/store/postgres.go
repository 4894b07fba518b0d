package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/db"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS signals (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_name      TEXT NOT NULL,
	signal_type       TEXT NOT NULL DEFAULT '',
	event_detail      TEXT NOT NULL DEFAULT '',
	score             INTEGER NOT NULL DEFAULT 0,
	enrichment_status TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS company_enrichment (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	signal_id         TEXT NOT NULL UNIQUE REFERENCES signals(id),
	company_name      TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'processing',
	enrichment_source TEXT NOT NULL DEFAULT '',
	raw_data          JSONB NOT NULL DEFAULT '{}'::jsonb,
	domain            TEXT NOT NULL DEFAULT '',
	website           TEXT NOT NULL DEFAULT '',
	industry          TEXT NOT NULL DEFAULT '',
	employee_count    TEXT NOT NULL DEFAULT '',
	headquarters      TEXT NOT NULL DEFAULT '',
	error_message     TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_company_enrichment_status ON company_enrichment(status);

CREATE TABLE IF NOT EXISTS contacts (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	enrichment_id      TEXT NOT NULL REFERENCES company_enrichment(id),
	signal_id          TEXT NOT NULL REFERENCES signals(id),
	full_name          TEXT NOT NULL DEFAULT '',
	first_name         TEXT NOT NULL DEFAULT '',
	last_name          TEXT NOT NULL DEFAULT '',
	job_title          TEXT NOT NULL DEFAULT '',
	department         TEXT NOT NULL DEFAULT '',
	location           TEXT NOT NULL DEFAULT '',
	email_principal    TEXT NOT NULL DEFAULT '',
	email_alternatif   TEXT NOT NULL DEFAULT '',
	phone              TEXT NOT NULL DEFAULT '',
	linkedin_url       TEXT NOT NULL DEFAULT '',
	is_priority_target BOOLEAN NOT NULL DEFAULT false,
	priority_score     INTEGER NOT NULL DEFAULT 3,
	outreach_status    TEXT NOT NULL DEFAULT 'new',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contacts_signal_id ON contacts(signal_id);
CREATE INDEX IF NOT EXISTS idx_contacts_enrichment_id ON contacts(enrichment_id);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Signals ---

func (s *PostgresStore) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	var sig model.Signal
	err := scanSignalInto(s.pool.QueryRow(ctx, signalSelect+` WHERE id = $1`, id), &sig)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get signal %s", id)
	}
	return &sig, nil
}

func (s *PostgresStore) CreateSignal(ctx context.Context, sig *model.Signal) error {
	if sig.ID == "" {
		sig.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sig.CreatedAt, sig.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO signals (id, company_name, signal_type, event_detail, score, enrichment_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sig.ID, sig.CompanyName, sig.SignalType, sig.EventDetail, sig.Score,
		string(sig.EnrichmentStatus), now, now,
	)
	return eris.Wrapf(err, "postgres: insert signal %s", sig.ID)
}

// UpsertSignals loads seed signals through COPY into a temp table. Existing
// rows keep their enrichment status.
func (s *PostgresStore) UpsertSignals(ctx context.Context, sigs []model.Signal) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(sigs))
	for _, sig := range sigs {
		if sig.ID == "" {
			sig.ID = uuid.New().String()
		}
		rows = append(rows, []any{sig.ID, sig.CompanyName, sig.SignalType, sig.EventDetail, sig.Score, now, now})
	}

	n, err := db.Upsert(ctx, s.pool, db.UpsertSpec{
		Table:   "signals",
		Key:     []string{"id"},
		Columns: []string{"id", "company_name", "signal_type", "event_detail", "score", "created_at", "updated_at"},
		Refresh: []string{"company_name", "signal_type", "event_detail", "score", "updated_at"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert signals")
}

func (s *PostgresStore) UpdateSignalEnrichmentStatus(ctx context.Context, id string, status model.EnrichmentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE signals SET enrichment_status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update signal status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "signal %s", id)
	}
	return nil
}

// --- Enrichment records ---

func (s *PostgresStore) GetEnrichmentBySignal(ctx context.Context, signalID string) (*model.EnrichmentRecord, error) {
	var rec model.EnrichmentRecord
	err := scanEnrichmentInto(s.pool.QueryRow(ctx, enrichmentSelect+` WHERE signal_id = $1`, signalID), &rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get enrichment for signal %s", signalID)
	}
	return &rec, nil
}

func (s *PostgresStore) CreateEnrichment(ctx context.Context, rec *model.EnrichmentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	raw, err := json.Marshal(rec.RawData)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal raw_data")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO company_enrichment (id, signal_id, company_name, status, enrichment_source, raw_data,
			domain, website, industry, employee_count, headquarters, error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (signal_id) DO NOTHING`,
		rec.ID, rec.SignalID, rec.CompanyName, string(rec.Status), string(rec.Source), raw,
		rec.Company.Domain, rec.Company.Website, rec.Company.Industry,
		rec.Company.EmployeeCount, rec.Company.Headquarters, rec.ErrorMessage, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert enrichment for signal %s", rec.SignalID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrDuplicate, "signal %s", rec.SignalID)
	}
	return nil
}

func (s *PostgresStore) UpdateEnrichment(ctx context.Context, rec *model.EnrichmentRecord) error {
	raw, err := json.Marshal(rec.RawData)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal raw_data")
	}
	rec.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE company_enrichment SET status = $1, enrichment_source = $2, raw_data = $3,
			domain = $4, website = $5, industry = $6, employee_count = $7, headquarters = $8,
			error_message = $9, updated_at = $10
		 WHERE id = $11`,
		string(rec.Status), string(rec.Source), raw,
		rec.Company.Domain, rec.Company.Website, rec.Company.Industry,
		rec.Company.EmployeeCount, rec.Company.Headquarters,
		rec.ErrorMessage, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update enrichment %s", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "enrichment %s", rec.ID)
	}
	return nil
}

func (s *PostgresStore) ListEnrichmentsByStatus(ctx context.Context, status model.EnrichmentStatus, limit int) ([]model.EnrichmentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		enrichmentSelect+` WHERE status = $1 ORDER BY updated_at ASC LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enrichments")
	}
	defer rows.Close()

	var out []model.EnrichmentRecord
	for rows.Next() {
		var rec model.EnrichmentRecord
		if err := scanEnrichmentInto(rows, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: scan enrichment")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list enrichments iterate")
}

// --- Contacts ---

func (s *PostgresStore) ListContacts(ctx context.Context, signalID string) ([]model.Contact, error) {
	rows, err := s.pool.Query(ctx,
		contactSelect+` WHERE signal_id = $1 ORDER BY priority_score DESC, full_name ASC`,
		signalID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list contacts for signal %s", signalID)
	}
	defer rows.Close()

	var out []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := scanContactInto(rows, &c); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list contacts iterate")
}

func (s *PostgresStore) CountContacts(ctx context.Context, signalID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contacts WHERE signal_id = $1`, signalID).Scan(&n)
	return n, eris.Wrapf(err, "postgres: count contacts for signal %s", signalID)
}

// InsertContactsIfEmpty serialises concurrent writers for the same signal
// with a transaction-scoped advisory lock, then COPYs the rows only when the
// signal has no contacts yet.
func (s *PostgresStore) InsertContactsIfEmpty(ctx context.Context, enrichmentID, signalID string, contacts []model.Contact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin contacts tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, signalID); err != nil {
		return 0, eris.Wrapf(err, "postgres: lock contacts for signal %s", signalID)
	}

	var existing int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM contacts WHERE signal_id = $1`, signalID).Scan(&existing); err != nil {
		return 0, eris.Wrapf(err, "postgres: count contacts for signal %s", signalID)
	}
	if existing > 0 {
		return 0, nil
	}

	prepared := prepareContacts(enrichmentID, signalID, contacts, time.Now().UTC())
	rows := make([][]any, len(prepared))
	for i, c := range prepared {
		rows[i] = contactRow(c)
	}
	n, err := db.CopyFrom(ctx, tx, "contacts", contactColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: insert contacts for signal %s", signalID)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit contacts tx")
	}
	return int(n), nil
}

func (s *PostgresStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	var c model.Contact
	err := scanContactInto(s.pool.QueryRow(ctx, contactSelect+` WHERE id = $1`, id), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get contact %s", id)
	}
	return &c, nil
}

func (s *PostgresStore) UpdateContactOutreach(ctx context.Context, id string, status model.OutreachStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE contacts SET outreach_status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update outreach %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "contact %s", id)
	}
	return nil
}

// --- Settings ---

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrapf(err, "postgres: get setting %s", key)
	}
	return value, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3`,
		key, value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: set setting %s", key)
}
