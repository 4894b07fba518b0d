package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer keeps the insert-once transaction serialised.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS signals (
	id                TEXT PRIMARY KEY,
	company_name      TEXT NOT NULL,
	signal_type       TEXT NOT NULL DEFAULT '',
	event_detail      TEXT NOT NULL DEFAULT '',
	score             INTEGER NOT NULL DEFAULT 0,
	enrichment_status TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS company_enrichment (
	id                TEXT PRIMARY KEY,
	signal_id         TEXT NOT NULL UNIQUE REFERENCES signals(id),
	company_name      TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'processing',
	enrichment_source TEXT NOT NULL DEFAULT '',
	raw_data          TEXT NOT NULL DEFAULT '{}',
	domain            TEXT NOT NULL DEFAULT '',
	website           TEXT NOT NULL DEFAULT '',
	industry          TEXT NOT NULL DEFAULT '',
	employee_count    TEXT NOT NULL DEFAULT '',
	headquarters      TEXT NOT NULL DEFAULT '',
	error_message     TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_company_enrichment_status ON company_enrichment(status);

CREATE TABLE IF NOT EXISTS contacts (
	id                 TEXT PRIMARY KEY,
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
	is_priority_target BOOLEAN NOT NULL DEFAULT 0,
	priority_score     INTEGER NOT NULL DEFAULT 3,
	outreach_status    TEXT NOT NULL DEFAULT 'new',
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_contacts_signal_id ON contacts(signal_id);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Signals ---

func (s *SQLiteStore) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	var sig model.Signal
	err := scanSignalInto(s.db.QueryRowContext(ctx, signalSelect+` WHERE id = ?`, id), &sig)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get signal %s", id)
	}
	return &sig, nil
}

func (s *SQLiteStore) CreateSignal(ctx context.Context, sig *model.Signal) error {
	if sig.ID == "" {
		sig.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sig.CreatedAt, sig.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals (id, company_name, signal_type, event_detail, score, enrichment_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.CompanyName, sig.SignalType, sig.EventDetail, sig.Score,
		string(sig.EnrichmentStatus), now, now,
	)
	return eris.Wrapf(err, "sqlite: insert signal %s", sig.ID)
}

func (s *SQLiteStore) UpsertSignals(ctx context.Context, sigs []model.Signal) (int64, error) {
	if len(sigs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert signals")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var total int64
	for _, sig := range sigs {
		if sig.ID == "" {
			sig.ID = uuid.New().String()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO signals (id, company_name, signal_type, event_detail, score, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET company_name = excluded.company_name,
				signal_type = excluded.signal_type, event_detail = excluded.event_detail,
				score = excluded.score, updated_at = excluded.updated_at`,
			sig.ID, sig.CompanyName, sig.SignalType, sig.EventDetail, sig.Score, now, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert signal %s", sig.ID)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, eris.Wrap(tx.Commit(), "sqlite: commit upsert signals")
}

func (s *SQLiteStore) UpdateSignalEnrichmentStatus(ctx context.Context, id string, status model.EnrichmentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET enrichment_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update signal status %s", id)
	}
	return checkRowsAffected(res, "signal", id)
}

// --- Enrichment records ---

func (s *SQLiteStore) GetEnrichmentBySignal(ctx context.Context, signalID string) (*model.EnrichmentRecord, error) {
	var rec model.EnrichmentRecord
	err := scanEnrichmentInto(s.db.QueryRowContext(ctx, enrichmentSelect+` WHERE signal_id = ?`, signalID), &rec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get enrichment for signal %s", signalID)
	}
	return &rec, nil
}

func (s *SQLiteStore) CreateEnrichment(ctx context.Context, rec *model.EnrichmentRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now

	raw, err := json.Marshal(rec.RawData)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal raw_data")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO company_enrichment (id, signal_id, company_name, status, enrichment_source, raw_data,
			domain, website, industry, employee_count, headquarters, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (signal_id) DO NOTHING`,
		rec.ID, rec.SignalID, rec.CompanyName, string(rec.Status), string(rec.Source), string(raw),
		rec.Company.Domain, rec.Company.Website, rec.Company.Industry,
		rec.Company.EmployeeCount, rec.Company.Headquarters, rec.ErrorMessage, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert enrichment for signal %s", rec.SignalID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrDuplicate, "signal %s", rec.SignalID)
	}
	return nil
}

func (s *SQLiteStore) UpdateEnrichment(ctx context.Context, rec *model.EnrichmentRecord) error {
	raw, err := json.Marshal(rec.RawData)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal raw_data")
	}
	rec.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE company_enrichment SET status = ?, enrichment_source = ?, raw_data = ?,
			domain = ?, website = ?, industry = ?, employee_count = ?, headquarters = ?,
			error_message = ?, updated_at = ?
		 WHERE id = ?`,
		string(rec.Status), string(rec.Source), string(raw),
		rec.Company.Domain, rec.Company.Website, rec.Company.Industry,
		rec.Company.EmployeeCount, rec.Company.Headquarters,
		rec.ErrorMessage, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update enrichment %s", rec.ID)
	}
	return checkRowsAffected(res, "enrichment", rec.ID)
}

func (s *SQLiteStore) ListEnrichmentsByStatus(ctx context.Context, status model.EnrichmentStatus, limit int) ([]model.EnrichmentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		enrichmentSelect+` WHERE status = ? ORDER BY updated_at ASC LIMIT ?`,
		string(status), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list enrichments")
	}
	defer rows.Close()

	var out []model.EnrichmentRecord
	for rows.Next() {
		var rec model.EnrichmentRecord
		if err := scanEnrichmentInto(rows, &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan enrichment")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list enrichments iterate")
}

// --- Contacts ---

func (s *SQLiteStore) ListContacts(ctx context.Context, signalID string) ([]model.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		contactSelect+` WHERE signal_id = ? ORDER BY priority_score DESC, full_name ASC`,
		signalID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list contacts for signal %s", signalID)
	}
	defer rows.Close()

	var out []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := scanContactInto(rows, &c); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list contacts iterate")
}

func (s *SQLiteStore) CountContacts(ctx context.Context, signalID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts WHERE signal_id = ?`, signalID).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: count contacts for signal %s", signalID)
}

func (s *SQLiteStore) InsertContactsIfEmpty(ctx context.Context, enrichmentID, signalID string, contacts []model.Contact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin contacts tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts WHERE signal_id = ?`, signalID).Scan(&existing); err != nil {
		return 0, eris.Wrapf(err, "sqlite: count contacts for signal %s", signalID)
	}
	if existing > 0 {
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO contacts (id, enrichment_id, signal_id, full_name, first_name, last_name,
			job_title, department, location, email_principal, email_alternatif,
			phone, linkedin_url, is_priority_target, priority_score, outreach_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare contact insert")
	}
	defer stmt.Close()

	prepared := prepareContacts(enrichmentID, signalID, contacts, time.Now().UTC())
	for _, c := range prepared {
		if _, err := stmt.ExecContext(ctx, contactRow(c)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert contact %s", c.FullName)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit contacts tx")
	}
	return len(prepared), nil
}

func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	var c model.Contact
	err := scanContactInto(s.db.QueryRowContext(ctx, contactSelect+` WHERE id = ?`, id), &c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get contact %s", id)
	}
	return &c, nil
}

func (s *SQLiteStore) UpdateContactOutreach(ctx context.Context, id string, status model.OutreachStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE contacts SET outreach_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update outreach %s", id)
	}
	return checkRowsAffected(res, "contact", id)
}

// --- Settings ---

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, eris.Wrapf(err, "sqlite: get setting %s", key)
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: set setting %s", key)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
