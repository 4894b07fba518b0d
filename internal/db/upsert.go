package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertSpec describes a keyed upsert that stages rows with COPY and merges
// them with one INSERT ... ON CONFLICT.
type UpsertSpec struct {
	Table   string
	Key     []string
	Columns []string
	// Refresh lists the columns overwritten when the key already exists.
	// Everything else keeps its stored value; an empty Refresh makes
	// conflicts no-ops.
	Refresh []string
}

func (s UpsertSpec) validate() error {
	if s.Table == "" {
		return eris.New("db: upsert: table is required")
	}
	if len(s.Columns) == 0 {
		return eris.Errorf("db: upsert %s: no columns", s.Table)
	}
	if len(s.Key) == 0 {
		return eris.Errorf("db: upsert %s: no key columns", s.Table)
	}
	known := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		known[c] = true
	}
	for _, c := range append(append([]string(nil), s.Key...), s.Refresh...) {
		if !known[c] {
			return eris.Errorf("db: upsert %s: column %s is not loaded", s.Table, c)
		}
	}
	return nil
}

func (s UpsertSpec) staging() string {
	return "_stage_" + strings.ReplaceAll(s.Table, ".", "_")
}

func (s UpsertSpec) createSQL() string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		ident(s.staging()), ident(s.Table))
}

// mergeSQL keeps the last staged row per key so duplicate keys in one load
// cannot hit the same target row twice.
func (s UpsertSpec) mergeSQL() string {
	cols := identList(s.Columns)
	key := identList(s.Key)

	action := "DO NOTHING"
	if len(s.Refresh) > 0 {
		sets := make([]string, len(s.Refresh))
		for i, c := range s.Refresh {
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", ident(c), ident(c))
		}
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT DISTINCT ON (%s) %s FROM %s ORDER BY %s, ctid DESC ON CONFLICT (%s) %s",
		ident(s.Table), cols, key, cols, ident(s.staging()), key, key, action,
	)
}

// Upsert loads rows (in spec.Columns order) and returns the number of rows
// inserted or refreshed.
func Upsert(ctx context.Context, pool Pool, spec UpsertSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := spec.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, spec.createSQL()); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: create staging table", spec.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{spec.staging()}, spec.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: stage rows", spec.Table)
	}
	tag, err := tx.Exec(ctx, spec.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: merge", spec.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

// ident quotes a possibly schema-qualified name.
func ident(name string) string {
	return pgx.Identifier(strings.SplitN(name, ".", 2)).Sanitize()
}

func identList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident(n)
	}
	return strings.Join(quoted, ", ")
}
