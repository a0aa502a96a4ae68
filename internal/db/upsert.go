package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Batch is one table's rows for Upsert.
type Batch struct {
	Table   string
	Columns []string
	Keys    []string // unique constraint columns
	// Touch columns are written with the row but ignored when deciding
	// whether an existing row changed (updated_at).
	Touch []string
	Rows  [][]any
}

func (b Batch) validate() error {
	if len(b.Columns) == 0 {
		return eris.Errorf("db: upsert %s: no columns", b.Table)
	}
	if len(b.Keys) == 0 {
		return eris.Errorf("db: upsert %s: no key columns", b.Table)
	}
	for _, r := range b.Rows {
		if len(r) != len(b.Columns) {
			return eris.Errorf("db: upsert %s: row has %d values for %d columns", b.Table, len(r), len(b.Columns))
		}
	}
	return nil
}

func (b Batch) tempTable() string {
	return "_import_" + strings.ReplaceAll(b.Table, ".", "_")
}

// upsertSQL moves the temp table into the target. Rows whose compared
// columns are unchanged are left alone, so repeating an import writes
// nothing.
func (b Batch) upsertSQL() string {
	skip := make(map[string]bool, len(b.Keys)+len(b.Touch))
	for _, k := range b.Keys {
		skip[k] = true
	}
	var set, compare []string
	for _, c := range b.Columns {
		if skip[c] {
			continue
		}
		q := pgx.Identifier{c}.Sanitize()
		set = append(set, q+" = EXCLUDED."+q)
	}
	for _, t := range b.Touch {
		skip[t] = true
	}
	for _, c := range b.Columns {
		if !skip[c] {
			compare = append(compare, pgx.Identifier{c}.Sanitize())
		}
	}

	target := sanitizeTable(b.Table)
	cols := quoteAndJoin(b.Columns)
	sql := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s)",
		target, cols, cols, pgx.Identifier{b.tempTable()}.Sanitize(), quoteAndJoin(b.Keys))
	if len(set) == 0 {
		return sql + " DO NOTHING"
	}
	sql += " DO UPDATE SET " + strings.Join(set, ", ")
	if len(compare) > 0 {
		excluded := make([]string, len(compare))
		for i, c := range compare {
			excluded[i] = "EXCLUDED." + c
		}
		sql += fmt.Sprintf(" WHERE (%s) IS DISTINCT FROM (%s)",
			qualify(target, compare), strings.Join(excluded, ", "))
	}
	return sql
}

// Upsert loads every batch inside one transaction: COPY into a temp table,
// then INSERT ... ON CONFLICT into the target. Batches run in order, so
// referenced tables go first. Returns rows written per table.
func Upsert(ctx context.Context, pool Pool, batches ...Batch) (map[string]int64, error) {
	written := make(map[string]int64, len(batches))
	pending := batches[:0:0]
	for _, b := range batches {
		if err := b.validate(); err != nil {
			return nil, err
		}
		if len(b.Rows) > 0 {
			pending = append(pending, b)
		}
	}
	if len(pending) == 0 {
		return written, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, b := range pending {
		temp := pgx.Identifier{b.tempTable()}
		create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
			temp.Sanitize(), sanitizeTable(b.Table))
		if _, err := tx.Exec(ctx, create); err != nil {
			return nil, eris.Wrapf(err, "db: upsert %s: create temp table", b.Table)
		}
		if _, err := tx.CopyFrom(ctx, temp, b.Columns, pgx.CopyFromRows(b.Rows)); err != nil {
			return nil, eris.Wrapf(err, "db: upsert %s: copy", b.Table)
		}
		tag, err := tx.Exec(ctx, b.upsertSQL())
		if err != nil {
			return nil, eris.Wrapf(err, "db: upsert %s: insert", b.Table)
		}
		written[b.Table] = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "db: upsert: commit tx")
	}
	return written, nil
}

// sanitizeTable handles schema-qualified names like "archive.persons".
func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

func qualify(table string, quoted []string) string {
	out := make([]string, len(quoted))
	for i, c := range quoted {
		out[i] = table + "." + c
	}
	return strings.Join(out, ", ")
}
