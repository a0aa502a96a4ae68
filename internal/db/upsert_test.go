package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personBatch(rows ...[]any) Batch {
	return Batch{
		Table:   "persons",
		Columns: []string{"id", "name", "updated_at"},
		Keys:    []string{"id"},
		Touch:   []string{"updated_at"},
		Rows:    rows,
	}
}

func TestUpsert_NothingToWrite(t *testing.T) {
	n, err := Upsert(context.Background(), nil, personBatch())
	require.NoError(t, err)
	assert.Empty(t, n)
}

func TestUpsert_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		batch Batch
		want  string
	}{
		{"no columns", Batch{Table: "persons", Keys: []string{"id"}}, "no columns"},
		{"no keys", Batch{Table: "persons", Columns: []string{"id"}}, "no key columns"},
		{"short row", personBatch([]any{int64(1), "Henrik Ibsen"}), "2 values for 3 columns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Upsert(context.Background(), nil, tt.batch)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBatch_UpsertSQL(t *testing.T) {
	sql := personBatch().upsertSQL()
	assert.Equal(t,
		`INSERT INTO "persons" ("id", "name", "updated_at") SELECT "id", "name", "updated_at" FROM "_import_persons" ON CONFLICT ("id")`+
			` DO UPDATE SET "name" = EXCLUDED."name", "updated_at" = EXCLUDED."updated_at"`+
			` WHERE ("persons"."name") IS DISTINCT FROM (EXCLUDED."name")`,
		sql)

	keysOnly := Batch{Table: "tags", Columns: []string{"id"}, Keys: []string{"id"}}
	assert.Contains(t, keysOnly.upsertSQL(), "DO NOTHING")
}

func TestUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_import_persons"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_import_persons"}, []string{"id", "name", "updated_at"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "persons" .* ON CONFLICT \("id"\) DO UPDATE SET .* IS DISTINCT FROM`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`CREATE TEMP TABLE "_import_works"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_import_works"}, []string{"id", "title"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "works"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	works := Batch{Table: "works", Columns: []string{"id", "title"}, Keys: []string{"id"},
		Rows: [][]any{{int64(10), "Peer Gynt"}}}
	n, err := Upsert(context.Background(), mock,
		personBatch([]any{int64(1), "Henrik Ibsen", nil}, []any{int64(2), "Amalie Skram", nil}),
		Batch{Table: "episodes", Columns: []string{"prf_id"}, Keys: []string{"prf_id"}},
		works,
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"persons": 1, "works": 1}, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_CopyFailsRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_import_persons"}, []string{"id", "name", "updated_at"}).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = Upsert(context.Background(), mock, personBatch([]any{int64(1), "Henrik Ibsen", nil}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: upsert persons: copy")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"persons"`, sanitizeTable("persons"))
	assert.Equal(t, `"archive"."persons"`, sanitizeTable("archive.persons"))
}
