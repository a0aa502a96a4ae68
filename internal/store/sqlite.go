package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/teaterarkiv/archive-cli/internal/model"
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
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// One writer at a time; passes are sequential.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS persons (
	id              INTEGER PRIMARY KEY,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL DEFAULT '',
	wikidata_id     TEXT NOT NULL DEFAULT '',
	sceneweb_id     TEXT NOT NULL DEFAULT '',
	birth_year      INTEGER,
	death_year      INTEGER,
	bio             TEXT NOT NULL DEFAULT '',
	wikipedia_url   TEXT NOT NULL DEFAULT '',
	image_url       TEXT NOT NULL DEFAULT '',
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS works (
	id             INTEGER PRIMARY KEY,
	title          TEXT NOT NULL,
	original_title TEXT NOT NULL DEFAULT '',
	playwright_id  INTEGER,
	composer_id    INTEGER,
	wikidata_id    TEXT NOT NULL DEFAULT '',
	genre          TEXT NOT NULL DEFAULT '',
	year           INTEGER,
	synopsis       TEXT NOT NULL DEFAULT '',
	wikipedia_url  TEXT NOT NULL DEFAULT '',
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS performances (
	id             INTEGER PRIMARY KEY,
	work_id        INTEGER,
	title          TEXT NOT NULL,
	year           INTEGER NOT NULL DEFAULT 0,
	medium         TEXT NOT NULL DEFAULT '',
	series_id      TEXT NOT NULL DEFAULT '',
	total_duration INTEGER NOT NULL DEFAULT 0,
	credits        TEXT NOT NULL DEFAULT '[]',
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS episodes (
	prf_id         TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	year           INTEGER NOT NULL DEFAULT 0,
	medium         TEXT NOT NULL DEFAULT '',
	performance_id INTEGER,
	play_id        INTEGER,
	series_id      TEXT NOT NULL DEFAULT '',
	duration       INTEGER NOT NULL DEFAULT 0,
	description    TEXT NOT NULL DEFAULT '',
	credits        TEXT NOT NULL DEFAULT '[]',
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS review_items (
	id          TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	kind        TEXT NOT NULL,
	entity      TEXT NOT NULL,
	entity_ids  TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	resolved_at DATETIME
);

CREATE TABLE IF NOT EXISTS id_counters (
	kind    TEXT PRIMARY KEY,
	last_id INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_persons_normalized_name ON persons(normalized_name);
CREATE INDEX IF NOT EXISTS idx_persons_wikidata_id ON persons(wikidata_id);
CREATE INDEX IF NOT EXISTS idx_works_wikidata_id ON works(wikidata_id);
CREATE INDEX IF NOT EXISTS idx_episodes_performance_id ON episodes(performance_id);
CREATE INDEX IF NOT EXISTS idx_review_items_kind ON review_items(kind);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Persons

func (s *SQLiteStore) LoadPersons(ctx context.Context) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, normalized_name, wikidata_id, sceneweb_id, birth_year, death_year,
		        bio, wikipedia_url, image_url, updated_at
		 FROM persons ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load persons")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Person
	for rows.Next() {
		var p model.Person
		var birth, death sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &p.NormalizedName, &p.WikidataID, &p.ScenewebID,
			&birth, &death, &p.Bio, &p.WikipediaURL, &p.ImageURL, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan person")
		}
		p.BirthYear = intFromNull(birth)
		p.DeathYear = intFromNull(death)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load persons iterate")
}

func (s *SQLiteStore) SavePerson(ctx context.Context, p model.Person) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO persons (id, name, normalized_name, wikidata_id, sceneweb_id, birth_year, death_year,
		                      bio, wikipedia_url, image_url, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name, normalized_name = excluded.normalized_name,
		   wikidata_id = excluded.wikidata_id, sceneweb_id = excluded.sceneweb_id,
		   birth_year = excluded.birth_year, death_year = excluded.death_year,
		   bio = excluded.bio, wikipedia_url = excluded.wikipedia_url,
		   image_url = excluded.image_url, updated_at = excluded.updated_at`,
		p.ID, p.Name, p.NormalizedName, p.WikidataID, p.ScenewebID,
		nullInt(p.BirthYear), nullInt(p.DeathYear),
		p.Bio, p.WikipediaURL, p.ImageURL, now(),
	)
	return eris.Wrapf(err, "sqlite: save person %d", p.ID)
}

func (s *SQLiteStore) DeletePerson(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete person %d", id)
}

// Works

func (s *SQLiteStore) LoadWorks(ctx context.Context) ([]model.Work, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, original_title, playwright_id, composer_id, wikidata_id, genre, year,
		        synopsis, wikipedia_url, updated_at
		 FROM works ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load works")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Work
	for rows.Next() {
		var w model.Work
		var playwright, composer, year sql.NullInt64
		if err := rows.Scan(&w.ID, &w.Title, &w.OriginalTitle, &playwright, &composer, &w.WikidataID,
			&w.Genre, &year, &w.Synopsis, &w.WikipediaURL, &w.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan work")
		}
		w.PlaywrightID = int64FromNull(playwright)
		w.ComposerID = int64FromNull(composer)
		w.Year = intFromNull(year)
		out = append(out, w)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load works iterate")
}

func (s *SQLiteStore) SaveWork(ctx context.Context, w model.Work) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO works (id, title, original_title, playwright_id, composer_id, wikidata_id, genre, year,
		                    synopsis, wikipedia_url, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title, original_title = excluded.original_title,
		   playwright_id = excluded.playwright_id, composer_id = excluded.composer_id,
		   wikidata_id = excluded.wikidata_id, genre = excluded.genre, year = excluded.year,
		   synopsis = excluded.synopsis, wikipedia_url = excluded.wikipedia_url,
		   updated_at = excluded.updated_at`,
		w.ID, w.Title, w.OriginalTitle, nullInt64(w.PlaywrightID), nullInt64(w.ComposerID),
		w.WikidataID, w.Genre, nullInt(w.Year), w.Synopsis, w.WikipediaURL, now(),
	)
	return eris.Wrapf(err, "sqlite: save work %d", w.ID)
}

func (s *SQLiteStore) DeleteWork(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM works WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete work %d", id)
}

// Performances

func (s *SQLiteStore) LoadPerformances(ctx context.Context) ([]model.Performance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, work_id, title, year, medium, series_id, total_duration, credits, updated_at
		 FROM performances ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load performances")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Performance
	for rows.Next() {
		var p model.Performance
		var work sql.NullInt64
		var credits string
		if err := rows.Scan(&p.ID, &work, &p.Title, &p.Year, &p.Medium, &p.SeriesID,
			&p.TotalDuration, &credits, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan performance")
		}
		p.WorkID = int64FromNull(work)
		if p.Credits, err = unmarshalCredits(credits); err != nil {
			return nil, eris.Wrapf(err, "sqlite: performance %d credits", p.ID)
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load performances iterate")
}

func (s *SQLiteStore) SavePerformance(ctx context.Context, p model.Performance) error {
	credits, err := marshalCredits(p.Credits)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal performance credits")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO performances (id, work_id, title, year, medium, series_id, total_duration, credits, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   work_id = excluded.work_id, title = excluded.title, year = excluded.year,
		   medium = excluded.medium, series_id = excluded.series_id,
		   total_duration = excluded.total_duration, credits = excluded.credits,
		   updated_at = excluded.updated_at`,
		p.ID, nullInt64(p.WorkID), p.Title, p.Year, string(p.Medium), p.SeriesID,
		p.TotalDuration, credits, now(),
	)
	return eris.Wrapf(err, "sqlite: save performance %d", p.ID)
}

func (s *SQLiteStore) DeletePerformance(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM performances WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete performance %d", id)
}

// Episodes

func (s *SQLiteStore) LoadEpisodes(ctx context.Context) ([]model.Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT prf_id, title, year, medium, performance_id, play_id, series_id, duration,
		        description, credits, updated_at
		 FROM episodes ORDER BY prf_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load episodes")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Episode
	for rows.Next() {
		var e model.Episode
		var perf, play sql.NullInt64
		var credits string
		if err := rows.Scan(&e.PrfID, &e.Title, &e.Year, &e.Medium, &perf, &play, &e.SeriesID,
			&e.Duration, &e.Description, &credits, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan episode")
		}
		e.PerformanceID = int64FromNull(perf)
		e.PlayID = int64FromNull(play)
		if e.Credits, err = unmarshalCredits(credits); err != nil {
			return nil, eris.Wrapf(err, "sqlite: episode %s credits", e.PrfID)
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: load episodes iterate")
}

func (s *SQLiteStore) SaveEpisode(ctx context.Context, e model.Episode) error {
	credits, err := marshalCredits(e.Credits)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal episode credits")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO episodes (prf_id, title, year, medium, performance_id, play_id, series_id, duration,
		                       description, credits, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(prf_id) DO UPDATE SET
		   title = excluded.title, year = excluded.year, medium = excluded.medium,
		   performance_id = excluded.performance_id, play_id = excluded.play_id,
		   series_id = excluded.series_id, duration = excluded.duration,
		   description = excluded.description, credits = excluded.credits,
		   updated_at = excluded.updated_at`,
		e.PrfID, e.Title, e.Year, string(e.Medium), nullInt64(e.PerformanceID), nullInt64(e.PlayID),
		e.SeriesID, e.Duration, e.Description, credits, now(),
	)
	return eris.Wrapf(err, "sqlite: save episode %s", e.PrfID)
}

func (s *SQLiteStore) DeleteEpisode(ctx context.Context, prfID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE prf_id = ?`, prfID)
	return eris.Wrapf(err, "sqlite: delete episode %s", prfID)
}

// NextID advances a per-kind counter, so ids freed by a delete are never
// handed out again. Rows saved with an explicit id push the counter forward.
func (s *SQLiteStore) NextID(ctx context.Context, kind model.EntityKind) (int64, error) {
	table, err := idTable(kind)
	if err != nil {
		return 0, err
	}
	var next int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO id_counters (kind, last_id)
		 VALUES (?, (SELECT COALESCE(MAX(id), 0) FROM `+table+`) + 1)
		 ON CONFLICT(kind) DO UPDATE SET last_id = MAX(id_counters.last_id + 1, excluded.last_id)
		 RETURNING last_id`,
		string(kind),
	).Scan(&next)
	return next, eris.Wrapf(err, "sqlite: next %s id", kind)
}

// Review queue

func (s *SQLiteStore) EnqueueReview(ctx context.Context, item model.ReviewItem) error {
	item = prepareReview(item)
	ids, err := json.Marshal(item.EntityIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal review ids")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_items (id, fingerprint, kind, entity, entity_ids, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO NOTHING`,
		item.ID, item.Fingerprint(), string(item.Kind), string(item.Entity), string(ids),
		item.Reason, item.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue review")
}

func (s *SQLiteStore) ListReview(ctx context.Context, filter ReviewFilter) ([]model.ReviewItem, error) {
	query := `SELECT id, kind, entity, entity_ids, reason, created_at, resolved_at FROM review_items WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if !filter.IncludeResolved {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY created_at, id LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultReviewLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list review")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ReviewItem
	for rows.Next() {
		var it model.ReviewItem
		var ids string
		var resolved sql.NullTime
		if err := rows.Scan(&it.ID, &it.Kind, &it.Entity, &ids, &it.Reason, &it.CreatedAt, &resolved); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review item")
		}
		if err := json.Unmarshal([]byte(ids), &it.EntityIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal review ids")
		}
		if resolved.Valid {
			t := resolved.Time
			it.ResolvedAt = &t
		}
		out = append(out, it)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list review iterate")
}

func (s *SQLiteStore) ResolveReview(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_items SET resolved_at = ? WHERE id = ?`, now(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve review %s", id)
	}
	return checkRowsAffected(res, "review item", id)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func idTable(kind model.EntityKind) (string, error) {
	switch kind {
	case model.KindPerson:
		return "persons", nil
	case model.KindWork:
		return "works", nil
	case model.KindPerformance:
		return "performances", nil
	}
	return "", eris.Errorf("store: no numeric ids for %s", kind)
}

func marshalCredits(credits []model.Credit) (string, error) {
	if credits == nil {
		credits = []model.Credit{}
	}
	b, err := json.Marshal(credits)
	return string(b), err
}

func unmarshalCredits(s string) ([]model.Credit, error) {
	if s == "" {
		return nil, nil
	}
	var credits []model.Credit
	if err := json.Unmarshal([]byte(s), &credits); err != nil {
		return nil, err
	}
	if len(credits) == 0 {
		return nil, nil
	}
	return credits, nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func int64FromNull(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}
