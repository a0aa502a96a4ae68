package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/db"
	"github.com/teaterarkiv/archive-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS persons (
	id              BIGINT PRIMARY KEY,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL DEFAULT '',
	wikidata_id     TEXT NOT NULL DEFAULT '',
	sceneweb_id     TEXT NOT NULL DEFAULT '',
	birth_year      INTEGER,
	death_year      INTEGER,
	bio             TEXT NOT NULL DEFAULT '',
	wikipedia_url   TEXT NOT NULL DEFAULT '',
	image_url       TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS works (
	id             BIGINT PRIMARY KEY,
	title          TEXT NOT NULL,
	original_title TEXT NOT NULL DEFAULT '',
	playwright_id  BIGINT,
	composer_id    BIGINT,
	wikidata_id    TEXT NOT NULL DEFAULT '',
	genre          TEXT NOT NULL DEFAULT '',
	year           INTEGER,
	synopsis       TEXT NOT NULL DEFAULT '',
	wikipedia_url  TEXT NOT NULL DEFAULT '',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS performances (
	id             BIGINT PRIMARY KEY,
	work_id        BIGINT,
	title          TEXT NOT NULL,
	year           INTEGER NOT NULL DEFAULT 0,
	medium         TEXT NOT NULL DEFAULT '',
	series_id      TEXT NOT NULL DEFAULT '',
	total_duration INTEGER NOT NULL DEFAULT 0,
	credits        JSONB NOT NULL DEFAULT '[]',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS episodes (
	prf_id         TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	year           INTEGER NOT NULL DEFAULT 0,
	medium         TEXT NOT NULL DEFAULT '',
	performance_id BIGINT,
	play_id        BIGINT,
	series_id      TEXT NOT NULL DEFAULT '',
	duration       INTEGER NOT NULL DEFAULT 0,
	description    TEXT NOT NULL DEFAULT '',
	credits        JSONB NOT NULL DEFAULT '[]',
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS review_items (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	fingerprint TEXT NOT NULL UNIQUE,
	kind        TEXT NOT NULL,
	entity      TEXT NOT NULL,
	entity_ids  JSONB NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS id_counters (
	kind    TEXT PRIMARY KEY,
	last_id BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_persons_normalized_name ON persons(normalized_name);
CREATE INDEX IF NOT EXISTS idx_persons_wikidata_id ON persons(wikidata_id);
CREATE INDEX IF NOT EXISTS idx_works_wikidata_id ON works(wikidata_id);
CREATE INDEX IF NOT EXISTS idx_episodes_performance_id ON episodes(performance_id);
CREATE INDEX IF NOT EXISTS idx_review_items_pending ON review_items(kind) WHERE resolved_at IS NULL;
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
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var (
	personColumns = []string{"id", "name", "normalized_name", "wikidata_id", "sceneweb_id",
		"birth_year", "death_year", "bio", "wikipedia_url", "image_url", "updated_at"}
	workColumns = []string{"id", "title", "original_title", "playwright_id", "composer_id",
		"wikidata_id", "genre", "year", "synopsis", "wikipedia_url", "updated_at"}
	performanceColumns = []string{"id", "work_id", "title", "year", "medium", "series_id",
		"total_duration", "credits", "updated_at"}
	episodeColumns = []string{"prf_id", "title", "year", "medium", "performance_id", "play_id",
		"series_id", "duration", "description", "credits", "updated_at"}
)

// Persons

func (s *PostgresStore) LoadPersons(ctx context.Context) ([]model.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, normalized_name, wikidata_id, sceneweb_id, birth_year, death_year,
		        bio, wikipedia_url, image_url, updated_at
		 FROM persons ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load persons")
	}
	defer rows.Close()

	var out []model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.NormalizedName, &p.WikidataID, &p.ScenewebID,
			&p.BirthYear, &p.DeathYear, &p.Bio, &p.WikipediaURL, &p.ImageURL, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan person")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: load persons iterate")
}

func (s *PostgresStore) SavePerson(ctx context.Context, p model.Person) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO persons (id, name, normalized_name, wikidata_id, sceneweb_id, birth_year, death_year,
		                      bio, wikipedia_url, image_url, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, normalized_name = EXCLUDED.normalized_name,
		   wikidata_id = EXCLUDED.wikidata_id, sceneweb_id = EXCLUDED.sceneweb_id,
		   birth_year = EXCLUDED.birth_year, death_year = EXCLUDED.death_year,
		   bio = EXCLUDED.bio, wikipedia_url = EXCLUDED.wikipedia_url,
		   image_url = EXCLUDED.image_url, updated_at = EXCLUDED.updated_at`,
		personRow(p)...,
	)
	return eris.Wrapf(err, "postgres: save person %d", p.ID)
}

func (s *PostgresStore) DeletePerson(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete person %d", id)
}

// Works

func (s *PostgresStore) LoadWorks(ctx context.Context) ([]model.Work, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, original_title, playwright_id, composer_id, wikidata_id, genre, year,
		        synopsis, wikipedia_url, updated_at
		 FROM works ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load works")
	}
	defer rows.Close()

	var out []model.Work
	for rows.Next() {
		var w model.Work
		if err := rows.Scan(&w.ID, &w.Title, &w.OriginalTitle, &w.PlaywrightID, &w.ComposerID,
			&w.WikidataID, &w.Genre, &w.Year, &w.Synopsis, &w.WikipediaURL, &w.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan work")
		}
		out = append(out, w)
	}
	return out, eris.Wrap(rows.Err(), "postgres: load works iterate")
}

func (s *PostgresStore) SaveWork(ctx context.Context, w model.Work) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO works (id, title, original_title, playwright_id, composer_id, wikidata_id, genre, year,
		                    synopsis, wikipedia_url, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title, original_title = EXCLUDED.original_title,
		   playwright_id = EXCLUDED.playwright_id, composer_id = EXCLUDED.composer_id,
		   wikidata_id = EXCLUDED.wikidata_id, genre = EXCLUDED.genre, year = EXCLUDED.year,
		   synopsis = EXCLUDED.synopsis, wikipedia_url = EXCLUDED.wikipedia_url,
		   updated_at = EXCLUDED.updated_at`,
		workRow(w)...,
	)
	return eris.Wrapf(err, "postgres: save work %d", w.ID)
}

func (s *PostgresStore) DeleteWork(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM works WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete work %d", id)
}

// Performances

func (s *PostgresStore) LoadPerformances(ctx context.Context) ([]model.Performance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, work_id, title, year, medium, series_id, total_duration, credits, updated_at
		 FROM performances ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load performances")
	}
	defer rows.Close()

	var out []model.Performance
	for rows.Next() {
		var p model.Performance
		var medium string
		var credits []byte
		if err := rows.Scan(&p.ID, &p.WorkID, &p.Title, &p.Year, &medium, &p.SeriesID,
			&p.TotalDuration, &credits, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan performance")
		}
		p.Medium = model.Medium(medium)
		if p.Credits, err = unmarshalCredits(string(credits)); err != nil {
			return nil, eris.Wrapf(err, "postgres: performance %d credits", p.ID)
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: load performances iterate")
}

func (s *PostgresStore) SavePerformance(ctx context.Context, p model.Performance) error {
	args, err := performanceRow(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal performance credits")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO performances (id, work_id, title, year, medium, series_id, total_duration, credits, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   work_id = EXCLUDED.work_id, title = EXCLUDED.title, year = EXCLUDED.year,
		   medium = EXCLUDED.medium, series_id = EXCLUDED.series_id,
		   total_duration = EXCLUDED.total_duration, credits = EXCLUDED.credits,
		   updated_at = EXCLUDED.updated_at`,
		args...,
	)
	return eris.Wrapf(err, "postgres: save performance %d", p.ID)
}

func (s *PostgresStore) DeletePerformance(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM performances WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete performance %d", id)
}

// Episodes

func (s *PostgresStore) LoadEpisodes(ctx context.Context) ([]model.Episode, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT prf_id, title, year, medium, performance_id, play_id, series_id, duration,
		        description, credits, updated_at
		 FROM episodes ORDER BY prf_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load episodes")
	}
	defer rows.Close()

	var out []model.Episode
	for rows.Next() {
		var e model.Episode
		var medium string
		var credits []byte
		if err := rows.Scan(&e.PrfID, &e.Title, &e.Year, &medium, &e.PerformanceID, &e.PlayID,
			&e.SeriesID, &e.Duration, &e.Description, &credits, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan episode")
		}
		e.Medium = model.Medium(medium)
		if e.Credits, err = unmarshalCredits(string(credits)); err != nil {
			return nil, eris.Wrapf(err, "postgres: episode %s credits", e.PrfID)
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: load episodes iterate")
}

func (s *PostgresStore) SaveEpisode(ctx context.Context, e model.Episode) error {
	args, err := episodeRow(e)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal episode credits")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO episodes (prf_id, title, year, medium, performance_id, play_id, series_id, duration,
		                       description, credits, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (prf_id) DO UPDATE SET
		   title = EXCLUDED.title, year = EXCLUDED.year, medium = EXCLUDED.medium,
		   performance_id = EXCLUDED.performance_id, play_id = EXCLUDED.play_id,
		   series_id = EXCLUDED.series_id, duration = EXCLUDED.duration,
		   description = EXCLUDED.description, credits = EXCLUDED.credits,
		   updated_at = EXCLUDED.updated_at`,
		args...,
	)
	return eris.Wrapf(err, "postgres: save episode %s", e.PrfID)
}

func (s *PostgresStore) DeleteEpisode(ctx context.Context, prfID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM episodes WHERE prf_id = $1`, prfID)
	return eris.Wrapf(err, "postgres: delete episode %s", prfID)
}

func (s *PostgresStore) NextID(ctx context.Context, kind model.EntityKind) (int64, error) {
	table, err := idTable(kind)
	if err != nil {
		return 0, err
	}
	// The counter row is locked by the upsert, so concurrent callers never
	// see the same id.
	var next int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO id_counters (kind, last_id)
		 VALUES ($1, (SELECT COALESCE(MAX(id), 0) FROM `+table+`) + 1)
		 ON CONFLICT (kind) DO UPDATE SET last_id = GREATEST(id_counters.last_id + 1, EXCLUDED.last_id)
		 RETURNING last_id`,
		string(kind),
	).Scan(&next)
	return next, eris.Wrapf(err, "postgres: next %s id", kind)
}

// Review queue

func (s *PostgresStore) EnqueueReview(ctx context.Context, item model.ReviewItem) error {
	item = prepareReview(item)
	ids, err := json.Marshal(item.EntityIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal review ids")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO review_items (id, fingerprint, kind, entity, entity_ids, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		item.ID, item.Fingerprint(), string(item.Kind), string(item.Entity), ids, item.Reason, item.CreatedAt,
	)
	return eris.Wrap(err, "postgres: enqueue review")
}

func (s *PostgresStore) ListReview(ctx context.Context, filter ReviewFilter) ([]model.ReviewItem, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultReviewLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, entity, entity_ids, reason, created_at, resolved_at
		 FROM review_items
		 WHERE ($1 = '' OR kind = $1) AND ($2 OR resolved_at IS NULL)
		 ORDER BY created_at, id
		 LIMIT $3`,
		string(filter.Kind), filter.IncludeResolved, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list review")
	}
	defer rows.Close()

	var out []model.ReviewItem
	for rows.Next() {
		var it model.ReviewItem
		var kind, entity string
		var ids []byte
		if err := rows.Scan(&it.ID, &kind, &entity, &ids, &it.Reason, &it.CreatedAt, &it.ResolvedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan review item")
		}
		it.Kind = model.ReviewKind(kind)
		it.Entity = model.EntityKind(entity)
		if err := json.Unmarshal(ids, &it.EntityIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal review ids")
		}
		out = append(out, it)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list review iterate")
}

func (s *PostgresStore) ResolveReview(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE review_items SET resolved_at = $1 WHERE id = $2`, now(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve review %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "postgres: review item %s", id)
	}
	return nil
}

// Import bulk-loads a snapshot in one transaction with COPY-based upserts.
// Used by the copy command instead of row-at-a-time saves.
func (s *PostgresStore) Import(ctx context.Context, snap *model.Snapshot) (int, error) {
	persons := db.Batch{Table: "persons", Columns: personColumns, Keys: []string{"id"}, Touch: touched}
	for _, p := range snap.PersonList() {
		persons.Rows = append(persons.Rows, personRow(*p))
	}
	works := db.Batch{Table: "works", Columns: workColumns, Keys: []string{"id"}, Touch: touched}
	for _, w := range snap.WorkList() {
		works.Rows = append(works.Rows, workRow(*w))
	}
	perfs := db.Batch{Table: "performances", Columns: performanceColumns, Keys: []string{"id"}, Touch: touched}
	for _, p := range snap.PerformanceList() {
		row, err := performanceRow(*p)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: import performance %d", p.ID)
		}
		perfs.Rows = append(perfs.Rows, row)
	}
	episodes := db.Batch{Table: "episodes", Columns: episodeColumns, Keys: []string{"prf_id"}, Touch: touched}
	for _, e := range snap.EpisodeList() {
		row, err := episodeRow(*e)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: import episode %s", e.PrfID)
		}
		episodes.Rows = append(episodes.Rows, row)
	}

	written, err := db.Upsert(ctx, s.pool, persons, works, perfs, episodes)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import")
	}
	total := 0
	for table, n := range written {
		zap.L().Info("postgres: imported", zap.String("table", table), zap.Int64("rows", n))
		total += int(n)
	}
	return total, nil
}

var touched = []string{"updated_at"}

func personRow(p model.Person) []any {
	return []any{p.ID, p.Name, p.NormalizedName, p.WikidataID, p.ScenewebID,
		p.BirthYear, p.DeathYear, p.Bio, p.WikipediaURL, p.ImageURL, now()}
}

func workRow(w model.Work) []any {
	return []any{w.ID, w.Title, w.OriginalTitle, w.PlaywrightID, w.ComposerID,
		w.WikidataID, w.Genre, w.Year, w.Synopsis, w.WikipediaURL, now()}
}

func performanceRow(p model.Performance) ([]any, error) {
	credits, err := marshalCredits(p.Credits)
	if err != nil {
		return nil, err
	}
	return []any{p.ID, p.WorkID, p.Title, p.Year, string(p.Medium), p.SeriesID,
		p.TotalDuration, []byte(credits), now()}, nil
}

func episodeRow(e model.Episode) ([]any, error) {
	credits, err := marshalCredits(e.Credits)
	if err != nil {
		return nil, err
	}
	return []any{e.PrfID, e.Title, e.Year, string(e.Medium), e.PerformanceID, e.PlayID,
		e.SeriesID, e.Duration, e.Description, []byte(credits), now()}, nil
}
