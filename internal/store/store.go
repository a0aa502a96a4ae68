// Package store persists the archive: persons, works, performances, episodes
// and the manual review queue. SQLite, YAML file-per-record, Postgres and
// in-memory back ends satisfy the same Store interface.
package store

import (
	"context"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

// Loader reads whole collections.
type Loader interface {
	LoadPersons(ctx context.Context) ([]model.Person, error)
	LoadWorks(ctx context.Context) ([]model.Work, error)
	LoadPerformances(ctx context.Context) ([]model.Performance, error)
	LoadEpisodes(ctx context.Context) ([]model.Episode, error)
}

// ReviewFilter selects review items.
type ReviewFilter struct {
	Kind            model.ReviewKind `json:"kind,omitempty"`
	IncludeResolved bool             `json:"include_resolved,omitempty"`
	Limit           int              `json:"limit,omitempty"`
}

// Store defines the persistence boundary of the archive. Saves are upserts
// and deletes of missing records succeed, so every write can be repeated.
type Store interface {
	Loader

	SavePerson(ctx context.Context, p model.Person) error
	SaveWork(ctx context.Context, w model.Work) error
	SavePerformance(ctx context.Context, p model.Performance) error
	SaveEpisode(ctx context.Context, e model.Episode) error

	DeletePerson(ctx context.Context, id int64) error
	DeleteWork(ctx context.Context, id int64) error
	DeletePerformance(ctx context.Context, id int64) error
	DeleteEpisode(ctx context.Context, prfID string) error

	// NextID returns an unused id for persons, works or performances.
	NextID(ctx context.Context, kind model.EntityKind) (int64, error)

	// Review queue. Enqueue is idempotent per fingerprint; a resolved item
	// stays resolved when the same issue is enqueued again.
	EnqueueReview(ctx context.Context, item model.ReviewItem) error
	ListReview(ctx context.Context, filter ReviewFilter) ([]model.ReviewItem, error)
	ResolveReview(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
