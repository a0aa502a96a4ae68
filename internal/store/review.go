package store

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/teaterarkiv/archive-cli/internal/model"
)

const defaultReviewLimit = 500

// prepareReview fills the id and creation time of a new item.
func prepareReview(item model.ReviewItem) model.ReviewItem {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.EntityIDs = append([]string(nil), item.EntityIDs...)
	return item
}

// filterReviews applies filter to items held in memory, oldest first.
func filterReviews(items []model.ReviewItem, filter ReviewFilter) []model.ReviewItem {
	var out []model.ReviewItem
	for _, it := range items {
		if filter.Kind != "" && it.Kind != filter.Kind {
			continue
		}
		if !filter.IncludeResolved && !it.Pending() {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultReviewLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func now() time.Time {
	return time.Now().UTC()
}
