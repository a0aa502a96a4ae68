package model

import (
	"sort"
	"strings"
	"time"
)

// ReviewKind categorizes an item that needs a human decision.
type ReviewKind string

// Review kinds.
const (
	ReviewReferentialViolation ReviewKind = "referential_violation"
	ReviewHomonym              ReviewKind = "homonym"
	ReviewOrphan               ReviewKind = "orphan"
	ReviewFetchFailed          ReviewKind = "fetch_failed"
)

// ReviewItem is a queued decision: a merge that was aborted, a suspected
// homonym, an ambiguous orphan or a lookup that kept failing.
type ReviewItem struct {
	ID         string     `json:"id" yaml:"id"`
	Kind       ReviewKind `json:"kind" yaml:"kind"`
	Entity     EntityKind `json:"entity" yaml:"entity"`
	EntityIDs  []string   `json:"entity_ids" yaml:"entity_ids"`
	Reason     string     `json:"reason" yaml:"reason"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" yaml:"resolved_at,omitempty"`
}

// Fingerprint identifies the item independent of its id, so that re-running
// a pass does not queue the same decision twice.
func (r ReviewItem) Fingerprint() string {
	ids := append([]string(nil), r.EntityIDs...)
	sort.Strings(ids)
	return string(r.Kind) + "|" + string(r.Entity) + "|" + strings.Join(ids, ",")
}

// Pending reports whether the item is still unresolved.
func (r ReviewItem) Pending() bool {
	return r.ResolvedAt == nil
}
