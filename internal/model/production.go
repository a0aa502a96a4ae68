package model

import (
	"sort"
	"time"
)

// Medium is the broadcast medium of a production.
type Medium string

// Known media.
const (
	MediumTV    Medium = "tv"
	MediumRadio Medium = "radio"
)

// Valid reports whether m is a known medium.
func (m Medium) Valid() bool {
	return m == MediumTV || m == MediumRadio
}

// Credit attaches a person in a role to a performance or episode.
type Credit struct {
	PersonID      int64  `json:"person_id" yaml:"person_id"`
	Role          string `json:"role" yaml:"role"`
	CharacterName string `json:"character_name,omitempty" yaml:"character_name,omitempty"`
}

// Common credit roles.
const (
	RoleActor      = "actor"
	RoleDirector   = "director"
	RolePlaywright = "playwright"
	RoleComposer   = "composer"
	RoleTranslator = "translator"
)

// CreditKey is the uniqueness key of a credit within one subject.
type CreditKey struct {
	PersonID      int64
	Role          string
	CharacterName string
}

// Key returns the credit's uniqueness key.
func (c Credit) Key() CreditKey {
	return CreditKey{PersonID: c.PersonID, Role: c.Role, CharacterName: c.CharacterName}
}

// DedupeCredits removes credits with a repeated key, keeping the first
// occurrence, and returns them in a stable order.
func DedupeCredits(credits []Credit) []Credit {
	if len(credits) == 0 {
		return credits
	}
	seen := make(map[CreditKey]bool, len(credits))
	out := make([]Credit, 0, len(credits))
	for _, c := range credits {
		if seen[c.Key()] {
			continue
		}
		seen[c.Key()] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		if a.PersonID != b.PersonID {
			return a.PersonID < b.PersonID
		}
		return a.CharacterName < b.CharacterName
	})
	return out
}

// Performance is one production of a Work, possibly spanning several
// broadcast parts.
type Performance struct {
	ID            int64    `json:"id" yaml:"id" db:"id"`
	WorkID        *int64   `json:"work_id,omitempty" yaml:"work_id,omitempty" db:"work_id"`
	Title         string   `json:"title" yaml:"title" db:"title"`
	Year          int      `json:"year,omitempty" yaml:"year,omitempty" db:"year"`
	Medium        Medium   `json:"medium" yaml:"medium" db:"medium"`
	SeriesID      string   `json:"series_id,omitempty" yaml:"series_id,omitempty" db:"series_id"`
	TotalDuration int      `json:"total_duration,omitempty" yaml:"total_duration,omitempty" db:"total_duration"` // seconds
	Credits       []Credit `json:"credits,omitempty" yaml:"credits,omitempty" db:"credits"`

	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy.
func (p *Performance) Clone() *Performance {
	c := *p
	c.WorkID = cloneInt64(p.WorkID)
	c.Credits = append([]Credit(nil), p.Credits...)
	return &c
}

// Episode is one harvested broadcast unit, identified by the broadcaster's
// PRF id.
type Episode struct {
	PrfID         string   `json:"prf_id" yaml:"prf_id" db:"prf_id"`
	Title         string   `json:"title" yaml:"title" db:"title"`
	Year          int      `json:"year,omitempty" yaml:"year,omitempty" db:"year"`
	Medium        Medium   `json:"medium" yaml:"medium" db:"medium"`
	PerformanceID *int64   `json:"performance_id,omitempty" yaml:"performance_id,omitempty" db:"performance_id"`
	PlayID        *int64   `json:"play_id,omitempty" yaml:"play_id,omitempty" db:"play_id"`
	SeriesID      string   `json:"series_id,omitempty" yaml:"series_id,omitempty" db:"series_id"`
	Duration      int      `json:"duration,omitempty" yaml:"duration,omitempty" db:"duration"` // seconds
	Description   string   `json:"description,omitempty" yaml:"description,omitempty" db:"description"`
	Credits       []Credit `json:"credits,omitempty" yaml:"credits,omitempty" db:"credits"`

	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy.
func (e *Episode) Clone() *Episode {
	c := *e
	c.PerformanceID = cloneInt64(e.PerformanceID)
	c.PlayID = cloneInt64(e.PlayID)
	c.Credits = append([]Credit(nil), e.Credits...)
	return &c
}
