// Package model defines the archive's core entities: persons, works,
// performances, episodes and the credits that tie them together.
package model

import "time"

// EntityKind names a stored collection.
type EntityKind string

// Entity kinds.
const (
	KindPerson      EntityKind = "person"
	KindWork        EntityKind = "work"
	KindPerformance EntityKind = "performance"
	KindEpisode     EntityKind = "episode"
)

// Person is a credited contributor: playwright, composer, actor, director.
type Person struct {
	ID             int64  `json:"id" yaml:"id" db:"id"`
	Name           string `json:"name" yaml:"name" db:"name"`
	NormalizedName string `json:"normalized_name" yaml:"normalized_name" db:"normalized_name"`

	// Enrichment
	WikidataID   string `json:"wikidata_id,omitempty" yaml:"wikidata_id,omitempty" db:"wikidata_id"`
	ScenewebID   string `json:"sceneweb_id,omitempty" yaml:"sceneweb_id,omitempty" db:"sceneweb_id"`
	BirthYear    *int   `json:"birth_year,omitempty" yaml:"birth_year,omitempty" db:"birth_year"`
	DeathYear    *int   `json:"death_year,omitempty" yaml:"death_year,omitempty" db:"death_year"`
	Bio          string `json:"bio,omitempty" yaml:"bio,omitempty" db:"bio"`
	WikipediaURL string `json:"wikipedia_url,omitempty" yaml:"wikipedia_url,omitempty" db:"wikipedia_url"`
	ImageURL     string `json:"image_url,omitempty" yaml:"image_url,omitempty" db:"image_url"`

	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// EntityID returns the person id.
func (p *Person) EntityID() int64 { return p.ID }

// Completeness counts the populated enrichment fields. Used to choose the
// canonical record among duplicates.
func (p *Person) Completeness() int {
	n := 0
	for _, s := range []string{p.WikidataID, p.ScenewebID, p.Bio, p.WikipediaURL, p.ImageURL} {
		if s != "" {
			n++
		}
	}
	if p.BirthYear != nil {
		n++
	}
	if p.DeathYear != nil {
		n++
	}
	return n
}

// FillFrom copies enrichment fields from src that are empty on p. Fields
// already set on p are never overwritten. Returns the names of the fields
// that were filled.
func (p *Person) FillFrom(src *Person) []string {
	var filled []string
	fillString(&p.WikidataID, src.WikidataID, "wikidata_id", &filled)
	fillString(&p.ScenewebID, src.ScenewebID, "sceneweb_id", &filled)
	fillString(&p.Bio, src.Bio, "bio", &filled)
	fillString(&p.WikipediaURL, src.WikipediaURL, "wikipedia_url", &filled)
	fillString(&p.ImageURL, src.ImageURL, "image_url", &filled)
	fillInt(&p.BirthYear, src.BirthYear, "birth_year", &filled)
	fillInt(&p.DeathYear, src.DeathYear, "death_year", &filled)
	return filled
}

// Clone returns a deep copy.
func (p *Person) Clone() *Person {
	c := *p
	c.BirthYear = cloneInt(p.BirthYear)
	c.DeathYear = cloneInt(p.DeathYear)
	return &c
}

func fillString(dst *string, src, name string, filled *[]string) {
	if *dst == "" && src != "" {
		*dst = src
		*filled = append(*filled, name)
	}
}

func fillInt(dst **int, src *int, name string, filled *[]string) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
		*filled = append(*filled, name)
	}
}

func fillInt64(dst **int64, src *int64, name string, filled *[]string) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
		*filled = append(*filled, name)
	}
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }
