package model

import "time"

// Work is the authored piece (play, opera, composition) independent of any
// production of it. A Work references its playwright and composer; it never
// owns them.
type Work struct {
	ID            int64  `json:"id" yaml:"id" db:"id"`
	Title         string `json:"title" yaml:"title" db:"title"`
	OriginalTitle string `json:"original_title,omitempty" yaml:"original_title,omitempty" db:"original_title"`
	PlaywrightID  *int64 `json:"playwright_id,omitempty" yaml:"playwright_id,omitempty" db:"playwright_id"`
	ComposerID    *int64 `json:"composer_id,omitempty" yaml:"composer_id,omitempty" db:"composer_id"`

	// Enrichment
	WikidataID   string `json:"wikidata_id,omitempty" yaml:"wikidata_id,omitempty" db:"wikidata_id"`
	Genre        string `json:"genre,omitempty" yaml:"genre,omitempty" db:"genre"`
	Year         *int   `json:"year,omitempty" yaml:"year,omitempty" db:"year"`
	Synopsis     string `json:"synopsis,omitempty" yaml:"synopsis,omitempty" db:"synopsis"`
	WikipediaURL string `json:"wikipedia_url,omitempty" yaml:"wikipedia_url,omitempty" db:"wikipedia_url"`

	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at" db:"updated_at"`
}

// EntityID returns the work id.
func (w *Work) EntityID() int64 { return w.ID }

// Completeness counts the populated enrichment fields.
func (w *Work) Completeness() int {
	n := 0
	for _, s := range []string{w.OriginalTitle, w.WikidataID, w.Genre, w.Synopsis, w.WikipediaURL} {
		if s != "" {
			n++
		}
	}
	if w.PlaywrightID != nil {
		n++
	}
	if w.ComposerID != nil {
		n++
	}
	if w.Year != nil {
		n++
	}
	return n
}

// FillFrom copies fields from src that are empty on w.
func (w *Work) FillFrom(src *Work) []string {
	var filled []string
	fillString(&w.OriginalTitle, src.OriginalTitle, "original_title", &filled)
	fillString(&w.WikidataID, src.WikidataID, "wikidata_id", &filled)
	fillString(&w.Genre, src.Genre, "genre", &filled)
	fillString(&w.Synopsis, src.Synopsis, "synopsis", &filled)
	fillString(&w.WikipediaURL, src.WikipediaURL, "wikipedia_url", &filled)
	fillInt64(&w.PlaywrightID, src.PlaywrightID, "playwright_id", &filled)
	fillInt64(&w.ComposerID, src.ComposerID, "composer_id", &filled)
	fillInt(&w.Year, src.Year, "year", &filled)
	return filled
}

// Clone returns a deep copy.
func (w *Work) Clone() *Work {
	c := *w
	c.PlaywrightID = cloneInt64(w.PlaywrightID)
	c.ComposerID = cloneInt64(w.ComposerID)
	c.Year = cloneInt(w.Year)
	return &c
}
