// Package wikidata reads entity data from Wikidata's Special:EntityData
// endpoint and reduces it to the fields the archive enriches.
package wikidata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"

	"github.com/teaterarkiv/archive-cli/internal/fetcher"
)

// Property ids read from claims.
const (
	propBirth = "P569"
	propDeath = "P570"
	propImage = "P18"
)

// Preferred languages for labels and descriptions, most preferred first.
var languages = []string{"nb", "no", "nn", "en"}

// Preferred Wikipedia sites.
var sites = []string{"nowiki", "nnwiki", "enwiki"}

// Entity is the reduced view of a Wikidata item.
type Entity struct {
	ID           string
	Label        string
	Description  string
	BirthYear    *int
	DeathYear    *int
	WikipediaURL string
	ImageURL     string
}

// Client looks up Wikidata items.
type Client interface {
	// Entity returns the item with the given Q-id. Unknown ids wrap
	// model.ErrNotFound.
	Entity(ctx context.Context, qid string) (*Entity, error)
}

// Option configures the Wikidata client.
type Option func(*options)

type options struct {
	baseURL   string
	delay     time.Duration
	userAgent string
	cacheSize int
	http      *http.Client
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithDelay sets the pause between calls. Negative disables throttling.
func WithDelay(d time.Duration) Option {
	return func(o *options) { o.delay = d }
}

// WithCacheSize sets how many entities are kept in memory. Default 1024.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.http = hc }
}

type httpClient struct {
	baseURL string
	get     *fetcher.Getter
	cache   *lru.Cache[string, *Entity]
}

// NewClient creates a Wikidata client.
func NewClient(opts ...Option) (Client, error) {
	o := options{baseURL: "https://www.wikidata.org", cacheSize: 1024}
	for _, opt := range opts {
		opt(&o)
	}
	cache, err := lru.New[string, *Entity](o.cacheSize)
	if err != nil {
		return nil, eris.Wrap(err, "wikidata: create cache")
	}
	return &httpClient{
		baseURL: strings.TrimRight(o.baseURL, "/"),
		get: fetcher.NewGetter(fetcher.Options{
			Source:    "wikidata",
			UserAgent: o.userAgent,
			Delay:     o.delay,
			Client:    o.http,
		}),
		cache: cache,
	}, nil
}

var qidRe = regexp.MustCompile(`^Q[1-9][0-9]*$`)

// ValidID reports whether s looks like a Wikidata item id.
func ValidID(s string) bool {
	return qidRe.MatchString(s)
}

func (c *httpClient) Entity(ctx context.Context, qid string) (*Entity, error) {
	qid = strings.ToUpper(strings.TrimSpace(qid))
	if !ValidID(qid) {
		return nil, eris.Errorf("wikidata: invalid id %q", qid)
	}
	if e, ok := c.cache.Get(qid); ok {
		return e, nil
	}

	body, err := c.get.Get(ctx, c.baseURL+"/wiki/Special:EntityData/"+url.PathEscape(qid)+".json", qid,
		http.Header{"Accept": {"application/json"}})
	if err != nil {
		return nil, err
	}

	var doc entityDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, eris.Wrapf(err, "wikidata: decode %s", qid)
	}
	raw, ok := doc.Entities[qid]
	if !ok {
		// Redirected items come back under their new id.
		for _, v := range doc.Entities {
			raw, ok = v, true
			break
		}
	}
	if !ok {
		return nil, eris.Errorf("wikidata: %s missing from response", qid)
	}

	e := raw.reduce()
	c.cache.Add(qid, e)
	return e, nil
}

type entityDoc struct {
	Entities map[string]rawEntity `json:"entities"`
}

type rawEntity struct {
	ID           string               `json:"id"`
	Labels       map[string]langValue `json:"labels"`
	Descriptions map[string]langValue `json:"descriptions"`
	Claims       map[string][]claim   `json:"claims"`
	Sitelinks    map[string]siteLink  `json:"sitelinks"`
}

type langValue struct {
	Value string `json:"value"`
}

type siteLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type claim struct {
	Rank     string `json:"rank"`
	Mainsnak struct {
		Datavalue struct {
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

func (r rawEntity) reduce() *Entity {
	e := &Entity{
		ID:          r.ID,
		Label:       pickLang(r.Labels),
		Description: pickLang(r.Descriptions),
		BirthYear:   r.year(propBirth),
		DeathYear:   r.year(propDeath),
	}
	for _, site := range sites {
		if l, ok := r.Sitelinks[site]; ok {
			e.WikipediaURL = l.URL
			if e.WikipediaURL == "" && l.Title != "" {
				lang := strings.TrimSuffix(site, "wiki")
				e.WikipediaURL = "https://" + lang + ".wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(l.Title, " ", "_"))
			}
			break
		}
	}
	if file := r.stringClaim(propImage); file != "" {
		e.ImageURL = "https://commons.wikimedia.org/wiki/Special:FilePath/" + url.PathEscape(strings.ReplaceAll(file, " ", "_"))
	}
	return e
}

func pickLang(m map[string]langValue) string {
	for _, l := range languages {
		if v, ok := m[l]; ok && v.Value != "" {
			return v.Value
		}
	}
	return ""
}

// best returns the preferred claim, else the first non-deprecated one.
func best(claims []claim) *claim {
	var first *claim
	for i := range claims {
		switch claims[i].Rank {
		case "preferred":
			return &claims[i]
		case "deprecated":
			continue
		}
		if first == nil {
			first = &claims[i]
		}
	}
	return first
}

func (r rawEntity) year(prop string) *int {
	c := best(r.Claims[prop])
	if c == nil {
		return nil
	}
	var tv struct {
		Time string `json:"time"`
	}
	if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &tv); err != nil {
		return nil
	}
	return ParseYear(tv.Time)
}

func (r rawEntity) stringClaim(prop string) string {
	c := best(r.Claims[prop])
	if c == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &s); err != nil {
		return ""
	}
	return s
}

// ParseYear extracts the year from a Wikidata time value such as
// "+1898-02-10T00:00:00Z". Negative (BCE) years are returned as negative.
func ParseYear(t string) *int {
	if len(t) < 2 {
		return nil
	}
	sign := 1
	switch t[0] {
	case '-':
		sign = -1
		t = t[1:]
	case '+':
		t = t[1:]
	}
	end := strings.IndexByte(t, '-')
	if end <= 0 {
		return nil
	}
	y, err := strconv.Atoi(t[:end])
	if err != nil {
		return nil
	}
	y *= sign
	return &y
}
