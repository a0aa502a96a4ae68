// Package sceneweb scrapes artist pages from sceneweb.no, the Norwegian
// performing arts database.
package sceneweb

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/teaterarkiv/archive-cli/internal/fetcher"
)

// Artist is what the archive reads from an artist page.
type Artist struct {
	ID        string
	Name      string
	BirthYear *int
	DeathYear *int
	Roles     []string // "Skuespiller", "Regissør", ...
}

// Client fetches Sceneweb artists.
type Client interface {
	// Artist returns the artist with the given Sceneweb id. Unknown ids wrap
	// model.ErrNotFound.
	Artist(ctx context.Context, id string) (*Artist, error)
}

// Option configures the Sceneweb client.
type Option func(*options)

type options struct {
	baseURL   string
	delay     time.Duration
	userAgent string
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
}

// NewClient creates a Sceneweb client.
func NewClient(opts ...Option) Client {
	o := options{baseURL: "https://sceneweb.no"}
	for _, opt := range opts {
		opt(&o)
	}
	return &httpClient{
		baseURL: strings.TrimRight(o.baseURL, "/"),
		get: fetcher.NewGetter(fetcher.Options{
			Source:    "sceneweb",
			UserAgent: o.userAgent,
			Delay:     o.delay,
			Client:    o.http,
		}),
	}
}

func (c *httpClient) Artist(ctx context.Context, id string) (*Artist, error) {
	id = strings.TrimSpace(id)
	if _, err := strconv.Atoi(id); err != nil {
		return nil, eris.Errorf("sceneweb: invalid artist id %q", id)
	}
	body, err := c.get.Get(ctx, c.baseURL+"/nb/artist/"+url.PathEscape(id), "artist "+id,
		http.Header{"Accept": {"text/html"}})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "sceneweb: parse artist %s", id)
	}
	a := ParseArtist(doc)
	a.ID = id
	if a.Name == "" {
		return nil, eris.Errorf("sceneweb: artist %s: page has no name", id)
	}
	return a, nil
}

var yearRe = regexp.MustCompile(`\b(1[5-9]\d\d|20\d\d)\b`)

// ParseArtist reads name, life years and roles from an artist page. The
// facts list is a <dl> of label/value pairs ("Født", "Død", "Roller").
func ParseArtist(doc *goquery.Document) *Artist {
	a := &Artist{
		Name: strings.TrimSpace(doc.Find("h1").First().Text()),
	}

	doc.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(dt.Text()), ":")))
		dd := dt.NextFiltered("dd")
		value := strings.TrimSpace(dd.Text())
		switch label {
		case "født":
			a.BirthYear = findYear(value)
		case "død":
			a.DeathYear = findYear(value)
		case "roller", "rolle", "yrke":
			for _, r := range strings.Split(value, ",") {
				if r = strings.TrimSpace(r); r != "" {
					a.Roles = append(a.Roles, r)
				}
			}
		}
	})
	return a
}

func findYear(s string) *int {
	m := yearRe.FindString(s)
	if m == "" {
		return nil
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &y
}
