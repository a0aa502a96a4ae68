// Package nrk provides a client for the NRK programme API (PSAPI).
package nrk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/teaterarkiv/archive-cli/internal/fetcher"
)

// Client fetches programme metadata by PRF id.
type Client interface {
	// Program returns the programme with the given PRF id. Unknown ids wrap
	// model.ErrNotFound.
	Program(ctx context.Context, prfID string) (*Program, error)
}

// Program is the subset of a PSAPI programme the archive uses.
type Program struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	OriginalTitle  string        `json:"originalTitle"`
	Description    string        `json:"description"`
	ProductionYear int           `json:"productionYear"`
	Duration       string        `json:"duration"`  // ISO-8601, "PT1H2M3S"
	MediaType      string        `json:"mediaType"` // "Video" or "Audio"
	Series         *Series       `json:"series,omitempty"`
	Contributors   []Contributor `json:"contributors,omitempty"`
}

// Series identifies the series a programme belongs to.
type Series struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Contributor is one credited person as NRK lists them.
type Contributor struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

// DurationSeconds parses the ISO-8601 duration. Unparseable values give 0.
func (p *Program) DurationSeconds() int {
	return ParseDuration(p.Duration)
}

// SeriesID returns the series id or "".
func (p *Program) SeriesID() string {
	if p.Series == nil {
		return ""
	}
	return p.Series.ID
}

var durationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseDuration converts an ISO-8601 duration such as "PT1H2M3.5S" to whole
// seconds. Returns 0 when s is empty or malformed.
func ParseDuration(s string) int {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(strings.ToUpper(s)))
	if m == nil {
		return 0
	}
	var total float64
	for i, unit := range []float64{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0
		}
		total += v * unit
	}
	return int(total)
}

// Option configures the NRK client.
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

// NewClient creates a PSAPI client.
func NewClient(opts ...Option) Client {
	o := options{baseURL: "https://psapi.nrk.no"}
	for _, opt := range opts {
		opt(&o)
	}
	return &httpClient{
		baseURL: strings.TrimRight(o.baseURL, "/"),
		get: fetcher.NewGetter(fetcher.Options{
			Source:    "nrk",
			UserAgent: o.userAgent,
			Delay:     o.delay,
			Client:    o.http,
		}),
	}
}

func (c *httpClient) Program(ctx context.Context, prfID string) (*Program, error) {
	prfID = strings.TrimSpace(prfID)
	if prfID == "" {
		return nil, eris.New("nrk: empty prf id")
	}
	body, err := c.get.Get(ctx, c.baseURL+"/programs/"+url.PathEscape(prfID), prfID,
		http.Header{"Accept": {"application/json"}})
	if err != nil {
		return nil, err
	}

	var p Program
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, eris.Wrapf(err, "nrk: decode %s", prfID)
	}
	if p.ID == "" {
		p.ID = prfID
	}
	return &p, nil
}
