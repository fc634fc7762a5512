// Package openreview implements a paper source for venues hosted on
// OpenReview (ICLR, NeurIPS, ICML).
package openreview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/observability"
	"github.com/helixir/venue-search-service/internal/papersources"
)

const (
	// DefaultBaseURLV1 is the legacy OpenReview API.
	DefaultBaseURLV1 = "https://api.openreview.net"

	// DefaultBaseURLV2 is the current OpenReview API.
	DefaultBaseURLV2 = "https://api2.openreview.net"

	// DefaultV2FromYear is the first conference year served by API v2.
	DefaultV2FromYear = 2023

	// DefaultPageSize is the number of notes requested per page.
	DefaultPageSize = 1000

	// DefaultMaxPages bounds pagination for a single query.
	DefaultMaxPages = 50

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// ForumBaseURL prefixes forum links and PDF paths.
	ForumBaseURL = "https://openreview.net"

	sourceName  = "OpenReview"
	metricLabel = "openreview"

	maxPageBytes = 64 << 20
)

// Config holds configuration for the OpenReview client.
type Config struct {
	// BaseURLV1 is the API v1 base URL.
	BaseURLV1 string

	// BaseURLV2 is the API v2 base URL.
	BaseURLV2 string

	// V2FromYear is the first year queried through API v2.
	V2FromYear int

	// PageSize is the number of notes requested per page.
	PageSize int

	// MaxPages bounds the number of pages fetched for one query.
	MaxPages int

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// UserAgent overrides papersources.DefaultUserAgent.
	UserAgent string
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURLV1 == "" {
		c.BaseURLV1 = DefaultBaseURLV1
	}
	if c.BaseURLV2 == "" {
		c.BaseURLV2 = DefaultBaseURLV2
	}
	if c.V2FromYear == 0 {
		c.V2FromYear = DefaultV2FromYear
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// Client implements papersources.PaperSource for OpenReview.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new OpenReview client with the given configuration.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: cfg.UserAgent,
	})

	return NewWithHTTPClient(cfg, httpClient, logger, metrics)
}

// NewWithHTTPClient creates a new OpenReview client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "openreview").Logger(),
		metrics:    metrics,
	}
}

// Search fetches the venue's notes for the requested status and keeps those
// matching the keyword in title, abstract or keywords.
func (c *Client) Search(ctx context.Context, q papersources.Query) papersources.Result {
	return papersources.Guard(ctx, c.logger, c.metrics, metricLabel, q, c.fetch)
}

// Venues returns the venues hosted on OpenReview.
func (c *Client) Venues() []domain.Venue {
	return []domain.Venue{domain.VenueICLR, domain.VenueNeurIPS, domain.VenueICML}
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// VersionFor returns the API generation used for a conference year.
func (c *Client) VersionFor(year int) APIVersion {
	if year >= c.config.V2FromYear {
		return APIv2
	}
	return APIv1
}

// VenueID returns the accepted-papers venue id, e.g. "ICLR.cc/2024/Conference".
func VenueID(venue domain.Venue, year int) string {
	return fmt.Sprintf("%s.cc/%d/Conference", venue, year)
}

func (c *Client) fetch(ctx context.Context, q papersources.Query) ([]*domain.Paper, error) {
	version := c.VersionFor(q.Year)
	venueID := VenueID(q.Venue, q.Year)

	var (
		notes []note
		err   error
	)
	if q.Status == domain.StatusUnderReview {
		notes, err = c.allNotes(ctx, version, url.Values{"invitation": {venueID + "/-/Blind_Submission"}})
		if err != nil {
			return nil, err
		}
		if len(notes) == 0 {
			c.logger.Debug().Str("venue_id", venueID).Msg("no blind submissions, trying submission invitation")
			notes, err = c.allNotes(ctx, version, url.Values{"invitation": {venueID + "/-/Submission"}})
		}
	} else {
		notes, err = c.allNotes(ctx, version, url.Values{"content.venueid": {venueID}})
	}
	if err != nil {
		return nil, err
	}

	label := fmt.Sprintf("%s %d", q.Venue, q.Year)
	if version == APIv2 {
		label = fmt.Sprintf("%s (%s)", label, statusOrDefault(q.Status))
	}

	papers := make([]*domain.Paper, 0)
	for _, n := range notes {
		title := strings.TrimSpace(n.Title)
		if title == "" {
			continue
		}
		if !papersources.Matches(q.Keyword, title, n.Abstract, n.Keywords) {
			continue
		}
		papers = append(papers, noteToPaper(n, title, label))
	}
	return papers, nil
}

// allNotes pages through /notes until a short page or the page cap.
func (c *Client) allNotes(ctx context.Context, version APIVersion, filter url.Values) ([]note, error) {
	base := c.config.BaseURLV1
	if version == APIv2 {
		base = c.config.BaseURLV2
	}

	var notes []note
	for page := 0; page < c.config.MaxPages; page++ {
		u, err := url.Parse(strings.TrimRight(base, "/") + "/notes")
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
		query := url.Values{}
		for k, v := range filter {
			query[k] = v
		}
		query.Set("limit", strconv.Itoa(c.config.PageSize))
		query.Set("offset", strconv.Itoa(page*c.config.PageSize))
		u.RawQuery = query.Encode()

		body, err := c.httpClient.Get(ctx, sourceName, u.String(), maxPageBytes)
		if err != nil {
			return nil, fmt.Errorf("fetching notes (%s): %w", version, err)
		}

		var resp notesPage
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decoding notes (%s): %w", version, err)
		}
		for _, rn := range resp.Notes {
			notes = append(notes, decodeNote(rn, version))
		}

		if len(resp.Notes) < c.config.PageSize {
			break
		}
		if resp.Count > 0 && len(notes) >= resp.Count {
			break
		}
	}
	return notes, nil
}

func noteToPaper(n note, title, label string) *domain.Paper {
	pdf := n.PDF
	if pdf != "" && !strings.HasPrefix(pdf, "http") {
		pdf = ForumBaseURL + pdf
	}
	return &domain.Paper{
		Title:    title,
		Authors:  n.Authors,
		Abstract: n.Abstract,
		Keywords: n.Keywords,
		Link:     ForumBaseURL + "/forum?id=" + n.ID,
		PDF:      pdf,
		Status:   label,
	}
}

func statusOrDefault(s domain.Status) domain.Status {
	if s == "" {
		return domain.StatusAccepted
	}
	return s
}
