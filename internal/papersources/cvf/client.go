// Package cvf implements a paper source for the CVF open-access archive
// (CVPR, ECCV, ICCV). The archive only publishes HTML index pages without
// abstracts, so keyword matching is limited to titles.
package cvf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/observability"
	"github.com/helixir/venue-search-service/internal/papersources"
)

const (
	// DefaultBaseURL is the open-access archive host.
	DefaultBaseURL = "https://openaccess.thecvf.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultUserAgent is sent because the archive rejects unknown clients.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	sourceName  = "CVF Open Access"
	metricLabel = "cvf"

	maxPageBytes = 32 << 20
)

// Config holds configuration for the CVF client.
type Config struct {
	// BaseURL is the archive host; index pages live at BaseURL/<CODE><year>.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// UserAgent overrides DefaultUserAgent.
	UserAgent string
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
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
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// Client implements papersources.PaperSource for the CVF archive.
type Client struct {
	config     Config
	base       *url.URL
	httpClient *papersources.HTTPClient
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new CVF client. It fails only if BaseURL cannot be parsed.
func New(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) (*Client, error) {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: cfg.UserAgent,
	})
	return NewWithHTTPClient(cfg, httpClient, logger, metrics)
}

// NewWithHTTPClient creates a new CVF client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger, metrics *observability.Metrics) (*Client, error) {
	cfg.applyDefaults()

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	return &Client{
		config:     cfg,
		base:       base,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "cvf").Logger(),
		metrics:    metrics,
	}, nil
}

// Search fetches the venue's index page and keeps entries whose title
// contains the keyword.
func (c *Client) Search(ctx context.Context, q papersources.Query) papersources.Result {
	return papersources.Guard(ctx, c.logger, c.metrics, metricLabel, q, c.fetch)
}

// Venues returns the venues published on the archive.
func (c *Client) Venues() []domain.Venue {
	return []domain.Venue{domain.VenueCVPR, domain.VenueECCV, domain.VenueICCV}
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IndexURLs returns the candidate index pages for a venue and year, in the
// order they are tried.
func (c *Client) IndexURLs(venue domain.Venue, year int) []string {
	page := fmt.Sprintf("%s/%s%d", c.base.String(), venue, year)
	return []string{page + "?day=all", page}
}

func (c *Client) fetch(ctx context.Context, q papersources.Query) ([]*domain.Paper, error) {
	info, ok := domain.LookupVenue(q.Venue)
	if ok && !info.AcceptsYear(q.Year) {
		c.logger.Info().
			Str("venue", string(q.Venue)).
			Int("year", q.Year).
			Msg("venue not held in requested year")
		return []*domain.Paper{}, nil
	}

	var (
		body []byte
		errs []error
	)
	for _, u := range c.IndexURLs(q.Venue, q.Year) {
		b, err := c.httpClient.Get(ctx, sourceName, u, maxPageBytes)
		if err != nil {
			c.logger.Debug().Err(err).Str("url", u).Msg("index page unavailable")
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		body = b
		break
	}
	if body == nil {
		return nil, fmt.Errorf("no index page for %s %d: %w", q.Venue, q.Year, errors.Join(errs...))
	}

	entries, err := parseIndex(bytes.NewReader(body), c.base)
	if err != nil {
		return nil, fmt.Errorf("parsing index page: %w", err)
	}

	label := fmt.Sprintf("%s %d", q.Venue, q.Year)
	papers := make([]*domain.Paper, 0)
	for _, e := range entries {
		if !papersources.TitleMatches(q.Keyword, e.Title) {
			continue
		}
		papers = append(papers, &domain.Paper{
			Title:    e.Title,
			Authors:  e.Authors,
			Abstract: domain.AbstractPlaceholder,
			Keywords: []string{},
			Link:     e.Link,
			PDF:      e.PDF,
			Status:   label,
		})
	}
	return papers, nil
}
