// Package arxiv implements a paper source that uses the arXiv metadata feed
// as a proxy for venues without a public paper API (AAAI).
//
// Full-text relevance alone matches papers that merely cite the venue, so
// entries are kept only when their comment or journal reference names both
// the venue and the year.
package arxiv

import (
	"bytes"
	"context"
	"encoding/xml"
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
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "http://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the number of feed entries requested per search.
	DefaultMaxResults = 50

	// sourceName is the human-readable name for this source.
	sourceName  = "arXiv"
	metricLabel = "arxiv"

	maxFeedBytes = 10 << 20
)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// UserAgent overrides papersources.DefaultUserAgent.
	UserAgent string

	// MaxResults is the number of entries requested from the feed.
	MaxResults int

	// Venues lists the venues served through the feed. Defaults to AAAI.
	Venues []domain.Venue
}

// applyDefaults sets default values for unset configuration fields.
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
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	if len(c.Venues) == 0 {
		c.Venues = []domain.Venue{domain.VenueAAAI}
	}
}

// Client implements the papersources.PaperSource interface for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
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

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "arxiv").Logger(),
		metrics:    metrics,
	}
}

// Search queries the feed for the keyword, venue and year and keeps only
// entries whose metadata confirms the venue and year.
func (c *Client) Search(ctx context.Context, q papersources.Query) papersources.Result {
	return papersources.Guard(ctx, c.logger, c.metrics, metricLabel, q, c.fetch)
}

// Venues returns the venues proxied through arXiv.
func (c *Client) Venues() []domain.Venue {
	return c.config.Venues
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

func (c *Client) fetch(ctx context.Context, q papersources.Query) ([]*domain.Paper, error) {
	searchURL, err := c.buildSearchURL(q)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	body, err := c.httpClient.Get(ctx, sourceName, searchURL, maxFeedBytes)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	var feed Feed
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	label := fmt.Sprintf("%s %d (via arXiv)", q.Venue, q.Year)
	papers := make([]*domain.Paper, 0, len(feed.Entries))
	for i := range feed.Entries {
		entry := &feed.Entries[i]
		if !PublishedAt(entry, q.Venue, q.Year) {
			continue
		}
		if paper := entryToPaper(entry, label); paper != nil {
			papers = append(papers, paper)
		}
	}

	c.logger.Debug().
		Int("feed_entries", len(feed.Entries)).
		Int("kept", len(papers)).
		Msg("applied venue metadata filter")

	return papers, nil
}

// buildSearchURL constructs the arXiv search API URL.
func (c *Client) buildSearchURL(q papersources.Query) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	query := url.Values{}
	query.Set("search_query", fmt.Sprintf("all:%s AND all:%s AND all:%d", q.Keyword, q.Venue, q.Year))
	query.Set("start", "0")
	query.Set("max_results", strconv.Itoa(c.config.MaxResults))
	query.Set("sortBy", "relevance")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// PublishedAt reports whether the entry's comment and journal reference
// together mention the venue (case-insensitive) and the year.
func PublishedAt(entry *Entry, venue domain.Venue, year int) bool {
	meta := strings.ToLower(entry.Comment + " " + entry.JournalRef)
	return strings.Contains(meta, strings.ToLower(string(venue))) &&
		strings.Contains(meta, strconv.Itoa(year))
}

// entryToPaper converts an arXiv Atom entry to a domain Paper.
func entryToPaper(entry *Entry, label string) *domain.Paper {
	title := domain.CollapseWhitespace(entry.Title)
	if title == "" {
		return nil
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	var link, pdf string
	for _, l := range entry.Links {
		switch {
		case l.Type == "text/html":
			link = l.Href
		case l.Title == "pdf":
			pdf = l.Href
		}
	}
	if link == "" {
		link = strings.TrimSpace(entry.ID)
	}

	return &domain.Paper{
		Title:    title,
		Authors:  authors,
		Abstract: domain.CollapseWhitespace(entry.Summary),
		Keywords: []string{},
		Link:     link,
		PDF:      pdf,
		Status:   label,
	}
}
