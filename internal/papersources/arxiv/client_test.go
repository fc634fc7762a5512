package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/papersources"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/2401.00001v1</id>
    <title>Causal Graph
      Discovery at Scale</title>
    <summary>  We study causal
 discovery.  </summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <link href="http://arxiv.org/abs/2401.00001v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2401.00001v1" rel="related" type="application/pdf"/>
    <arxiv:comment>Accepted at AAAI 2024</arxiv:comment>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00002v1</id>
    <title>Cites AAAI Only</title>
    <summary>Mentions AAAI 2024 in the abstract.</summary>
    <link href="http://arxiv.org/abs/2401.00002v1" rel="alternate" type="text/html"/>
    <arxiv:journal_ref>Journal of Things, 2023</arxiv:journal_ref>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00003v2</id>
    <title>Planning With Language</title>
    <summary>Abstract.</summary>
    <arxiv:journal_ref>Proceedings of the AAAI Conference, 2024</arxiv:journal_ref>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00004v1</id>
    <title>Wrong Year</title>
    <summary>Abstract.</summary>
    <arxiv:comment>AAAI 2023</arxiv:comment>
  </entry>
</feed>`

func newTestClient(server *httptest.Server) *Client {
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{RateLimit: 1000, BurstSize: 100})
	return NewWithHTTPClient(Config{BaseURL: server.URL + "/api"}, httpClient, zerolog.Nop(), nil)
}

func TestClient_Search(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	c := newTestClient(server)
	papers := c.Search(context.Background(), papersources.Query{Venue: domain.VenueAAAI, Year: 2024, Keyword: "causal"}).Papers

	assert.Equal(t, "/api/query", gotPath)
	assert.Equal(t, []string{"all:causal AND all:AAAI AND all:2024"}, gotQuery["search_query"])
	assert.Equal(t, []string{"50"}, gotQuery["max_results"])
	assert.Equal(t, []string{"relevance"}, gotQuery["sortBy"])
	assert.Equal(t, []string{"0"}, gotQuery["start"])

	require.Len(t, papers, 2)

	p := papers[0]
	assert.Equal(t, "Causal Graph Discovery at Scale", p.Title)
	assert.Equal(t, "We study causal discovery.", p.Abstract)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, p.Authors)
	assert.Equal(t, "http://arxiv.org/abs/2401.00001v1", p.Link)
	assert.Equal(t, "http://arxiv.org/pdf/2401.00001v1", p.PDF)
	assert.Equal(t, "AAAI 2024 (via arXiv)", p.Status)

	assert.Equal(t, "Planning With Language", papers[1].Title)
	assert.Equal(t, "http://arxiv.org/abs/2401.00003v2", papers[1].Link, "falls back to entry id without an html link")
	assert.Empty(t, papers[1].PDF)
}

func TestPublishedAt(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{"comment names venue and year", Entry{Comment: "To appear in aaai-2024"}, true},
		{"split across fields", Entry{Comment: "AAAI main track", JournalRef: "2024"}, true},
		{"empty comment and journal without year", Entry{JournalRef: "AAAI Conference"}, false},
		{"year without venue", Entry{Comment: "NeurIPS 2024"}, false},
		{"nothing", Entry{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublishedAt(&tt.entry, domain.VenueAAAI, 2024))
		})
	}
}

func TestClient_Search_Failures(t *testing.T) {
	t.Run("non-200 yields empty result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		papers := newTestClient(server).Search(context.Background(), papersources.Query{Venue: domain.VenueAAAI, Year: 2024, Keyword: "x"}).Papers
		require.NotNil(t, papers)
		assert.Empty(t, papers)
	})

	t.Run("malformed xml yields empty result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<feed><entry>"))
		}))
		defer server.Close()

		assert.Empty(t, newTestClient(server).Search(context.Background(), papersources.Query{Venue: domain.VenueAAAI, Year: 2024, Keyword: "x"}).Papers)
	})

	t.Run("unreachable endpoint yields empty result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		c := newTestClient(server)
		server.Close()

		res := c.Search(context.Background(), papersources.Query{Venue: domain.VenueAAAI, Year: 2024, Keyword: "x"})
		require.NotNil(t, res.Papers)
		assert.Empty(t, res.Papers)
		assert.True(t, res.Failed())
	})
}

func TestClient_Search_SendsUserAgent(t *testing.T) {
	var ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL + "/api", RateLimit: 100, BurstSize: 10, UserAgent: "VenueSearchTest/1.0"}, zerolog.Nop(), nil)
	c.Search(context.Background(), papersources.Query{Venue: domain.VenueAAAI, Year: 2024, Keyword: "causal"})

	assert.Equal(t, "VenueSearchTest/1.0", ua)
}

func TestClient_Venues(t *testing.T) {
	assert.Equal(t, []domain.Venue{domain.VenueAAAI}, New(Config{}, zerolog.Nop(), nil).Venues())
}
