package cvf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/papersources"
)

const indexPage = `<html><body><div id="content"><dl>
<dt class="ptitle"><br><a href="/content/CVPR2024/html/Li_Neural_Radiance_CVPR_2024_paper.html">Neural Radiance Fields in the Wild</a></dt>
<dd>
<form id="form-Li" action="/CVPR2024" method="post" class="authsearch"><input type="hidden" name="query_author" value="Wei Li"><a href="#" onclick="document.getElementById('form-Li').submit();">Wei Li</a></form>,
<form id="form-Chen" action="/CVPR2024" method="post" class="authsearch"><input type="hidden" name="query_author" value="Mei Chen"><a href="#">Mei Chen</a></form>
</dd>
<dd>
[<a href="/content/CVPR2024/papers/Li_Neural_Radiance_CVPR_2024_paper.pdf">pdf</a>]
[<a href="/content/CVPR2024/supplemental/Li_supp.pdf">supp</a>]
</dd>
<dt class="ptitle"><br><a href="/content/CVPR2024/html/Kim_Segment_CVPR_2024_paper.html">Segment Everything Faster</a></dt>
<dd><div id="authors"><a href="#">Jun Kim</a></div></dd>
<dt class="ptitle"><br><a href="/content/CVPR2024/html/Lee_nerf_CVPR_2024_paper.html">Sparse-View NeRF</a></dt>
</dl></div></body></html>`

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{RateLimit: 1000, BurstSize: 100})
	c, err := NewWithHTTPClient(Config{BaseURL: server.URL}, httpClient, zerolog.Nop(), nil)
	require.NoError(t, err)
	return c
}

func TestParseIndex(t *testing.T) {
	base, _ := url.Parse("https://openaccess.thecvf.com")
	entries, err := parseIndex(strings.NewReader(indexPage), base)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "Neural Radiance Fields in the Wild", entries[0].Title)
	assert.Equal(t, "https://openaccess.thecvf.com/content/CVPR2024/html/Li_Neural_Radiance_CVPR_2024_paper.html", entries[0].Link)
	assert.Equal(t, []string{"Wei Li", "Mei Chen"}, entries[0].Authors)
	assert.Equal(t, "https://openaccess.thecvf.com/content/CVPR2024/papers/Li_Neural_Radiance_CVPR_2024_paper.pdf", entries[0].PDF)

	assert.Equal(t, []string{"Jun Kim"}, entries[1].Authors)
	assert.Empty(t, entries[1].PDF)

	assert.Empty(t, entries[2].Authors)
	assert.NotNil(t, entries[2].Authors)
}

func TestParseIndex_SkipsEntriesWithoutLink(t *testing.T) {
	page := `<html><body><dl>
<dt class="ptitle"><a>No Href Paper</a></dt>
<dd><div id="authors"><a href="#">A. Author</a></div></dd>
<dt class="ptitle"><a href="#">Fragment Paper</a></dt>
<dt class="ptitle"><a href="  ">Blank Href Paper</a></dt>
<dt class="ptitle"><a href="/content/CVPR2024/html/Ok_CVPR_2024_paper.html">Linked Paper</a></dt>
</dl></body></html>`
	base, _ := url.Parse("https://openaccess.thecvf.com")

	entries, err := parseIndex(strings.NewReader(page), base)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Linked Paper", entries[0].Title)
	assert.Equal(t, "https://openaccess.thecvf.com/content/CVPR2024/html/Ok_CVPR_2024_paper.html", entries[0].Link)
}

func TestClient_Search(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		w.Write([]byte(indexPage))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	papers := c.Search(context.Background(), papersources.Query{Venue: domain.VenueCVPR, Year: 2024, Keyword: "nerf"}).Papers

	assert.Equal(t, []string{"/CVPR2024?day=all"}, paths)
	require.Len(t, papers, 1, "matching is title-only and case-insensitive")
	p := papers[0]
	assert.Equal(t, "Sparse-View NeRF", p.Title)
	assert.Equal(t, domain.AbstractPlaceholder, p.Abstract)
	assert.Equal(t, "CVPR 2024", p.Status)
	assert.Equal(t, server.URL+"/content/CVPR2024/html/Lee_nerf_CVPR_2024_paper.html", p.Link)
	assert.NotNil(t, p.Keywords)
}

func TestClient_Search_FallsBackToPlainURL(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		if r.URL.RawQuery != "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(indexPage))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	papers := c.Search(context.Background(), papersources.Query{Venue: domain.VenueICCV, Year: 2023, Keyword: "segment"}).Papers

	assert.Equal(t, []string{"/ICCV2023?day=all", "/ICCV2023"}, paths)
	require.Len(t, papers, 1)
	assert.Equal(t, "ICCV 2023", papers[0].Status)
}

func TestClient_Search_YearParity(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(indexPage))
	}))
	defer server.Close()

	c := newTestClient(t, server)

	res := c.Search(context.Background(), papersources.Query{Venue: domain.VenueECCV, Year: 2023, Keyword: "nerf"})
	assert.Empty(t, res.Papers)
	assert.False(t, res.Failed(), "an off-year is not a failure")
	assert.Empty(t, c.Search(context.Background(), papersources.Query{Venue: domain.VenueICCV, Year: 2024, Keyword: "nerf"}).Papers)
	assert.Equal(t, int32(0), calls.Load(), "out-of-parity years must not hit the network")

	assert.NotEmpty(t, c.Search(context.Background(), papersources.Query{Venue: domain.VenueECCV, Year: 2024, Keyword: "nerf"}).Papers)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Search_AllURLsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	papers := c.Search(context.Background(), papersources.Query{Venue: domain.VenueCVPR, Year: 2024, Keyword: "nerf"}).Papers
	require.NotNil(t, papers)
	assert.Empty(t, papers)
}

func TestClient_IndexURLs(t *testing.T) {
	c, err := New(Config{}, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://openaccess.thecvf.com/CVPR2023?day=all",
		"https://openaccess.thecvf.com/CVPR2023",
	}, c.IndexURLs(domain.VenueCVPR, 2023))
}

func TestClient_Search_UnreachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, server)
	server.Close()

	res := c.Search(context.Background(), papersources.Query{Venue: domain.VenueCVPR, Year: 2024, Keyword: "nerf"})
	require.NotNil(t, res.Papers)
	assert.Empty(t, res.Papers)
	assert.True(t, res.Failed())
}

func TestClient_Search_SendsUserAgent(t *testing.T) {
	var ua atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		w.Write([]byte(indexPage))
	}))
	defer server.Close()

	c, err := New(Config{BaseURL: server.URL, RateLimit: 100, BurstSize: 10, UserAgent: "VenueSearchTest/1.0"}, zerolog.Nop(), nil)
	require.NoError(t, err)
	c.Search(context.Background(), papersources.Query{Venue: domain.VenueCVPR, Year: 2024, Keyword: "nerf"})

	assert.Equal(t, "VenueSearchTest/1.0", ua.Load())
}
