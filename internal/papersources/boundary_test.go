package papersources

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/venue-search-service/internal/domain"
	"github.com/helixir/venue-search-service/internal/observability"
)

func TestGuard(t *testing.T) {
	metrics := observability.NewMetrics("test_papersources_guard")
	q := Query{Venue: domain.VenueICLR, Year: 2024, Keyword: "rl"}

	t.Run("passes papers through", func(t *testing.T) {
		res := Guard(context.Background(), zerolog.Nop(), metrics, "ok_source", q, func(context.Context, Query) ([]*domain.Paper, error) {
			return []*domain.Paper{{Title: "A", Link: "a"}}, nil
		})
		require.Len(t, res.Papers, 1)
		assert.False(t, res.Failed())
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SearchesCompleted.WithLabelValues("ok_source")))
	})

	t.Run("error becomes empty result and is logged", func(t *testing.T) {
		var buf bytes.Buffer
		res := Guard(context.Background(), zerolog.New(&buf), metrics, "bad_source", q, func(context.Context, Query) ([]*domain.Paper, error) {
			return nil, errors.New("connection refused")
		})
		require.NotNil(t, res.Papers)
		assert.Empty(t, res.Papers)
		assert.True(t, res.Failed())
		assert.Contains(t, buf.String(), "connection refused")
		assert.Contains(t, buf.String(), `"venue":"ICLR"`)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SearchesFailed.WithLabelValues("bad_source")))
	})

	t.Run("nil papers normalised", func(t *testing.T) {
		res := Guard(context.Background(), zerolog.Nop(), nil, "nil_source", q, func(context.Context, Query) ([]*domain.Paper, error) {
			return nil, nil
		})
		require.NotNil(t, res.Papers)
		assert.Empty(t, res.Papers)
	})
}
