package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_venue_search_new")

	assert.NotNil(t, m.SessionsCreated)
	assert.NotNil(t, m.StageTransitions)
	assert.NotNil(t, m.KeywordsExtracted)
	assert.NotNil(t, m.SearchesStarted)
	assert.NotNil(t, m.SearchesFailed)
	assert.NotNil(t, m.CacheHits)
	assert.NotNil(t, m.Rerankings)
	assert.NotNil(t, m.LLMTokensUsed)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSessionCreated()
		m.RecordStageTransition("intent", "review")
		m.RecordKeywordsExtracted(3, false)
		m.RecordSearchStarted("openreview")
		m.RecordSearchCompleted("openreview", 1, 0.1)
		m.RecordSearchFailed("openreview", 0.1)
		m.RecordCacheHit()
		m.RecordCacheMiss()
		m.RecordRerank(10, true)
		m.RecordLLMRequest("rerank", "deepseek-chat", 1, 10, 10)
		m.RecordLLMRequestFailed("rerank", "deepseek-chat", "timeout")
	})
}

func TestRecordSessionAndStages(t *testing.T) {
	m := NewMetrics("test_sessions")

	m.RecordSessionCreated()
	m.RecordStageTransition("intent", "review")
	m.RecordStageTransition("intent", "review")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsCreated))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.StageTransitions.WithLabelValues("intent", "review")))
}

func TestRecordKeywordsExtracted(t *testing.T) {
	m := NewMetrics("test_keywords_extracted")

	m.RecordKeywordsExtracted(4, false)
	m.RecordKeywordsExtracted(1, true)

	assert.Equal(t, float64(5), testutil.ToFloat64(m.KeywordsExtracted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.KeywordExtractions.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.KeywordExtractions.WithLabelValues("degraded")))
}

func TestRecordSearch(t *testing.T) {
	m := NewMetrics("test_search")

	m.RecordSearchStarted("cvf")
	m.RecordSearchCompleted("cvf", 12, 0.4)
	m.RecordSearchStarted("cvf")
	m.RecordSearchFailed("cvf", 1.5)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.SearchesStarted.WithLabelValues("cvf")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesCompleted.WithLabelValues("cvf")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesFailed.WithLabelValues("cvf")))
}

func TestRecordCache(t *testing.T) {
	m := NewMetrics("test_cache")

	m.RecordCacheMiss()
	m.RecordCacheHit()
	m.RecordCacheHit()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMisses))
}

func TestRecordRerank(t *testing.T) {
	m := NewMetrics("test_rerank")

	m.RecordRerank(40, false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Rerankings.WithLabelValues("ok")))
	count, err := getHistogramSampleCount(m.CandidatesPerRerank)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestRecordLLMRequest(t *testing.T) {
	m := NewMetrics("test_llm_request")

	m.RecordLLMRequest("keyword_extraction", "deepseek-chat", 1.2, 100, 50)
	m.RecordLLMRequestFailed("rerank", "deepseek-chat", "rate_limit")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("keyword_extraction", "deepseek-chat")))
	assert.Equal(t, float64(100), testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("keyword_extraction", "deepseek-chat", "input")))
	assert.Equal(t, float64(50), testutil.ToFloat64(m.LLMTokensUsed.WithLabelValues("keyword_extraction", "deepseek-chat", "output")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LLMRequestsFailed.WithLabelValues("rerank", "deepseek-chat", "rate_limit")))
}

// Helper to get histogram sample count
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var metric = &dto.Metric{}
	if err := m.Write(metric); err != nil {
		return 0, err
	}

	return metric.Histogram.GetSampleCount(), nil
}
