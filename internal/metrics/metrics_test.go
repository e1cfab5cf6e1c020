package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFallback("submissions")
	c.RecordFallback("submissions")
	c.RecordFallback("comments")
	c.RecordDecision("accepted")
	c.RecordSlotTransition("claimed")
	c.RecordHTTPStatus(404)
	c.RecordSearch("meilisearch")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.fallbacks.WithLabelValues("submissions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fallbacks.WithLabelValues("comments")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.decisions.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.slotTransitions.WithLabelValues("claimed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpStatus.WithLabelValues("404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.searches.WithLabelValues("meilisearch")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordDecision("rejected")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `journal_decisions_total{status="rejected"} 1`))
}
