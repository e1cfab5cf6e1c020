package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the journal components report into. Nop satisfies it for
// callers that do not export metrics.
type Recorder interface {
	RecordFallback(relation string)
	RecordDecision(status string)
	RecordSlotTransition(status string)
	RecordHTTPStatus(code int)
	RecordSearch(engine string)
}

type Collector struct {
	fallbacks       *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	slotTransitions *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	searches        *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_query_fallback_total",
			Help: "Enriched reads that fell back to the minimal query.",
		}, []string{"relation"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_decisions_total",
			Help: "Editorial decisions recorded, by resulting status.",
		}, []string{"status"}),
		slotTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_review_slot_transitions_total",
			Help: "Review slot state changes, by target state.",
		}, []string{"status"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_search_queries_total",
			Help: "Search queries by serving engine.",
		}, []string{"engine"}),
	}
	reg.MustRegister(c.fallbacks, c.decisions, c.slotTransitions, c.httpStatus, c.searches)
	return c
}

func (c *Collector) RecordFallback(relation string) {
	c.fallbacks.WithLabelValues(relation).Inc()
}

func (c *Collector) RecordDecision(status string) {
	c.decisions.WithLabelValues(status).Inc()
}

func (c *Collector) RecordSlotTransition(status string) {
	c.slotTransitions.WithLabelValues(status).Inc()
}

func (c *Collector) RecordHTTPStatus(code int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (c *Collector) RecordSearch(engine string) {
	c.searches.WithLabelValues(engine).Inc()
}

type Nop struct{}

func (Nop) RecordFallback(string)       {}
func (Nop) RecordDecision(string)       {}
func (Nop) RecordSlotTransition(string) {}
func (Nop) RecordHTTPStatus(int)        {}
func (Nop) RecordSearch(string)         {}

// Handler serves the registry for scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
