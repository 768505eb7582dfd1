package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the scheduling engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	queryDuration *prometheus.HistogramVec
	queryResults  *prometheus.HistogramVec
	fanout        *prometheus.HistogramVec
	events        *prometheus.CounterVec
}

// MustNew registers the collectors on reg and panics on duplicate registration.
// Tests should pass a fresh prometheus.NewRegistry().
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roomplanner",
			Subsystem: "scheduling",
			Name:      "query_duration_seconds",
			Help:      "Latency of availability and suggestion queries.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)
	queryResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roomplanner",
			Subsystem: "scheduling",
			Name:      "query_result_slots",
			Help:      "Number of slots returned per query.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"operation"},
	)
	fanout := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roomplanner",
			Subsystem: "scheduling",
			Name:      "fanout_resources",
			Help:      "Resources evaluated concurrently within one query.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"kind"},
	)
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "roomplanner",
			Subsystem: "scheduling",
			Name:      "events_total",
			Help:      "Domain events by outcome (published, failed, dropped).",
		},
		[]string{"type", "result"},
	)
	reg.MustRegister(queryDuration, queryResults, fanout, events)
	return &Metrics{
		queryDuration: queryDuration,
		queryResults:  queryResults,
		fanout:        fanout,
		events:        events,
	}
}

func (m *Metrics) ObserveQuery(operation string, started time.Time, slots int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.queryDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
	if err == nil {
		m.queryResults.WithLabelValues(operation).Observe(float64(slots))
	}
}

func (m *Metrics) ObserveFanout(kind string, n int) {
	if m == nil {
		return
	}
	m.fanout.WithLabelValues(kind).Observe(float64(n))
}

func (m *Metrics) ObserveEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, result).Inc()
}
