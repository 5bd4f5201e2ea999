package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the certifier module.
type Metrics struct {
	// Certification outcomes by result.
	CertificationsTotal *prometheus.CounterVec

	// Decertification outcomes by result.
	DecertificationsTotal *prometheus.CounterVec

	// Duplicate-search outcomes (disabled, ok, failed).
	DuplicateSearchesTotal *prometheus.CounterVec

	// Live validation tickets.
	TicketsActive prometheus.Gauge

	// Identity-store call latency by operation.
	IdentityStoreLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with all certifier metrics registered.
func New() *Metrics {
	return &Metrics{
		CertificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fccertifier_certifications_total",
			Help: "Total attribute certification attempts by result",
		}, []string{"result"}),

		DecertificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fccertifier_decertifications_total",
			Help: "Total certification removals by result",
		}, []string{"result"}),

		DuplicateSearchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fccertifier_duplicate_searches_total",
			Help: "Total duplicate-identity searches by outcome",
		}, []string{"outcome"}),

		TicketsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fccertifier_validation_tickets_active",
			Help: "Validation tickets currently held in the ticket store",
		}),

		IdentityStoreLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fccertifier_identity_store_duration_seconds",
			Help:    "Duration of identity-store collaborator calls by operation",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
	}
}

// IncrementCertification records a certification outcome.
func (m *Metrics) IncrementCertification(result string) {
	if m != nil {
		m.CertificationsTotal.WithLabelValues(result).Inc()
	}
}

// IncrementDecertification records a decertification outcome.
func (m *Metrics) IncrementDecertification(result string) {
	if m != nil {
		m.DecertificationsTotal.WithLabelValues(result).Inc()
	}
}

// IncrementDuplicateSearch records a duplicate-search outcome.
func (m *Metrics) IncrementDuplicateSearch(outcome string) {
	if m != nil {
		m.DuplicateSearchesTotal.WithLabelValues(outcome).Inc()
	}
}

// SetTicketsActive records the current ticket count.
func (m *Metrics) SetTicketsActive(n int) {
	if m != nil {
		m.TicketsActive.Set(float64(n))
	}
}

// ObserveIdentityStoreLatency records the duration of one collaborator call.
func (m *Metrics) ObserveIdentityStoreLatency(operation string, d time.Duration) {
	if m != nil {
		m.IdentityStoreLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
