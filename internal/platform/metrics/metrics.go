package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	VenuesSubmitted     *prometheus.CounterVec
	VenuesActivated     prometheus.Counter
	SignalsRecorded     *prometheus.CounterVec
	SignalsRejected     *prometheus.CounterVec
	BadgesIssued        prometheus.Counter
	BadgesRevoked       prometheus.Counter
	VerificationLookups *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return newWith(prometheus.DefaultRegisterer)
}

// NewForTest registers against a throwaway registry so parallel tests do not
// collide on duplicate collector registration.
func NewForTest() *Metrics {
	return newWith(prometheus.NewRegistry())
}

func newWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VenuesSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waypost_venues_submitted_total",
			Help: "Venue submissions, partitioned by submitter role.",
		}, []string{"role"}),
		VenuesActivated: factory.NewCounter(prometheus.CounterOpts{
			Name: "waypost_venues_activated_total",
			Help: "Venues flipped to publicly listed.",
		}),
		SignalsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waypost_signals_recorded_total",
			Help: "Corroboration signals appended, partitioned by kind.",
		}, []string{"kind"}),
		SignalsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waypost_signals_rejected_total",
			Help: "Rejected corroborations, partitioned by reason.",
		}, []string{"reason"}),
		BadgesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "waypost_badges_issued_total",
			Help: "Badges issued.",
		}),
		BadgesRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "waypost_badges_revoked_total",
			Help: "Badges revoked.",
		}),
		VerificationLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waypost_verification_lookups_total",
			Help: "Public badge verifications, partitioned by outcome.",
		}, []string{"outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "waypost_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
