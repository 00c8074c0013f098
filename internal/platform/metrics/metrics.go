package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec

	InvitationsCreated      prometheus.Counter
	InvitationStatusChanges *prometheus.CounterVec
	InvitationsDeleted      prometheus.Counter

	ShortURLsCreated  prometheus.Counter
	ShortURLsResolved *prometheus.CounterVec

	CredentialsIssued     *prometheus.CounterVec
	Verifications         *prometheus.CounterVec
	DemoOffersSynthesized prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass a fresh prometheus.NewRegistry()
// so repeated construction does not panic on duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vcflow_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		InvitationsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "vcflow_invitations_created_total",
			Help: "Total number of invitations stored",
		}),
		InvitationStatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcflow_invitation_status_changes_total",
			Help: "Invitation status transitions, labeled by new status",
		}, []string{"status"}),
		InvitationsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "vcflow_invitations_deleted_total",
			Help: "Total number of invitations deleted",
		}),
		ShortURLsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "vcflow_short_urls_created_total",
			Help: "Total number of shortened invitation URLs",
		}),
		ShortURLsResolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcflow_short_urls_resolved_total",
			Help: "Short URL lookups, labeled by outcome (hit, miss)",
		}, []string{"outcome"}),
		CredentialsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcflow_credentials_issued_total",
			Help: "Credentials handed out, labeled by kind (signed, unsigned_demo)",
		}, []string{"kind"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcflow_verifications_total",
			Help: "Verification outcomes, labeled by subject (credential, presentation) and result",
		}, []string{"subject", "result"}),
		DemoOffersSynthesized: f.NewCounter(prometheus.CounterOpts{
			Name: "vcflow_demo_offers_synthesized_total",
			Help: "Credential offers fabricated for unknown invitation IDs",
		}),
	}
}

func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}

func (m *Metrics) IncInvitationsCreated() {
	m.InvitationsCreated.Inc()
}

func (m *Metrics) IncInvitationStatus(status string) {
	m.InvitationStatusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) AddInvitationsDeleted(n int) {
	m.InvitationsDeleted.Add(float64(n))
}

func (m *Metrics) IncShortURLCreated() {
	m.ShortURLsCreated.Inc()
}

func (m *Metrics) IncShortURLResolved(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.ShortURLsResolved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCredentialIssued(kind string) {
	m.CredentialsIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncVerification(subject string, valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.Verifications.WithLabelValues(subject, result).Inc()
}

func (m *Metrics) IncDemoOfferSynthesized() {
	m.DemoOffersSynthesized.Inc()
}
