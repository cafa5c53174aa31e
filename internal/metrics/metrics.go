package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MrSnakeDoc/consentgate/internal/domain"
)

// Metrics records consent outcomes. It implements consent.Recorder.
type Metrics struct {
	BannersShown     prometheus.Counter
	Decisions        *prometheus.CounterVec
	StorageFailures  *prometheus.CounterVec
	MalformedRecords prometheus.Counter
	ActiveSessions   prometheus.Gauge
	SessionsReaped   prometheus.Counter
}

// New registers the consent metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BannersShown: f.NewCounter(prometheus.CounterOpts{
			Name: "consentgate_banners_shown_total",
			Help: "Total number of consent banners displayed after the startup delay",
		}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentgate_decisions_total",
			Help: "Total number of consent decisions by kind",
		}, []string{"kind"}),
		StorageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "consentgate_storage_failures_total",
			Help: "Total number of failed consent store operations by operation",
		}, []string{"op"}),
		MalformedRecords: f.NewCounter(prometheus.CounterOpts{
			Name: "consentgate_malformed_records_total",
			Help: "Total number of stored preferences discarded as malformed",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "consentgate_active_sessions",
			Help: "Current number of open page sessions",
		}),
		SessionsReaped: f.NewCounter(prometheus.CounterOpts{
			Name: "consentgate_sessions_reaped_total",
			Help: "Total number of idle sessions torn down by the reaper",
		}),
	}
}

func (m *Metrics) BannerShown() {
	m.BannersShown.Inc()
}

func (m *Metrics) Decided(kind domain.Decision) {
	m.Decisions.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) StorageFailed(op string) {
	m.StorageFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) MalformedRecord() {
	m.MalformedRecords.Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) AddReaped(n int) {
	m.SessionsReaped.Add(float64(n))
}
