package auth

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Flow names and outcomes recorded in tokenbroker_flow_total.
const (
	flowLogin    = "login"
	flowCallback = "callback"
	flowRefresh  = "refresh"

	outcomeRedirected          = "redirected"
	outcomeStateMismatch       = "state_mismatch"
	outcomeExchanged           = "exchanged"
	outcomeExchangeFailed      = "exchange_failed"
	outcomeRefreshed           = "refreshed"
	outcomeRefreshRejected     = "refresh_rejected"
	outcomeProviderUnavailable = "provider_unavailable"
	outcomeBadRequest          = "bad_request"
	outcomeInternalError       = "internal_error"
)

type flowMetrics struct {
	flows            *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
}

func newFlowMetrics() *flowMetrics {
	return &flowMetrics{
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenbroker_flow_total",
			Help: "Login, callback and refresh requests by outcome",
		}, []string{"flow", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tokenbroker_provider_request_duration_seconds",
			Help:    "Latency of token endpoint calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"grant_type"}),
	}
}

// register adds the collectors to reg. Collectors already registered by an
// earlier handler on the same registry are reused.
func (m *flowMetrics) register(reg prometheus.Registerer) error {
	if err := reg.Register(m.flows); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
		m.flows = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(m.providerDuration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
		m.providerDuration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return nil
}

func (m *flowMetrics) record(flow, outcome string) {
	m.flows.WithLabelValues(flow, outcome).Inc()
}

func (m *flowMetrics) observeProvider(grantType string, d time.Duration) {
	m.providerDuration.WithLabelValues(grantType).Observe(d.Seconds())
}
