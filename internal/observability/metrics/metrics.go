package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics counts settlement and sweep activity. Exposed on /metrics.
type Metrics struct {
	settlements  *prometheus.CounterVec
	sweepActions *prometheus.CounterVec
	webhooks     *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		settlements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "korki_settlements_total",
			Help: "Settlement attempts by transaction type and outcome.",
		}, []string{"type", "outcome"}),
		sweepActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "korki_sweep_actions_total",
			Help: "Rows acted on per sweep pass.",
		}, []string{"pass"}),
		webhooks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "korki_webhooks_total",
			Help: "Incoming payment webhooks by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) RecordSettlement(txType, outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(txType, outcome).Inc()
}

func (m *Metrics) RecordSweepActions(pass string, n float64) {
	if m == nil {
		return
	}
	m.sweepActions.WithLabelValues(pass).Add(n)
}

func (m *Metrics) RecordWebhook(result string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(result).Inc()
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
