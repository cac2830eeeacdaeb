package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the settlement counters the reconciliation engine reports.
// A nil *Metrics disables reporting, which keeps tests free of registries.
type Metrics struct {
	settlements *prometheus.CounterVec
}

// NewMetrics registers the order settlement counter with the given registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_settlements_total",
				Help: "Order settlement outcomes by result.",
			},
			[]string{"result"},
		),
	}
	if err := reg.Register(m.settlements); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) settlement(result string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(result).Inc()
}
