package provision

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/splax/onboard/internal/domain"
)

// Metrics counts provisioning step outcomes.
type Metrics struct {
	steps         *prometheus.CounterVec
	compensations *prometheus.CounterVec
}

// NewMetrics registers provisioning collectors with reg, reusing existing ones.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onboard",
			Subsystem: "provision",
			Name:      "steps_total",
			Help:      "Provisioning step attempts by outcome",
		}, []string{"step", "outcome"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onboard",
			Subsystem: "provision",
			Name:      "compensating_deletes_total",
			Help:      "Records deleted after a partial provisioning failure",
		}, []string{"table"}),
	}
	if reg == nil {
		return m
	}
	m.steps = register(reg, m.steps)
	m.compensations = register(reg, m.compensations)
	return m
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) observe(step domain.ProvisionStep, outcome string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(string(step), outcome).Inc()
}

func (m *Metrics) observeCompensation(table string) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(table).Inc()
}
