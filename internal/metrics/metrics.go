// Package metrics exposes prometheus collectors for stock activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "inventory"

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	Operations  *prometheus.CounterVec
	Received    *prometheus.CounterVec
	Distributed *prometheus.CounterVec
	LowStock    prometheus.Counter
	Imports     *prometheus.CounterVec
	UnitsOnHand prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Logical data operations by name and result.",
		}, []string{"operation", "result"}),
		Received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_received_units_total",
			Help:      "Units added to stock, by category.",
		}, []string{"category"}),
		Distributed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_distributed_units_total",
			Help:      "Units handed out to students, by category.",
		}, []string{"category"}),
		LowStock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_stock_alerts_total",
			Help:      "Low-stock notifications emitted.",
		}),
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_imports_total",
			Help:      "Backup restore attempts by result.",
		}, []string{"result"}),
		UnitsOnHand: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "units_on_hand",
			Help:      "Sum of all stock quantities at the last refresh.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Operations, m.Received, m.Distributed, m.LowStock, m.Imports, m.UnitsOnHand)
	}
	return m
}

func (m *Metrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Operations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) AddReceived(category string, units int) {
	if m == nil || units <= 0 {
		return
	}
	m.Received.WithLabelValues(category).Add(float64(units))
}

func (m *Metrics) AddDistributed(category string, units int) {
	if m == nil || units <= 0 {
		return
	}
	m.Distributed.WithLabelValues(category).Add(float64(units))
}

func (m *Metrics) IncLowStock() {
	if m == nil {
		return
	}
	m.LowStock.Inc()
}

func (m *Metrics) ObserveImport(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Imports.WithLabelValues(result).Inc()
}

func (m *Metrics) SetUnitsOnHand(units int64) {
	if m == nil {
		return
	}
	m.UnitsOnHand.Set(float64(units))
}
