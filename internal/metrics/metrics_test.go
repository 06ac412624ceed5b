package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOperation("receive_stock", nil)
	m.ObserveOperation("receive_stock", errors.New("x"))
	m.AddReceived("Uniform", 20)
	m.AddReceived("Uniform", 5)
	m.AddDistributed("Kit", 3)
	m.AddDistributed("Kit", 0)
	m.IncLowStock()
	m.ObserveImport(nil)
	m.SetUnitsOnHand(42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("receive_stock", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("receive_stock", "error")))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.Received.WithLabelValues("Uniform")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Distributed.WithLabelValues("Kit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LowStock))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Imports.WithLabelValues("ok")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.UnitsOnHand))

	count, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("x", nil)
		m.AddReceived("Kit", 1)
		m.AddDistributed("Kit", 1)
		m.IncLowStock()
		m.ObserveImport(errors.New("x"))
		m.SetUnitsOnHand(1)
	})
}
