package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	m := New("floodwatch")

	m.DocumentsNormalized.Inc()
	m.DocumentsRejected.WithLabelValues("missing_data").Inc()
	m.SweepRuns.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsNormalized))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsRejected.WithLabelValues("missing_data")))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["floodwatch_documents_normalized_total"])
	assert.True(t, names["floodwatch_sweep_runs_total"])
}

func TestIndependentRegistries(t *testing.T) {
	a := New("floodwatch")
	b := New("floodwatch")

	a.DocumentsNormalized.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.DocumentsNormalized))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.DocumentsNormalized))
}
