package jobs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/meridian-mfg/meridian-erp/internal/jobs"
	_ "github.com/meridian-mfg/meridian-erp/testing"
)

func breachCounts(t *testing.T, registry *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "meridian_stock_invariant_breaches_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "counter" {
					counts[label.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	return counts
}

func TestReportBreachesCountsPerCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	job := NewStockScanJob(nil, nil, jobmetrics.NewMetrics(registry))

	job.reportBreaches([]breachedProduct{
		{ID: 1, Name: "RM-A", AvailableQty: -3, ReservedQty: 2},
		{ID: 2, Name: "RM-B", AvailableQty: 4, ReservedQty: -1},
		{ID: 3, Name: "RM-C", AvailableQty: -0.5, ReservedQty: -0.5},
	})

	counts := breachCounts(t, registry)
	require.InDelta(t, 2, counts["available_qty"], 0.0001)
	require.InDelta(t, 2, counts["reserved_qty"], 0.0001)
}

func TestReportBreachesToleratesNilLogger(t *testing.T) {
	job := NewStockScanJob(nil, nil, nil)

	require.NotPanics(t, func() {
		job.reportBreaches([]breachedProduct{
			{ID: 1, Name: "RM-A", AvailableQty: -3, ReservedQty: 0},
		})
	})
}
