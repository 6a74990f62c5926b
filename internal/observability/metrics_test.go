package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordFailureCountsBothSeries(t *testing.T) {
	before := testutil.ToFloat64(operationCounter.WithLabelValues("delete", ResultFailed))
	beforeCategory := testutil.ToFloat64(failureCounter.WithLabelValues("delete", "not_found"))

	RecordFailure("delete", "not_found")

	require.Equal(t, before+1, testutil.ToFloat64(operationCounter.WithLabelValues("delete", ResultFailed)))
	require.Equal(t, beforeCategory+1, testutil.ToFloat64(failureCounter.WithLabelValues("delete", "not_found")))
}

func TestCacheEntriesGauge(t *testing.T) {
	SetCacheEntries(7)

	var m dto.Metric
	require.NoError(t, cacheEntriesGauge.Write(&m))
	require.Equal(t, 7.0, m.GetGauge().GetValue())
}

func TestRecordListAppliedIgnoresZero(t *testing.T) {
	ts := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	RecordListApplied(ts)
	RecordListApplied(time.Time{})

	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(lastReloadGauge))
}

func TestStaleResultCounter(t *testing.T) {
	before := testutil.ToFloat64(staleReloadCounter)
	RecordStaleResult()
	require.Equal(t, before+1, testutil.ToFloat64(staleReloadCounter))
}
