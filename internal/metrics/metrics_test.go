package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/passbi/passbi_planner/internal/raptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSearch(t *testing.T) {
	c := NewCollector()

	c.ObserveSearch(raptor.SearchStats{
		Profile:    raptor.ProfileStandard,
		Direction:  raptor.Forward,
		Elapsed:    3 * time.Millisecond,
		Iterations: 34,
		Rounds:     80,
		Paths:      3,
	})
	c.ObserveSearch(raptor.SearchStats{
		Profile:    raptor.ProfileMultiCriteria,
		Direction:  raptor.Forward,
		Incomplete: true,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Searches.WithLabelValues("standard", "forward")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Searches.WithLabelValues("multi_criteria", "forward")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.IncompleteSearches))
	assert.Equal(t, uint64(2), histogram(t, c.Iterations).GetSampleCount())
	assert.Equal(t, 34.0, histogram(t, c.Iterations).GetSampleSum())
	assert.Equal(t, 80.0, histogram(t, c.Rounds).GetSampleSum())
	assert.Equal(t, uint64(2), histogram(t, c.PathsFound).GetSampleCount())
}

func histogram(t *testing.T, h prometheus.Histogram) *dto.Histogram {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, h.Write(m))
	return m.GetHistogram()
}

func TestSetTimetable(t *testing.T) {
	c := NewCollector()
	c.SetTimetable(120, 14)
	assert.Equal(t, 120.0, testutil.ToFloat64(c.TimetableStops))
	assert.Equal(t, 14.0, testutil.ToFloat64(c.TimetableRoutes))
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.CacheHits.Inc()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "planner_cache_hits_total 1")
}
