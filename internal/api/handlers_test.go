package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passbi/passbi_planner/internal/graph"
	"github.com/passbi/passbi_planner/internal/gtfs"
	"github.com/passbi/passbi_planner/internal/metrics"
	"github.com/passbi/passbi_planner/internal/models"
	"github.com/passbi/passbi_planner/internal/raptor"
	"github.com/passbi/passbi_planner/internal/routing"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const (
	from = "14.7005,-17.400"
	to   = "14.7005,-17.390"
)

// memoryCache is an in-process PlanCache
type memoryCache struct {
	mu      sync.Mutex
	plans   map[string]map[string]*models.Plan
	locks   map[string]bool
	sets    int
	healthy error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{plans: map[string]map[string]*models.Plan{}, locks: map[string]bool{}}
}

func (m *memoryCache) GetPlans(_ context.Context, key string) (map[string]*models.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plans[key], nil
}

func (m *memoryCache) SetPlans(_ context.Context, key string, plans map[string]*models.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[key] = plans
	m.sets++
	return nil
}

func (m *memoryCache) AcquireLock(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *memoryCache) ReleaseLock(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}

func (m *memoryCache) WaitForPlans(ctx context.Context, key string, _ time.Duration) (map[string]*models.Plan, error) {
	return m.GetPlans(ctx, key)
}

func (m *memoryCache) HealthCheck(context.Context) error { return m.healthy }

// testTimetable: stops A and B 1km apart on bus line 1, trips at 8:00 and 8:30
func testTimetable(t *testing.T) *graph.Timetable {
	t.Helper()
	feed := &gtfs.Feed{
		Stops: []models.GTFSStop{
			{StopID: "A", StopName: "Place de l'Indépendance", Lat: 14.700, Lon: -17.400},
			{StopID: "B", StopName: "Sandaga", Lat: 14.700, Lon: -17.390},
		},
		Routes: []models.GTFSRoute{{RouteID: "R1", ShortName: "1", RouteType: 3}},
		Trips:  []models.GTFSTrip{{RouteID: "R1", TripID: "T1"}, {RouteID: "R1", TripID: "T2"}},
		StopTimes: []models.GTFSStopTime{
			{TripID: "T1", StopID: "A", StopSequence: 1, ArrivalTime: 8 * 3600, DepartureTime: 8 * 3600},
			{TripID: "T1", StopID: "B", StopSequence: 2, ArrivalTime: 8*3600 + 600, DepartureTime: 8*3600 + 600},
			{TripID: "T2", StopID: "A", StopSequence: 1, ArrivalTime: 8*3600 + 1800, DepartureTime: 8*3600 + 1800},
			{TripID: "T2", StopID: "B", StopSequence: 2, ArrivalTime: 8*3600 + 2400, DepartureTime: 8*3600 + 2400},
		},
	}
	net, err := graph.NewBuilder(discardLogger, 0, 0).Build(feed)
	require.NoError(t, err)

	tt := &graph.Timetable{}
	tt.Set(net)
	return tt
}

func newTestHandler(tt *graph.Timetable) *Handler {
	h := NewHandler(routing.NewRouter(tt, routing.Options{}, discardLogger), tt, discardLogger)
	h.now = func() time.Time { return time.Date(2026, 3, 2, 7, 55, 0, 0, time.UTC) }
	return h
}

func get(t *testing.T, h *Handler, target string, out any) int {
	t.Helper()
	app := NewApp(h, discardLogger, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestPlan(t *testing.T) {
	h := newTestHandler(testTimetable(t))

	t.Run("all strategies", func(t *testing.T) {
		var body PlanResponse
		status := get(t, h, "/v2/plan?from="+from+"&to="+to+"&time=7:55", &body)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, body.Plans, 4)

		fast := body.Plans["fast"]
		require.NotNil(t, fast)
		require.Len(t, fast.Itineraries, 1)
		assert.Equal(t, "7:59:20", fast.Itineraries[0].Departure)
		assert.Equal(t, "8:10:40", fast.Itineraries[0].Arrival)
	})

	t.Run("current time by default", func(t *testing.T) {
		var body PlanResponse
		status := get(t, h, "/v2/plan?from="+from+"&to="+to+"&strategy=fast", &body)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "7:59:20", body.Plans["fast"].Itineraries[0].Departure)
	})

	t.Run("single strategy", func(t *testing.T) {
		var body PlanResponse
		status := get(t, h, "/v2/plan?from="+from+"&to="+to+"&time=7:55&strategy=no_transfer", &body)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, body.Plans, 1)
		assert.Equal(t, "no_transfer", body.Plans["no_transfer"].Strategy)
	})

	t.Run("arrive by", func(t *testing.T) {
		var body PlanResponse
		status := get(t, h, "/v2/plan?from="+from+"&to="+to+"&time=8:45&arrive_by=true&strategy=fast", &body)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "8:40:40", body.Plans["fast"].Itineraries[0].Arrival)
	})

	t.Run("no service", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(t, h, "/v2/plan?from="+from+"&to="+to+"&time=9:00", nil))
	})

	t.Run("no stop near origin", func(t *testing.T) {
		var body map[string]string
		status := get(t, h, "/v2/plan?from=0,0&to="+to+"&time=7:55", &body)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Contains(t, body["error"], "origin")
	})

	t.Run("bad requests", func(t *testing.T) {
		tests := []struct {
			name  string
			query string
		}{
			{"missing to", "from=" + from},
			{"bad coordinates", "from=14.7&to=" + to},
			{"latitude out of range", "from=91,0&to=" + to},
			{"bad time", "from=" + from + "&to=" + to + "&time=8:75"},
			{"bad arrive_by", "from=" + from + "&to=" + to + "&arrive_by=maybe"},
			{"unknown strategy", "from=" + from + "&to=" + to + "&strategy=scenic"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var body map[string]string
				assert.Equal(t, http.StatusBadRequest, get(t, h, "/v2/plan?"+tt.query, &body))
				assert.NotEmpty(t, body["error"])
			})
		}
	})
}

func TestPlanWithoutTimetable(t *testing.T) {
	h := newTestHandler(&graph.Timetable{})
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/v2/plan?from="+from+"&to="+to+"&time=7:55", nil))
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/v2/routes/list", nil))
}

func TestPlanCache(t *testing.T) {
	c := newMemoryCache()
	m := metrics.NewCollector()
	h := newTestHandler(testTimetable(t)).WithCache(c).WithMetrics(m)

	target := "/v2/plan?from=" + from + "&to=" + to + "&time=7:55"
	var first, second PlanResponse
	require.Equal(t, http.StatusOK, get(t, h, target, &first))
	require.Equal(t, http.StatusOK, get(t, h, target, &second))

	assert.Equal(t, 1, c.sets)
	assert.Empty(t, c.locks)
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
}

// brokenStrategy configures a request the search rejects
type brokenStrategy struct{ routing.SimpleStrategy }

func (s *brokenStrategy) Name() string { return "broken" }

func (s *brokenStrategy) Configure(req *raptor.Request, costs *raptor.CostParams) {
	s.SimpleStrategy.Configure(req, costs)
	req.MaxNumberOfTransfers = -1
}

func TestPlanCacheSkipsPartialResults(t *testing.T) {
	tests := []struct {
		name       string
		strategies []routing.Strategy
		sets       int
	}{
		{
			name:       "every strategy succeeded",
			strategies: []routing.Strategy{&routing.SimpleStrategy{}, &routing.FastStrategy{}},
			sets:       1,
		},
		{
			name:       "one strategy failed",
			strategies: []routing.Strategy{&routing.SimpleStrategy{}, &brokenStrategy{}},
			sets:       0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newMemoryCache()
			h := newTestHandler(testTimetable(t)).WithCache(c).WithStrategies(tt.strategies...)

			var body PlanResponse
			require.Equal(t, http.StatusOK, get(t, h, "/v2/plan?from="+from+"&to="+to+"&time=7:55", &body))
			assert.Contains(t, body.Plans, "simple")
			assert.NotContains(t, body.Plans, "broken")
			assert.Equal(t, tt.sets, c.sets)
			assert.Empty(t, c.locks)
		})
	}
}

func TestMinDuration(t *testing.T) {
	h := newTestHandler(testTimetable(t))

	var body MinDurationResponse
	status := get(t, h, "/v2/plan/min-duration?from="+from+"&to="+to+"&time=7:55", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 680, body.DurationSeconds)
	assert.Equal(t, 0, body.Transfers)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		h := newTestHandler(testTimetable(t)).WithCache(newMemoryCache())
		assert.Equal(t, http.StatusOK, get(t, h, "/health", &body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, map[string]string{"timetable": "ok", "redis": "ok"}, body.Checks)
	})

	t.Run("redis down", func(t *testing.T) {
		c := newMemoryCache()
		c.healthy = errors.New("Redis ping failed: connection refused")
		h := newTestHandler(testTimetable(t)).WithCache(c)
		assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/health", nil))
	})

	t.Run("no timetable", func(t *testing.T) {
		assert.Equal(t, http.StatusServiceUnavailable, get(t, newTestHandler(&graph.Timetable{}), "/health", nil))
	})
}

func TestStopsNearby(t *testing.T) {
	h := newTestHandler(testTimetable(t))

	var body NearbyStopsResponse
	status := get(t, h, "/v2/stops/nearby?lat=14.7005&lon=-17.400&radius=100", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Stops, 1)

	stop := body.Stops[0]
	assert.Equal(t, "A", stop.ID)
	assert.Equal(t, "Place de l'Indépendance", stop.Name)
	assert.Equal(t, 56, stop.DistanceM)
	assert.Equal(t, []string{"BUS"}, stop.Modes)
	assert.Equal(t, 1, stop.RoutesCount)
	assert.Equal(t, NearbyRouteInfo{ID: "R1", Name: "1", Mode: "BUS"}, stop.Routes[0])

	t.Run("empty", func(t *testing.T) {
		var body NearbyStopsResponse
		require.Equal(t, http.StatusOK, get(t, h, "/v2/stops/nearby?lat=0&lon=0", &body))
		assert.NotNil(t, body.Stops)
		assert.Empty(t, body.Stops)
	})

	t.Run("bad radius", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(t, h, "/v2/stops/nearby?lat=14.7&lon=-17.4&radius=9000", nil))
	})

	t.Run("missing lon", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(t, h, "/v2/stops/nearby?lat=14.7", nil))
	})
}

func TestRoutesList(t *testing.T) {
	h := newTestHandler(testTimetable(t))

	var body RoutesListResponse
	require.Equal(t, http.StatusOK, get(t, h, "/v2/routes/list", &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, RouteInfo{ID: "R1", Name: "1", Mode: "BUS", StopsCount: 2}, body.Routes[0])

	var brt RoutesListResponse
	require.Equal(t, http.StatusOK, get(t, h, "/v2/routes/list?mode=BRT", &brt))
	assert.Equal(t, 0, brt.Total)
	assert.NotNil(t, brt.Routes)
}

func TestNotFoundAndMetrics(t *testing.T) {
	h := newTestHandler(testTimetable(t))

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, get(t, h, "/v1/route-search", &body))
	assert.Equal(t, "endpoint not found", body["error"])

	m := metrics.NewCollector()
	app := NewApp(h, discardLogger, m.Handler())
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		input   string
		lat     float64
		lon     float64
		wantErr bool
	}{
		{"14.6928,-17.4467", 14.6928, -17.4467, false},
		{" 14.6928 , -17.4467 ", 14.6928, -17.4467, false},
		{"14.6928", 0, 0, true},
		{"abc,-17.4467", 0, 0, true},
		{"14.6928,-190", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lat, lon, err := parseCoordinates(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lat, lat)
			assert.Equal(t, tt.lon, lon)
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		wantErr  bool
	}{
		{"7:55", 7*3600 + 55*60, false},
		{"08:00:30", 8*3600 + 30, false},
		{"25:10", 25*3600 + 600, false},
		{"8", 0, true},
		{"8:60", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseClock(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
