package metrics

import (
	"log/slog"
	"net/http"

	"github.com/passbi/passbi_planner/internal/raptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes planner metrics on a private registry. It implements
// raptor.Observer.
type Collector struct {
	reg *prometheus.Registry

	Searches           *prometheus.CounterVec // profile, direction
	IncompleteSearches prometheus.Counter
	SearchDuration     *prometheus.HistogramVec // profile
	Iterations         prometheus.Histogram
	Rounds             prometheus.Histogram
	PathsFound         prometheus.Histogram

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	TimetableStops  prometheus.Gauge
	TimetableRoutes prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_searches_total",
			Help: "Total journey searches run.",
		}, []string{"profile", "direction"}),
		IncompleteSearches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_searches_incomplete_total",
			Help: "Searches stopped by their time budget.",
		}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planner_search_duration_seconds",
			Help:    "Duration of journey searches.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"profile"}),
		Iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_search_iterations",
			Help:    "Departure minutes iterated per search.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_search_rounds",
			Help:    "Rounds run per search over all iterations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		PathsFound: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_search_paths",
			Help:    "Paths returned per search.",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_cache_hits_total",
			Help: "Plans served from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_cache_misses_total",
			Help: "Plans computed because the cache had none.",
		}),
		TimetableStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_timetable_stops",
			Help: "Stops in the loaded timetable.",
		}),
		TimetableRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_timetable_routes",
			Help: "Route patterns in the loaded timetable.",
		}),
	}

	reg.MustRegister(
		c.Searches, c.IncompleteSearches, c.SearchDuration,
		c.Iterations, c.Rounds, c.PathsFound,
		c.CacheHits, c.CacheMisses,
		c.TimetableStops, c.TimetableRoutes,
	)
	return c
}

// ObserveSearch records the statistics of one finished search
func (c *Collector) ObserveSearch(s raptor.SearchStats) {
	c.Searches.WithLabelValues(string(s.Profile), string(s.Direction)).Inc()
	c.SearchDuration.WithLabelValues(string(s.Profile)).Observe(s.Elapsed.Seconds())
	c.Iterations.Observe(float64(s.Iterations))
	c.Rounds.Observe(float64(s.Rounds))
	c.PathsFound.Observe(float64(s.Paths))
	if s.Incomplete {
		c.IncompleteSearches.Inc()
	}
}

// SetTimetable records the size of a newly loaded timetable
func (c *Collector) SetTimetable(stops, routes int) {
	c.TimetableStops.Set(float64(stops))
	c.TimetableRoutes.Set(float64(routes))
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()
	logger.Info("metrics listening", slog.String("addr", addr))
	return srv
}

var _ raptor.Observer = (*Collector)(nil)
