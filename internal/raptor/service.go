package raptor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNoTransitData is returned when a search is run before any timetable is loaded.
var ErrNoTransitData = errors.New("no transit data loaded")

// SearchStats summarizes one search for observers.
type SearchStats struct {
	Profile    Profile
	Direction  Direction
	Elapsed    time.Duration
	Iterations int
	Rounds     int
	Arrivals   int
	Paths      int
	Incomplete bool
}

// Observer receives statistics after every completed search.
type Observer interface {
	ObserveSearch(stats SearchStats)
}

// Result holds the paths found by a search, best first.
type Result struct {
	Paths []*Path

	// Incomplete is set when the time budget ran out before the search finished.
	Incomplete bool

	MinTravelDuration    int
	MinNumberOfTransfers int
	SearchWindow         int
	Iterations           int
}

// Service runs journey searches against one immutable timetable. It is safe for
// concurrent use; every search allocates its own state.
type Service struct {
	data     TransitData
	calc     CostCalculator
	logger   *slog.Logger
	observer Observer
	timeout  time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithCostParams replaces the default cost parameters.
func WithCostParams(p CostParams) Option {
	return func(s *Service) {
		if s.data != nil {
			s.calc = NewCostCalculator(p, s.data.StopTransferCost)
			return
		}
		s.calc = NewCostCalculator(p, nil)
	}
}

// WithCostCalculator plugs in a custom cost model.
func WithCostCalculator(c CostCalculator) Option {
	return func(s *Service) { s.calc = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithTimeout sets the default search budget used when a request has none.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func NewService(data TransitData, opts ...Option) *Service {
	s := &Service{data: data, logger: slog.Default()}
	if data != nil {
		s.calc = NewCostCalculator(DefaultCostParams(), data.StopTransferCost)
	} else {
		s.calc = NewCostCalculator(DefaultCostParams(), nil)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Route runs one search. Malformed requests return a *ValidationError; a destination
// that cannot be reached gives an empty result, not an error.
func (s *Service) Route(ctx context.Context, req Request) (*Result, error) {
	if s.data == nil || s.data.NumberOfStops() == 0 {
		return nil, ErrNoTransitData
	}
	if err := req.Validate(s.data.NumberOfStops()); err != nil {
		return nil, err
	}

	start := time.Now()
	heur := ComputeHeuristics(s.data, &req)
	result := &Result{
		MinTravelDuration:    heur.MinTravelDuration(),
		MinNumberOfTransfers: heur.MinNumberOfTransfers(),
	}
	if req.Profile == ProfileMinTravelDuration {
		return result, nil
	}
	if !heur.DestinationReachable() {
		s.logger.Debug("destination not reachable from any access stop",
			slog.Int("access", len(req.Access)),
			slog.Int("egress", len(req.Egress)))
		return result, nil
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = s.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	srch := newSearch(ctx, s.data, &req, s.calc, heur, s.logger)
	srch.searchWindow = searchWindow(&req, heur)

	var strategy routingStrategy
	if req.Profile == ProfileMultiCriteria {
		strategy = newMcWorker(srch)
	} else {
		strategy = newStandardWorker(srch)
	}
	srch.run(strategy)

	result.Paths = sortPaths(filterWindow(&req, srch.searchWindow, srch.destinations.Elements()))
	result.Incomplete = srch.incomplete
	result.SearchWindow = srch.searchWindow
	result.Iterations = srch.iterations

	stats := SearchStats{
		Profile:    req.Profile,
		Direction:  req.Direction,
		Elapsed:    time.Since(start),
		Iterations: srch.iterations,
		Rounds:     srch.rounds,
		Arrivals:   srch.arena.size(),
		Paths:      len(result.Paths),
		Incomplete: srch.incomplete,
	}
	if s.observer != nil {
		s.observer.ObserveSearch(stats)
	}
	level := slog.LevelDebug
	if srch.incomplete {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "search completed",
		slog.String("profile", string(req.Profile)),
		slog.String("direction", string(req.Direction)),
		slog.Int("iterations", stats.Iterations),
		slog.Int("rounds", stats.Rounds),
		slog.Int("paths", stats.Paths),
		slog.Bool("incomplete", stats.Incomplete),
		slog.Duration("elapsed", stats.Elapsed))

	return result, nil
}

// RouteAll runs the requests concurrently. Results keep the request order; a failed
// request leaves a nil result and its error is joined into the returned error.
func (s *Service) RouteAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))

	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Route(ctx, reqs[i])
			if err != nil {
				errs[i] = fmt.Errorf("request %d: %w", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	return results, errors.Join(errs...)
}

// searchWindow returns the window to iterate over. Without one, and when both ends of
// the journey are fixed, the window is what is left of the time span after the fastest
// possible journey, rounded up to whole minutes.
func searchWindow(req *Request, heur *Heuristics) int {
	if req.OneIterationOnly {
		return 0
	}
	if req.SearchWindow > 0 || !req.hasEarliestDepartureTime() || !req.hasLatestArrivalTime() {
		return req.SearchWindow
	}
	sw := req.LatestArrivalTime - req.EarliestDepartureTime - heur.MinTravelDuration()
	if sw <= 0 {
		return 0
	}
	return (sw + iterationStep - 1) / iterationStep * iterationStep
}

// filterWindow drops paths departing after the search window unless the request asks
// for the full timetable view. A reverse search keeps every path it found.
func filterWindow(req *Request, window int, paths []*Path) []*Path {
	out := make([]*Path, 0, len(paths))
	for _, p := range paths {
		if !req.Timetable && window > 0 && req.Direction != Reverse &&
			p.DepartureTime >= req.EarliestDepartureTime+window {
			continue
		}
		out = append(out, p)
	}
	return out
}
