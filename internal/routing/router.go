package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/passbi/passbi_planner/internal/graph"
	"github.com/passbi/passbi_planner/internal/models"
	"github.com/passbi/passbi_planner/internal/raptor"
	"github.com/passbi/passbi_planner/internal/transit"
)

const (
	nearestStops   = 5
	routingTimeout = 10 * time.Second
)

var (
	ErrNoOriginStops      = errors.New("no stops found near origin")
	ErrNoDestinationStops = errors.New("no stops found near destination")
)

// Options tunes the searches a Router runs
type Options struct {
	WalkSpeed    float64 // meters per second
	Slack        raptor.Slack
	SearchWindow int // seconds, 0 for a dynamic window
	Timeout      time.Duration
	Costs        raptor.CostParams
	Observer     raptor.Observer
}

// Router links coordinates to the loaded timetable and runs journey searches
type Router struct {
	timetable *graph.Timetable
	opts      Options
	logger    *slog.Logger
}

// NewRouter creates a new router instance
func NewRouter(tt *graph.Timetable, opts Options, logger *slog.Logger) *Router {
	if opts.WalkSpeed <= 0 {
		opts.WalkSpeed = graph.DefaultWalkingSpeed
	}
	if opts.Timeout <= 0 {
		opts.Timeout = routingTimeout
	}
	if opts.Costs == (raptor.CostParams{}) {
		opts.Costs = raptor.DefaultCostParams()
	}
	return &Router{timetable: tt, opts: opts, logger: logger}
}

// PlanRequest is a journey query between two coordinates. Time is seconds after
// midnight of the service day: the departure, or the arrival when ArriveBy is set.
type PlanRequest struct {
	FromLat  float64 `json:"from_lat" validate:"gte=-90,lte=90"`
	FromLon  float64 `json:"from_lon" validate:"gte=-180,lte=180"`
	ToLat    float64 `json:"to_lat" validate:"gte=-90,lte=90"`
	ToLon    float64 `json:"to_lon" validate:"gte=-180,lte=180"`
	Time     int     `json:"time" validate:"gte=0"`
	ArriveBy bool    `json:"arrive_by"`
}

// Plan finds itineraries for one strategy
func (r *Router) Plan(ctx context.Context, pr PlanRequest, strategy Strategy) (*models.Plan, error) {
	net := r.timetable.Network()
	if net == nil {
		return nil, raptor.ErrNoTransitData
	}

	req, costs, err := r.buildRequest(net, pr, strategy)
	if err != nil {
		return nil, err
	}

	svc := r.service(net, costs)
	res, err := svc.Route(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", strategy.Name(), err)
	}

	plan := &models.Plan{Strategy: strategy.Name(), Incomplete: res.Incomplete, Itineraries: []models.Itinerary{}}
	for _, p := range res.Paths {
		if !strategy.Accept(p) {
			continue
		}
		plan.Itineraries = append(plan.Itineraries, toItinerary(net, p))
	}

	r.logger.Debug("plan computed",
		slog.String("strategy", strategy.Name()),
		slog.Int("paths", len(res.Paths)),
		slog.Int("itineraries", len(plan.Itineraries)))
	return plan, nil
}

// PlanAll computes every strategy in parallel. Failed strategies are logged and left out.
func (r *Router) PlanAll(ctx context.Context, pr PlanRequest, strategies []Strategy) (map[string]*models.Plan, error) {
	type planResult struct {
		strategy string
		plan     *models.Plan
		err      error
	}

	resultChan := make(chan planResult, len(strategies))
	var wg sync.WaitGroup

	for _, strategy := range strategies {
		wg.Add(1)
		go func(strat Strategy) {
			defer wg.Done()
			plan, err := r.Plan(ctx, pr, strat)
			resultChan <- planResult{strategy: strat.Name(), plan: plan, err: err}
		}(strategy)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	plans := make(map[string]*models.Plan)
	var errs []error
	for result := range resultChan {
		if result.err != nil {
			r.logger.Warn("plan failed", slog.String("strategy", result.strategy), slog.Any("error", result.err))
			errs = append(errs, result.err)
			continue
		}
		plans[result.strategy] = result.plan
	}

	if len(plans) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return plans, nil
}

// MinDuration returns the shortest possible travel time and the fewest transfers
// between the coordinates, ignoring the timetable's departure times.
func (r *Router) MinDuration(ctx context.Context, pr PlanRequest) (duration, transfers int, err error) {
	net := r.timetable.Network()
	if net == nil {
		return 0, 0, raptor.ErrNoTransitData
	}
	strategy := &FastStrategy{}
	req, costs, err := r.buildRequest(net, pr, strategy)
	if err != nil {
		return 0, 0, err
	}
	req.Profile = raptor.ProfileMinTravelDuration

	res, err := r.service(net, costs).Route(ctx, req)
	if err != nil {
		return 0, 0, err
	}
	return res.MinTravelDuration, res.MinNumberOfTransfers, nil
}

func (r *Router) service(net *graph.Network, costs raptor.CostParams) *raptor.Service {
	opts := []raptor.Option{
		raptor.WithCostParams(costs),
		raptor.WithLogger(r.logger),
		raptor.WithTimeout(r.opts.Timeout),
	}
	if r.opts.Observer != nil {
		opts = append(opts, raptor.WithObserver(r.opts.Observer))
	}
	return raptor.NewService(net.Data, opts...)
}

func (r *Router) buildRequest(net *graph.Network, pr PlanRequest, strategy Strategy) (raptor.Request, raptor.CostParams, error) {
	req := raptor.NewRequest()
	costs := r.opts.Costs
	strategy.Configure(&req, &costs)

	req.Slack = r.opts.Slack
	req.SearchWindow = r.opts.SearchWindow
	req.ConstrainedTransfers = net.Data.HasConstraints()
	if pr.ArriveBy {
		req.Direction = raptor.Reverse
		req.Profile = raptor.ProfileStandard
		req.LatestArrivalTime = pr.Time
	} else {
		req.EarliestDepartureTime = pr.Time
	}

	req.Access = r.walkLegs(net, pr.FromLat, pr.FromLon, strategy.WalkReluctance())
	if len(req.Access) == 0 {
		return req, costs, ErrNoOriginStops
	}
	req.Egress = r.walkLegs(net, pr.ToLat, pr.ToLon, strategy.WalkReluctance())
	if len(req.Egress) == 0 {
		return req, costs, ErrNoDestinationStops
	}
	return req, costs, nil
}

// walkLegs links a coordinate to its nearest stops on foot
func (r *Router) walkLegs(net *graph.Network, lat, lon, reluctance float64) []transit.AccessEgress {
	stops := net.FindNearestStops(lat, lon, nearestStops)
	legs := make([]transit.AccessEgress, 0, len(stops))
	for _, s := range stops {
		duration := int(s.Distance/r.opts.WalkSpeed + 0.5)
		if duration == 0 {
			legs = append(legs, transit.FreeAccessEgress(s.Index))
			continue
		}
		leg := transit.Walk(s.Index, duration)
		leg.Cost = transit.WalkCost(duration, reluctance)
		legs = append(legs, leg)
	}
	return legs
}
