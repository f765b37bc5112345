package raptor

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/passbi/passbi_planner/internal/transit"
)

// routingStrategy holds the profile-specific state and relaxation rules. The search
// driver selects one per search and runs the rounds through it.
type routingStrategy interface {
	beginIteration()
	addAccess(round int, leg transit.AccessEgress, stopTime, departure int)
	touched(round int) []int
	relaxTransit(round int, routes []int)
	relaxTransfers(round int)
	arriveAtDestination(round int)
}

// search is the state shared by the strategies for one request.
type search struct {
	ctx      context.Context
	deadline time.Time
	logger   *slog.Logger

	data  TransitData
	req   *Request
	calc  CostCalculator
	heur  *Heuristics
	arena arena

	forward bool
	pruning bool
	slack   Slack

	// legs in search direction: for a reverse search access holds the egress legs
	accessLegs     []transit.AccessEgress
	egressByStop   map[int][]transit.AccessEgress
	maxAccessRides int
	maxRounds      int
	searchWindow   int

	via        []map[int]bool
	routeMarks []bool

	iterationTime int
	destinations  *ParetoSet[*Path]

	iterations int
	rounds     int
	incomplete bool
}

func newSearch(ctx context.Context, data TransitData, req *Request, calc CostCalculator, heur *Heuristics, logger *slog.Logger) *search {
	s := &search{
		ctx:        ctx,
		logger:     logger,
		data:       data,
		req:        req,
		calc:       calc,
		heur:       heur,
		forward:    req.Direction != Reverse,
		pruning:    !req.ConstrainedTransfers,
		slack:      req.Slack,
		maxRounds:  req.MaxNumberOfTransfers + 1,
		routeMarks: make([]bool, data.NumberOfRoutes()),
	}
	if d, ok := ctx.Deadline(); ok {
		s.deadline = d
	}

	access, egress := req.Access, req.Egress
	if !s.forward {
		access, egress = egress, access
	}
	s.accessLegs = access
	s.egressByStop = make(map[int][]transit.AccessEgress)
	for _, e := range egress {
		s.egressByStop[e.Stop] = append(s.egressByStop[e.Stop], e)
	}
	for _, a := range access {
		s.maxAccessRides = max(s.maxAccessRides, a.Rides)
	}

	for _, v := range req.ViaLocations {
		group := make(map[int]bool, len(v.Stops))
		for _, stop := range v.Stops {
			group[stop] = true
		}
		s.via = append(s.via, group)
	}

	s.destinations = NewParetoSet(s.pathDominance())
	return s
}

// run executes the range iterations, carrying strategy state between them.
func (s *search) run(strategy routingStrategy) {
	for _, t := range s.iterationTimes() {
		s.iterationTime = t
		s.iterations++
		strategy.beginIteration()
		s.injectAccess(strategy, 0, false)
		strategy.arriveAtDestination(0)

		for round := 1; round <= s.maxRounds; round++ {
			if s.expired() {
				s.incomplete = true
				return
			}
			stops := strategy.touched(round - 1)
			if len(stops) == 0 && round > s.maxAccessRides {
				break
			}
			s.rounds = max(s.rounds, round)

			strategy.relaxTransit(round, s.routesServing(stops))
			s.injectAccess(strategy, round, true)
			strategy.relaxTransfers(round)
			s.injectAccess(strategy, round, false)
			strategy.arriveAtDestination(round)
		}
	}
}

// iterationTimes lists the departure minutes to search, the latest one first in search
// direction so that state from later departures can be reused by earlier ones.
func (s *search) iterationTimes() []int {
	window := s.searchWindow
	if s.req.OneIterationOnly {
		window = 0
	}
	var times []int
	if s.forward {
		edt := s.req.EarliestDepartureTime
		for t := edt + window - iterationStep; t > edt; t -= iterationStep {
			times = append(times, t)
		}
		return append(times, edt)
	}
	lat := s.req.LatestArrivalTime
	for t := lat - window + iterationStep; t < lat; t += iterationStep {
		times = append(times, t)
	}
	return append(times, lat)
}

// injectAccess adds the access legs carrying the given number of rides. Legs reaching
// their stop on board are injected before transfers, the others after.
func (s *search) injectAccess(strategy routingStrategy, round int, onBoard bool) {
	for _, leg := range s.accessLegs {
		if leg.Rides != round || leg.OnBoard != onBoard || s.tooManyTransfers(0, 0, leg.Rides) {
			continue
		}
		if s.forward {
			dep := leg.EarliestDepartureTime(s.iterationTime)
			if dep == transit.TimeNotSet {
				continue
			}
			strategy.addAccess(round, leg, dep+leg.Duration, dep)
		} else {
			dep := leg.LatestDepartureTime(s.iterationTime - leg.Duration)
			if dep == transit.TimeNotSet {
				continue
			}
			strategy.addAccess(round, leg, dep, dep+leg.Duration)
		}
	}
}

func (s *search) routesServing(stops []int) []int {
	var routes []int
	for _, stop := range stops {
		for _, r := range s.data.RoutesAt(stop) {
			if !s.routeMarks[r] {
				s.routeMarks[r] = true
				routes = append(routes, r)
			}
		}
	}
	for _, r := range routes {
		s.routeMarks[r] = false
	}
	sort.Ints(routes)
	return routes
}

func (s *search) expired() bool {
	if s.ctx.Err() != nil {
		return true
	}
	return !s.deadline.IsZero() && time.Now().After(s.deadline)
}

func (s *search) isBetter(a, b int) bool {
	if s.forward {
		return a < b
	}
	return a > b
}

func (s *search) unreachedTime() int {
	if s.forward {
		return Unreached
	}
	return -Unreached
}

// exceedsLimit reports whether an arrival at the stop can be dropped: the destination is
// unreachable from it or cannot be reached within the request's time limits.
func (s *search) exceedsLimit(stop, t int) bool {
	if s.forward {
		if !s.heur.Reachable(stop) {
			return true
		}
		return s.pruning && s.req.hasLatestArrivalTime() && t+s.heur.BestTravelDuration(stop) > s.req.LatestArrivalTime
	}
	return s.pruning && s.req.hasEarliestDepartureTime() && t < s.req.EarliestDepartureTime
}

func (s *search) advanceVia(progress, stop int) int {
	if progress < len(s.via) && s.via[progress][stop] {
		return progress + 1
	}
	return progress
}

// boardingGap is the minimum time between a stop arrival and boarding, in search direction.
func (s *search) boardingGap(prev *arrival) int {
	gap := s.slack.Board
	if !s.forward {
		gap = s.slack.Alight
	}
	if prev.rides > 0 {
		gap += s.slack.Transfer
	}
	return gap
}

// boardForward returns the cost after boarding at boardTime from prev and the path
// departure time, shifting the access leg as late as possible on the first boarding.
func (s *search) boardForward(prev *arrival, boardStop, boardTime int, ct transit.ConstraintType) (cost, departure int) {
	first := prev.kind == kindAccess
	prevTime := prev.time
	departure = prev.departureTime
	if first {
		if dep := prev.leg.LatestDepartureTime(boardTime - s.boardingGap(prev) - prev.leg.Duration); dep != transit.TimeNotSet && dep >= prev.departureTime {
			departure = dep
			prevTime = dep + prev.leg.Duration
		}
	}
	prevStop := -1
	if alight, ok := s.lastAlightStop(prev); ok {
		prevStop = alight
	}
	cost = prev.cost + s.calc.BoardingCost(Boarding{
		FirstBoarding: first,
		WaitTime:      boardTime - prevTime,
		BoardStop:     boardStop,
		PrevStop:      prevStop,
		Constraint:    ct,
	})
	return cost, departure
}

func (s *search) lastAlightStop(a *arrival) (int, bool) {
	switch a.kind {
	case kindTransit:
		return a.stop, true
	case kindTransfer:
		if p := s.arena.get(a.prev); p.kind == kindTransit {
			return p.stop, true
		}
	}
	return 0, false
}

// egressTimes returns when the egress leg leaves the stop and the resulting time at the
// search target, or false when the leg cannot be used. An egress leg with rides after a
// transit ride is a transfer and needs the transfer slack. Its rides count against the
// transfer limit like any other ride.
func (s *search) egressTimes(prev *arrival, leg transit.AccessEgress) (start, target int, ok bool) {
	if !prev.onBoard && !leg.OnBoard {
		return 0, 0, false
	}
	if s.tooManyTransfers(prev.transfers, prev.rides, leg.Rides) {
		return 0, 0, false
	}
	slack := 0
	if leg.Rides > 0 && prev.rides > 0 {
		slack = s.slack.Transfer
	}
	if s.forward {
		start = leg.EarliestDepartureTime(prev.time + slack)
		if start == transit.TimeNotSet {
			return 0, 0, false
		}
		target = start + leg.Duration
		if s.req.hasLatestArrivalTime() && target > s.req.LatestArrivalTime {
			return 0, 0, false
		}
		return start, target, true
	}
	start = leg.LatestDepartureTime(prev.time - slack - leg.Duration)
	if start == transit.TimeNotSet {
		return 0, 0, false
	}
	if s.req.hasEarliestDepartureTime() && start < s.req.EarliestDepartureTime {
		return 0, 0, false
	}
	return start, start, true
}

// destinationArrival creates the record ending a path at the search target.
func (s *search) destinationArrival(prevIdx int32, prev *arrival, leg transit.AccessEgress, start, target int) arrival {
	return arrival{
		kind:          kindDestination,
		stop:          leg.Stop,
		time:          target,
		prev:          prevIdx,
		round:         prev.round,
		rides:         prev.rides + leg.Rides,
		transfers:     addRides(prev.transfers, prev.rides, leg.Rides),
		cost:          prev.cost + s.calc.WaitCost(start-prev.time) + s.calc.AccessEgressCost(leg),
		via:           prev.via,
		departureTime: prev.departureTime,
		boarded:       prev.boarded,
		leg:           leg,
	}
}

func (s *search) tooManyTransfers(transfers, ridesBefore, n int) bool {
	return addRides(transfers, ridesBefore, n) > s.req.MaxNumberOfTransfers
}

// addRides returns the transfer count after n more rides.
func addRides(transfers, ridesBefore, n int) int {
	if n == 0 {
		return transfers
	}
	if ridesBefore == 0 {
		return transfers + n - 1
	}
	return transfers + n
}

// addDestination builds the path ending in the record and keeps it if not dominated.
func (s *search) addDestination(rec arrival) bool {
	idx := s.arena.add(rec)
	path := s.buildPath(idx)
	if path == nil {
		return false
	}
	return s.destinations.Add(path, nil)
}

func (s *search) pathDominance() func(a, b *Path) bool {
	withCost := s.req.Profile == ProfileMultiCriteria
	return func(a, b *Path) bool {
		if a.DepartureTime < b.DepartureTime || a.ArrivalTime > b.ArrivalTime || a.NumberOfTransfers > b.NumberOfTransfers {
			return false
		}
		return !withCost || a.Cost <= b.Cost
	}
}
