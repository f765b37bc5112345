package raptor

import "github.com/passbi/passbi_planner/internal/transit"

// mcRound lists the arrivals added in one round of the current iteration.
type mcRound struct {
	byStop map[int][]int32
	stops  []int
}

func (r *mcRound) add(stop int, idx int32) {
	if _, ok := r.byStop[stop]; !ok {
		r.stops = append(r.stops, stop)
	}
	r.byStop[stop] = append(r.byStop[stop], idx)
}

func (r *mcRound) reset() {
	clear(r.byStop)
	r.stops = r.stops[:0]
}

// mcRide is a boarded trip during a route scan. Its via progress advances as the
// vehicle passes stops.
type mcRide struct {
	prev       int32
	trip       int
	boardPos   int
	boardTime  int
	cost       int
	relCost    int
	departure  int
	rides      int
	transfers  int
	via        int
	constraint transit.ConstraintType
}

// mcWorker keeps a Pareto set of arrivals per stop over arrival time, transfers, cost,
// pass-through progress and whether the stop was reached on board.
type mcWorker struct {
	s      *search
	stops  []*ParetoSet[int32]
	rounds []*mcRound
}

func newMcWorker(s *search) *mcWorker {
	n := s.data.NumberOfStops()
	w := &mcWorker{
		s:      s,
		stops:  make([]*ParetoSet[int32], n),
		rounds: make([]*mcRound, s.maxRounds+1),
	}
	dominates := w.arrivalDominance()
	for i := range w.stops {
		w.stops[i] = NewParetoSet(dominates)
	}
	for i := range w.rounds {
		w.rounds[i] = &mcRound{byStop: make(map[int][]int32)}
	}
	return w
}

func (w *mcWorker) arrivalDominance() func(a, b int32) bool {
	return func(ai, bi int32) bool {
		a, b := w.s.arena.get(ai), w.s.arena.get(bi)
		return a.time <= b.time &&
			a.transfers <= b.transfers &&
			a.cost <= b.cost &&
			a.via >= b.via &&
			(a.onBoard || !b.onBoard)
	}
}

func rideDominates(a, b *mcRide) bool {
	return a.trip <= b.trip &&
		a.relCost <= b.relCost &&
		a.transfers <= b.transfers &&
		a.via >= b.via
}

func (w *mcWorker) beginIteration() {
	for _, r := range w.rounds {
		r.reset()
	}
}

func (w *mcWorker) touched(round int) []int {
	if round >= len(w.rounds) {
		return nil
	}
	return w.rounds[round].stops
}

func (w *mcWorker) addAccess(round int, leg transit.AccessEgress, stopTime, departure int) {
	s := w.s
	w.addArrival(round, arrival{
		kind:          kindAccess,
		stop:          leg.Stop,
		time:          stopTime,
		prev:          noArrival,
		round:         round,
		rides:         leg.Rides,
		transfers:     max(leg.Rides-1, 0),
		cost:          s.calc.AccessEgressCost(leg),
		via:           s.advanceVia(0, leg.Stop),
		onBoard:       leg.OnBoard,
		departureTime: departure,
		leg:           leg,
	})
}

// addArrival inserts the arrival into the stop's Pareto set, marking the arrivals it
// dominates as dead. A rejected arrival is removed from the arena again.
func (w *mcWorker) addArrival(round int, rec arrival) {
	s := w.s
	if round >= len(w.rounds) || s.exceedsLimit(rec.stop, rec.time) || w.dominatedAtDestination(&rec) {
		return
	}
	idx := s.arena.add(rec)
	if !w.stops[rec.stop].Add(idx, w.kill) {
		s.arena.records = s.arena.records[:idx]
		return
	}
	w.rounds[round].add(rec.stop, idx)
}

func (w *mcWorker) kill(idx int32) { w.s.arena.get(idx).dead = true }

// dominatedAtDestination reports whether a destination path already found beats the
// most optimistic path continuing from the arrival.
func (w *mcWorker) dominatedAtDestination(rec *arrival) bool {
	s := w.s
	if !s.pruning || !rec.boarded || s.destinations.Len() == 0 {
		return false
	}
	bound := s.heur.BestTravelDuration(rec.stop)
	if bound == Unreached {
		return true
	}
	arrivalTime := rec.time + bound
	for _, p := range s.destinations.Elements() {
		if p.DepartureTime >= rec.departureTime &&
			p.ArrivalTime <= arrivalTime &&
			p.NumberOfTransfers <= rec.transfers &&
			p.Cost <= rec.cost {
			return true
		}
	}
	return false
}

func (w *mcWorker) relaxTransit(round int, routes []int) {
	prevRound := w.rounds[round-1]
	for _, ri := range routes {
		w.scan(round, ri, prevRound)
	}
}

func (w *mcWorker) scan(round, ri int, prevRound *mcRound) {
	s := w.s
	route := s.data.Route(ri)
	rides := NewParetoSet(rideDominates)

	for pos, stop := range route.Stops {
		for _, ride := range rides.Elements() {
			ride.via = s.advanceVia(ride.via, stop)
			trip := route.Trips[ride.trip]
			alight := trip.Arrivals[pos]
			w.addArrival(round, arrival{
				kind:          kindTransit,
				stop:          stop,
				time:          alight + s.slack.Alight,
				prev:          ride.prev,
				round:         round,
				rides:         ride.rides,
				transfers:     ride.transfers,
				cost:          ride.cost + s.calc.TransitCost(alight-ride.boardTime, s.slack.Alight),
				via:           ride.via,
				onBoard:       true,
				departureTime: ride.departure,
				boarded:       true,
				route:         ri,
				trip:          ride.trip,
				boardPos:      ride.boardPos,
				alightPos:     pos,
				boardTime:     ride.boardTime,
				alightTime:    alight,
				constraint:    ride.constraint,
			})
		}

		for _, pi := range prevRound.byStop[stop] {
			prev := *s.arena.get(pi)
			if prev.dead {
				continue
			}
			b, ok := s.findBoardingForward(ri, pos, &prev, len(route.Trips))
			if !ok {
				continue
			}
			cost, departure := s.boardForward(&prev, stop, b.time, b.constraint)
			transfers := addRides(prev.transfers, prev.rides, 1)
			if b.constraint == transit.StaySeated {
				transfers = prev.transfers
			}
			rides.Add(&mcRide{
				prev:       pi,
				trip:       b.trip,
				boardPos:   pos,
				boardTime:  b.time,
				cost:       cost,
				relCost:    cost - s.calc.TransitCost(b.time, 0),
				departure:  departure,
				rides:      prev.rides + 1,
				transfers:  transfers,
				via:        prev.via,
				constraint: b.constraint,
			}, nil)
		}
	}
}

func (w *mcWorker) relaxTransfers(round int) {
	s := w.s
	r := w.rounds[round]
	var sources []int32
	for _, stop := range r.stops {
		sources = append(sources, r.byStop[stop]...)
	}
	for _, pi := range sources {
		prev := *s.arena.get(pi)
		if prev.dead || !prev.onBoard {
			continue
		}
		for _, t := range s.data.TransfersFrom(prev.stop) {
			w.addArrival(round, arrival{
				kind:          kindTransfer,
				stop:          t.To,
				time:          prev.time + t.Duration,
				prev:          pi,
				round:         round,
				rides:         prev.rides,
				transfers:     prev.transfers,
				cost:          prev.cost + s.calc.TransferCost(t),
				via:           s.advanceVia(prev.via, t.To),
				departureTime: prev.departureTime,
				boarded:       prev.boarded,
				transfer:      t,
			})
		}
	}
}

func (w *mcWorker) arriveAtDestination(round int) {
	s := w.s
	r := w.rounds[round]
	var sources []int32
	for _, stop := range r.stops {
		if len(s.egressByStop[stop]) > 0 {
			sources = append(sources, r.byStop[stop]...)
		}
	}
	for _, pi := range sources {
		prev := *s.arena.get(pi)
		if prev.dead || prev.via < len(s.via) {
			continue
		}
		for _, leg := range s.egressByStop[prev.stop] {
			start, target, ok := s.egressTimes(&prev, leg)
			if !ok {
				continue
			}
			s.addDestination(s.destinationArrival(pi, &prev, leg, start, target))
		}
	}
}
