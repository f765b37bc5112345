package raptor

import "github.com/passbi/passbi_planner/internal/transit"

// stdRound is the state of one round in the standard profile. Record indices persist
// across range iterations; the touched lists are reset at the start of each iteration.
type stdRound struct {
	best        []int32
	transitBest []int32

	touched        []int
	touchedMark    []bool
	transitTouched []int
	transitMark    []bool
}

func newStdRound(n int) *stdRound {
	r := &stdRound{
		best:        make([]int32, n),
		transitBest: make([]int32, n),
		touchedMark: make([]bool, n),
		transitMark: make([]bool, n),
	}
	for i := 0; i < n; i++ {
		r.best[i], r.transitBest[i] = noArrival, noArrival
	}
	return r
}

func (r *stdRound) touch(stop int) {
	if !r.touchedMark[stop] {
		r.touchedMark[stop] = true
		r.touched = append(r.touched, stop)
	}
}

func (r *stdRound) touchTransit(stop int) {
	if !r.transitMark[stop] {
		r.transitMark[stop] = true
		r.transitTouched = append(r.transitTouched, stop)
	}
}

func (r *stdRound) reset() {
	for _, s := range r.touched {
		r.touchedMark[s] = false
	}
	for _, s := range r.transitTouched {
		r.transitMark[s] = false
	}
	r.touched = r.touched[:0]
	r.transitTouched = r.transitTouched[:0]
}

// standardWorker finds the earliest arrival (latest departure in reverse) at every stop
// for each number of rides. Arrivals are only accepted when strictly better than any
// arrival at the stop found so far, in any round or iteration.
//
// Pass-through groups are not a criterion here. An arrival that skipped a group can
// replace one that visited it, so paths are only checked against the groups when
// built (passesVia) and a via search may return nothing.
type standardWorker struct {
	s *search

	bestTime        []int
	bestTransitTime []int
	rounds          []*stdRound

	// best destination time indexed by number of transfers
	destBest []int
}

func newStandardWorker(s *search) *standardWorker {
	n := s.data.NumberOfStops()
	w := &standardWorker{
		s:               s,
		bestTime:        make([]int, n),
		bestTransitTime: make([]int, n),
		rounds:          make([]*stdRound, s.maxRounds+s.maxAccessRides+1),
	}
	for i := 0; i < n; i++ {
		w.bestTime[i], w.bestTransitTime[i] = s.unreachedTime(), s.unreachedTime()
	}
	for i := range w.rounds {
		w.rounds[i] = newStdRound(n)
	}
	return w
}

func (w *standardWorker) beginIteration() {
	for _, r := range w.rounds {
		r.reset()
	}
}

func (w *standardWorker) round(k int) *stdRound {
	if k >= len(w.rounds) {
		return w.rounds[len(w.rounds)-1]
	}
	return w.rounds[k]
}

func (w *standardWorker) touched(round int) []int {
	r := w.round(round)
	if len(r.transitTouched) == 0 || !w.s.req.ConstrainedTransfers {
		return r.touched
	}
	stops := append([]int(nil), r.touched...)
	for _, stop := range r.transitTouched {
		if !r.touchedMark[stop] {
			stops = append(stops, stop)
		}
	}
	return stops
}

func (w *standardWorker) addAccess(round int, leg transit.AccessEgress, stopTime, departure int) {
	s := w.s
	if s.exceedsLimit(leg.Stop, stopTime) {
		return
	}
	rec := arrival{
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
	}
	if leg.OnBoard {
		w.acceptOnBoard(round, rec)
		return
	}
	w.acceptOnFoot(round, rec)
}

// acceptOnBoard records an arrival that may be followed by a walking transfer.
func (w *standardWorker) acceptOnBoard(round int, rec arrival) {
	s := w.s
	stop := rec.stop
	if !s.isBetter(rec.time, w.bestTransitTime[stop]) {
		return
	}
	r := w.round(round)
	idx := s.arena.add(rec)
	w.bestTransitTime[stop] = rec.time
	r.transitBest[stop] = idx
	r.touchTransit(stop)

	if s.isBetter(rec.time, w.bestTime[stop]) {
		w.bestTime[stop] = rec.time
		r.best[stop] = idx
		r.touch(stop)
	}
}

func (w *standardWorker) acceptOnFoot(round int, rec arrival) {
	s := w.s
	stop := rec.stop
	if !s.isBetter(rec.time, w.bestTime[stop]) {
		return
	}
	r := w.round(round)
	idx := s.arena.add(rec)
	w.bestTime[stop] = rec.time
	r.best[stop] = idx
	r.touch(stop)
}

// boardingCandidates lists the previous-round arrivals at the stop to board from. With
// constrained transfers the transit arrival is tried as well, since a stay-seated or
// guaranteed transfer may only be available from it.
func (w *standardWorker) boardingCandidates(r *stdRound, stop int) []int32 {
	var c []int32
	if r.best[stop] != noArrival {
		c = append(c, r.best[stop])
	}
	if w.s.req.ConstrainedTransfers && r.transitBest[stop] != noArrival && r.transitBest[stop] != r.best[stop] {
		c = append(c, r.transitBest[stop])
	}
	return c
}

// onTrip is the trip currently boarded during a route scan.
type onTrip struct {
	active     bool
	trip       int
	pos        int
	time       int
	prev       int32
	cost       int
	departure  int
	rides      int
	transfers  int
	via        int
	constraint transit.ConstraintType
}

func (w *standardWorker) relaxTransit(round int, routes []int) {
	prevRound := w.round(round - 1)
	for _, ri := range routes {
		if w.s.forward {
			w.scanForward(round, ri, prevRound)
		} else {
			w.scanReverse(round, ri, prevRound)
		}
	}
}

func (w *standardWorker) scanForward(round, ri int, prevRound *stdRound) {
	s := w.s
	route := s.data.Route(ri)
	var cur onTrip

	for pos, stop := range route.Stops {
		if cur.active {
			cur.via = s.advanceVia(cur.via, stop)
			trip := route.Trips[cur.trip]
			alight := trip.Arrivals[pos]
			w.acceptTransit(round, arrival{
				kind:          kindTransit,
				stop:          stop,
				time:          alight + s.slack.Alight,
				prev:          cur.prev,
				round:         round,
				rides:         cur.rides,
				transfers:     cur.transfers,
				cost:          cur.cost + s.calc.TransitCost(alight-cur.time, s.slack.Alight),
				via:           cur.via,
				onBoard:       true,
				departureTime: cur.departure,
				boarded:       true,
				route:         ri,
				trip:          cur.trip,
				boardPos:      cur.pos,
				alightPos:     pos,
				boardTime:     cur.time,
				alightTime:    alight,
				constraint:    cur.constraint,
			})
		}

		if !w.boardable(prevRound, stop) {
			continue
		}
		for _, pi := range w.boardingCandidates(prevRound, stop) {
			prev := *s.arena.get(pi)
			limit := len(route.Trips)
			if cur.active {
				limit = cur.trip
			}
			b, ok := s.findBoardingForward(ri, pos, &prev, limit)
			if !ok {
				continue
			}
			cost, departure := s.boardForward(&prev, stop, b.time, b.constraint)
			cur = w.board(pi, &prev, b, pos, cost, departure)
		}
	}
}

func (w *standardWorker) scanReverse(round, ri int, prevRound *stdRound) {
	s := w.s
	route := s.data.Route(ri)
	var cur onTrip

	for pos := len(route.Stops) - 1; pos >= 0; pos-- {
		stop := route.Stops[pos]
		if cur.active {
			trip := route.Trips[cur.trip]
			board := trip.Departures[pos]
			w.acceptTransit(round, arrival{
				kind:          kindTransit,
				stop:          stop,
				time:          board - s.slack.Board,
				prev:          cur.prev,
				round:         round,
				rides:         cur.rides,
				transfers:     cur.transfers,
				cost:          cur.cost,
				onBoard:       true,
				departureTime: cur.departure,
				boarded:       true,
				route:         ri,
				trip:          cur.trip,
				boardPos:      pos,
				alightPos:     cur.pos,
				boardTime:     board,
				alightTime:    cur.time,
				constraint:    cur.constraint,
			})
		}

		if !w.boardable(prevRound, stop) {
			continue
		}
		for _, pi := range w.boardingCandidates(prevRound, stop) {
			prev := *s.arena.get(pi)
			lower := -1
			if cur.active {
				lower = cur.trip
			}
			b, ok := s.findBoardingReverse(ri, pos, &prev, lower)
			if !ok {
				continue
			}
			cur = w.board(pi, &prev, b, pos, prev.cost, prev.departureTime)
		}
	}
}

func (w *standardWorker) boardable(r *stdRound, stop int) bool {
	return r.touchedMark[stop] || (w.s.req.ConstrainedTransfers && r.transitMark[stop])
}

func (w *standardWorker) board(pi int32, prev *arrival, b boarding, pos, cost, departure int) onTrip {
	transfers := addRides(prev.transfers, prev.rides, 1)
	if b.constraint == transit.StaySeated {
		transfers = prev.transfers
	}
	return onTrip{
		active:     true,
		trip:       b.trip,
		pos:        pos,
		time:       b.time,
		prev:       pi,
		cost:       cost,
		departure:  departure,
		rides:      prev.rides + 1,
		transfers:  transfers,
		via:        prev.via,
		constraint: b.constraint,
	}
}

func (w *standardWorker) acceptTransit(round int, rec arrival) {
	if w.s.exceedsLimit(rec.stop, rec.time) {
		return
	}
	w.acceptOnBoard(round, rec)
}

func (w *standardWorker) relaxTransfers(round int) {
	s := w.s
	r := w.round(round)
	stops := append([]int(nil), r.transitTouched...)
	for _, stop := range stops {
		pi := r.transitBest[stop]
		if pi == noArrival {
			continue
		}
		prev := *s.arena.get(pi)
		if !prev.onBoard {
			continue
		}
		transfers := s.data.TransfersFrom(stop)
		if !s.forward {
			transfers = s.data.TransfersTo(stop)
		}
		for _, t := range transfers {
			target, tt := t.To, prev.time+t.Duration
			if !s.forward {
				target, tt = t.From, prev.time-t.Duration
			}
			if s.exceedsLimit(target, tt) {
				continue
			}
			w.acceptOnFoot(round, arrival{
				kind:          kindTransfer,
				stop:          target,
				time:          tt,
				prev:          pi,
				round:         round,
				rides:         prev.rides,
				transfers:     prev.transfers,
				cost:          prev.cost + s.calc.TransferCost(t),
				via:           s.advanceVia(prev.via, target),
				departureTime: prev.departureTime,
				boarded:       prev.boarded,
				transfer:      t,
			})
		}
	}
}

func (w *standardWorker) arriveAtDestination(round int) {
	s := w.s
	r := w.round(round)
	seen := make(map[int32]bool)
	check := func(pi int32) {
		if pi == noArrival || seen[pi] {
			return
		}
		seen[pi] = true
		prev := *s.arena.get(pi)
		if prev.round != round {
			return
		}
		for _, leg := range s.egressByStop[prev.stop] {
			start, target, ok := s.egressTimes(&prev, leg)
			if !ok {
				continue
			}
			rec := s.destinationArrival(pi, &prev, leg, start, target)
			if !w.improvesDestination(rec) {
				continue
			}
			s.addDestination(rec)
		}
	}
	for _, stop := range r.touched {
		check(r.best[stop])
	}
	for _, stop := range r.transitTouched {
		check(r.transitBest[stop])
	}
}

// improvesDestination accepts a destination arrival strictly better than every earlier
// one with the same or fewer transfers.
func (w *standardWorker) improvesDestination(rec arrival) bool {
	s := w.s
	for len(w.destBest) <= rec.transfers {
		w.destBest = append(w.destBest, s.unreachedTime())
	}
	for k := 0; k <= rec.transfers; k++ {
		if !s.isBetter(rec.time, w.destBest[k]) {
			return false
		}
	}
	w.destBest[rec.transfers] = rec.time
	return true
}
