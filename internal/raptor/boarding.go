package raptor

import "github.com/passbi/passbi_planner/internal/transit"

// boarding is the trip found by a trip search at a stop position. time is the
// departure for a forward search and the arrival for a reverse search.
type boarding struct {
	trip       int
	time       int
	constraint transit.ConstraintType
}

// constraintSource is the trip position a transfer starts from (forward) or ends at
// (reverse), used to look up constrained transfers.
type constraintSource struct {
	pos    transit.TripPos
	time   int
	direct bool
}

func (s *search) constraintSourceOf(a *arrival) (constraintSource, bool) {
	if !s.req.ConstrainedTransfers {
		return constraintSource{}, false
	}
	direct := true
	if a.kind == kindTransfer {
		a = s.arena.get(a.prev)
		direct = false
	}
	if a.kind != kindTransit {
		return constraintSource{}, false
	}
	if s.forward {
		return constraintSource{
			pos:    transit.TripPos{Route: a.route, Trip: a.trip, Pos: a.alightPos},
			time:   a.alightTime,
			direct: direct,
		}, true
	}
	return constraintSource{
		pos:    transit.TripPos{Route: a.route, Trip: a.trip, Pos: a.boardPos},
		time:   a.boardTime,
		direct: direct,
	}, true
}

func allowsBoarding(c transit.Constraint, src constraintSource, vehicleTime int, forward bool) bool {
	gap := vehicleTime - src.time
	if !forward {
		gap = -gap
	}
	switch c.Type {
	case transit.Guaranteed:
		return gap >= 0
	case transit.StaySeated:
		return src.direct && gap >= 0
	case transit.MinTransferTime:
		return gap >= c.MinTransferTime
	}
	return false
}

// findBoardingForward finds the earliest trip among the first limit trips of the route
// that can be boarded at pos from prev. Guaranteed and stay-seated transfers ignore slack;
// not-allowed transfers exclude the trip.
func (s *search) findBoardingForward(ri, pos int, prev *arrival, limit int) (boarding, bool) {
	route := s.data.Route(ri)
	earliest := prev.time + s.boardingGap(prev)

	src, constrained := s.constraintSourceOf(prev)
	if !constrained {
		i := route.FindEarliestTrip(pos, earliest, limit, nil)
		if i < 0 {
			return boarding{}, false
		}
		return boarding{trip: i, time: route.Trips[i].Departures[pos]}, true
	}

	best, bestType := -1, transit.ConstraintType(0)
	for _, c := range s.data.ConstraintsFrom(src.pos) {
		if c.To.Route != ri || c.To.Pos != pos || c.To.Trip >= limit {
			continue
		}
		if !allowsBoarding(c, src, route.Trips[c.To.Trip].Departures[pos], true) {
			continue
		}
		if best < 0 || c.To.Trip < best {
			best, bestType = c.To.Trip, c.Type
		}
	}

	regularLimit := limit
	if best >= 0 {
		regularLimit = best
	}
	skip := func(trip int) bool {
		c, ok := s.data.ConstrainedTransfer(src.pos, transit.TripPos{Route: ri, Trip: trip, Pos: pos})
		return ok && (c.Type == transit.NotAllowed || c.Type == transit.MinTransferTime)
	}
	if i := route.FindEarliestTrip(pos, earliest, regularLimit, skip); i >= 0 {
		best, bestType = i, s.facilitatedType(src, transit.TripPos{Route: ri, Trip: i, Pos: pos}, true)
	}
	if best < 0 {
		return boarding{}, false
	}
	return boarding{trip: best, time: route.Trips[best].Departures[pos], constraint: bestType}, true
}

// findBoardingReverse finds the latest trip after index lower that can be alighted at pos
// when travelling backwards in time from prev.
func (s *search) findBoardingReverse(ri, pos int, prev *arrival, lower int) (boarding, bool) {
	route := s.data.Route(ri)
	latest := prev.time - s.boardingGap(prev)

	src, constrained := s.constraintSourceOf(prev)
	if !constrained {
		i := route.FindLatestTrip(pos, latest, lower, nil)
		if i < 0 {
			return boarding{}, false
		}
		return boarding{trip: i, time: route.Trips[i].Arrivals[pos]}, true
	}

	best, bestType := -1, transit.ConstraintType(0)
	for _, c := range s.data.ConstraintsTo(src.pos) {
		if c.From.Route != ri || c.From.Pos != pos || c.From.Trip <= lower {
			continue
		}
		if !allowsBoarding(c, src, route.Trips[c.From.Trip].Arrivals[pos], false) {
			continue
		}
		if c.From.Trip > best {
			best, bestType = c.From.Trip, c.Type
		}
	}

	regularLower := lower
	if best >= 0 {
		regularLower = best
	}
	skip := func(trip int) bool {
		c, ok := s.data.ConstrainedTransfer(transit.TripPos{Route: ri, Trip: trip, Pos: pos}, src.pos)
		return ok && (c.Type == transit.NotAllowed || c.Type == transit.MinTransferTime)
	}
	if i := route.FindLatestTrip(pos, latest, regularLower, skip); i >= 0 {
		best, bestType = i, s.facilitatedType(src, transit.TripPos{Route: ri, Trip: i, Pos: pos}, false)
	}
	if best < 0 {
		return boarding{}, false
	}
	return boarding{trip: best, time: route.Trips[best].Arrivals[pos], constraint: bestType}, true
}

// facilitatedType returns the constraint type when a regular boarding happens to match a
// guaranteed or stay-seated transfer, so no transfer cost is charged for it.
func (s *search) facilitatedType(src constraintSource, target transit.TripPos, forward bool) transit.ConstraintType {
	from, to := src.pos, target
	if !forward {
		from, to = target, src.pos
	}
	c, ok := s.data.ConstrainedTransfer(from, to)
	if !ok || !c.Facilitated() || (c.Type == transit.StaySeated && !src.direct) {
		return 0
	}
	return c.Type
}
