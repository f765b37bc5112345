package transit

import (
	"fmt"
	"sort"
)

// TripSchedule holds the arrival and departure times of one vehicle journey,
// indexed by stop position in its route pattern.
type TripSchedule struct {
	ID         string
	Arrivals   []int
	Departures []int
}

// NewTrip builds a trip where every arrival is arrDepOffset seconds before the departure.
func NewTrip(id string, arrDepOffset int, departures ...int) *TripSchedule {
	arrivals := make([]int, len(departures))
	for i, d := range departures {
		arrivals[i] = d - arrDepOffset
	}
	return &TripSchedule{ID: id, Arrivals: arrivals, Departures: departures}
}

// NewTripFromTimes is NewTrip with "H:MM[:SS]" departure strings.
func NewTripFromTimes(id string, arrDepOffset int, departures ...string) *TripSchedule {
	times := make([]int, len(departures))
	for i, d := range departures {
		times[i] = MustParseTime(d)
	}
	return NewTrip(id, arrDepOffset, times...)
}

func (t *TripSchedule) Arrival(pos int) int   { return t.Arrivals[pos] }
func (t *TripSchedule) Departure(pos int) int { return t.Departures[pos] }

func (t *TripSchedule) validate(numberOfStops int) error {
	if len(t.Arrivals) != numberOfStops || len(t.Departures) != numberOfStops {
		return fmt.Errorf("trip %s has %d/%d times for %d stops", t.ID, len(t.Arrivals), len(t.Departures), numberOfStops)
	}
	for i := 0; i < numberOfStops; i++ {
		if t.Departures[i] < t.Arrivals[i] {
			return fmt.Errorf("trip %s departs before it arrives at position %d", t.ID, i)
		}
		if i > 0 && t.Arrivals[i] < t.Departures[i-1] {
			return fmt.Errorf("trip %s travels back in time at position %d", t.ID, i)
		}
	}
	return nil
}

// overtakes reports whether t departs after other somewhere and before it elsewhere.
func (t *TripSchedule) overtakes(other *TripSchedule) bool {
	for i := range t.Departures {
		if t.Departures[i] < other.Departures[i] || t.Arrivals[i] < other.Arrivals[i] {
			return true
		}
	}
	return false
}

// Route is a stop pattern with the trips serving it. Trips are ordered by
// departure and never overtake each other once the route is built.
type Route struct {
	ID    string
	Name  string
	Mode  string
	Stops []int
	Trips []*TripSchedule

	// lower bounds from the first stop, used by heuristics
	minArrival   []int
	minDeparture []int
}

// NewRoute creates a route pattern. Mode defaults to "BUS".
func NewRoute(id, name, mode string, stops []int, trips ...*TripSchedule) *Route {
	if mode == "" {
		mode = "BUS"
	}
	return &Route{ID: id, Name: name, Mode: mode, Stops: stops, Trips: trips}
}

func (r *Route) NumberOfStops() int { return len(r.Stops) }

// StopPositions returns every position the stop is served at.
func (r *Route) StopPositions(stop int) []int {
	var positions []int
	for i, s := range r.Stops {
		if s == stop {
			positions = append(positions, i)
		}
	}
	return positions
}

// FindEarliestTrip returns the index of the first trip among Trips[:limit] that departs
// position pos at or after earliest and is not skipped, or -1.
func (r *Route) FindEarliestTrip(pos, earliest, limit int, skip func(trip int) bool) int {
	if limit > len(r.Trips) {
		limit = len(r.Trips)
	}
	i := sort.Search(limit, func(i int) bool { return r.Trips[i].Departures[pos] >= earliest })
	for ; i < limit; i++ {
		if skip == nil || !skip(i) {
			return i
		}
	}
	return -1
}

// FindLatestTrip returns the index of the last trip after index lower that arrives at
// position pos at or before latest and is not skipped, or -1.
func (r *Route) FindLatestTrip(pos, latest, lower int, skip func(trip int) bool) int {
	i := sort.Search(len(r.Trips), func(i int) bool { return r.Trips[i].Arrivals[pos] > latest }) - 1
	for ; i > lower && i >= 0; i-- {
		if skip == nil || !skip(i) {
			return i
		}
	}
	return -1
}

// MinRideDuration is a lower bound of the in-vehicle time from boarding at position
// from to alighting at position to over all trips of the route.
func (r *Route) MinRideDuration(from, to int) int {
	return r.minArrival[to] - r.minDeparture[from]
}

func (r *Route) validate() error {
	if len(r.Stops) < 2 {
		return fmt.Errorf("route %s has fewer than two stops", r.ID)
	}
	for i := 1; i < len(r.Stops); i++ {
		if r.Stops[i] == r.Stops[i-1] {
			return fmt.Errorf("route %s visits stop %d twice in a row", r.ID, r.Stops[i])
		}
	}
	return nil
}

func (r *Route) computeLowerBounds() {
	n := len(r.Stops)
	hop := make([]int, n)
	dwell := make([]int, n)
	for k := 0; k < n; k++ {
		hop[k], dwell[k] = -1, -1
	}
	for _, t := range r.Trips {
		for k := 0; k < n; k++ {
			if k > 0 {
				if d := t.Departures[k] - t.Arrivals[k]; dwell[k] < 0 || d < dwell[k] {
					dwell[k] = d
				}
			}
			if k < n-1 {
				if h := t.Arrivals[k+1] - t.Departures[k]; hop[k] < 0 || h < hop[k] {
					hop[k] = h
				}
			}
		}
	}

	r.minArrival = make([]int, n)
	r.minDeparture = make([]int, n)
	for k := 1; k < n; k++ {
		r.minDeparture[k-1] = r.minArrival[k-1] + max(dwell[k-1], 0)
		r.minArrival[k] = r.minDeparture[k-1] + max(hop[k-1], 0)
	}
	r.minDeparture[n-1] = r.minArrival[n-1]
}
