package raptor

import (
	"container/heap"
	"math"

	"github.com/passbi/passbi_planner/internal/transit"
)

// Unreached marks a stop from which the destination cannot be reached.
const Unreached = math.MaxInt32

// Heuristics holds lower bounds from every stop to the destination, computed by a
// Dijkstra search over the route and transfer graph that ignores the timetable.
type Heuristics struct {
	travelDuration []int
	rides          []int

	minTravelDuration int
	minTransfers      int
}

// ComputeHeuristics computes destination bounds for the request's egress legs.
// Slack is left out of the bounds when constrained transfers may bypass it.
func ComputeHeuristics(data TransitData, req *Request) *Heuristics {
	n := data.NumberOfStops()
	includeSlack := !req.ConstrainedTransfers

	durations := make([]int, n)
	rides := make([]int, n)
	for i := range durations {
		durations[i], rides[i] = Unreached, Unreached
	}
	for _, e := range req.Egress {
		if e.Closed || e.Stop < 0 || e.Stop >= n {
			continue
		}
		durations[e.Stop] = min(durations[e.Stop], e.Duration)
		rides[e.Stop] = min(rides[e.Stop], e.Rides)
	}

	rideTime := func(r *transit.Route, from, to int) int {
		d := r.MinRideDuration(from, to)
		if includeSlack {
			d += req.Slack.Board + req.Slack.Alight
		}
		return d
	}
	reverseDijkstra(data, durations, rideTime, func(t transit.Transfer) int { return t.Duration })
	reverseDijkstra(data, rides, func(*transit.Route, int, int) int { return 1 }, func(transit.Transfer) int { return 0 })

	h := &Heuristics{
		travelDuration:    durations,
		rides:             rides,
		minTravelDuration: Unreached,
		minTransfers:      Unreached,
	}
	for _, a := range req.Access {
		if a.Closed || a.Stop < 0 || a.Stop >= n || durations[a.Stop] == Unreached {
			continue
		}
		h.minTravelDuration = min(h.minTravelDuration, a.Duration+durations[a.Stop])
		h.minTransfers = min(h.minTransfers, max(a.Rides+rides[a.Stop]-1, 0))
	}
	return h
}

// Reachable reports whether the destination can be reached from the stop at all.
func (h *Heuristics) Reachable(stop int) bool { return h.travelDuration[stop] != Unreached }

// BestTravelDuration is a lower bound in seconds from arriving at the stop to the destination.
func (h *Heuristics) BestTravelDuration(stop int) int { return h.travelDuration[stop] }

// BestNumberOfTransfers is a lower bound of transfers after the stop; -1 at egress stops.
func (h *Heuristics) BestNumberOfTransfers(stop int) int {
	if h.rides[stop] == Unreached {
		return Unreached
	}
	return h.rides[stop] - 1
}

// BestTravelDurations exports the bounds with a caller-chosen unreached value.
func (h *Heuristics) BestTravelDurations(unreached int) []int {
	out := make([]int, len(h.travelDuration))
	for i, v := range h.travelDuration {
		if v == Unreached {
			v = unreached
		}
		out[i] = v
	}
	return out
}

// BestNumberOfTransfersArray exports the transfer bounds with a caller-chosen unreached value.
func (h *Heuristics) BestNumberOfTransfersArray(unreached int) []int {
	out := make([]int, len(h.rides))
	for i := range h.rides {
		if v := h.BestNumberOfTransfers(i); v != Unreached {
			out[i] = v
		} else {
			out[i] = unreached
		}
	}
	return out
}

// MinTravelDuration is the shortest possible journey over all access legs, or Unreached.
func (h *Heuristics) MinTravelDuration() int { return h.minTravelDuration }

// MinNumberOfTransfers is the fewest transfers possible over all access legs, or Unreached.
func (h *Heuristics) MinNumberOfTransfers() int { return h.minTransfers }

// Destination reachable from any access leg.
func (h *Heuristics) DestinationReachable() bool { return h.minTravelDuration != Unreached }

func reverseDijkstra(data TransitData, dist []int, rideWeight func(r *transit.Route, from, to int) int, transferWeight func(t transit.Transfer) int) {
	pq := &stopQueue{}
	heap.Init(pq)
	for stop, d := range dist {
		if d != Unreached {
			heap.Push(pq, &queueItem{stop: stop, dist: d})
		}
	}

	relax := func(stop, d int) {
		if d < dist[stop] {
			dist[stop] = d
			heap.Push(pq, &queueItem{stop: stop, dist: d})
		}
	}

	for pq.Len() > 0 {
		current := heap.Pop(pq).(*queueItem)
		if current.dist > dist[current.stop] {
			continue
		}

		for _, t := range data.TransfersTo(current.stop) {
			relax(t.From, current.dist+transferWeight(t))
		}
		for _, ri := range data.RoutesAt(current.stop) {
			route := data.Route(ri)
			for _, to := range route.StopPositions(current.stop) {
				for from := 0; from < to; from++ {
					relax(route.Stops[from], current.dist+rideWeight(route, from, to))
				}
			}
		}
	}
}

type queueItem struct {
	stop  int
	dist  int
	index int // for heap
}

// stopQueue implements heap.Interface ordered by distance
type stopQueue []*queueItem

func (pq stopQueue) Len() int { return len(pq) }

func (pq stopQueue) Less(i, j int) bool {
	return pq[i].dist < pq[j].dist
}

func (pq stopQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *stopQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*queueItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *stopQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}
