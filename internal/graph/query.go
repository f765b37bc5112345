package graph

import (
	"sort"
	"strings"

	"github.com/passbi/passbi_planner/internal/gtfs"
)

// RouteSummary describes a line across all of its patterns
type RouteSummary struct {
	ID    string
	Name  string
	Mode  string
	Stops int // distinct stops served
}

// StopsWithin returns the stops within radius meters of a coordinate, nearest first
func (n *Network) StopsWithin(lat, lon, radius float64, limit int) []NearbyStop {
	var result []NearbyStop
	for i, s := range n.Stops {
		if d := gtfs.HaversineDistance(lat, lon, s.Lat, s.Lon); d <= radius {
			result = append(result, NearbyStop{Index: i, Stop: s, Distance: d})
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Distance < result[j].Distance })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// Routes lists the lines of the network ordered by id. A non-empty mode keeps
// only the lines of that mode.
func (n *Network) Routes(mode string) []RouteSummary {
	byID := n.routeSummaries()
	out := make([]RouteSummary, 0, len(byID))
	for _, r := range byID {
		if mode != "" && !strings.EqualFold(r.Mode, mode) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoutesAt lists the lines serving a stop ordered by id
func (n *Network) RoutesAt(stop int) []RouteSummary {
	byID := n.routeSummaries()
	seen := make(map[string]bool)
	var out []RouteSummary
	for _, ri := range n.Data.RoutesAt(stop) {
		id := n.Data.Route(ri).ID
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (n *Network) routeSummaries() map[string]RouteSummary {
	stops := make(map[string]map[int]bool)
	byID := make(map[string]RouteSummary)
	for i := 0; i < n.Data.NumberOfRoutes(); i++ {
		r := n.Data.Route(i)
		if _, ok := byID[r.ID]; !ok {
			byID[r.ID] = RouteSummary{ID: r.ID, Name: r.Name, Mode: r.Mode}
			stops[r.ID] = make(map[int]bool)
		}
		for _, s := range r.Stops {
			stops[r.ID][s] = true
		}
	}
	for id, s := range stops {
		summary := byID[id]
		summary.Stops = len(s)
		byID[id] = summary
	}
	return byID
}
