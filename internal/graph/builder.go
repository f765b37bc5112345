package graph

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/passbi/passbi_planner/internal/gtfs"
	"github.com/passbi/passbi_planner/internal/models"
	"github.com/passbi/passbi_planner/internal/transit"
)

const (
	DefaultMaxWalkDistance = 500 // meters
	DefaultWalkingSpeed    = 1.4 // meters per second

	metersPerDegreeLat = 111320
)

// Network is a timetable together with the stop locations needed to link
// coordinates to it. Stops is indexed by transit stop index.
type Network struct {
	Data  *transit.Data
	Stops []models.Stop

	// massTransit marks stops served by a BRT or TER route
	massTransit []bool
}

// StopIndex returns the transit index of a GTFS stop id
func (n *Network) StopIndex(stopID string) (int, bool) {
	return n.Data.StopIndex(stopID)
}

// Builder turns a feed into a Network. Trips sharing a route and a stop sequence
// form one pattern.
type Builder struct {
	logger          *slog.Logger
	walkingSpeed    float64
	maxWalkDistance float64
}

// NewBuilder creates a new network builder
func NewBuilder(logger *slog.Logger, walkingSpeed, maxWalkDistance float64) *Builder {
	if walkingSpeed <= 0 {
		walkingSpeed = DefaultWalkingSpeed
	}
	if maxWalkDistance <= 0 {
		maxWalkDistance = DefaultMaxWalkDistance
	}
	return &Builder{logger: logger, walkingSpeed: walkingSpeed, maxWalkDistance: maxWalkDistance}
}

// WalkDuration returns the seconds needed to walk the distance, rounded up
func (b *Builder) WalkDuration(meters float64) int {
	return int(math.Ceil(meters / b.walkingSpeed))
}

type pattern struct {
	routeID string
	stopIDs []string
	trips   []*transit.TripSchedule
}

// Build constructs the network. Invalid rows are skipped with a warning.
func (b *Builder) Build(feed *gtfs.Feed) (*Network, error) {
	if len(feed.Stops) == 0 {
		return nil, fmt.Errorf("feed has no stops")
	}

	tb := transit.NewBuilder(b.logger)
	net := &Network{}
	for _, s := range feed.Stops {
		if _, dup := tb.Index(s.StopID); dup {
			b.logger.Warn("skipping duplicate stop", slog.String("stop_id", s.StopID))
			continue
		}
		tb.Stop(s.StopID)
		net.Stops = append(net.Stops, models.Stop{ID: s.StopID, Name: s.StopName, Lat: s.Lat, Lon: s.Lon})
	}
	net.massTransit = make([]bool, len(net.Stops))

	routes := make(map[string]models.GTFSRoute, len(feed.Routes))
	for _, r := range feed.Routes {
		if r.Mode == "" {
			r.Mode = gtfs.InferMode(r)
		}
		routes[r.RouteID] = r
	}

	patterns, tripStops := b.groupPatterns(feed, tb)
	for _, p := range patterns {
		r := routes[p.routeID]
		stops := make([]int, len(p.stopIDs))
		for i, id := range p.stopIDs {
			stops[i], _ = tb.Index(id)
		}
		tb.AddRoute(transit.NewRoute(p.routeID, routeName(r, p.routeID), string(r.Mode), stops, p.trips...))
		if r.Mode == models.ModeBRT || r.Mode == models.ModeTER {
			for _, s := range stops {
				net.massTransit[s] = true
			}
		}
	}

	listed := b.addTransfers(feed, tb, tripStops, net.Stops)
	n := b.generateWalkTransfers(tb, net.Stops, listed)
	b.logger.Info("generated walk transfers",
		slog.Int("count", n),
		slog.Int("feed_transfers", len(listed)),
		slog.Float64("max_distance_m", b.maxWalkDistance))

	net.Data = tb.Build()
	b.logger.Info("network built",
		slog.Int("stops", net.Data.NumberOfStops()),
		slog.Int("routes", net.Data.NumberOfRoutes()),
		slog.Int("skipped", tb.Skipped()))
	return net, nil
}

// groupPatterns groups trips by route and stop sequence. It also returns the stop ids
// of every trip in travel order.
func (b *Builder) groupPatterns(feed *gtfs.Feed, tb *transit.Builder) ([]*pattern, map[string][]string) {
	byTrip := make(map[string][]models.GTFSStopTime)
	for _, st := range feed.StopTimes {
		byTrip[st.TripID] = append(byTrip[st.TripID], st)
	}

	var order []string
	patterns := make(map[string]*pattern)
	tripStops := make(map[string][]string, len(feed.Trips))

	for _, trip := range feed.Trips {
		times := byTrip[trip.TripID]
		if len(times) < 2 {
			b.logger.Warn("skipping trip with less than two stop times", slog.String("trip_id", trip.TripID))
			continue
		}
		sort.Slice(times, func(i, j int) bool { return times[i].StopSequence < times[j].StopSequence })

		ids := make([]string, 0, len(times))
		arrivals := make([]int, 0, len(times))
		departures := make([]int, 0, len(times))
		known := true
		for _, st := range times {
			if _, ok := tb.Index(st.StopID); !ok {
				known = false
				break
			}
			ids = append(ids, st.StopID)
			arrivals = append(arrivals, st.ArrivalTime)
			departures = append(departures, st.DepartureTime)
		}
		if !known {
			b.logger.Warn("skipping trip serving an unknown stop", slog.String("trip_id", trip.TripID))
			continue
		}
		tripStops[trip.TripID] = ids

		key := trip.RouteID + "|" + strings.Join(ids, ",")
		p, ok := patterns[key]
		if !ok {
			p = &pattern{routeID: trip.RouteID, stopIDs: ids}
			patterns[key] = p
			order = append(order, key)
		}
		p.trips = append(p.trips, &transit.TripSchedule{ID: trip.TripID, Arrivals: arrivals, Departures: departures})
	}

	out := make([]*pattern, len(order))
	for i, key := range order {
		out[i] = patterns[key]
	}
	return out, tripStops
}

// stopPair is a directed stop-to-stop link
type stopPair struct{ from, to int }

// addTransfers adds the feed's stop transfers and trip constraints. It returns every
// stop pair the feed lists, including pairs where transferring is not possible.
func (b *Builder) addTransfers(feed *gtfs.Feed, tb *transit.Builder, tripStops map[string][]string, stops []models.Stop) map[stopPair]bool {
	listed := make(map[stopPair]bool)
	for _, t := range feed.Transfers {
		if t.FromTripID != "" && t.ToTripID != "" {
			b.addConstraint(t, tb, tripStops)
			continue
		}
		if t.FromStopID == t.ToStopID {
			continue
		}
		from, ok1 := tb.Index(t.FromStopID)
		to, ok2 := tb.Index(t.ToStopID)
		if !ok1 || !ok2 {
			b.logger.Warn("skipping transfer with unknown stop",
				slog.String("from_stop_id", t.FromStopID), slog.String("to_stop_id", t.ToStopID))
			continue
		}
		listed[stopPair{from, to}] = true
		if t.TransferType == 3 || t.TransferType == 5 {
			continue
		}
		duration := t.MinTransferTime
		if duration <= 0 {
			duration = b.WalkDuration(gtfs.HaversineDistance(stops[from].Lat, stops[from].Lon, stops[to].Lat, stops[to].Lon))
		}
		tb.AddTransfer(transit.WalkTransfer(from, to, duration))
	}
	return listed
}

func (b *Builder) addConstraint(t models.GTFSTransfer, tb *transit.Builder, tripStops map[string][]string) {
	typ, err := transit.ParseConstraintType(strconv.Itoa(t.TransferType))
	if err != nil {
		return
	}
	fromPos := lastPosition(tripStops[t.FromTripID], t.FromStopID)
	toPos := firstPosition(tripStops[t.ToTripID], t.ToStopID)
	if fromPos < 0 || toPos < 0 {
		b.logger.Warn("skipping constrained transfer at a stop the trip does not serve",
			slog.String("from_trip_id", t.FromTripID), slog.String("to_trip_id", t.ToTripID))
		return
	}
	tb.AddConstraint(t.FromTripID, fromPos, t.ToTripID, toPos, typ, t.MinTransferTime)
}

// generateWalkTransfers links every pair of distinct stops within walking distance
// that the feed does not list. Stops are swept in latitude order so only a narrow
// band is compared.
func (b *Builder) generateWalkTransfers(tb *transit.Builder, stops []models.Stop, listed map[stopPair]bool) int {
	order := make([]int, len(stops))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return stops[order[i]].Lat < stops[order[j]].Lat })

	band := b.maxWalkDistance / metersPerDegreeLat
	count := 0
	for i, a := range order {
		for _, c := range order[i+1:] {
			if stops[c].Lat-stops[a].Lat > band {
				break
			}
			d := gtfs.HaversineDistance(stops[a].Lat, stops[a].Lon, stops[c].Lat, stops[c].Lon)
			if d > b.maxWalkDistance {
				continue
			}
			duration := b.WalkDuration(d)
			for _, p := range []stopPair{{a, c}, {c, a}} {
				if listed[p] {
					continue
				}
				tb.AddTransfer(transit.WalkTransfer(p.from, p.to, duration))
				count++
			}
		}
	}
	return count
}

func routeName(r models.GTFSRoute, fallback string) string {
	switch {
	case r.ShortName != "":
		return r.ShortName
	case r.LongName != "":
		return r.LongName
	}
	return fallback
}

func firstPosition(ids []string, id string) int {
	for i, s := range ids {
		if s == id {
			return i
		}
	}
	return -1
}

func lastPosition(ids []string, id string) int {
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] == id {
			return i
		}
	}
	return -1
}
