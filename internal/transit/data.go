package transit

import (
	"log/slog"
	"sort"
)

type constraintKey struct {
	from TripPos
	to   TripPos
}

// Data is an immutable, in-memory timetable shared by concurrent searches.
type Data struct {
	stopNames         []string
	stopIndex         map[string]int
	stopTransferCosts []int
	routes            []*Route
	routesByStop      [][]int
	transfersFrom     [][]Transfer
	transfersTo       [][]Transfer
	trips             map[string]TripPos

	constraints     map[constraintKey]Constraint
	constraintsFrom map[TripPos][]Constraint
	constraintsTo   map[TripPos][]Constraint
}

func (d *Data) NumberOfStops() int { return len(d.stopNames) }

func (d *Data) StopName(stop int) string {
	if stop < 0 || stop >= len(d.stopNames) {
		return "?"
	}
	return d.stopNames[stop]
}

// StopIndex looks a stop up by name.
func (d *Data) StopIndex(name string) (int, bool) {
	i, ok := d.stopIndex[name]
	return i, ok
}

func (d *Data) NumberOfRoutes() int     { return len(d.routes) }
func (d *Data) Route(i int) *Route      { return d.routes[i] }
func (d *Data) RoutesAt(stop int) []int { return d.routesByStop[stop] }

func (d *Data) StopTransferCost(stop int) int {
	if d.stopTransferCosts == nil {
		return 0
	}
	return d.stopTransferCosts[stop]
}

func (d *Data) TransfersFrom(stop int) []Transfer { return d.transfersFrom[stop] }
func (d *Data) TransfersTo(stop int) []Transfer   { return d.transfersTo[stop] }

// Trip resolves a trip ID to its route and trip index.
func (d *Data) Trip(id string) (TripPos, bool) {
	p, ok := d.trips[id]
	return p, ok
}

// HasConstraints reports whether any constrained transfer is registered.
func (d *Data) HasConstraints() bool { return len(d.constraints) > 0 }

// ConstrainedTransfer returns the constraint between the two trip positions, if any.
func (d *Data) ConstrainedTransfer(from, to TripPos) (Constraint, bool) {
	c, ok := d.constraints[constraintKey{from: from, to: to}]
	return c, ok
}

// ConstraintsFrom lists constraints for passengers alighting at the trip position.
func (d *Data) ConstraintsFrom(from TripPos) []Constraint { return d.constraintsFrom[from] }

// ConstraintsTo lists constraints for passengers boarding at the trip position.
func (d *Data) ConstraintsTo(to TripPos) []Constraint { return d.constraintsTo[to] }

type pendingConstraint struct {
	fromTrip string
	fromPos  int
	toTrip   string
	toPos    int
	typ      ConstraintType
	minTime  int
}

// Builder assembles a Data value. Inconsistent input is skipped and logged.
type Builder struct {
	logger      *slog.Logger
	stopNames   []string
	stopIndex   map[string]int
	stopCosts   map[int]int
	routes      []*Route
	transfers   []Transfer
	constraints []pendingConstraint
	skipped     int
}

func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		logger:    logger,
		stopIndex: make(map[string]int),
		stopCosts: make(map[int]int),
	}
}

// Stop returns the index of the named stop, adding it when unknown.
func (b *Builder) Stop(name string) int {
	if i, ok := b.stopIndex[name]; ok {
		return i
	}
	i := len(b.stopNames)
	b.stopNames = append(b.stopNames, name)
	b.stopIndex[name] = i
	return i
}

// Index returns the index of a stop already added.
func (b *Builder) Index(name string) (int, bool) {
	i, ok := b.stopIndex[name]
	return i, ok
}

// Stops adds several stops and returns their indexes in order.
func (b *Builder) Stops(names ...string) []int {
	out := make([]int, len(names))
	for i, n := range names {
		out[i] = b.Stop(n)
	}
	return out
}

// SetStopTransferCost sets the surcharge, in cost units, for transferring at the stop.
func (b *Builder) SetStopTransferCost(stop, cost int) *Builder {
	b.stopCosts[stop] = cost
	return b
}

func (b *Builder) AddRoute(r *Route) *Builder {
	b.routes = append(b.routes, r)
	return b
}

func (b *Builder) AddTransfer(t Transfer) *Builder {
	b.transfers = append(b.transfers, t)
	return b
}

// AddConstraint registers a constraint between stop positions of two trips, by trip ID.
func (b *Builder) AddConstraint(fromTrip string, fromPos int, toTrip string, toPos int, typ ConstraintType, minTransferTime int) *Builder {
	b.constraints = append(b.constraints, pendingConstraint{
		fromTrip: fromTrip, fromPos: fromPos, toTrip: toTrip, toPos: toPos, typ: typ, minTime: minTransferTime,
	})
	return b
}

// Skipped returns the number of routes, trips, transfers and constraints dropped by Build.
func (b *Builder) Skipped() int { return b.skipped }

func (b *Builder) skip(msg string, attrs ...any) {
	b.skipped++
	b.logger.Warn(msg, attrs...)
}

// Build validates the input and returns the immutable timetable.
func (b *Builder) Build() *Data {
	n := len(b.stopNames)
	d := &Data{
		stopNames:       append([]string(nil), b.stopNames...),
		stopIndex:       make(map[string]int, n),
		routesByStop:    make([][]int, n),
		transfersFrom:   make([][]Transfer, n),
		transfersTo:     make([][]Transfer, n),
		trips:           make(map[string]TripPos),
		constraints:     make(map[constraintKey]Constraint),
		constraintsFrom: make(map[TripPos][]Constraint),
		constraintsTo:   make(map[TripPos][]Constraint),
	}
	for name, i := range b.stopIndex {
		d.stopIndex[name] = i
	}
	if len(b.stopCosts) > 0 {
		d.stopTransferCosts = make([]int, n)
		for stop, cost := range b.stopCosts {
			if stop >= 0 && stop < n {
				d.stopTransferCosts[stop] = cost
			}
		}
	}

	for _, r := range b.routes {
		for _, split := range b.prepareRoute(r, n) {
			idx := len(d.routes)
			d.routes = append(d.routes, split)
			for ti, t := range split.Trips {
				d.trips[t.ID] = TripPos{Route: idx, Trip: ti, Pos: -1}
			}
			seen := make(map[int]bool)
			for _, s := range split.Stops {
				if !seen[s] {
					seen[s] = true
					d.routesByStop[s] = append(d.routesByStop[s], idx)
				}
			}
		}
	}

	for _, t := range b.transfers {
		if t.From < 0 || t.From >= n || t.To < 0 || t.To >= n || t.From == t.To || t.Duration < 0 || t.Cost < 0 {
			b.skip("skipping invalid transfer", slog.Int("from", t.From), slog.Int("to", t.To), slog.Int("duration", t.Duration))
			continue
		}
		d.transfersFrom[t.From] = append(d.transfersFrom[t.From], t)
		d.transfersTo[t.To] = append(d.transfersTo[t.To], t)
	}

	for _, pc := range b.constraints {
		c, ok := b.resolveConstraint(d, pc)
		if !ok {
			continue
		}
		d.constraints[constraintKey{from: c.From, to: c.To}] = c
		d.constraintsFrom[c.From] = append(d.constraintsFrom[c.From], c)
		d.constraintsTo[c.To] = append(d.constraintsTo[c.To], c)
	}

	return d
}

// prepareRoute validates a route and its trips, sorts the trips by departure and
// splits the pattern so that no trip overtakes another within a route.
func (b *Builder) prepareRoute(r *Route, numberOfStops int) []*Route {
	if err := r.validate(); err != nil {
		b.skip("skipping route", slog.String("route", r.ID), slog.String("reason", err.Error()))
		return nil
	}
	for _, s := range r.Stops {
		if s < 0 || s >= numberOfStops {
			b.skip("skipping route with unknown stop", slog.String("route", r.ID), slog.Int("stop", s))
			return nil
		}
	}

	var trips []*TripSchedule
	for _, t := range r.Trips {
		if err := t.validate(len(r.Stops)); err != nil {
			b.skip("skipping trip", slog.String("route", r.ID), slog.String("reason", err.Error()))
			continue
		}
		trips = append(trips, t)
	}
	if len(trips) == 0 {
		b.skip("skipping route without valid trips", slog.String("route", r.ID))
		return nil
	}
	sort.SliceStable(trips, func(i, j int) bool { return trips[i].Departures[0] < trips[j].Departures[0] })

	var groups [][]*TripSchedule
	for _, t := range trips {
		placed := false
		for gi, g := range groups {
			if !t.overtakes(g[len(g)-1]) {
				groups[gi] = append(g, t)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []*TripSchedule{t})
		}
	}
	if len(groups) > 1 {
		b.logger.Info("split route with overtaking trips", slog.String("route", r.ID), slog.Int("patterns", len(groups)))
	}

	out := make([]*Route, 0, len(groups))
	for _, g := range groups {
		split := &Route{ID: r.ID, Name: r.Name, Mode: r.Mode, Stops: r.Stops, Trips: g}
		split.computeLowerBounds()
		out = append(out, split)
	}
	return out
}

func (b *Builder) resolveConstraint(d *Data, pc pendingConstraint) (Constraint, bool) {
	from, ok1 := d.trips[pc.fromTrip]
	to, ok2 := d.trips[pc.toTrip]
	if !ok1 || !ok2 {
		b.skip("skipping constraint with unknown trip", slog.String("from", pc.fromTrip), slog.String("to", pc.toTrip))
		return Constraint{}, false
	}
	fromRoute, toRoute := d.routes[from.Route], d.routes[to.Route]
	if pc.fromPos < 0 || pc.fromPos >= len(fromRoute.Stops) || pc.toPos < 0 || pc.toPos >= len(toRoute.Stops) {
		b.skip("skipping constraint with invalid stop position", slog.String("from", pc.fromTrip), slog.String("to", pc.toTrip))
		return Constraint{}, false
	}
	if pc.typ == StaySeated && fromRoute.Stops[pc.fromPos] != toRoute.Stops[pc.toPos] {
		b.skip("skipping stay-seated constraint between different stops", slog.String("from", pc.fromTrip), slog.String("to", pc.toTrip))
		return Constraint{}, false
	}
	from.Pos, to.Pos = pc.fromPos, pc.toPos
	return Constraint{From: from, To: to, Type: pc.typ, MinTransferTime: pc.minTime}, true
}
