package raptor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/passbi/passbi_planner/internal/transit"
)

// LegType identifies the kind of a path leg.
type LegType string

const (
	LegAccess   LegType = "access"
	LegTransit  LegType = "transit"
	LegTransfer LegType = "transfer"
	LegEgress   LegType = "egress"
)

// Leg is one part of a path with its own start and end time.
type Leg struct {
	Type      LegType `json:"type"`
	FromStop  int     `json:"fromStop"`
	ToStop    int     `json:"toStop"`
	StartTime int     `json:"startTime"`
	EndTime   int     `json:"endTime"`
	Cost      int     `json:"cost"`

	// Transit legs
	RouteID    string                 `json:"routeId,omitempty"`
	RouteName  string                 `json:"routeName,omitempty"`
	Mode       string                 `json:"mode,omitempty"`
	TripID     string                 `json:"tripId,omitempty"`
	Constraint transit.ConstraintType `json:"constraint,omitempty"`

	// Access and egress legs
	AccessEgress *transit.AccessEgress `json:"-"`

	text string
}

func (l Leg) Duration() int { return l.EndTime - l.StartTime }

// Path is a complete journey from origin to destination.
type Path struct {
	DepartureTime     int   `json:"departureTime"`
	ArrivalTime       int   `json:"arrivalTime"`
	Duration          int   `json:"duration"`
	NumberOfTransfers int   `json:"numberOfTransfers"`
	Cost              int   `json:"cost"`
	Legs              []Leg `json:"legs"`

	stopNames []string
	showCost  bool
}

// String formats the path on one line, e.g.
// "Walk 30s ~ A ~ BUS R1 0:02 0:05 ~ B ~ Walk 30s [0:01:30 0:05:30 4m Tₙ0 C₁1_320]".
// Free access and egress legs are left out.
func (p *Path) String() string {
	var b strings.Builder
	sep := func() {
		if b.Len() > 0 {
			b.WriteString(" ~ ")
		}
	}
	for i, leg := range p.Legs {
		if leg.text != "" {
			sep()
			b.WriteString(leg.text)
		}
		if i < len(p.Legs)-1 {
			sep()
			b.WriteString(p.stopNames[i])
		}
	}
	fmt.Fprintf(&b, " [%s %s %s Tₙ%d",
		transit.FormatTime(p.DepartureTime),
		transit.FormatTime(p.ArrivalTime),
		transit.FormatDuration(p.Duration),
		p.NumberOfTransfers)
	if p.showCost {
		b.WriteString(" " + transit.FormatCost(p.Cost))
	}
	b.WriteString("]")
	return b.String()
}

// TransitLegs returns the legs riding a scheduled trip.
func (p *Path) TransitLegs() []Leg {
	var legs []Leg
	for _, l := range p.Legs {
		if l.Type == LegTransit {
			legs = append(legs, l)
		}
	}
	return legs
}

// pathElement is a transit ride or a transfer between the access and egress legs.
type pathElement struct {
	transit    bool
	route      int
	trip       int
	boardPos   int
	alightPos  int
	constraint transit.ConstraintType
	transfer   transit.Transfer
}

// buildPath rebuilds the path ending in the destination record at idx. Times are
// assigned in travel order: the access leg is shifted as late as possible and every
// later leg starts as early as possible. It returns nil for a path that cannot be
// used: it fails a pass-through check, walks twice in a row or hits closed hours.
func (s *search) buildPath(idx int32) *Path {
	var chain []arrival
	for i := idx; i != noArrival; i = s.arena.get(i).prev {
		chain = append(chain, *s.arena.get(i))
	}
	if s.forward {
		for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
			chain[i], chain[j] = chain[j], chain[i]
		}
	}
	if len(chain) < 2 {
		return nil
	}
	first, last := chain[0], chain[len(chain)-1]
	access, egress := first.leg, last.leg

	elements := make([]pathElement, 0, len(chain)-2)
	for _, a := range chain[1 : len(chain)-1] {
		if a.kind == kindTransit {
			elements = append(elements, pathElement{
				transit:    true,
				route:      a.route,
				trip:       a.trip,
				boardPos:   a.boardPos,
				alightPos:  a.alightPos,
				constraint: a.constraint,
			})
			continue
		}
		elements = append(elements, pathElement{transfer: a.transfer})
	}
	if !s.forward {
		shiftConstraints(elements)
	}
	if !walksValid(access, egress, elements) || !s.passesVia(access.Stop, elements) {
		return nil
	}

	departure, ok := s.pathDeparture(first, access, elements)
	if !ok {
		return nil
	}

	p := &Path{DepartureTime: departure, showCost: s.req.Profile == ProfileMultiCriteria}
	t := departure + access.Duration
	p.addLeg(Leg{
		Type:         LegAccess,
		ToStop:       access.Stop,
		FromStop:     -1,
		StartTime:    departure,
		EndTime:      t,
		Cost:         s.calc.AccessEgressCost(access),
		AccessEgress: &access,
		text:         legText(access),
	}, s.data.StopName(access.Stop))

	rides := access.Rides
	transfers := max(access.Rides-1, 0)
	stop, prevAlight := access.Stop, -1
	boarded := false

	for _, e := range elements {
		if !e.transit {
			end := t + e.transfer.Duration
			p.addLeg(Leg{
				Type:      LegTransfer,
				FromStop:  e.transfer.From,
				ToStop:    e.transfer.To,
				StartTime: t,
				EndTime:   end,
				Cost:      s.calc.TransferCost(e.transfer),
				text:      "Walk " + transit.FormatDuration(e.transfer.Duration),
			}, s.data.StopName(e.transfer.To))
			t, stop = end, e.transfer.To
			continue
		}

		route := s.data.Route(e.route)
		trip := route.Trips[e.trip]
		boardTime, alightTime := trip.Departures[e.boardPos], trip.Arrivals[e.alightPos]
		cost := s.calc.BoardingCost(Boarding{
			FirstBoarding: !boarded,
			WaitTime:      boardTime - t,
			BoardStop:     stop,
			PrevStop:      prevAlight,
			Constraint:    e.constraint,
		}) + s.calc.TransitCost(alightTime-boardTime, s.slack.Alight)

		if e.constraint != transit.StaySeated {
			transfers = addRides(transfers, rides, 1)
		}
		rides++
		boarded = true
		stop = route.Stops[e.alightPos]
		prevAlight = stop

		p.addLeg(Leg{
			Type:       LegTransit,
			FromStop:   route.Stops[e.boardPos],
			ToStop:     stop,
			StartTime:  boardTime,
			EndTime:    alightTime,
			Cost:       cost,
			RouteID:    route.ID,
			RouteName:  route.Name,
			Mode:       route.Mode,
			TripID:     trip.ID,
			Constraint: e.constraint,
			text:       fmt.Sprintf("%s %s %s %s", route.Mode, route.Name, transit.FormatTime(boardTime), transit.FormatTime(alightTime)),
		}, s.data.StopName(stop))
		t = alightTime + s.slack.Alight
	}

	earliest := t
	if egress.Rides > 0 && rides > 0 {
		earliest += s.slack.Transfer
	}
	start := egress.EarliestDepartureTime(earliest)
	if start == transit.TimeNotSet {
		return nil
	}
	p.addLeg(Leg{
		Type:         LegEgress,
		FromStop:     egress.Stop,
		ToStop:       -1,
		StartTime:    start,
		EndTime:      start + egress.Duration,
		Cost:         s.calc.WaitCost(start-t) + s.calc.AccessEgressCost(egress),
		AccessEgress: &egress,
		text:         legText(egress),
	}, "")

	p.ArrivalTime = start + egress.Duration
	p.Duration = p.ArrivalTime - p.DepartureTime
	p.NumberOfTransfers = addRides(transfers, rides, egress.Rides)
	for _, l := range p.Legs {
		p.Cost += l.Cost
	}
	return p
}

// shiftConstraints moves constraints found by a reverse search onto the trip boarded
// after the transfer. A reverse search finds the constraint while alighting the earlier
// trip, so the record of that trip carries it.
func shiftConstraints(elements []pathElement) {
	var carry transit.ConstraintType
	for i := range elements {
		if elements[i].transit {
			elements[i].constraint, carry = carry, elements[i].constraint
		}
	}
}

func (p *Path) addLeg(l Leg, toStopName string) {
	p.Legs = append(p.Legs, l)
	p.stopNames = append(p.stopNames, toStopName)
}

func legText(leg transit.AccessEgress) string {
	if leg.Free {
		return ""
	}
	return leg.String()
}

// pathDeparture returns the latest departure of the access leg that still makes the
// first boarding. Without a transit ride the departure found by the search is kept.
func (s *search) pathDeparture(first arrival, access transit.AccessEgress, elements []pathElement) (int, bool) {
	walk := 0
	for _, e := range elements {
		if !e.transit {
			walk += e.transfer.Duration
			continue
		}
		gap := s.slack.Board
		if access.Rides > 0 {
			gap += s.slack.Transfer
		}
		boardTime := s.data.Route(e.route).Trips[e.trip].Departures[e.boardPos]
		dep := access.LatestDepartureTime(boardTime - gap - walk - access.Duration)
		return dep, dep != transit.TimeNotSet
	}
	if s.forward {
		return first.departureTime, true
	}
	return first.time, true
}

// walksValid rejects two walking legs in a row. Access and egress legs reaching their
// stop on board may be combined with a transfer.
func walksValid(access, egress transit.AccessEgress, elements []pathElement) bool {
	if len(elements) == 0 {
		return access.OnBoard || egress.OnBoard
	}
	if !elements[0].transit && !access.OnBoard {
		return false
	}
	if !elements[len(elements)-1].transit && !egress.OnBoard {
		return false
	}
	for i := 1; i < len(elements); i++ {
		if !elements[i].transit && !elements[i-1].transit {
			return false
		}
	}
	return true
}

// passesVia checks the pass-through groups in order against the stops visited: the
// access stop, every stop passed or alighted at on board and every transfer target.
func (s *search) passesVia(accessStop int, elements []pathElement) bool {
	if len(s.via) == 0 {
		return true
	}
	progress := s.advanceVia(0, accessStop)
	for _, e := range elements {
		if !e.transit {
			progress = s.advanceVia(progress, e.transfer.To)
			continue
		}
		stops := s.data.Route(e.route).Stops
		for pos := e.boardPos + 1; pos <= e.alightPos; pos++ {
			progress = s.advanceVia(progress, stops[pos])
		}
	}
	return progress == len(s.via)
}

// sortPaths orders paths by arrival time, later departure, fewer transfers and lower
// cost, and drops duplicates.
func sortPaths(paths []*Path) []*Path {
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := paths[i], paths[j]
		switch {
		case a.ArrivalTime != b.ArrivalTime:
			return a.ArrivalTime < b.ArrivalTime
		case a.DepartureTime != b.DepartureTime:
			return a.DepartureTime > b.DepartureTime
		case a.NumberOfTransfers != b.NumberOfTransfers:
			return a.NumberOfTransfers < b.NumberOfTransfers
		}
		return a.Cost < b.Cost
	})
	seen := make(map[string]bool, len(paths))
	result := paths[:0]
	for _, p := range paths {
		key := p.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, p)
	}
	return result
}
