package raptor

import "github.com/passbi/passbi_planner/internal/transit"

// TransitData is the read-only timetable a search runs against.
// *transit.Data implements it.
type TransitData interface {
	NumberOfStops() int
	StopName(stop int) string
	NumberOfRoutes() int
	Route(i int) *transit.Route
	RoutesAt(stop int) []int
	TransfersFrom(stop int) []transit.Transfer
	TransfersTo(stop int) []transit.Transfer
	StopTransferCost(stop int) int
	ConstrainedTransfer(from, to transit.TripPos) (transit.Constraint, bool)
	ConstraintsFrom(from transit.TripPos) []transit.Constraint
	ConstraintsTo(to transit.TripPos) []transit.Constraint
}

var _ TransitData = (*transit.Data)(nil)
