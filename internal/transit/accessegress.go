package transit

import (
	"errors"
	"fmt"
	"strings"
)

// AccessEgress is a path between the origin (or destination) and a transit stop.
// Rides counts flexible rides included in the path. OnBoard means the stop is reached
// (access) or left (egress) on board a vehicle rather than on foot.
type AccessEgress struct {
	Stop     int
	Duration int // seconds
	Cost     int // cost units
	Rides    int
	OnBoard  bool
	Free     bool
	Closed   bool

	hasOpeningHours bool
	openFrom        int // seconds of day
	openUntil       int // seconds of day
}

// Walk creates a walking access or egress leg.
func Walk(stop, duration int) AccessEgress {
	return AccessEgress{Stop: stop, Duration: duration, Cost: WalkCost(duration, DefaultWalkReluctance)}
}

// Flex creates a flexible leg of the given number of rides arriving at the stop on board.
func Flex(stop, duration, rides int) AccessEgress {
	return AccessEgress{Stop: stop, Duration: duration, Cost: WalkCost(duration, DefaultWalkReluctance), Rides: rides, OnBoard: true}
}

// FlexAndWalk creates a flexible leg that ends with a walk to the stop.
func FlexAndWalk(stop, duration, rides int) AccessEgress {
	return AccessEgress{Stop: stop, Duration: duration, Cost: WalkCost(duration, DefaultWalkReluctance), Rides: rides}
}

// FreeAccessEgress creates a zero-duration, zero-cost leg, used when the origin is a stop.
func FreeAccessEgress(stop int) AccessEgress {
	return AccessEgress{Stop: stop, Free: true}
}

// WithCost returns a copy with the cost given in whole seconds.
func (a AccessEgress) WithCost(seconds int) AccessEgress {
	a.Cost = seconds * CostUnitsPerSecond
	return a
}

// WithOpeningHours returns a copy only usable between open and close each day.
func (a AccessEgress) WithOpeningHours(open, close int) AccessEgress {
	a.hasOpeningHours = true
	a.openFrom = open
	a.openUntil = close
	return a
}

// WithClosed returns a copy that can never be used.
func (a AccessEgress) WithClosed() AccessEgress {
	a.Closed = true
	return a
}

func (a AccessEgress) HasRides() bool        { return a.Rides > 0 }
func (a AccessEgress) HasOpeningHours() bool { return a.hasOpeningHours || a.Closed }

// EarliestDepartureTime returns the earliest time at or after t the leg can start, or TimeNotSet.
func (a AccessEgress) EarliestDepartureTime(t int) int {
	if a.Closed {
		return TimeNotSet
	}
	if !a.hasOpeningHours {
		return t
	}
	day := floorDiv(t, SecondsPerDay) * SecondsPerDay
	open, close := day+a.openFrom, day+a.openUntil
	switch {
	case t < open:
		return open
	case t > close:
		return open + SecondsPerDay
	default:
		return t
	}
}

// LatestDepartureTime returns the latest time at or before t the leg can start, or TimeNotSet.
func (a AccessEgress) LatestDepartureTime(t int) int {
	if a.Closed {
		return TimeNotSet
	}
	if !a.hasOpeningHours {
		return t
	}
	day := floorDiv(t, SecondsPerDay) * SecondsPerDay
	open, close := day+a.openFrom, day+a.openUntil
	switch {
	case t > close:
		return close
	case t < open:
		return close - SecondsPerDay
	default:
		return t
	}
}

// Validate checks the leg invariants: free legs take no time, others take some.
func (a AccessEgress) Validate(numberOfStops int) error {
	var errs []error
	if a.Stop < 0 || a.Stop >= numberOfStops {
		errs = append(errs, fmt.Errorf("stop %d out of range", a.Stop))
	}
	if a.Free && a.Duration != 0 {
		errs = append(errs, fmt.Errorf("free leg to stop %d has duration %ds", a.Stop, a.Duration))
	}
	if !a.Free && a.Duration <= 0 {
		errs = append(errs, fmt.Errorf("leg to stop %d must have a positive duration", a.Stop))
	}
	if a.Rides < 0 {
		errs = append(errs, fmt.Errorf("leg to stop %d has negative rides", a.Stop))
	}
	if a.OnBoard && a.Rides == 0 {
		errs = append(errs, fmt.Errorf("leg to stop %d is on board without rides", a.Stop))
	}
	if a.Cost < 0 {
		errs = append(errs, fmt.Errorf("leg to stop %d has negative cost", a.Stop))
	}
	if a.hasOpeningHours && (a.openFrom < 0 || a.openUntil < a.openFrom || a.openUntil > SecondsPerDay) {
		errs = append(errs, fmt.Errorf("leg to stop %d has invalid opening hours", a.Stop))
	}
	return errors.Join(errs...)
}

// String renders the leg like "Walk 30s", "Flex 3m Rₙ2" or "Free".
func (a AccessEgress) String() string {
	if a.Free {
		return "Free"
	}
	var b strings.Builder
	switch {
	case a.Rides == 0:
		b.WriteString("Walk")
	case a.OnBoard:
		b.WriteString("Flex")
	default:
		b.WriteString("Flex+Walk")
	}
	b.WriteString(" ")
	b.WriteString(FormatDuration(a.Duration))
	if a.Rides > 0 {
		fmt.Fprintf(&b, " Rₙ%d", a.Rides)
	}
	if a.hasOpeningHours {
		fmt.Fprintf(&b, " Open(%s %s)", FormatTime(a.openFrom), FormatTime(a.openUntil))
	}
	if a.Closed {
		b.WriteString(" Closed")
	}
	return b.String()
}
