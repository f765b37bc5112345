package transit

import "fmt"

// Transfer is a directed walking connection between two stops.
type Transfer struct {
	From     int
	To       int
	Duration int // seconds
	Cost     int // cost units
}

// WalkTransfer creates a transfer costed with the default walk reluctance.
func WalkTransfer(from, to, duration int) Transfer {
	return Transfer{From: from, To: to, Duration: duration, Cost: WalkCost(duration, DefaultWalkReluctance)}
}

// ConstraintType classifies a trip-to-trip transfer constraint.
type ConstraintType int

const (
	Guaranteed ConstraintType = iota + 1
	StaySeated
	NotAllowed
	MinTransferTime
)

func (c ConstraintType) String() string {
	switch c {
	case Guaranteed:
		return "GUARANTEED"
	case StaySeated:
		return "STAY_SEATED"
	case NotAllowed:
		return "NOT_ALLOWED"
	case MinTransferTime:
		return "MIN_TRANSFER_TIME"
	default:
		return "NONE"
	}
}

// ParseConstraintType maps a GTFS transfer_type (1, 2, 3, 4, 5) or a name to a ConstraintType.
func ParseConstraintType(s string) (ConstraintType, error) {
	switch s {
	case "1", "GUARANTEED":
		return Guaranteed, nil
	case "2", "MIN_TRANSFER_TIME":
		return MinTransferTime, nil
	case "3", "5", "NOT_ALLOWED":
		return NotAllowed, nil
	case "4", "STAY_SEATED":
		return StaySeated, nil
	}
	return 0, fmt.Errorf("unknown transfer constraint %q", s)
}

// TripPos identifies a stop position of a trip within the timetable.
type TripPos struct {
	Route int
	Trip  int
	Pos   int
}

// Constraint restricts or facilitates the transfer from one trip to another.
type Constraint struct {
	From            TripPos
	To              TripPos
	Type            ConstraintType
	MinTransferTime int // seconds, only for MinTransferTime
}

// Facilitated reports whether the constraint lets the passenger board regardless of slack.
func (c Constraint) Facilitated() bool {
	return c.Type == Guaranteed || c.Type == StaySeated
}

func (c Constraint) String() string {
	if c.Type == MinTransferTime {
		return fmt.Sprintf("%s %s", c.Type, FormatDuration(c.MinTransferTime))
	}
	return c.Type.String()
}
