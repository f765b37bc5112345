package raptor

import "github.com/passbi/passbi_planner/internal/transit"

type arrivalKind uint8

const (
	kindAccess arrivalKind = iota
	kindTransit
	kindTransfer
	kindDestination
)

const noArrival int32 = -1

// arrival is a stop arrival in the search direction. Records live in an arena and
// point to their predecessor by index, so paths are rebuilt by following prev.
type arrival struct {
	kind  arrivalKind
	stop  int
	time  int
	prev  int32
	round int

	rides     int
	transfers int
	cost      int
	via       int
	onBoard   bool
	dead      bool

	// departureTime is the path departure after time-shifting the access leg, known
	// once the first trip is boarded.
	departureTime int
	boarded       bool

	// transit
	route      int
	trip       int
	boardPos   int
	alightPos  int
	boardTime  int
	alightTime int
	constraint transit.ConstraintType

	// transfer
	transfer transit.Transfer

	// access, egress and destination
	leg transit.AccessEgress
}

// arena stores every arrival of one search.
type arena struct {
	records []arrival
}

func (a *arena) add(r arrival) int32 {
	a.records = append(a.records, r)
	return int32(len(a.records) - 1)
}

func (a *arena) get(i int32) *arrival { return &a.records[i] }

func (a *arena) size() int { return len(a.records) }
