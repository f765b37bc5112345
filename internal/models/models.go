package models

// TransitMode represents the type of transit service
type TransitMode string

const (
	ModeBus   TransitMode = "BUS"
	ModeBRT   TransitMode = "BRT"
	ModeTER   TransitMode = "TER"
	ModeFerry TransitMode = "FERRY"
	ModeTram  TransitMode = "TRAM"
)

// StepType represents the kind of a journey step
type StepType string

const (
	StepWalk     StepType = "WALK"
	StepRide     StepType = "RIDE"
	StepTransfer StepType = "TRANSFER"
)

// Stop represents a physical transit stop location
type Stop struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Step represents one segment of an itinerary
type Step struct {
	Type         StepType    `json:"type"`
	FromStop     string      `json:"from_stop,omitempty"`
	ToStop       string      `json:"to_stop,omitempty"`
	FromStopName string      `json:"from_stop_name,omitempty"`
	ToStopName   string      `json:"to_stop_name,omitempty"`
	Route        string      `json:"route,omitempty"`
	RouteName    string      `json:"route_name,omitempty"`
	Mode         TransitMode `json:"mode,omitempty"`
	TripID       string      `json:"trip_id,omitempty"`
	Constraint   string      `json:"constraint,omitempty"`
	Departure    string      `json:"departure"`
	Arrival      string      `json:"arrival"`
	Duration     int         `json:"duration_seconds"`
}

// Itinerary is one journey option returned to API clients
type Itinerary struct {
	Departure       string `json:"departure"`
	Arrival         string `json:"arrival"`
	DurationSeconds int    `json:"duration_seconds"`
	WalkSeconds     int    `json:"walk_seconds"`
	Transfers       int    `json:"transfers"`
	Cost            int    `json:"cost"`
	Summary         string `json:"summary"`
	Steps           []Step `json:"steps"`
}

// Plan holds the itineraries found by one strategy
type Plan struct {
	Strategy    string      `json:"strategy"`
	Incomplete  bool        `json:"incomplete,omitempty"`
	Itineraries []Itinerary `json:"itineraries"`
}

// GTFS data structures loaded from a feed or the database

// GTFSStop represents a stop from stops.txt
type GTFSStop struct {
	StopID   string
	StopName string
	Lat      float64
	Lon      float64
}

// GTFSRoute represents a route from routes.txt
type GTFSRoute struct {
	RouteID   string
	AgencyID  string
	ShortName string
	LongName  string
	RouteType int
	Mode      TransitMode
}

// GTFSTrip represents a trip from trips.txt
type GTFSTrip struct {
	RouteID   string
	ServiceID string
	TripID    string
	Headsign  string
}

// GTFSStopTime represents a stop time from stop_times.txt, times in seconds after midnight
type GTFSStopTime struct {
	TripID        string
	StopID        string
	StopSequence  int
	ArrivalTime   int
	DepartureTime int
}

// GTFSTransfer represents a row of transfers.txt. Trip ids are set for trip-to-trip
// transfers only.
type GTFSTransfer struct {
	FromStopID      string
	ToStopID        string
	FromTripID      string
	ToTripID        string
	TransferType    int
	MinTransferTime int // seconds, 0 when absent
}
