package raptor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/passbi/passbi_planner/internal/transit"
)

// Profile selects the optimization criteria of a search.
type Profile string

const (
	// ProfileStandard finds the earliest arrival (or latest departure) per iteration.
	ProfileStandard Profile = "standard"
	// ProfileMultiCriteria keeps Pareto-optimal paths over time, transfers and cost.
	ProfileMultiCriteria Profile = "multi_criteria"
	// ProfileMinTravelDuration only computes heuristics: minimum duration and transfers.
	ProfileMinTravelDuration Profile = "min_travel_duration"
)

// Direction of the search in time.
type Direction string

const (
	Forward Direction = "forward"
	Reverse Direction = "reverse"
)

const (
	DefaultMaxNumberOfTransfers = 12
	iterationStep               = 60
)

// Slack is the minimum time, in seconds, reserved around boarding, alighting and transfers.
type Slack struct {
	Board    int `yaml:"board" validate:"gte=0"`
	Alight   int `yaml:"alight" validate:"gte=0"`
	Transfer int `yaml:"transfer" validate:"gte=0"`
}

// ViaLocation is a pass-through group: a path must visit one of its stops.
type ViaLocation struct {
	Name  string
	Stops []int `validate:"min=1"`
}

// Request describes one journey search. Times are seconds relative to the service day.
type Request struct {
	EarliestDepartureTime int
	LatestArrivalTime     int
	SearchWindow          int `validate:"gte=0"`

	Access []transit.AccessEgress `validate:"min=1"`
	Egress []transit.AccessEgress `validate:"min=1"`

	Profile   Profile   `validate:"required,oneof=standard multi_criteria min_travel_duration"`
	Direction Direction `validate:"required,oneof=forward reverse"`
	Slack     Slack

	ViaLocations         []ViaLocation `validate:"dive"`
	ConstrainedTransfers bool
	OneIterationOnly     bool
	Timetable            bool
	MaxNumberOfTransfers int           `validate:"gte=0,lte=30"`
	Timeout              time.Duration `validate:"gte=0"`
}

// NewRequest returns a forward standard request with unset times.
func NewRequest() Request {
	return Request{
		EarliestDepartureTime: transit.TimeNotSet,
		LatestArrivalTime:     transit.TimeNotSet,
		Profile:               ProfileStandard,
		Direction:             Forward,
		MaxNumberOfTransfers:  DefaultMaxNumberOfTransfers,
	}
}

func (r *Request) hasEarliestDepartureTime() bool { return r.EarliestDepartureTime != transit.TimeNotSet }
func (r *Request) hasLatestArrivalTime() bool     { return r.LatestArrivalTime != transit.TimeNotSet }

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a request is rejected before the search starts.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

var validate = validator.New()

// Validate checks the request against a timetable with the given number of stops.
// It returns a *ValidationError listing every problem found.
func (r *Request) Validate(numberOfStops int) error {
	verr := &ValidationError{}

	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate request: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Namespace(), "failed on '%s' %s", fe.Tag(), fe.Param())
		}
	}

	switch {
	case r.Profile == ProfileMinTravelDuration:
	case r.Direction == Reverse && !r.hasLatestArrivalTime():
		verr.add("Request.LatestArrivalTime", "required for a reverse search")
	case r.Direction != Reverse && !r.hasEarliestDepartureTime():
		verr.add("Request.EarliestDepartureTime", "required for a forward search")
	}
	if r.hasEarliestDepartureTime() && r.hasLatestArrivalTime() && r.LatestArrivalTime <= r.EarliestDepartureTime {
		verr.add("Request.LatestArrivalTime", "must be after the earliest departure time")
	}
	if r.Profile == ProfileMultiCriteria && r.Direction == Reverse {
		verr.add("Request.Direction", "multi-criteria search only runs forward")
	}

	for i, a := range r.Access {
		if err := a.Validate(numberOfStops); err != nil {
			verr.add(fmt.Sprintf("Request.Access[%d]", i), "%v", err)
		}
	}
	for i, e := range r.Egress {
		if err := e.Validate(numberOfStops); err != nil {
			verr.add(fmt.Sprintf("Request.Egress[%d]", i), "%v", err)
		}
	}
	for i, v := range r.ViaLocations {
		for _, s := range v.Stops {
			if s < 0 || s >= numberOfStops {
				verr.add(fmt.Sprintf("Request.ViaLocations[%d]", i), "stop %d out of range", s)
			}
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
