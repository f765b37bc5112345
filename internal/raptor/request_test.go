package raptor

import (
	"errors"
	"testing"

	"github.com/passbi/passbi_planner/internal/transit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidate(t *testing.T) {
	valid := func() Request {
		return newTestRequest("0:00", "1:00",
			[]transit.AccessEgress{transit.Walk(0, 60)},
			[]transit.AccessEgress{transit.Walk(2, 60)})
	}

	tests := []struct {
		name   string
		modify func(r *Request)
		field  string
	}{
		{"valid", func(r *Request) {}, ""},
		{"no access", func(r *Request) { r.Access = nil }, "Request.Access"},
		{"no egress", func(r *Request) { r.Egress = nil }, "Request.Egress"},
		{"unknown profile", func(r *Request) { r.Profile = "fastest" }, "Request.Profile"},
		{"unknown direction", func(r *Request) { r.Direction = "sideways" }, "Request.Direction"},
		{"negative search window", func(r *Request) { r.SearchWindow = -60 }, "Request.SearchWindow"},
		{"too many transfers", func(r *Request) { r.MaxNumberOfTransfers = 31 }, "Request.MaxNumberOfTransfers"},
		{"forward without departure", func(r *Request) {
			r.EarliestDepartureTime = transit.TimeNotSet
		}, "Request.EarliestDepartureTime"},
		{"reverse without arrival", func(r *Request) {
			r.Direction = Reverse
			r.LatestArrivalTime = transit.TimeNotSet
		}, "Request.LatestArrivalTime"},
		{"arrival before departure", func(r *Request) {
			r.LatestArrivalTime = r.EarliestDepartureTime
		}, "Request.LatestArrivalTime"},
		{"reverse multi-criteria", func(r *Request) {
			r.Profile = ProfileMultiCriteria
			r.Direction = Reverse
		}, "Request.Direction"},
		{"access stop out of range", func(r *Request) {
			r.Access = []transit.AccessEgress{transit.Walk(7, 60)}
		}, "Request.Access[0]"},
		{"egress without duration", func(r *Request) {
			r.Egress = append(r.Egress, transit.AccessEgress{Stop: 1})
		}, "Request.Egress[1]"},
		{"empty via group", func(r *Request) {
			r.ViaLocations = []ViaLocation{{Name: "empty"}}
		}, "Request.ViaLocations[0].Stops"},
		{"via stop out of range", func(r *Request) {
			r.ViaLocations = []ViaLocation{{Name: "far", Stops: []int{3}}}
		}, "Request.ViaLocations[0]"},
		{"heuristics only need no times", func(r *Request) {
			r.Profile = ProfileMinTravelDuration
			r.EarliestDepartureTime = transit.TimeNotSet
			r.LatestArrivalTime = transit.TimeNotSet
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.modify(&req)
			err := req.Validate(3)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected a validation error, got %v", err)
			fields := make([]string, len(verr.Fields))
			for i, f := range verr.Fields {
				fields[i] = f.Field
			}
			assert.Contains(t, fields, tt.field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestNewRequestDefaults(t *testing.T) {
	req := NewRequest()
	assert.Equal(t, ProfileStandard, req.Profile)
	assert.Equal(t, Forward, req.Direction)
	assert.Equal(t, DefaultMaxNumberOfTransfers, req.MaxNumberOfTransfers)
	assert.False(t, req.hasEarliestDepartureTime())
	assert.False(t, req.hasLatestArrivalTime())
}
