package transit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessEgressConstructors(t *testing.T) {
	tests := []struct {
		leg  AccessEgress
		text string
	}{
		{Walk(1, 30), "Walk 30s"},
		{Flex(1, 180, 2), "Flex 3m Rₙ2"},
		{FlexAndWalk(1, 120, 1), "Flex+Walk 2m Rₙ1"},
		{FreeAccessEgress(1), "Free"},
		{Walk(1, 60).WithOpeningHours(MustParseTime("8:00"), MustParseTime("9:30")), "Walk 1m Open(8:00 9:30)"},
		{Walk(1, 60).WithClosed(), "Walk 1m Closed"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.leg.String())
			assert.NoError(t, tt.leg.Validate(2))
		})
	}

	assert.True(t, Flex(0, 60, 1).OnBoard)
	assert.False(t, FlexAndWalk(0, 60, 1).OnBoard)
	assert.True(t, FlexAndWalk(0, 60, 1).HasRides())
	assert.Equal(t, 180*CostUnitsPerSecond, Walk(0, 600).WithCost(180).Cost)
}

func TestAccessEgressValidate(t *testing.T) {
	tests := []struct {
		name string
		leg  AccessEgress
	}{
		{"stop out of range", Walk(5, 30)},
		{"negative stop", Walk(-1, 30)},
		{"free leg with duration", AccessEgress{Stop: 0, Duration: 10, Free: true}},
		{"zero duration", AccessEgress{Stop: 0}},
		{"negative rides", AccessEgress{Stop: 0, Duration: 10, Rides: -1}},
		{"on board without rides", AccessEgress{Stop: 0, Duration: 10, OnBoard: true}},
		{"negative cost", AccessEgress{Stop: 0, Duration: 10, Cost: -1}},
		{"closing before opening", Walk(0, 30).WithOpeningHours(600, 300)},
		{"closing after midnight", Walk(0, 30).WithOpeningHours(600, SecondsPerDay+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.leg.Validate(2))
		})
	}
}

func TestOpeningHours(t *testing.T) {
	open, close := MustParseTime("8:00"), MustParseTime("9:00")
	leg := Walk(0, 60).WithOpeningHours(open, close)

	t.Run("earliest departure", func(t *testing.T) {
		assert.Equal(t, open, leg.EarliestDepartureTime(MustParseTime("7:00")))
		assert.Equal(t, MustParseTime("8:30"), leg.EarliestDepartureTime(MustParseTime("8:30")))
		assert.Equal(t, close, leg.EarliestDepartureTime(close))
		assert.Equal(t, open+SecondsPerDay, leg.EarliestDepartureTime(MustParseTime("9:01")))
		assert.Equal(t, open+SecondsPerDay, leg.EarliestDepartureTime(MustParseTime("30:00")))
	})
	t.Run("latest departure", func(t *testing.T) {
		assert.Equal(t, close, leg.LatestDepartureTime(MustParseTime("10:00")))
		assert.Equal(t, MustParseTime("8:30"), leg.LatestDepartureTime(MustParseTime("8:30")))
		assert.Equal(t, close-SecondsPerDay, leg.LatestDepartureTime(MustParseTime("7:59")))
	})
	t.Run("always open", func(t *testing.T) {
		plain := Walk(0, 60)
		assert.False(t, plain.HasOpeningHours())
		assert.Equal(t, 123, plain.EarliestDepartureTime(123))
		assert.Equal(t, 123, plain.LatestDepartureTime(123))
	})
	t.Run("closed", func(t *testing.T) {
		closed := Walk(0, 60).WithClosed()
		assert.True(t, closed.HasOpeningHours())
		assert.Equal(t, TimeNotSet, closed.EarliestDepartureTime(0))
		assert.Equal(t, TimeNotSet, closed.LatestDepartureTime(0))
	})
}
