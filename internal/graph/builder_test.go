package graph

import (
	"io"
	"log/slog"
	"testing"

	"github.com/passbi/passbi_planner/internal/gtfs"
	"github.com/passbi/passbi_planner/internal/models"
	"github.com/passbi/passbi_planner/internal/transit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func stopTimes(trip string, stops []string, start int) []models.GTFSStopTime {
	var out []models.GTFSStopTime
	for i, s := range stops {
		t := start + i*600
		out = append(out, models.GTFSStopTime{TripID: trip, StopID: s, StopSequence: i + 1, ArrivalTime: t, DepartureTime: t})
	}
	return out
}

// testFeed: A, B and D lie within a few hundred meters, C is 2km north.
func testFeed() *gtfs.Feed {
	feed := &gtfs.Feed{
		Stops: []models.GTFSStop{
			{StopID: "A", StopName: "Stop A", Lat: 14.700, Lon: -17.400},
			{StopID: "B", StopName: "Stop B", Lat: 14.701, Lon: -17.400},
			{StopID: "C", StopName: "Stop C", Lat: 14.720, Lon: -17.400},
			{StopID: "D", StopName: "Stop D", Lat: 14.6995, Lon: -17.400},
		},
		Routes: []models.GTFSRoute{
			{RouteID: "R1", ShortName: "1", RouteType: 3},
			{RouteID: "R2", ShortName: "B1", LongName: "BRT Express", RouteType: 3},
		},
		Trips: []models.GTFSTrip{
			{RouteID: "R1", TripID: "T1"},
			{RouteID: "R1", TripID: "T2"},
			{RouteID: "R1", TripID: "T3"},
			{RouteID: "R2", TripID: "T4"},
			{RouteID: "R2", TripID: "T5"},
			{RouteID: "R2", TripID: "T6"},
			{RouteID: "R2", TripID: "T7"},
		},
	}
	feed.StopTimes = append(feed.StopTimes, stopTimes("T2", []string{"A", "C"}, 8*3600+900)...)
	feed.StopTimes = append(feed.StopTimes, stopTimes("T1", []string{"A", "C"}, 8*3600)...)
	feed.StopTimes = append(feed.StopTimes, stopTimes("T3", []string{"B", "C"}, 8*3600)...)
	feed.StopTimes = append(feed.StopTimes, stopTimes("T4", []string{"B", "C"}, 8*3600)...)
	feed.StopTimes = append(feed.StopTimes, stopTimes("T5", []string{"C", "B"}, 8*3600+600)...)
	feed.StopTimes = append(feed.StopTimes, stopTimes("T6", []string{"B", "Z"}, 8*3600)...)
	feed.StopTimes = append(feed.StopTimes, stopTimes("T7", []string{"B"}, 8*3600)...)
	return feed
}

func TestBuild(t *testing.T) {
	b := NewBuilder(discardLogger, 0, 0)
	net, err := b.Build(testFeed())
	require.NoError(t, err)
	data := net.Data

	t.Run("one route per pattern", func(t *testing.T) {
		assert.Equal(t, 4, data.NumberOfRoutes())
		pos, ok := data.Trip("T1")
		require.True(t, ok)
		r := data.Route(pos.Route)
		assert.Equal(t, "R1", r.ID)
		assert.Equal(t, "1", r.Name)
		assert.Equal(t, "BUS", r.Mode)
		require.Len(t, r.Trips, 2)
		assert.Equal(t, "T1", r.Trips[0].ID, "trips are sorted by departure")
	})

	t.Run("mode inferred from route name", func(t *testing.T) {
		pos, ok := data.Trip("T4")
		require.True(t, ok)
		assert.Equal(t, "BRT", data.Route(pos.Route).Mode)
	})

	t.Run("trips with unknown stops or a single stop are skipped", func(t *testing.T) {
		_, ok := data.Trip("T6")
		assert.False(t, ok)
		_, ok = data.Trip("T7")
		assert.False(t, ok)
	})

	t.Run("walk transfers generated between nearby stops", func(t *testing.T) {
		a, _ := net.StopIndex("A")
		b, _ := net.StopIndex("B")
		c, _ := net.StopIndex("C")
		durations := map[int]int{}
		for _, tr := range data.TransfersFrom(a) {
			durations[tr.To] = tr.Duration
		}
		assert.Len(t, durations, 2)
		assert.Equal(t, 80, durations[b])
		assert.Empty(t, data.TransfersFrom(c))
	})

	t.Run("stop names and coordinates kept", func(t *testing.T) {
		require.Len(t, net.Stops, 4)
		assert.Equal(t, "Stop C", net.Stops[2].Name)
		assert.Equal(t, "C", data.StopName(2))
	})
}

func TestBuildTransfers(t *testing.T) {
	feed := testFeed()
	feed.Transfers = []models.GTFSTransfer{
		{FromStopID: "A", ToStopID: "B", TransferType: 2, MinTransferTime: 240},
		{FromStopID: "B", ToStopID: "D", TransferType: 0},
		{FromStopID: "D", ToStopID: "A", TransferType: 3},
		{FromStopID: "C", ToStopID: "C", FromTripID: "T1", ToTripID: "T5", TransferType: 4},
		{FromStopID: "B", ToStopID: "B", FromTripID: "T1", ToTripID: "T5", TransferType: 1},
	}

	net, err := NewBuilder(discardLogger, 0, 0).Build(feed)
	require.NoError(t, err)
	data := net.Data
	a, _ := net.StopIndex("A")
	b, _ := net.StopIndex("B")
	d, _ := net.StopIndex("D")

	targets := func(stop int) map[int]int {
		out := map[int]int{}
		for _, tr := range data.TransfersFrom(stop) {
			out[tr.To] = tr.Duration
		}
		return out
	}

	t.Run("feed transfers win over generated ones", func(t *testing.T) {
		fromA := targets(a)
		assert.Len(t, fromA, 2)
		assert.Equal(t, 240, fromA[b])

		fromB := targets(b)
		assert.Len(t, fromB, 2)
		assert.Equal(t, 120, fromB[d], "duration from distance when not given")
	})

	t.Run("generated transfers kept for pairs the feed does not list", func(t *testing.T) {
		assert.Contains(t, targets(a), d)
		assert.Equal(t, 80, targets(b)[a])
		assert.Equal(t, 120, targets(d)[b])
	})

	t.Run("transfer type 3 is not possible", func(t *testing.T) {
		assert.NotContains(t, targets(d), a)
		assert.Len(t, targets(d), 1)
	})

	t.Run("trip to trip transfer becomes a constraint", func(t *testing.T) {
		from, ok := data.Trip("T1")
		require.True(t, ok)
		to, ok := data.Trip("T5")
		require.True(t, ok)
		from.Pos, to.Pos = 1, 0

		c, ok := data.ConstrainedTransfer(from, to)
		require.True(t, ok)
		assert.Equal(t, transit.StaySeated, c.Type)
		assert.Len(t, data.ConstraintsFrom(from), 1, "constraint at a stop T1 does not serve is skipped")
	})
}

func TestBuildWithoutStops(t *testing.T) {
	_, err := NewBuilder(discardLogger, 0, 0).Build(&gtfs.Feed{})
	assert.Error(t, err)
}

func TestWalkDuration(t *testing.T) {
	b := NewBuilder(discardLogger, 2, 500)
	assert.Equal(t, 0, b.WalkDuration(0))
	assert.Equal(t, 1, b.WalkDuration(1))
	assert.Equal(t, 70, b.WalkDuration(140))
	assert.Equal(t, 71, b.WalkDuration(141))
}

func TestFindNearestStops(t *testing.T) {
	net, err := NewBuilder(discardLogger, 0, 0).Build(testFeed())
	require.NoError(t, err)

	t.Run("mass transit first", func(t *testing.T) {
		stops := net.FindNearestStops(14.700, -17.400, 0)
		ids := make([]string, len(stops))
		for i, s := range stops {
			ids[i] = s.Stop.ID
		}
		assert.Equal(t, []string{"B", "A", "D"}, ids)
		assert.InDelta(t, 111, stops[0].Distance, 1)
	})

	t.Run("limit", func(t *testing.T) {
		assert.Len(t, net.FindNearestStops(14.700, -17.400, 2), 2)
	})

	t.Run("mass transit within wider radius", func(t *testing.T) {
		stops := net.FindNearestStops(14.710, -17.400, 0)
		ids := make([]string, len(stops))
		for i, s := range stops {
			ids[i] = s.Stop.ID
		}
		assert.Equal(t, []string{"B", "C"}, ids)
	})

	t.Run("nothing nearby", func(t *testing.T) {
		assert.Empty(t, net.FindNearestStops(0, 0, 0))
	})
}

func TestTimetable(t *testing.T) {
	tt := &Timetable{}
	assert.False(t, tt.IsLoaded())
	assert.Nil(t, tt.Network())

	net, err := NewBuilder(discardLogger, 0, 0).Build(testFeed())
	require.NoError(t, err)
	tt.Set(net)
	assert.True(t, tt.IsLoaded())
	assert.Same(t, net, tt.Network())

	assert.Same(t, GetTimetable(), GetTimetable())
}
