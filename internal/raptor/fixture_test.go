package raptor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/passbi/passbi_planner/internal/transit"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// testNetwork builds small timetables for tests. Routes are named R1, R2, ... in the
// order they are added and their trips are named R1-0, R1-1, ...
type testNetwork struct {
	t       *testing.T
	b       *transit.Builder
	nRoutes int
}

func newTestNetwork(t *testing.T, stops ...string) *testNetwork {
	b := transit.NewBuilder(discardLogger)
	b.Stops(stops...)
	return &testNetwork{t: t, b: b}
}

func (n *testNetwork) stop(name string) int { return n.b.Stop(name) }

// route adds a route over space separated stop names, e.g. "A B C". Each trip is a
// row of departure times; arrivals are arrDepOffset seconds before the departures.
func (n *testNetwork) route(stops string, arrDepOffset int, trips ...string) *testNetwork {
	n.nRoutes++
	name := fmt.Sprintf("R%d", n.nRoutes)
	var schedules []*transit.TripSchedule
	for i, row := range trips {
		schedules = append(schedules, transit.NewTripFromTimes(fmt.Sprintf("%s-%d", name, i), arrDepOffset, strings.Fields(row)...))
	}
	n.b.AddRoute(transit.NewRoute(name, name, "", n.b.Stops(strings.Fields(stops)...), schedules...))
	return n
}

func (n *testNetwork) transfer(from, to string, duration int) *testNetwork {
	n.b.AddTransfer(transit.WalkTransfer(n.stop(from), n.stop(to), duration))
	return n
}

func (n *testNetwork) constraint(fromTrip string, fromPos int, toTrip string, toPos int, typ transit.ConstraintType) *testNetwork {
	n.b.AddConstraint(fromTrip, fromPos, toTrip, toPos, typ, 0)
	return n
}

func (n *testNetwork) build() *transit.Data {
	data := n.b.Build()
	require.Zero(n.t, n.b.Skipped(), "test network has invalid input")
	return data
}

func walk(n *testNetwork, stop string, duration int) transit.AccessEgress {
	return transit.Walk(n.stop(stop), duration)
}

func newTestRequest(edt, lat string, access, egress []transit.AccessEgress) Request {
	req := NewRequest()
	if edt != "" {
		req.EarliestDepartureTime = transit.MustParseTime(edt)
	}
	if lat != "" {
		req.LatestArrivalTime = transit.MustParseTime(lat)
	}
	req.Access = access
	req.Egress = egress
	return req
}

// withProfile returns a copy of the request for another profile and direction.
func withProfile(req Request, p Profile, d Direction) Request {
	req.Profile = p
	req.Direction = d
	return req
}

func routeStrings(t *testing.T, svc *Service, req Request) []string {
	t.Helper()
	res, err := svc.Route(context.Background(), req)
	require.NoError(t, err)
	out := make([]string, len(res.Paths))
	for i, p := range res.Paths {
		out[i] = p.String()
	}
	return out
}

// withoutCost strips the cost from a formatted path.
func withoutCost(path string) string {
	i := strings.Index(path, " C₁")
	if i < 0 {
		return path
	}
	return path[:i] + "]"
}

// runWorker runs a search directly and returns its internal state for inspection.
func runWorker(t *testing.T, data *transit.Data, req Request) (*search, routingStrategy) {
	t.Helper()
	require.NoError(t, req.Validate(data.NumberOfStops()))
	calc := NewCostCalculator(DefaultCostParams(), data.StopTransferCost)
	heur := ComputeHeuristics(data, &req)
	s := newSearch(context.Background(), data, &req, calc, heur, discardLogger)
	s.searchWindow = searchWindow(&req, heur)
	var strategy routingStrategy
	if req.Profile == ProfileMultiCriteria {
		strategy = newMcWorker(s)
	} else {
		strategy = newStandardWorker(s)
	}
	s.run(strategy)
	return s, strategy
}
