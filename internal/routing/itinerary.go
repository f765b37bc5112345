package routing

import (
	"github.com/passbi/passbi_planner/internal/graph"
	"github.com/passbi/passbi_planner/internal/models"
	"github.com/passbi/passbi_planner/internal/raptor"
	"github.com/passbi/passbi_planner/internal/transit"
)

// toItinerary converts a path into its API form. Free access and egress legs
// are dropped.
func toItinerary(net *graph.Network, p *raptor.Path) models.Itinerary {
	it := models.Itinerary{
		Departure:       transit.FormatTime(p.DepartureTime),
		Arrival:         transit.FormatTime(p.ArrivalTime),
		DurationSeconds: p.Duration,
		Transfers:       p.NumberOfTransfers,
		Cost:            p.Cost / transit.CostUnitsPerSecond,
		Summary:         p.String(),
		Steps:           make([]models.Step, 0, len(p.Legs)),
	}

	for _, leg := range p.Legs {
		if leg.AccessEgress != nil && leg.AccessEgress.Free {
			continue
		}
		step := models.Step{
			Departure: transit.FormatTime(leg.StartTime),
			Arrival:   transit.FormatTime(leg.EndTime),
			Duration:  leg.Duration(),
		}
		setStop(net, leg.FromStop, &step.FromStop, &step.FromStopName)
		setStop(net, leg.ToStop, &step.ToStop, &step.ToStopName)

		switch leg.Type {
		case raptor.LegTransit:
			step.Type = models.StepRide
			step.Route = leg.RouteID
			step.RouteName = leg.RouteName
			step.Mode = models.TransitMode(leg.Mode)
			step.TripID = leg.TripID
			if leg.Constraint != 0 {
				step.Constraint = leg.Constraint.String()
			}
		case raptor.LegTransfer:
			step.Type = models.StepTransfer
			it.WalkSeconds += step.Duration
		default:
			step.Type = models.StepWalk
			it.WalkSeconds += step.Duration
		}
		it.Steps = append(it.Steps, step)
	}
	return it
}

func setStop(net *graph.Network, idx int, id, name *string) {
	if idx < 0 || idx >= len(net.Stops) {
		return
	}
	*id = net.Stops[idx].ID
	*name = net.Stops[idx].Name
}
