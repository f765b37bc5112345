package raptor

import (
	"math"

	"github.com/passbi/passbi_planner/internal/transit"
)

// CostUnitsPerSecond is the fixed-point resolution of generalized cost.
const CostUnitsPerSecond = transit.CostUnitsPerSecond

// CostParams configures the default cost calculator. Costs are given in seconds.
type CostParams struct {
	BoardCost         int     `yaml:"boardCost" validate:"gte=0"`
	TransferCost      int     `yaml:"transferCost" validate:"gte=0"`
	WaitReluctance    float64 `yaml:"waitReluctance" validate:"gte=0"`
	TransitReluctance float64 `yaml:"transitReluctance" validate:"gt=0"`
}

// DefaultCostParams mirrors a ten-minute board cost with neutral reluctances.
func DefaultCostParams() CostParams {
	return CostParams{
		BoardCost:         600,
		TransferCost:      0,
		WaitReluctance:    1.0,
		TransitReluctance: 1.0,
	}
}

// Boarding describes a boarding event for cost purposes.
type Boarding struct {
	// FirstBoarding is true when the previous arrival is the access leg.
	FirstBoarding bool
	WaitTime      int
	BoardStop     int
	// PrevStop is the stop the previous transit leg alighted at, or -1.
	PrevStop   int
	Constraint transit.ConstraintType
}

// CostCalculator computes generalized cost increments in cost units.
type CostCalculator interface {
	BoardingCost(b Boarding) int
	TransitCost(rideTime, alightSlack int) int
	WaitCost(seconds int) int
	TransferCost(t transit.Transfer) int
	AccessEgressCost(leg transit.AccessEgress) int
}

// DefaultCostCalculator implements the board, transfer, wait and transit components.
// Stop transfer surcharges apply only when boarding after another ride.
type DefaultCostCalculator struct {
	boardCost        int
	transferCost     int
	waitFactor       float64
	transitFactor    float64
	stopTransferCost func(stop int) int
}

// NewCostCalculator creates a calculator; stopTransferCost may be nil.
func NewCostCalculator(p CostParams, stopTransferCost func(stop int) int) *DefaultCostCalculator {
	if stopTransferCost == nil {
		stopTransferCost = func(int) int { return 0 }
	}
	return &DefaultCostCalculator{
		boardCost:        p.BoardCost * CostUnitsPerSecond,
		transferCost:     p.TransferCost * CostUnitsPerSecond,
		waitFactor:       p.WaitReluctance * CostUnitsPerSecond,
		transitFactor:    p.TransitReluctance * CostUnitsPerSecond,
		stopTransferCost: stopTransferCost,
	}
}

func (c *DefaultCostCalculator) BoardingCost(b Boarding) int {
	cost := c.WaitCost(b.WaitTime)
	switch {
	case b.FirstBoarding:
		cost += c.boardCost
	case b.Constraint == transit.StaySeated || b.Constraint == transit.Guaranteed:
	default:
		cost += c.boardCost + c.transferCost + c.stopTransferCost(b.BoardStop)
		if b.PrevStop >= 0 && b.PrevStop != b.BoardStop {
			cost += c.stopTransferCost(b.PrevStop)
		}
	}
	return cost
}

func (c *DefaultCostCalculator) TransitCost(rideTime, alightSlack int) int {
	return round(c.transitFactor*float64(rideTime)) + c.WaitCost(alightSlack)
}

func (c *DefaultCostCalculator) WaitCost(seconds int) int {
	return round(c.waitFactor * float64(seconds))
}

func (c *DefaultCostCalculator) TransferCost(t transit.Transfer) int { return t.Cost }

func (c *DefaultCostCalculator) AccessEgressCost(leg transit.AccessEgress) int { return leg.Cost }

func round(v float64) int { return int(math.Round(v)) }
