package routing

import "github.com/passbi/passbi_planner/internal/raptor"

// Strategy defines the interface for routing strategies
// Each strategy shapes the journey search and filters the paths it returns
type Strategy interface {
	Name() string
	Configure(req *raptor.Request, costs *raptor.CostParams)
	WalkReluctance() float64
	Accept(p *raptor.Path) bool
}

// DirectStrategy prioritizes routes with no transfers
// Penalizes walking and makes transfers impossible
type DirectStrategy struct{}

func (s *DirectStrategy) Name() string {
	return "direct"
}

func (s *DirectStrategy) Configure(req *raptor.Request, costs *raptor.CostParams) {
	req.Profile = raptor.ProfileMultiCriteria
	req.MaxNumberOfTransfers = 0
}

func (s *DirectStrategy) WalkReluctance() float64 {
	return 10 // Heavy walk penalty
}

func (s *DirectStrategy) Accept(p *raptor.Path) bool {
	return p.NumberOfTransfers == 0
}

// SimpleStrategy balances time, walking, and transfers
// Good middle-ground option for most users
type SimpleStrategy struct{}

func (s *SimpleStrategy) Name() string {
	return "simple"
}

func (s *SimpleStrategy) Configure(req *raptor.Request, costs *raptor.CostParams) {
	req.Profile = raptor.ProfileMultiCriteria
	req.MaxNumberOfTransfers = 2
	costs.TransferCost += 180 // 3 min penalty per transfer
}

func (s *SimpleStrategy) WalkReluctance() float64 {
	return 2 // walking is 2x as costly as riding
}

func (s *SimpleStrategy) Accept(p *raptor.Path) bool {
	return p.NumberOfTransfers <= 2
}

// FastStrategy optimizes purely for minimum travel time
// Willing to make more transfers and walk more to save time
type FastStrategy struct{}

func (s *FastStrategy) Name() string {
	return "fast"
}

func (s *FastStrategy) Configure(req *raptor.Request, costs *raptor.CostParams) {
	req.Profile = raptor.ProfileStandard
	req.MaxNumberOfTransfers = 3
}

func (s *FastStrategy) WalkReluctance() float64 {
	return 1
}

func (s *FastStrategy) Accept(p *raptor.Path) bool {
	return p.NumberOfTransfers <= 3
}

// NoTransferStrategy absolutely forbids transfers - single line only
// Uses the earliest arrival search with a moderate walk penalty
type NoTransferStrategy struct{}

func (s *NoTransferStrategy) Name() string {
	return "no_transfer"
}

func (s *NoTransferStrategy) Configure(req *raptor.Request, costs *raptor.CostParams) {
	req.Profile = raptor.ProfileStandard
	req.MaxNumberOfTransfers = 0
}

func (s *NoTransferStrategy) WalkReluctance() float64 {
	return 5 // Moderate walk penalty (less than direct)
}

func (s *NoTransferStrategy) Accept(p *raptor.Path) bool {
	return p.NumberOfTransfers == 0
}

// GetStrategy returns a strategy by name
func GetStrategy(name string) Strategy {
	switch name {
	case "direct":
		return &DirectStrategy{}
	case "simple":
		return &SimpleStrategy{}
	case "fast":
		return &FastStrategy{}
	case "no_transfer":
		return &NoTransferStrategy{}
	default:
		return &SimpleStrategy{}
	}
}

// GetAllStrategies returns all available strategies
func GetAllStrategies() []Strategy {
	return []Strategy{
		&NoTransferStrategy{},
		&DirectStrategy{},
		&SimpleStrategy{},
		&FastStrategy{},
	}
}
