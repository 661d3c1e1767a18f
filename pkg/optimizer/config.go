package optimizer

import (
	"math"
	"time"

	"acao/pkg/plan/types"
	"acao/pkg/solver"
)

type Config struct {
	// RiskPenalty weighs the per-hectare revenue spread against expected profit.
	RiskPenalty float64 `yaml:"risk_penalty"`
	// EligibilityFloor is the minimum closeness coefficient a pair needs to get a variable.
	EligibilityFloor float64        `yaml:"eligibility_floor"`
	RelaxationBudget int            `yaml:"relaxation_budget"`
	RelaxationStep   float64        `yaml:"relaxation_step"`
	Timeout          time.Duration  `yaml:"timeout"`
	Solver           solver.Options `yaml:"solver"`
}

func DefaultConfig() Config {
	return Config{
		RiskPenalty:      0,
		EligibilityFloor: 0,
		RelaxationBudget: 20,
		RelaxationStep:   0.1,
		Timeout:          30 * time.Second,
		Solver:           solver.DefaultOptions(),
	}
}

func (c Config) Validate() error {
	switch {
	case c.RiskPenalty < 0 || math.IsNaN(c.RiskPenalty):
		return types.NewValidationError("risk_penalty", "must be >= 0, got %v", c.RiskPenalty)
	case c.EligibilityFloor < 0 || c.EligibilityFloor > 1 || math.IsNaN(c.EligibilityFloor):
		return types.NewValidationError("eligibility_floor", "must be within [0,1], got %v", c.EligibilityFloor)
	case c.RelaxationBudget < 0:
		return types.NewValidationError("relaxation_budget", "must be >= 0, got %d", c.RelaxationBudget)
	case c.RelaxationStep <= 0 || c.RelaxationStep > 1 || math.IsNaN(c.RelaxationStep):
		return types.NewValidationError("relaxation_step", "must be within (0,1], got %v", c.RelaxationStep)
	case c.Timeout < 0:
		return types.NewValidationError("timeout", "must be >= 0, got %s", c.Timeout)
	}
	return nil
}

func (c Config) tolerance() float64 {
	if c.Solver.Tolerance > 0 {
		return c.Solver.Tolerance
	}
	return solver.DefaultOptions().Tolerance
}
