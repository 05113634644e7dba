package remediation

import (
	"context"
	"fmt"
)

// Report is the process-wide result of evaluating every configured
// strategy.
type Report struct {
	// RunID identifies this invocation in the round ledger.
	RunID string

	// Best holds the winning outcome, if any strategy produced a
	// validated improvement with a known remaining count.
	Best BestResult

	// Outcomes lists every strategy's final snapshot, in evaluation
	// order.
	Outcomes []*Outcome
}

// Selector runs the convergence loop once per configured strategy and
// keeps the result leaving the fewest remaining vulnerabilities.
// Strategies are evaluated strictly sequentially: they share one
// mutable workspace and one checkout target.
type Selector struct {
	controller *Controller
	strategies []Strategy
}

// NewSelector creates a selector over the given strategies.
func NewSelector(controller *Controller, strategies []Strategy) (*Selector, error) {
	if controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("at least one strategy is required")
	}
	return &Selector{controller: controller, strategies: strategies}, nil
}

// Run evaluates every strategy with a fresh run state and returns the
// comparison. A strategy producing no accepted change, or no reported
// remaining count, never wins; ties keep the first strategy evaluated.
func (s *Selector) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: s.controller.runID}

	for _, strat := range s.strategies {
		outcome, err := s.controller.Run(ctx, strat)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", strat.Name, err)
		}
		report.Outcomes = append(report.Outcomes, outcome)
		report.Best.Consider(outcome)
	}

	return report, nil
}
