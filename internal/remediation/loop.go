package remediation

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/autopatch/autopatch/internal/scanner"
)

// DefaultMaxRounds bounds one strategy's convergence loop. The loop
// terminates on its own for any deterministic fixer (the blocklist is
// monotone and finite, and the batch only grows while validation
// passes), but a fixer whose ranking breaks ties non-deterministically
// could oscillate; the cap turns that into a non-fatal "gave up,
// report best-so-far" outcome.
const DefaultMaxRounds = 30

// Config holds convergence-loop configuration.
type Config struct {
	Workspace Workspace
	Fixer     scanner.Fixer
	Validator Validator

	// Recorder receives per-round records. Optional.
	Recorder RoundRecorder

	// RunID threads this invocation's identity into round records.
	RunID string

	// MaxRounds caps rounds per strategy. Zero uses DefaultMaxRounds.
	MaxRounds int

	// Out receives round banners. Defaults to os.Stdout.
	Out io.Writer
}

// Controller drives the accept/narrow/exclude cycle for one strategy at
// a time. Strictly sequential: the workspace is the one shared mutable
// resource, exclusively owned by the executing round.
type Controller struct {
	workspace Workspace
	fixer     scanner.Fixer
	validator Validator
	recorder  RoundRecorder
	runID     string
	maxRounds int
	out       io.Writer
}

// NewController validates the configuration and creates a controller.
func NewController(cfg *Config) (*Controller, error) {
	if cfg.Workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	if cfg.Fixer == nil {
		return nil, fmt.Errorf("fixer is required")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if cfg.MaxRounds < 0 {
		return nil, fmt.Errorf("MaxRounds cannot be negative: %d", cfg.MaxRounds)
	}

	maxRounds := cfg.MaxRounds
	if maxRounds == 0 {
		maxRounds = DefaultMaxRounds
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	return &Controller{
		workspace: cfg.Workspace,
		fixer:     cfg.Fixer,
		validator: cfg.Validator,
		recorder:  cfg.Recorder,
		runID:     cfg.RunID,
		maxRounds: maxRounds,
		out:       out,
	}, nil
}

// Run executes the convergence loop for one strategy.
//
// The loop starts in probe mode (budget 0): apply everything the fixer
// suggests and accept immediately if validation passes. A failed probe
// switches to incremental mode (budget 1), growing the batch by one
// candidate per validated round and blocklisting the newly implicated
// candidates on failure. The sole termination condition is the fixed
// point: the fixer returns exactly the already-accepted set.
//
// Acquisition failures are indistinguishable from "nothing left to fix"
// (empty candidates). The only errors returned are workspace-reset
// failures and context cancellation; both abort the whole run.
func (c *Controller) Run(ctx context.Context, strat Strategy) (*Outcome, error) {
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(c.out, "===== Attempting auto-patch with strategy %s =====\n", cyan(strat.Name))

	var (
		applied  CandidateSet
		upgrades []scanner.Upgrade
		budget   int
	)
	blocklist := NewBlocklist()

	var remaining, unfixable scanner.Count
	rounds := 0
	converged := false

	for rounds < c.maxRounds {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("remediation canceled after %d rounds: %w", rounds, err)
		}
		rounds++

		// Every attempt starts from the identical committed baseline.
		if err := c.workspace.Reset(ctx); err != nil {
			return nil, fmt.Errorf("workspace reset failed: %w", err)
		}

		report, err := c.fixer.Fix(ctx, scanner.FixRequest{
			StrategyArgs: strat.Args,
			Blocklist:    blocklist.Entries(),
			Budget:       budget,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("remediation canceled after %d rounds: %w", rounds, ctx.Err())
			}
			// Acquisition failure: zero candidates, no counts. The
			// fixed-point check below still fires once nothing changes.
			report = &scanner.FixReport{}
		}

		candidates := CandidateSet(report.Names())
		remaining = report.Remaining

		if candidates.Equal(applied) {
			converged = true
			c.record(ctx, strat, rounds, budget, candidates, blocklist, VerdictFixedPoint, report)
			break
		}

		fmt.Fprintf(c.out, "===== Trying to upgrade: %v =====\n", []string(candidates))
		if blocklist.Len() > 0 {
			fmt.Fprintf(c.out, "===== Current blocklist: %v =====\n", blocklist.Entries())
		}

		_, passed := c.validator.RunAll(ctx)

		if passed {
			applied = candidates
			upgrades = report.Candidates
			c.record(ctx, strat, rounds, budget, candidates, blocklist, VerdictPass, report)
			if budget == 0 {
				// Unconstrained probe validated: nothing left to try.
				converged = true
				break
			}
			budget++
			continue
		}

		c.record(ctx, strat, rounds, budget, candidates, blocklist, VerdictFail, report)

		if budget == 0 {
			// First, unconstrained attempt failed. Nothing is blamed
			// individually yet; capture the unfixable count and retry
			// with a minimal batch.
			unfixable = report.Unfixable
			budget = 1
			continue
		}

		// Every candidate not already validated is newly implicated.
		fmt.Fprintf(c.out, "===== Tests failed, blocklisting upgrades =====\n")
		for _, name := range candidates {
			if !applied.Contains(name) {
				blocklist.Add(name)
			}
		}
		fmt.Fprintf(c.out, "===== Current blocklist: %v =====\n", blocklist.Entries())
	}

	if !converged {
		fmt.Fprintf(c.out, "%s round cap (%d) reached before fixed point; reporting best-so-far\n",
			yellow("!"), c.maxRounds)
	}

	return &Outcome{
		Strategy:  strat,
		Applied:   applied,
		Upgrades:  upgrades,
		Blocklist: blocklist.Entries(),
		Remaining: remaining,
		Unfixable: unfixable,
		Rounds:    rounds,
		Converged: converged,
	}, nil
}

// record appends one round to the ledger. Recording is advisory: a
// failing recorder warns and the loop continues.
func (c *Controller) record(ctx context.Context, strat Strategy, round, budget int, candidates CandidateSet, blocklist *Blocklist, verdict Verdict, report *scanner.FixReport) {
	if c.recorder == nil {
		return
	}
	rec := RoundRecord{
		RunID:      c.runID,
		Strategy:   strat.Name,
		Round:      round,
		Budget:     budget,
		Candidates: candidates,
		Blocklist:  blocklist.Entries(),
		Verdict:    verdict,
		Remaining:  report.Remaining,
		Unfixable:  report.Unfixable,
	}
	if err := c.recorder.RecordRound(ctx, rec); err != nil {
		fmt.Fprintf(c.out, "warning: failed to record round: %v\n", err)
	}
}
