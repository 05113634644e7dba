// Package remediation implements the feedback-controlled search at the
// heart of autopatch: drive the fixer and the validation gates through
// repeated rounds, growing or narrowing the upgrade batch based on
// pass/fail, until the candidate set stops changing; then compare
// strategies and keep the one leaving the fewest vulnerabilities.
package remediation

import (
	"context"

	"github.com/autopatch/autopatch/internal/gates"
	"github.com/autopatch/autopatch/internal/scanner"
)

// Strategy names one fixer configuration. The controller treats the
// args as an opaque identifier plus pass-through arguments.
type Strategy struct {
	Name string
	Args []string
}

// CandidateSet is the ordered list of package names one acquisition
// call actually upgraded. Ordering follows the fixer's ranking and is
// significant: the fixed-point check and the incremental-growth policy
// both rely on positional equality.
type CandidateSet []string

// Equal reports exact ordered equality, including both sets empty.
func (c CandidateSet) Equal(other CandidateSet) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// Contains reports whether the set holds the given package name.
func (c CandidateSet) Contains(name string) bool {
	for _, n := range c {
		if n == name {
			return true
		}
	}
	return false
}

// Blocklist accumulates package names excluded from acquisition for the
// remainder of one strategy run. Entries are never removed; insertion
// order is preserved for reporting.
type Blocklist struct {
	entries []string
	seen    map[string]bool
}

// NewBlocklist returns an empty blocklist.
func NewBlocklist() *Blocklist {
	return &Blocklist{seen: make(map[string]bool)}
}

// Add records a package name. Duplicates are ignored.
func (b *Blocklist) Add(name string) {
	if b.seen[name] {
		return
	}
	b.seen[name] = true
	b.entries = append(b.entries, name)
}

// Entries returns the blocked names in insertion order.
func (b *Blocklist) Entries() []string {
	out := make([]string, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of blocked packages.
func (b *Blocklist) Len() int {
	return len(b.entries)
}

// Outcome is the final snapshot of one strategy's convergence run.
type Outcome struct {
	Strategy Strategy

	// Applied is the last accepted candidate set. Only ever holds a set
	// that passed validation (or the empty set).
	Applied CandidateSet

	// Upgrades carries the full detail of the accepted upgrades, for
	// reporting.
	Upgrades []scanner.Upgrade

	// Blocklist holds the packages implicated in validation failures
	// during the run.
	Blocklist []string

	// Remaining is the vulnerability count reported by the terminating
	// acquisition call, if any.
	Remaining scanner.Count

	// Unfixable is the count captured when the unconstrained probe
	// first failed validation; unknown if the run never left probe mode.
	Unfixable scanner.Count

	// Rounds is the number of acquisition rounds performed.
	Rounds int

	// Converged is false only when the round cap fired before the
	// fixed point was reached.
	Converged bool
}

// BestResult tracks the best strategy outcome seen so far. The zero
// value means no strategy has produced a validated improvement; the
// initial remaining count is treated as unbounded.
type BestResult struct {
	Valid   bool
	Outcome *Outcome
}

// Consider updates the record when the outcome strictly improves on it:
// the outcome must have accepted at least one upgrade, report a known
// remaining count, and beat the current best with strict less-than.
// Ties keep the earlier strategy.
func (b *BestResult) Consider(outcome *Outcome) bool {
	if len(outcome.Applied) == 0 || !outcome.Remaining.Known {
		return false
	}
	if b.Valid && outcome.Remaining.Value >= b.Outcome.Remaining.Value {
		return false
	}
	b.Valid = true
	b.Outcome = outcome
	return true
}

// Workspace resets the dependency-declaration files to the committed
// baseline. Reset failure is fatal to the whole remediation run: without
// a known baseline, further attempts would compound uncommitted state.
type Workspace interface {
	Reset(ctx context.Context) error
}

// Validator is the install+test verdict contract, satisfied by
// gates.Runner.
type Validator interface {
	RunAll(ctx context.Context) ([]*gates.Result, bool)
}

// RoundRecord describes one convergence-loop round for the run ledger.
type RoundRecord struct {
	RunID      string
	Strategy   string
	Round      int
	Budget     int
	Candidates []string
	Blocklist  []string
	Verdict    Verdict
	Remaining  scanner.Count
	Unfixable  scanner.Count
}

// Verdict classifies how a round ended.
type Verdict string

const (
	// VerdictFixedPoint: candidates equaled the accepted set; the loop
	// terminated without validating.
	VerdictFixedPoint Verdict = "fixed-point"

	// VerdictPass: the candidate set passed install+test and was
	// accepted.
	VerdictPass Verdict = "pass"

	// VerdictFail: install or test failed; the batch was narrowed or
	// its new members blocklisted.
	VerdictFail Verdict = "fail"
)

// RoundRecorder receives round records as the loop runs. Implementations
// must not influence control flow; recording failures are surfaced as
// warnings, never errors.
type RoundRecorder interface {
	RecordRound(ctx context.Context, rec RoundRecord) error
}
