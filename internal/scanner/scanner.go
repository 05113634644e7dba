// Package scanner adapts the external guided-remediation fixer
// (osv-scanner's fix subcommand) into a typed contract the controller
// can drive. The fixer proposes and applies a batch of dependency
// upgrades; this package invokes it, captures its combined output, and
// scrapes the machine-parsable markers it emits into a FixReport.
package scanner

import "context"

// Count is an optional vulnerability count. The fixer may omit the
// remaining/unfixable markers entirely, and "not reported" must stay
// distinguishable from zero.
type Count struct {
	Value int
	Known bool
}

// KnownCount returns a Count carrying a reported value.
func KnownCount(v int) Count {
	return Count{Value: v, Known: true}
}

// Upgrade identifies one package upgrade the fixer applied.
type Upgrade struct {
	// Name is the package identifier as the fixer reports it
	// (e.g. "lodash" or "@babel/core").
	Name string

	// From and To are the versions before and after the upgrade.
	From string
	To   string
}

// FixRequest describes one acquisition attempt.
type FixRequest struct {
	// StrategyArgs are opaque arguments selecting the fixer's upgrade
	// policy (e.g. --strategy=in-place). Passed through verbatim.
	StrategyArgs []string

	// Blocklist holds package names the fixer must not upgrade.
	// Each entry becomes an explicit exclude directive.
	Blocklist []string

	// Budget caps how many of the fixer's ranked candidates may be
	// applied. Zero means no cap: the fixer applies its full
	// recommended set.
	Budget int
}

// FixReport is the parsed outcome of one acquisition attempt.
type FixReport struct {
	// Candidates lists the upgrades actually applied, in the fixer's
	// ranking order. Order is significant: the controller's fixed-point
	// and blocklist logic compares candidate sets positionally.
	Candidates []Upgrade

	// Remaining is the vulnerability count left after the upgrades,
	// if the fixer reported one.
	Remaining Count

	// Unfixable is the count of vulnerabilities the fixer judges
	// impossible to close via upgrade, if reported.
	Unfixable Count

	// RawOutput is the fixer's combined stdout+stderr, kept for
	// diagnostics and the round ledger.
	RawOutput string
}

// Names returns the candidate package names in ranking order.
func (r *FixReport) Names() []string {
	names := make([]string, len(r.Candidates))
	for i, u := range r.Candidates {
		names[i] = u.Name
	}
	return names
}

// Fixer is the patch-acquisition contract the convergence loop depends
// on. Implementations must be deterministic given an identical workspace
// baseline, blocklist, and budget: the loop's fixed-point check compares
// consecutive candidate sets for exact equality.
//
// An invocation that fails outright (tool missing, non-zero exit with no
// markers) must surface as an empty report, not an error: the controller
// treats "could not acquire" the same as "nothing left to fix" so the
// loop can still terminate. Errors are reserved for context cancellation.
type Fixer interface {
	Fix(ctx context.Context, req FixRequest) (*FixReport, error)
}
