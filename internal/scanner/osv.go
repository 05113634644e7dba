package scanner

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// defaultTimeout bounds one fixer invocation. The fix subcommand
	// resolves dependency graphs against the vulnerability database and
	// can stall on network trouble.
	defaultTimeout = 10 * time.Minute
)

// OSVConfig holds configuration for the osv-scanner fixer adapter.
type OSVConfig struct {
	// ScannerPath is the fixer executable. Defaults to "osv-scanner"
	// resolved from PATH.
	ScannerPath string

	// WorkingDir is the project directory the fixer runs in.
	WorkingDir string

	// ManifestPath and LockfilePath are passed to the fixer via its
	// -M and -L flags.
	ManifestPath string
	LockfilePath string

	// ExtraArgs are user-supplied flags forwarded verbatim, ahead of
	// the per-attempt strategy arguments.
	ExtraArgs []string

	// Timeout bounds one invocation. Zero uses defaultTimeout.
	Timeout time.Duration

	// RequestsPerSecond throttles fixer invocations; each run queries
	// the vulnerability database. Zero uses 1/sec.
	RequestsPerSecond float64
}

// OSVFixer implements Fixer by shelling out to osv-scanner fix.
type OSVFixer struct {
	scannerPath  string
	workingDir   string
	manifestPath string
	lockfilePath string
	extraArgs    []string
	timeout      time.Duration
	limiter      *rate.Limiter
}

// NewOSVFixer creates the adapter and verifies the fixer executable is
// resolvable. A missing executable is a configuration error: better to
// fail before the first remediation attempt than to spin the loop on
// empty reports.
func NewOSVFixer(cfg OSVConfig) (*OSVFixer, error) {
	if cfg.ManifestPath == "" || cfg.LockfilePath == "" {
		return nil, fmt.Errorf("manifest and lockfile paths are required")
	}

	scannerPath := cfg.ScannerPath
	if scannerPath == "" {
		scannerPath = "osv-scanner"
	}
	resolved, err := exec.LookPath(scannerPath)
	if err != nil {
		return nil, fmt.Errorf("fixer executable %q not found: %w", scannerPath, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = 1
	}

	return &OSVFixer{
		scannerPath:  resolved,
		workingDir:   cfg.WorkingDir,
		manifestPath: cfg.ManifestPath,
		lockfilePath: cfg.LockfilePath,
		extraArgs:    cfg.ExtraArgs,
		timeout:      timeout,
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Fix runs one acquisition attempt. The combined output is captured and
// parsed whether or not the process exits zero: a failing invocation
// that still printed upgrade markers counts, and one that printed
// nothing yields an empty report. Only context cancellation is returned
// as an error.
func (f *OSVFixer) Fix(ctx context.Context, req FixRequest) (*FixReport, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fixer invocation canceled: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, f.scannerPath, f.buildArgs(req)...)
	if f.workingDir != "" {
		cmd.Dir = f.workingDir
	}

	// Non-zero exit is expected when vulnerabilities remain; the markers
	// on the captured stream are the contract, not the exit status.
	output, _ := cmd.CombinedOutput()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fixer invocation canceled: %w", err)
	}

	return ParseReport(string(output)), nil
}

// buildArgs assembles the fix invocation for one attempt.
func (f *OSVFixer) buildArgs(req FixRequest) []string {
	args := []string{"fix", "-M", f.manifestPath, "-L", f.lockfilePath}
	args = append(args, f.extraArgs...)
	args = append(args, req.StrategyArgs...)

	if req.Budget > 0 {
		args = append(args, "--apply-top", strconv.Itoa(req.Budget))
	}

	for _, pkg := range req.Blocklist {
		args = append(args, "--upgrade-config", pkg+":none")
	}

	return args
}
