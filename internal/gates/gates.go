// Package gates runs the target project's validation pipeline: a
// dependency-install step followed by a test step. The remediation
// controller only consumes the combined boolean verdict; per-gate output
// is kept for the round ledger and diagnostics.
package gates

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// GateType identifies a validation gate.
type GateType string

const (
	GateInstall GateType = "install"
	GateTest    GateType = "test"
)

// maxOutputBytes caps captured gate output. Install and test runs can
// emit megabytes; the controller only needs the head for diagnostics.
const maxOutputBytes = 64 * 1024

// Result represents the outcome of one gate.
type Result struct {
	Gate     GateType
	Passed   bool
	Output   string
	Duration time.Duration
	Error    error
}

// Provider is the validation contract the controller depends on. It
// returns the per-gate results and whether every gate passed. Pluggable
// so tests can substitute deterministic verdicts.
type Provider interface {
	RunAll(ctx context.Context) ([]*Result, bool)
}

// Config holds validation runner configuration.
type Config struct {
	// WorkingDir is the project directory gate commands run in.
	WorkingDir string

	// InstallCommand and TestCommand are argv-style commands, e.g.
	// {"npm", "ci"} and {"npm", "run", "test"}. No shell is involved.
	InstallCommand []string
	TestCommand    []string

	// GateTimeout bounds each gate. A timed-out gate is a failed gate.
	// Zero means no per-gate timeout.
	GateTimeout time.Duration
}

// Runner executes the install and test gates sequentially.
type Runner struct {
	workingDir  string
	installCmd  []string
	testCmd     []string
	gateTimeout time.Duration
}

// NewRunner creates a validation runner.
func NewRunner(cfg *Config) (*Runner, error) {
	if len(cfg.InstallCommand) == 0 {
		return nil, fmt.Errorf("install command is required")
	}
	if len(cfg.TestCommand) == 0 {
		return nil, fmt.Errorf("test command is required")
	}

	workingDir := cfg.WorkingDir
	if workingDir == "" {
		workingDir = "."
	}

	return &Runner{
		workingDir:  workingDir,
		installCmd:  cfg.InstallCommand,
		testCmd:     cfg.TestCommand,
		gateTimeout: cfg.GateTimeout,
	}, nil
}

// RunAll executes the install gate then the test gate. Both gates run
// even when the first fails so the round ledger captures the full
// picture; the verdict is the conjunction.
func (r *Runner) RunAll(ctx context.Context) ([]*Result, bool) {
	gates := []struct {
		gateType GateType
		argv     []string
	}{
		{GateInstall, r.installCmd},
		{GateTest, r.testCmd},
	}

	var results []*Result
	allPassed := true
	for _, gate := range gates {
		result := r.runGate(ctx, gate.gateType, gate.argv)
		results = append(results, result)
		if !result.Passed {
			allPassed = false
		}
	}
	return results, allPassed
}

// runGate executes one external command, draining stdout and stderr
// concurrently into a capped buffer.
func (r *Runner) runGate(ctx context.Context, gateType GateType, argv []string) *Result {
	result := &Result{Gate: gateType}
	start := time.Now()

	gateCtx := ctx
	if r.gateTimeout > 0 {
		var cancel context.CancelFunc
		gateCtx, cancel = context.WithTimeout(ctx, r.gateTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(gateCtx, argv[0], argv[1:]...)
	cmd.Dir = r.workingDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		result.Error = fmt.Errorf("%s gate: stdout pipe: %w", gateType, err)
		return result
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		result.Error = fmt.Errorf("%s gate: stderr pipe: %w", gateType, err)
		return result
	}

	if err := cmd.Start(); err != nil {
		result.Error = fmt.Errorf("%s gate: failed to start %q: %w", gateType, argv[0], err)
		result.Duration = time.Since(start)
		return result
	}

	var outLines, errLines []string
	g := new(errgroup.Group)
	g.Go(func() error {
		outLines = drainLines(stdout)
		return nil
	})
	g.Go(func() error {
		errLines = drainLines(stderr)
		return nil
	})
	_ = g.Wait()

	waitErr := cmd.Wait()
	result.Duration = time.Since(start)
	result.Output = strings.Join(append(outLines, errLines...), "\n")
	if len(result.Output) > maxOutputBytes {
		result.Output = result.Output[:maxOutputBytes] + "\n... (truncated)"
	}

	if waitErr != nil {
		if errors.Is(gateCtx.Err(), context.DeadlineExceeded) {
			result.Error = fmt.Errorf("%s gate timed out after %v", gateType, r.gateTimeout)
		} else {
			result.Error = fmt.Errorf("%s gate failed: %w", gateType, waitErr)
		}
		return result
	}

	result.Passed = true
	return result
}

// drainLines reads a pipe to exhaustion. Read errors end the drain;
// a killed child closes its pipes, which is the normal timeout path.
func drainLines(pipe io.Reader) []string {
	var lines []string
	sc := bufio.NewScanner(pipe)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
