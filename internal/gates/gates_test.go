package gates

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireUnixShellTools(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("gate tests use unix shell tools")
	}
	for _, bin := range []string{"true", "false", "sh", "sleep"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}
}

func TestNewRunner_Validation(t *testing.T) {
	if _, err := NewRunner(&Config{TestCommand: []string{"true"}}); err == nil {
		t.Error("expected error for missing install command")
	}
	if _, err := NewRunner(&Config{InstallCommand: []string{"true"}}); err == nil {
		t.Error("expected error for missing test command")
	}
	r, err := NewRunner(&Config{InstallCommand: []string{"true"}, TestCommand: []string{"true"}})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	if r.workingDir != "." {
		t.Errorf("workingDir = %q, want default .", r.workingDir)
	}
}

func TestRunAll_BothPass(t *testing.T) {
	requireUnixShellTools(t)

	r, err := NewRunner(&Config{
		InstallCommand: []string{"true"},
		TestCommand:    []string{"true"},
	})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	results, passed := r.RunAll(context.Background())
	if !passed {
		t.Error("expected overall pass")
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Gate != GateInstall || results[1].Gate != GateTest {
		t.Errorf("gate order = %s, %s; want install, test", results[0].Gate, results[1].Gate)
	}
	for _, res := range results {
		if !res.Passed || res.Error != nil {
			t.Errorf("%s gate: passed=%v err=%v", res.Gate, res.Passed, res.Error)
		}
	}
}

// A failing install does not short-circuit the test gate; both results
// are reported and the verdict is the conjunction.
func TestRunAll_InstallFailureStillRunsTests(t *testing.T) {
	requireUnixShellTools(t)

	r, err := NewRunner(&Config{
		InstallCommand: []string{"false"},
		TestCommand:    []string{"true"},
	})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	results, passed := r.RunAll(context.Background())
	if passed {
		t.Error("expected overall failure")
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Passed {
		t.Error("install gate should have failed")
	}
	if results[0].Error == nil {
		t.Error("failed gate should carry an error")
	}
	if !results[1].Passed {
		t.Error("test gate should still have run and passed")
	}
}

func TestRunGate_CapturesOutput(t *testing.T) {
	requireUnixShellTools(t)

	r, err := NewRunner(&Config{
		InstallCommand: []string{"sh", "-c", "echo installed ok; echo warn >&2"},
		TestCommand:    []string{"true"},
	})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	results, _ := r.RunAll(context.Background())
	out := results[0].Output
	if !strings.Contains(out, "installed ok") {
		t.Errorf("stdout not captured: %q", out)
	}
	if !strings.Contains(out, "warn") {
		t.Errorf("stderr not captured: %q", out)
	}
}

func TestRunGate_Timeout(t *testing.T) {
	requireUnixShellTools(t)

	r, err := NewRunner(&Config{
		InstallCommand: []string{"sleep", "5"},
		TestCommand:    []string{"true"},
		GateTimeout:    100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	start := time.Now()
	results, passed := r.RunAll(context.Background())
	if passed {
		t.Error("expected failure on timeout")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
	if results[0].Passed {
		t.Error("timed-out gate must fail")
	}
	if results[0].Error == nil || !strings.Contains(results[0].Error.Error(), "timed out") {
		t.Errorf("error = %v, want timeout error", results[0].Error)
	}
}

func TestRunGate_MissingBinary(t *testing.T) {
	requireUnixShellTools(t)

	r, err := NewRunner(&Config{
		InstallCommand: []string{"definitely-not-a-real-binary-xyz"},
		TestCommand:    []string{"true"},
	})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	results, passed := r.RunAll(context.Background())
	if passed {
		t.Error("expected failure for missing binary")
	}
	if results[0].Error == nil {
		t.Error("missing binary should surface as a gate error")
	}
}
