// Package vcs provides the version-control operations the remediation
// controller needs: detecting that the target project is a git
// repository and restoring the dependency-declaration files to their
// last committed state before every attempt.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotARepository is returned when the target directory is not inside
// a git repository. Callers treat this as a fatal configuration error.
var ErrNotARepository = errors.New("not a git repository")

// Repo wraps git operations against one project directory.
type Repo struct {
	gitPath string
	dir     string
}

// Open verifies that git is available and that dir is inside a git
// repository. It checks for a .git entry first and falls back to asking
// git itself, so it works from subdirectories and worktrees.
func Open(ctx context.Context, dir string) (*Repo, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	if !isGitRepo(ctx, gitPath, dir) {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotARepository)
	}

	return &Repo{gitPath: gitPath, dir: dir}, nil
}

// isGitRepo checks for a .git directory (or worktree pointer file),
// then falls back to git rev-parse.
func isGitRepo(ctx context.Context, gitPath, dir string) bool {
	gitEntry := filepath.Join(dir, ".git")
	if info, err := os.Stat(gitEntry); err == nil && (info.IsDir() || info.Mode().IsRegular()) {
		return true
	}

	cmd := exec.CommandContext(ctx, gitPath, "rev-parse", "--git-dir")
	cmd.Dir = dir
	return cmd.Run() == nil
}

// Dir returns the project directory the repo was opened on.
func (r *Repo) Dir() string {
	return r.dir
}

// Root returns the absolute path of the repository root.
func (r *Repo) Root(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, r.gitPath, "rev-parse", "--show-toplevel")
	cmd.Dir = r.dir
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse --show-toplevel failed in %s: %w", r.dir, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// Restore discards uncommitted modifications to the given paths,
// reverting them to their state at HEAD. Paths are relative to the
// project directory.
func (r *Repo) Restore(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no paths to restore")
	}

	args := append([]string{"checkout", "--"}, paths...)
	cmd := exec.CommandContext(ctx, r.gitPath, args...)
	cmd.Dir = r.dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git checkout failed in %s: %w (output: %s)", r.dir, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// HasChanges reports whether the given paths carry uncommitted
// modifications. With no paths it checks the whole working tree.
func (r *Repo) HasChanges(ctx context.Context, paths ...string) (bool, error) {
	args := []string{"status", "--porcelain"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	cmd := exec.CommandContext(ctx, r.gitPath, args...)
	cmd.Dir = r.dir
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("git status failed in %s: %w", r.dir, err)
	}
	return strings.TrimSpace(string(output)) != "", nil
}

// Baseline binds a Repo to the dependency-declaration files it must
// reset before every remediation attempt. It satisfies the controller's
// Workspace contract.
type Baseline struct {
	repo  *Repo
	paths []string
}

// NewBaseline creates a Baseline resetting the given paths.
func NewBaseline(repo *Repo, paths ...string) *Baseline {
	return &Baseline{repo: repo, paths: paths}
}

// Reset restores the bound paths to their committed state.
func (b *Baseline) Reset(ctx context.Context) error {
	return b.repo.Restore(ctx, b.paths...)
}
