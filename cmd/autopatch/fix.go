package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/autopatch/autopatch/internal/config"
	"github.com/autopatch/autopatch/internal/gates"
	"github.com/autopatch/autopatch/internal/history"
	"github.com/autopatch/autopatch/internal/remediation"
	"github.com/autopatch/autopatch/internal/scanner"
	"github.com/autopatch/autopatch/internal/vcs"
)

var fixCmd = &cobra.Command{
	Use:   "fix <project-dir> [-- fixer flags]",
	Short: "Remediate vulnerable dependencies, keeping only test-validated upgrades",
	Long: `Run the guided-remediation loop against a project.

The project directory must be under git version control: before every
attempt the manifest and lockfile are restored to their committed state
so each attempt starts from the same baseline.

Flags after -- are forwarded verbatim to the fixer, e.g.:

  autopatch fix ./myproject -- --min-severity=7 --max-depth=3`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		positional, passthrough := splitDashArgs(args, cmd.ArgsLenAtDash())
		if len(positional) != 1 {
			fmt.Fprintf(os.Stderr, "Error: exactly one project directory is required\n")
			os.Exit(1)
		}
		projectDir := positional[0]

		cfg, err := config.FromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		applyFixFlags(cmd, &cfg)

		if path, _ := cmd.Flags().GetString("strategies-file"); path != "" {
			strategies, err := config.LoadStrategies(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			cfg.Strategies = strategies
		}

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Set up context with signal-aware cancellation
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Fprintln(os.Stderr, "\nInterrupted, stopping after current round...")
			cancel()
		}()

		// The target must be version controlled before any attempt runs.
		repo, err := vcs.Open(ctx, projectDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		if dirty, err := repo.HasChanges(ctx, cfg.Manifest, cfg.Lockfile); err == nil && dirty {
			fmt.Fprintf(os.Stderr, "%s %s/%s carry uncommitted changes; they will be reset to HEAD\n",
				yellow("!"), cfg.Manifest, cfg.Lockfile)
		}

		fixer, err := scanner.NewOSVFixer(scanner.OSVConfig{
			ScannerPath:  cfg.ScannerPath,
			WorkingDir:   projectDir,
			ManifestPath: filepath.Join(projectDir, cfg.Manifest),
			LockfilePath: filepath.Join(projectDir, cfg.Lockfile),
			ExtraArgs:    passthrough,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		validator, err := gates.NewRunner(&gates.Config{
			WorkingDir:     projectDir,
			InstallCommand: cfg.InstallCommand,
			TestCommand:    cfg.TestCommand,
			GateTimeout:    cfg.GateTimeout(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		runID := uuid.New().String()

		var ledger *history.Ledger
		var recorder remediation.RoundRecorder
		if cfg.HistoryPath != "" {
			ledger, err = history.Open(cfg.HistoryPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer ledger.Close()
			recorder = ledger
		}

		controller, err := remediation.NewController(&remediation.Config{
			Workspace: vcs.NewBaseline(repo, cfg.Manifest, cfg.Lockfile),
			Fixer:     fixer,
			Validator: validator,
			Recorder:  recorder,
			RunID:     runID,
			MaxRounds: cfg.MaxRounds,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		strategies := make([]remediation.Strategy, len(cfg.Strategies))
		for i, s := range cfg.Strategies {
			strategies[i] = remediation.Strategy{Name: s.Name, Args: s.Args}
		}

		selector, err := remediation.NewSelector(controller, strategies)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		report, err := selector.Run(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		printSummary(ctx, report, ledger)
	},
}

func init() {
	fixCmd.Flags().String("manifest", "", "Manifest file relative to the project directory (default package.json)")
	fixCmd.Flags().String("lockfile", "", "Lockfile relative to the project directory (default package-lock.json)")
	fixCmd.Flags().String("install-cmd", "", "Dependency install command (default \"npm ci\")")
	fixCmd.Flags().String("test-cmd", "", "Test command (default \"npm run test\")")
	fixCmd.Flags().Int("max-rounds", 0, "Round cap per strategy (default 30)")
	fixCmd.Flags().Int("gate-timeout", 0, "Per-gate timeout in seconds (default 1800, 0 disables)")
	fixCmd.Flags().String("strategies-file", "", "YAML file defining the strategies to evaluate")
	fixCmd.Flags().String("history-db", "", "SQLite file recording every round of this run")
	fixCmd.Flags().String("scanner-path", "", "Fixer executable (default osv-scanner from PATH)")
	rootCmd.AddCommand(fixCmd)
}

// splitDashArgs separates positional arguments from pass-through fixer
// flags supplied after --. dashLen is cobra's ArgsLenAtDash: -1 when no
// -- was given.
func splitDashArgs(args []string, dashLen int) (positional, passthrough []string) {
	if dashLen < 0 {
		return args, nil
	}
	return args[:dashLen], args[dashLen:]
}

// applyFixFlags overlays set flags onto the environment-derived config.
func applyFixFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("manifest"); v != "" {
		cfg.Manifest = v
	}
	if v, _ := cmd.Flags().GetString("lockfile"); v != "" {
		cfg.Lockfile = v
	}
	if v, _ := cmd.Flags().GetString("install-cmd"); v != "" {
		cfg.InstallCommand = strings.Fields(v)
	}
	if v, _ := cmd.Flags().GetString("test-cmd"); v != "" {
		cfg.TestCommand = strings.Fields(v)
	}
	if v, _ := cmd.Flags().GetInt("max-rounds"); v > 0 {
		cfg.MaxRounds = v
	}
	if cmd.Flags().Changed("gate-timeout") {
		v, _ := cmd.Flags().GetInt("gate-timeout")
		cfg.GateTimeoutSeconds = v
	}
	if v, _ := cmd.Flags().GetString("scanner-path"); v != "" {
		cfg.ScannerPath = v
	}
	if v, _ := cmd.Flags().GetString("history-db"); v != "" {
		cfg.HistoryPath = v
	}
}

// printSummary renders the final human-readable report.
func printSummary(ctx context.Context, report *remediation.Report, ledger *history.Ledger) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Println()
	fmt.Println("===== Auto-patch completed =====")

	if ledger != nil {
		if counts, err := ledger.RoundCounts(ctx, report.RunID); err == nil {
			for _, outcome := range report.Outcomes {
				fmt.Printf("  strategy %s: %d round(s)\n", cyan(outcome.Strategy.Name), counts[outcome.Strategy.Name])
			}
		}
	}

	if !report.Best.Valid {
		fmt.Printf("%s No strategy produced a validated improvement\n", red("✗"))
		return
	}

	best := report.Best.Outcome
	fmt.Printf("%s Best strategy: %s\n", green("✓"), cyan(best.Strategy.Name))

	fmt.Println("The following packages have been changed and verified against the tests:")
	for _, u := range best.Upgrades {
		fmt.Printf("  %s %s → %s (%s)\n", u.Name, u.From, u.To, u.Bump())
	}

	if len(best.Blocklist) > 0 {
		fmt.Println("The following packages cannot be upgraded due to failing tests:")
		for _, name := range best.Blocklist {
			fmt.Printf("  %s\n", red(name))
		}
	}

	fmt.Println()
	if best.Remaining.Known {
		fmt.Printf("%d vulnerabilities remain\n", best.Remaining.Value)
	}
	if best.Unfixable.Known && best.Unfixable.Value > 0 {
		fmt.Printf("%d vulnerabilities are impossible to fix by package upgrades\n", best.Unfixable.Value)
	}
}
