package main

import (
	"github.com/spf13/cobra"
)

// Version is the autopatch release version, overridable at link time.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "autopatch",
	Short: "Test-validated guided dependency remediation",
	Long: `autopatch upgrades a project's vulnerable dependencies and keeps only
the upgrades its own test suite validates.

For each configured strategy it repeatedly asks the fixer (osv-scanner
fix) for a batch of upgrades, runs the project's install and test
commands, and accepts, narrows, or permanently blocklists the batch
based on pass/fail - until the batch stops changing. The strategy
leaving the fewest vulnerabilities wins.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}
