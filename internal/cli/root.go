// Package cli implements the focal command-line interface. Every command is
// a short-lived process: open the database, perform one transition or query,
// print, exit. Exit codes distinguish refused operations (1) from a broken
// environment (2).
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ldi/focal/internal/db"
)

var rootCmd = &cobra.Command{
	Use:   "focal",
	Short: "Single-task focus tracker",
	Long: `Focal tracks exactly one active task at a time. Finish it, cancel it,
or defer it before starting another. Every transition is recorded in an
append-only audit log.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("error: ")+err.Error())
		return exitCode(err)
	}
	return 0
}

// exitCode maps an error to the process exit code: 2 for storage failures
// and integrity violations, 1 for everything else.
func exitCode(err error) int {
	if errors.Is(err, db.ErrStorageUnavailable) || errors.Is(err, db.ErrDataIntegrity) {
		return 2
	}
	return 1
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(deferCmd)
	rootCmd.AddCommand(deferredCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
}
