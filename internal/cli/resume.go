package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <number|task-id>",
	Short: "Bring a deferred task back to active",
	Long: `Resume a deferred task by its number in 'focal deferred' or by task ID.
Fails if another task is active; the current focus is never displaced
implicitly.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	taskID := args[0]
	if n, err := strconv.Atoi(args[0]); err == nil {
		deferred, err := e.db.ListDeferredTasks(cmd.Context())
		if err != nil {
			return err
		}
		if n < 1 || n > len(deferred) {
			return fmt.Errorf("no deferred task numbered %d (have %d)", n, len(deferred))
		}
		taskID = deferred[n-1].ID
	}

	task, err := e.engine.Resume(cmd.Context(), taskID)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", styleActive.Render("▶"), task.Description)
	return nil
}
