package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelReason string

var cancelCmd = &cobra.Command{
	Use:   "cancel [task-id]",
	Short: "Abandon a task",
	Long:  `Cancel the active task, or a deferred task by ID. Cancelled tasks are final.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCancel,
}

func init() {
	cancelCmd.Flags().StringVarP(&cancelReason, "reason", "r", "", "why the task is abandoned")
}

func runCancel(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	taskID := ""
	if len(args) == 1 {
		taskID = args[0]
	}

	task, err := e.engine.Cancel(cmd.Context(), taskID, cancelReason)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", styleWarning.Render("✗"), task.Description)
	return nil
}
