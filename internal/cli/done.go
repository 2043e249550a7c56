package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var doneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Complete the active task",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDone,
}

func runDone(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	taskID := ""
	if len(args) == 1 {
		taskID = args[0]
	}

	task, err := e.engine.Complete(cmd.Context(), taskID)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", styleSuccess.Render("✓"), task.Description)
	return nil
}
