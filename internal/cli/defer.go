package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	deferUntil  string
	deferReason string
)

var deferCmd = &cobra.Command{
	Use:   "defer [task-id]",
	Short: "Park the active task for later",
	Long: `Defer the active task. Deferring frees the focus slot; resume the task
later with 'focal resume'. --until accepts a duration ("2h", "30m"), a
date ("2026-09-01"), or an RFC 3339 timestamp.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDefer,
}

func init() {
	deferCmd.Flags().StringVarP(&deferUntil, "until", "u", "", "when to revisit the task")
	deferCmd.Flags().StringVarP(&deferReason, "reason", "r", "", "why the task is parked")
}

func runDefer(cmd *cobra.Command, args []string) error {
	var until *time.Time
	if deferUntil != "" {
		parsed, err := parseUntil(deferUntil, time.Now())
		if err != nil {
			return err
		}
		until = &parsed
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	taskID := ""
	if len(args) == 1 {
		taskID = args[0]
	}

	task, err := e.engine.Defer(cmd.Context(), taskID, until, deferReason)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("%s %s", styleWarning.Render("⏸"), task.Description)
	if task.DeferredUntil != nil {
		msg += styleHint.Render(fmt.Sprintf(" (until %s)", task.DeferredUntil.Local().Format("Jan 2 15:04")))
	}
	fmt.Println(msg)
	return nil
}
