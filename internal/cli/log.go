package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ldi/focal/internal/lifecycle"
	"github.com/ldi/focal/pkg/models"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log [task-id]",
	Short: "Show the audit trail",
	Long:  `Print recorded transitions, newest last. With a task ID, only that task's history.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 0, "show only the newest N events")
}

func runLog(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	var events []*models.TaskEvent
	if len(args) == 1 {
		events, err = e.db.ListEvents(cmd.Context(), args[0])
	} else if logLimit > 0 {
		events, err = e.db.ListRecentEvents(cmd.Context(), logLimit)
	} else {
		events, err = e.db.ListEvents(cmd.Context(), "")
	}
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println(styleHint.Render("No history."))
		return nil
	}

	descs := make(map[string]string)
	tasks, err := e.db.ListTasks(cmd.Context(), nil)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		descs[t.ID] = t.Description
	}

	for _, ev := range events {
		label := descs[ev.TaskID]
		if label == "" {
			label = ev.TaskID
		}
		line := fmt.Sprintf("%s  %-9s  %s",
			styleHint.Render(ev.Timestamp.Local().Format("2006-01-02 15:04:05")),
			ev.EventType, label)
		if meta, err := lifecycle.DecodeMeta(ev); err == nil && meta.Reason != "" {
			line += styleHint.Render(" (" + meta.Reason + ")")
		}
		fmt.Println(line)
	}
	return nil
}
