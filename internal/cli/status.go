package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current focus",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	active, err := e.db.GetActiveTask(cmd.Context())
	if err != nil {
		return err
	}
	deferred, err := e.db.ListDeferredTasks(cmd.Context())
	if err != nil {
		return err
	}

	if active == nil {
		fmt.Println(styleHint.Render("No active task."))
	} else {
		elapsed := time.Since(active.UpdatedAt).Round(time.Second)
		fmt.Printf("%s %s %s\n",
			styleActive.Render("▶"),
			active.Description,
			styleHint.Render(fmt.Sprintf("(active for %s)", elapsed)))
	}

	if len(deferred) > 0 {
		fmt.Printf("%s\n", styleLabel.Render(fmt.Sprintf("%d deferred", len(deferred))))
	}
	return nil
}
