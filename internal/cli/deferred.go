package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deferredCmd = &cobra.Command{
	Use:     "deferred",
	Aliases: []string{"parked"},
	Short:   "List deferred tasks",
	Long:    `List deferred tasks, oldest first. The numbers work with 'focal resume'.`,
	RunE:    runDeferred,
}

func runDeferred(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	deferred, err := e.db.ListDeferredTasks(cmd.Context())
	if err != nil {
		return err
	}

	if len(deferred) == 0 {
		fmt.Println(styleHint.Render("Nothing deferred."))
		return nil
	}

	for i, t := range deferred {
		line := fmt.Sprintf("%2d. %s", i+1, t.Description)
		if t.DeferredUntil != nil {
			line += styleHint.Render(fmt.Sprintf(" (until %s)", t.DeferredUntil.Local().Format("Jan 2 15:04")))
		}
		if t.DeferReason != nil {
			line += styleHint.Render(": " + *t.DeferReason)
		}
		fmt.Println(line)
	}
	return nil
}
