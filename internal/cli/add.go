package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ldi/focal/internal/lifecycle"
)

var addCmd = &cobra.Command{
	Use:   "add <description>",
	Short: "Start a new task",
	Long: `Create a task and make it the active focus. Fails if another task is
already active; finish, cancel, or defer it first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	task, err := e.engine.Create(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		if errors.Is(err, lifecycle.ErrActiveTaskConflict) {
			fmt.Println(styleHint.Render("Finish it with 'focal done', or park it with 'focal defer'."))
		}
		return err
	}

	fmt.Printf("%s %s\n", styleActive.Render("▶"), task.Description)
	return nil
}
