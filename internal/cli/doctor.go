package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ldi/focal/internal/db"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check database integrity",
	Long: `Replay every task's event stream and compare against its stored state.
A clean run exits 0; any disagreement between log and state exits 2.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	mismatches, err := e.engine.Verify(cmd.Context())
	if err != nil {
		return err
	}

	if len(mismatches) == 0 {
		fmt.Println(styleSuccess.Render("✓") + " event log and task states agree")
		return nil
	}

	for _, m := range mismatches {
		fmt.Println(styleError.Render("✗") + " " + m.String())
	}
	return fmt.Errorf("%w: %d task(s) disagree with their event log", db.ErrDataIntegrity, len(mismatches))
}
