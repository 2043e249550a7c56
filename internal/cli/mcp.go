package cli

import (
	"github.com/spf13/cobra"

	"github.com/ldi/focal/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the task lifecycle over MCP on stdio",
	Long: `Expose task operations as MCP tools so an agent can manage focus under
the same rules as the CLI. Runs until stdin closes.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	return mcp.Serve(mcp.NewServer(e.db, e.engine))
}
