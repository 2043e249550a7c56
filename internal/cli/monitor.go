package cli

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/ldi/focal/internal/bridge"
	"github.com/ldi/focal/internal/monitor"
	"github.com/ldi/focal/internal/paths"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard of the current focus",
	Long: `Run a full-screen view of the active task, the deferral queue, and
recent history. It refreshes when other focal processes commit changes,
with periodic polling as the fallback.`,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	var watcher bridge.Watcher = bridge.NewPollWatcher()
	if runtimeDir, err := paths.RuntimeDir(); err == nil {
		fw, err := bridge.NewFileWatcher(runtimeDir)
		if err != nil {
			return err
		}
		watcher = fw
	} else {
		log.Printf("runtime directory unavailable, polling only: %v", err)
	}
	defer watcher.Close()

	poll := time.Duration(e.cfg.PollIntervalSeconds) * time.Second
	return monitor.Run(cmd.Context(), e.db, watcher, poll, e.cfg.EventHistory)
}
