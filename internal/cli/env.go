package cli

import (
	"log"

	"github.com/ldi/focal/internal/bridge"
	"github.com/ldi/focal/internal/config"
	"github.com/ldi/focal/internal/db"
	"github.com/ldi/focal/internal/lifecycle"
	"github.com/ldi/focal/internal/paths"
)

// env bundles everything a command needs: config, an open database with the
// bridge notifier attached, and the lifecycle engine on top.
type env struct {
	cfg    *config.Config
	db     *db.DB
	engine *lifecycle.Engine
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	dbPath, err := cfg.ResolveDatabasePath()
	if err != nil {
		return nil, err
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}

	// Monitors learn about commits through the runtime-dir marker. Without
	// a runtime dir the notifier degrades to a no-op and monitors poll.
	var notifier bridge.Notifier = bridge.NopNotifier{}
	if runtimeDir, err := paths.RuntimeDir(); err == nil {
		notifier = bridge.NewFileNotifier(runtimeDir)
	} else {
		log.Printf("runtime directory unavailable, change signals disabled: %v", err)
	}
	database.SetOnChange(notifier.Notify)

	return &env{
		cfg:    cfg,
		db:     database,
		engine: lifecycle.New(database),
	}, nil
}

func (e *env) Close() error {
	return e.db.Close()
}
