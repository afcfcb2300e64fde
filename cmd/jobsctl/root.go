package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jdziat/versioned-jobs/internal/config"
	"github.com/jdziat/versioned-jobs/pkg/retry"
	"github.com/jdziat/versioned-jobs/pkg/service"
	"github.com/jdziat/versioned-jobs/pkg/storage"
)

// app carries what every subcommand needs once config has been loaded.
type app struct {
	man    *config.Manager
	cfg    config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "jobsctl",
		Short:        "Manage job records protected by a version guard",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.man.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.Logging.Logger()
			return nil
		},
	}
	a.man = config.NewManager(root)

	root.AddCommand(
		a.migrateCommand(),
		a.serveCommand(),
		a.createCommand(),
		a.getCommand(),
		a.listCommand(),
		a.updateCommand(),
		a.deleteCommand(),
	)
	return root
}

// openStorage connects to the configured database.
func (a *app) openStorage() (*storage.GormStorage, func(), error) {
	db, err := a.cfg.Database.Open()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return storage.NewGormStorage(db), closeFn, nil
}

// openService wraps the configured storage in a Service.
func (a *app) openService() (*service.Service, func(), error) {
	store, closeFn, err := a.openStorage()
	if err != nil {
		return nil, nil, err
	}
	svc := service.New(store,
		service.WithLogger(a.logger),
		service.WithRetryConfig(retry.NewConfig(retry.Attempts(a.cfg.Retry.Attempts))),
	)
	return svc, closeFn, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
