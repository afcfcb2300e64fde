package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) migrateCommand() *cobra.Command {
	var (
		to       string
		rollback bool
		status   bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Long: `Apply pending schema migrations to the configured database.

Use --to to stop at a given migration ID, --rollback to undo the most
recent migration, or --status to list what has been applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rollback && to != "" {
				return fmt.Errorf("--rollback and --to cannot be combined")
			}

			store, closeFn, err := a.openStorage()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case status:
			case rollback:
				if err := store.RollbackLast(ctx); err != nil {
					return fmt.Errorf("rolling back: %w", err)
				}
				a.logger.Info("rolled back last migration")
			case to != "":
				if err := store.MigrateTo(ctx, to); err != nil {
					return fmt.Errorf("migrating to %s: %w", to, err)
				}
				a.logger.Info("migrated", "to", to)
			default:
				if err := store.Migrate(ctx); err != nil {
					return fmt.Errorf("migrating: %w", err)
				}
				a.logger.Info("migrations applied")
			}

			applied, err := store.AppliedMigrations(ctx)
			if err != nil {
				return err
			}
			for _, id := range applied {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Migrate up to and including this migration ID")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Undo the most recently applied migration")
	cmd.Flags().BoolVar(&status, "status", false, "Only list applied migrations")
	return cmd
}
