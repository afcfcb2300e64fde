package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdziat/versioned-jobs/pkg/core"
)

func (a *app) createCommand() *cobra.Command {
	var (
		title    string
		queue    string
		priority int
		args     string
	)

	cmd := &cobra.Command{
		Use:   "create <type>",
		Short: "Create a job at version 0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			job := &core.Job{
				Type:     positional[0],
				Title:    title,
				Queue:    queue,
				Priority: priority,
			}
			if args != "" {
				if !json.Valid([]byte(args)) {
					return errors.New("--args must be valid JSON")
				}
				job.Args = []byte(args)
			}

			svc, closeFn, err := a.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			created, err := svc.Create(cmd.Context(), job)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Human-readable title")
	cmd.Flags().StringVar(&queue, "queue", "", "Queue name (default \"default\")")
	cmd.Flags().IntVar(&priority, "priority", 0, "Priority")
	cmd.Flags().StringVar(&args, "args", "", "Job arguments as JSON")
	return cmd
}

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a job and its current version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := a.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			job, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
}

func (a *app) listCommand() *cobra.Command {
	var filter core.JobFilter
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = core.JobStatus(status)

			svc, closeFn, err := a.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			jobList, err := svc.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), jobList)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&filter.Queue, "queue", "", "Filter by queue")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum jobs to return")
	return cmd
}

func (a *app) updateCommand() *cobra.Command {
	var (
		version   int64
		latest    bool
		title     string
		status    string
		priority  int
		logs      string
		lastError string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a job if it is still at --version",
		Long: `Update a job. The write only succeeds if the job is still at the
version given by --version; otherwise the current record is printed and
the command fails so the change can be reconsidered.

--latest skips the check by reloading and reapplying the change until it
lands. Use it only for changes that are correct against any version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("version") == latest {
				return errors.New("exactly one of --version or --latest is required")
			}

			mutation := func(j *core.Job) error {
				if flags.Changed("title") {
					j.Title = title
				}
				if flags.Changed("status") {
					j.Status = core.JobStatus(status)
				}
				if flags.Changed("priority") {
					j.Priority = priority
				}
				if flags.Changed("logs") {
					j.Logs = logs
				}
				if flags.Changed("last-error") {
					j.LastError = lastError
				}
				return nil
			}

			svc, closeFn, err := a.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			var job *core.Job
			if latest {
				job, err = svc.UpdateLatest(ctx, args[0], mutation)
			} else {
				job, err = svc.Update(ctx, args[0], version, mutation)
			}
			if core.IsConcurrentModification(err) {
				if current, getErr := svc.Get(ctx, args[0]); getErr == nil {
					_ = printJSON(cmd.ErrOrStderr(), current)
				}
				return err
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "Version of the job you last read")
	cmd.Flags().BoolVar(&latest, "latest", false, "Reload and reapply until the update lands")
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&status, "status", "", "New status")
	cmd.Flags().IntVar(&priority, "priority", 0, "New priority")
	cmd.Flags().StringVar(&logs, "logs", "", "Replace the job logs")
	cmd.Flags().StringVar(&lastError, "last-error", "", "Replace the last error")
	return cmd
}

func (a *app) deleteCommand() *cobra.Command {
	var version int64

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a job if it is still at --version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if version < 0 {
				return fmt.Errorf("%w: %d", core.ErrInvalidVersion, version)
			}

			svc, closeFn, err := a.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.Delete(cmd.Context(), args[0], version); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "Version of the job you last read")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}
