package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scanbay/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage identification jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsSyncCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobs, err := client.listJobs(statuses)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.ID,
					job.Status,
					fmt.Sprintf("%d", job.Attempts),
					fmt.Sprintf("%d", len(job.Files)),
					truncate(job.Barcodes, 28),
					job.UpdatedAt,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Attempts", "Photos", "Barcodes", "Updated"},
				rows, 2, 3))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (pending, processing, done, failed)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var showTrace bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job including its result bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.getJob(args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.JobResponse{Job: *job})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:      %s\n", job.ID)
			fmt.Fprintf(out, "Status:   %s\n", job.Status)
			fmt.Fprintf(out, "Attempts: %d\n", job.Attempts)
			if job.Barcodes != "" {
				fmt.Fprintf(out, "Barcodes: %s\n", job.Barcodes)
			}
			if job.ModelUsed != "" {
				fmt.Fprintf(out, "Model:    %s\n", job.ModelUsed)
			}
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:    %s\n", job.ErrorMessage)
			}
			for _, file := range job.Files {
				fmt.Fprintf(out, "Photo:    %s (%s)\n", file.Path, file.MimeType)
			}
			if len(job.Result) > 0 {
				fmt.Fprintln(out, "Result:")
				fmt.Fprintln(out, string(job.Result))
			}
			if showTrace && len(job.SerpTrace) > 0 {
				fmt.Fprintln(out, "Search trace:")
				fmt.Fprintln(out, string(job.SerpTrace))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Include the search-tool trace")
	return cmd
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Reset failed jobs back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("provide job ids or --all")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var retried int64
			if all {
				retried, err = client.retryAll()
				if err != nil {
					return err
				}
			} else {
				for _, id := range args {
					count, err := client.retryJob(strings.TrimSpace(id))
					if err != nil {
						return err
					}
					retried += count
				}
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.RetryResponse{Retried: retried})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Retried %d job(s)\n", retried)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Retry every failed job")
	return cmd
}

func truncate(value string, limit int) string {
	if limit <= 1 || len(value) <= limit {
		return value
	}
	return value[:limit-1] + "…"
}
