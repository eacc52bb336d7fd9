package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			health, err := client.health()
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, health)
			}

			colorize := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon:     %s\n", paint("running", ansiGreen, colorize))
			fmt.Fprintf(out, "Pending:    %d\n", health.Jobs.Pending)
			fmt.Fprintf(out, "Processing: %d\n", health.Jobs.Processing)
			fmt.Fprintf(out, "Done:       %d\n", health.Jobs.Done)
			failedColor := ansiGreen
			if health.Jobs.Failed > 0 {
				failedColor = ansiRed
			}
			fmt.Fprintf(out, "Failed:     %s\n", paint(fmt.Sprintf("%d", health.Jobs.Failed), failedColor, colorize))
			fmt.Fprintf(out, "Total:      %d\n", health.Jobs.Total)
			return nil
		},
	}
}

func paint(value, color string, colorize bool) string {
	if !colorize {
		return value
	}
	return color + value + ansiReset
}
