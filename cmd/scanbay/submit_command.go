package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var barcodes string
	var locale string
	var model string

	cmd := &cobra.Command{
		Use:   "submit [photo...]",
		Short: "Submit photos and/or barcodes for identification",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && barcodes == "" {
				return fmt.Errorf("provide at least one photo path or --barcodes")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.submit(barcodes, locale, model, args)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, job)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %s accepted with %d photo(s)\n", job.ID, len(job.Files))
			fmt.Fprintf(out, "Track it with `scanbay jobs show %s`\n", job.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&barcodes, "barcodes", "b", "", "Barcode digits, separated by space, comma, semicolon, or pipe")
	cmd.Flags().StringVar(&locale, "locale", "", "Locale override for this job (for example de-DE)")
	cmd.Flags().StringVar(&model, "model", "", "Model override for this job")
	return cmd
}
