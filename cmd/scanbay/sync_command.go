package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scanbay/internal/bundle"
	"scanbay/internal/jobs"
	"scanbay/internal/marketplace"
)

func newJobsSyncCommand(ctx *commandContext) *cobra.Command {
	var quantity int

	cmd := &cobra.Command{
		Use:   "sync <job-id>",
		Short: "Push a finished job's products to the marketplace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.getJob(args[0])
			if err != nil {
				return err
			}
			if job.Status != string(jobs.StatusDone) {
				return fmt.Errorf("job %s is %s; only done jobs can be synced", job.ID, job.Status)
			}
			if len(job.Result) == 0 {
				return fmt.Errorf("job %s carries no result bundle", job.ID)
			}
			products, err := bundle.Decode(string(job.Result))
			if err != nil {
				return fmt.Errorf("decode result bundle: %w", err)
			}

			market, err := marketplace.New(cfg.Marketplace, marketplace.NewCache(), marketplace.NewCache())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			type syncOutcome struct {
				SKU   string `json:"sku"`
				Title string `json:"title"`
				Error string `json:"error,omitempty"`
			}
			outcomes := make([]syncOutcome, 0, len(products.Products))
			for i := range products.Products {
				product := &products.Products[i]
				listing := marketplace.ListingFromProduct(product, cfg.Enrichment.DefaultCurrency, quantity)

				// Lookups are best-effort; a listing without resolved ids is
				// still valid.
				if product.Identification.Category != "" {
					if id, err := market.ResolveCategory(cmd.Context(), product.Identification.Category); err == nil {
						listing.CategoryID = id
					}
				}
				if product.Identification.Brand != "" {
					if id, err := market.ResolveManufacturer(cmd.Context(), product.Identification.Brand); err == nil {
						listing.ManufacturerID = id
					}
				}

				outcome := syncOutcome{SKU: listing.SKU, Title: listing.Title}
				if err := market.SyncListing(cmd.Context(), listing); err != nil {
					outcome.Error = err.Error()
				}
				outcomes = append(outcomes, outcome)
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"job": job.ID, "listings": outcomes})
			}
			for _, outcome := range outcomes {
				if outcome.Error != "" {
					fmt.Fprintf(out, "Listing %s (%s) failed: %s\n", outcome.SKU, outcome.Title, outcome.Error)
					continue
				}
				fmt.Fprintf(out, "Listing %s (%s) synced\n", outcome.SKU, outcome.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&quantity, "quantity", 1, "Stock quantity for each synced listing")
	return cmd
}
