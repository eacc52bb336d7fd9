package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scanbay/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set llm.api_key and serp.api_key before starting the daemon.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, redacted(cfg))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Data dir:        %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "Log dir:         %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Files dir:       %s\n", cfg.Paths.FilesDir)
			fmt.Fprintf(out, "API bind:        %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "Public base URL: %s\n", cfg.Paths.PublicBaseURL)
			fmt.Fprintf(out, "Workers:         %d (max %d attempts, queue depth %d)\n",
				cfg.Workers.Count, cfg.Workers.MaxAttempts, cfg.Workers.QueueDepth)
			fmt.Fprintf(out, "Model:           %s\n", cfg.LLM.Model)
			fmt.Fprintf(out, "LLM key set:     %s\n", yesNo(strings.TrimSpace(cfg.LLM.APIKey) != ""))
			fmt.Fprintf(out, "Serp key set:    %s\n", yesNo(strings.TrimSpace(cfg.Serp.APIKey) != ""))
			fmt.Fprintf(out, "Marketplace:     %s\n", yesNo(cfg.Marketplace.Enabled))
			fmt.Fprintf(out, "Tool iterations: %d\n", cfg.Enrichment.MaxToolIterations)
			fmt.Fprintf(out, "Max barcodes:    %d\n", cfg.Enrichment.MaxBarcodes)
			return nil
		},
	}
}

// redacted strips secrets from the config before JSON output.
func redacted(cfg *config.Config) config.Config {
	clone := *cfg
	clone.LLM.APIKey = mask(clone.LLM.APIKey)
	clone.Serp.APIKey = mask(clone.Serp.APIKey)
	clone.Marketplace.APIKey = mask(clone.Marketplace.APIKey)
	clone.Paths.APIToken = mask(clone.Paths.APIToken)
	return clone
}

func mask(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "<redacted>"
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
