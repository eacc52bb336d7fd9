package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateSerp(); err != nil {
		return err
	}
	if err := c.validateMarketplace(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count < 1 {
		return errors.New("workers.count must be at least 1")
	}
	if c.Workers.MaxAttempts < 1 {
		return errors.New("workers.max_attempts must be at least 1")
	}
	if c.Workers.QueueDepth < c.Workers.Count {
		return errors.New("workers.queue_depth must be at least workers.count")
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	if c.Enrichment.MaxToolIterations < 2 {
		return errors.New("enrichment.max_tool_iterations must be at least 2 (one tool round plus finalization)")
	}
	if len(c.Enrichment.DefaultCurrency) != 3 {
		return fmt.Errorf("enrichment.default_currency must be a 3-letter ISO code, got %q", c.Enrichment.DefaultCurrency)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/scanbay/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set SCANBAY_LLM_API_KEY env var or edit %s (create with 'scanbay config init')", defaultPath)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}

func (c *Config) validateSerp() error {
	if c.Serp.APIKey == "" {
		return errors.New("serp.api_key is required. Set SCANBAY_SERP_API_KEY env var or edit the config file")
	}
	if c.Serp.BaseURL == "" {
		return errors.New("serp.base_url must be set")
	}
	return nil
}

func (c *Config) validateMarketplace() error {
	if !c.Marketplace.Enabled {
		return nil
	}
	if c.Marketplace.BaseURL == "" {
		return errors.New("marketplace.base_url must be set when marketplace.enabled is true")
	}
	if c.Marketplace.APIKey == "" {
		return errors.New("marketplace.api_key must be set when marketplace.enabled is true")
	}
	if c.Marketplace.MaxConcurrency < 1 {
		return errors.New("marketplace.max_concurrency must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
