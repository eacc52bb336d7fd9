package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeSerp()
	c.normalizeEnrichment()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.FilesDir, err = expandPath(c.Paths.FilesDir); err != nil {
		return fmt.Errorf("paths.files_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PublicBaseURL) == "" {
		c.Paths.PublicBaseURL = "http://" + c.Paths.APIBind
	}
	c.Paths.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Paths.PublicBaseURL), "/")
	return nil
}

func (c *Config) normalizeLLM() {
	if key := strings.TrimSpace(os.Getenv("SCANBAY_LLM_API_KEY")); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSecs
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
}

func (c *Config) normalizeSerp() {
	if key := strings.TrimSpace(os.Getenv("SCANBAY_SERP_API_KEY")); key != "" && c.Serp.APIKey == "" {
		c.Serp.APIKey = key
	}
	c.Serp.BaseURL = strings.TrimRight(strings.TrimSpace(c.Serp.BaseURL), "/")
	if c.Serp.TimeoutSeconds <= 0 {
		c.Serp.TimeoutSeconds = defaultSerpTimeoutSecs
	}
	if c.Serp.ResultCount <= 0 {
		c.Serp.ResultCount = defaultSerpResultCount
	}
	if c.Serp.MaxConcurrency <= 0 {
		c.Serp.MaxConcurrency = defaultSerpConcurrency
	}
	if c.Serp.RetryAttempts <= 0 {
		c.Serp.RetryAttempts = defaultSerpRetries
	}
}

func (c *Config) normalizeEnrichment() {
	if c.Enrichment.MaxToolIterations <= 0 {
		c.Enrichment.MaxToolIterations = defaultMaxToolIterations
	}
	if c.Enrichment.MaxBarcodes <= 0 {
		c.Enrichment.MaxBarcodes = defaultMaxBarcodes
	}
	if c.Enrichment.MaxPayloadBytes <= 0 {
		c.Enrichment.MaxPayloadBytes = defaultMaxPayloadBytes
	}
	if c.Enrichment.MinImagesPerItem <= 0 {
		c.Enrichment.MinImagesPerItem = defaultMinImages
	}
	if c.Enrichment.MinFeaturesPerItem <= 0 {
		c.Enrichment.MinFeaturesPerItem = defaultMinFeatures
	}
	c.Enrichment.DefaultCurrency = strings.ToUpper(strings.TrimSpace(c.Enrichment.DefaultCurrency))
	if c.Enrichment.DefaultCurrency == "" {
		c.Enrichment.DefaultCurrency = defaultCurrency
	}
	if strings.TrimSpace(c.Enrichment.DefaultLocale) == "" {
		c.Enrichment.DefaultLocale = defaultLocale
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
