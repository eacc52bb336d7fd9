package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	LogDir        string `toml:"log_dir"`
	FilesDir      string `toml:"files_dir"`
	APIBind       string `toml:"api_bind"`
	APIToken      string `toml:"api_token"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Workers contains configuration for the job dispatcher.
type Workers struct {
	// Count is the fixed number of concurrent workers.
	Count int `toml:"count"`
	// MaxAttempts is the per-job attempt ceiling before terminal failure.
	MaxAttempts int `toml:"max_attempts"`
	// QueueDepth bounds the enqueue channel.
	QueueDepth int `toml:"queue_depth"`
}

// Enrichment contains ceilings and thresholds for the identification run.
type Enrichment struct {
	MaxToolIterations  int    `toml:"max_tool_iterations"`
	MaxBarcodes        int    `toml:"max_barcodes"`
	MaxPayloadBytes    int64  `toml:"max_payload_bytes"`
	MinImagesPerItem   int    `toml:"min_images_per_item"`
	MinFeaturesPerItem int    `toml:"min_features_per_item"`
	MinImageEdge       int    `toml:"min_image_edge"`
	VerifyImageURLs    bool   `toml:"verify_image_urls"`
	DefaultCurrency    string `toml:"default_currency"`
	DefaultLocale      string `toml:"default_locale"`
}

// LLM contains connection settings for the generative model API.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Serp contains connection settings for the search-aggregation API.
type Serp struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ResultCount    int    `toml:"result_count"`
	Locale         string `toml:"locale"`
	Country        string `toml:"country"`
	MaxConcurrency int    `toml:"max_concurrency"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Marketplace contains settings for the quota-limited marketplace sync API.
type Marketplace struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	MaxConcurrency int    `toml:"max_concurrency"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scanbay.
//
// Configuration sections by subsystem:
//   - Paths: directories, hosted-file storage, and API bind address
//   - Workers: dispatcher concurrency and retry ceiling
//   - Enrichment: iteration/barcode/payload ceilings and backfill thresholds
//   - LLM: generative model connection settings
//   - Serp: search-aggregation connection settings
//   - Marketplace: inventory sync client settings
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Workers     Workers     `toml:"workers"`
	Enrichment  Enrichment  `toml:"enrichment"`
	LLM         LLM         `toml:"llm"`
	Serp        Serp        `toml:"serp"`
	Marketplace Marketplace `toml:"marketplace"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scanbay/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scanbay.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.FilesDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
