package config

const (
	defaultDataDir           = "~/.local/share/scanbay"
	defaultLogDir            = "~/.local/share/scanbay/logs"
	defaultFilesDir          = "~/.local/share/scanbay/files"
	defaultAPIBind           = "127.0.0.1:7411"
	defaultWorkerCount       = 3
	defaultMaxAttempts       = 3
	defaultQueueDepth        = 64
	defaultMaxToolIterations = 6
	defaultMaxBarcodes       = 10
	defaultMaxPayloadBytes   = 24 << 20
	defaultMinImages         = 3
	defaultMinFeatures       = 3
	defaultMinImageEdge      = 500
	defaultCurrency          = "EUR"
	defaultLocale            = "de-DE"
	defaultLLMBaseURL        = "https://api.openai.com/v1"
	defaultLLMModel          = "gpt-4o"
	defaultLLMTimeoutSecs    = 120
	defaultLLMRetryAttempts  = 4
	defaultSerpBaseURL       = "https://serpapi.com"
	defaultSerpTimeoutSecs   = 20
	defaultSerpResultCount   = 8
	defaultSerpLocale        = "de"
	defaultSerpCountry       = "de"
	defaultSerpConcurrency   = 4
	defaultSerpRetries       = 4
	defaultMarketConcurrency = 2
	defaultMarketRetries     = 5
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			FilesDir: defaultFilesDir,
			APIBind:  defaultAPIBind,
		},
		Workers: Workers{
			Count:       defaultWorkerCount,
			MaxAttempts: defaultMaxAttempts,
			QueueDepth:  defaultQueueDepth,
		},
		Enrichment: Enrichment{
			MaxToolIterations:  defaultMaxToolIterations,
			MaxBarcodes:        defaultMaxBarcodes,
			MaxPayloadBytes:    defaultMaxPayloadBytes,
			MinImagesPerItem:   defaultMinImages,
			MinFeaturesPerItem: defaultMinFeatures,
			MinImageEdge:       defaultMinImageEdge,
			VerifyImageURLs:    true,
			DefaultCurrency:    defaultCurrency,
			DefaultLocale:      defaultLocale,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSecs,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		Serp: Serp{
			BaseURL:        defaultSerpBaseURL,
			TimeoutSeconds: defaultSerpTimeoutSecs,
			ResultCount:    defaultSerpResultCount,
			Locale:         defaultSerpLocale,
			Country:        defaultSerpCountry,
		},
		Marketplace: Marketplace{
			MaxConcurrency: defaultMarketConcurrency,
			RetryAttempts:  defaultMarketRetries,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
