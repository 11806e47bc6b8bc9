// Package config provides application configuration management with support
// for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/soledexapp/soledex-server/internal/validation"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Data    DataConfig
	Server  ServerConfig
	Ingest  IngestConfig
	Budgets BudgetsConfig
	Dedup   DedupConfig
	Quality QualityConfig
	Storage StorageConfig
	Sources SourcesConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `json:"environment" validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `json:"log_level" validate:"required,oneof=debug info warn error"`
}

// DataConfig holds local data storage configuration. The catalog store and
// the search index live under BasePath.
type DataConfig struct {
	BasePath string `json:"data_path" validate:"required"`
}

// StorePath returns the badger database directory.
func (d DataConfig) StorePath() string {
	return filepath.Join(d.BasePath, "catalog")
}

// SearchPath returns the search index directory.
func (d DataConfig) SearchPath() string {
	return filepath.Join(d.BasePath, "search")
}

// ServerConfig holds the read API server configuration.
type ServerConfig struct {
	Port         string        `json:"port" validate:"required"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// IngestConfig holds collection run tunables.
type IngestConfig struct {
	// QueryFile points at the worklist file, one "source<TAB>query" or
	// "source query" line each.
	QueryFile      string        `json:"query_file"`
	Workers        int           `json:"workers" validate:"gte=1,lte=64"`
	MaxAttempts    int           `json:"max_attempts" validate:"gte=1,lte=10"`
	RetryBaseDelay time.Duration `json:"retry_base_delay"`
	Deadline       time.Duration `json:"deadline"`
	ItemsPerQuery  int           `json:"items_per_query" validate:"gte=1,lte=50"`
	ImagesPerItem  int           `json:"images_per_item" validate:"gte=1,lte=20"`
	TargetItems    int64         `json:"target_items" validate:"gte=0"`
	TargetImages   int64         `json:"target_images" validate:"gte=0"`
}

// SourceBudget bounds one source for a run. MaxRequests zero means
// unlimited; MinInterval zero means no pacing.
type SourceBudget struct {
	MaxRequests int           `json:"max_requests" validate:"gte=0"`
	MinInterval time.Duration `json:"min_interval"`
}

// BudgetsConfig holds the per-source request budgets.
type BudgetsConfig struct {
	StockAPI    SourceBudget
	Market      SourceBudget
	ImageSearch SourceBudget
}

// DedupConfig holds content dedup tunables.
type DedupConfig struct {
	// Threshold is the maximum Hamming distance still considered a
	// duplicate, applied to every perceptual variant.
	Threshold int `json:"dedup_threshold" validate:"gte=0,lte=64"`
	// WindowSize is the cross-item recency window. Zero disables it.
	WindowSize int `json:"dedup_window" validate:"gte=0"`
}

// QualityConfig holds quality gate tunables. Zero disables a check.
type QualityConfig struct {
	MinBytes     int     `json:"min_bytes" validate:"gte=0"`
	MaxBytes     int     `json:"max_bytes" validate:"gte=0"`
	MinPixels    int     `json:"min_pixels" validate:"gte=0"`
	MinSharpness float64 `json:"min_sharpness" validate:"gte=0"`
	MaxEdgeRatio float64 `json:"max_edge_ratio" validate:"gte=0,lte=1"`
	MinAspect    float64 `json:"min_aspect" validate:"gte=0"`
	MaxAspect    float64 `json:"max_aspect" validate:"gte=0"`
}

// StorageConfig holds archive sink configuration.
type StorageConfig struct {
	// Backend selects the sink: local filesystem, Google Drive, or none.
	Backend          string `json:"storage_backend" validate:"required,oneof=local drive none"`
	LocalPath        string `json:"storage_local_path"`
	DriveCredentials string `json:"drive_credentials"`
	DriveRootID      string `json:"drive_root_id"`
}

// SourcesConfig holds upstream provider endpoints and credentials.
type SourcesConfig struct {
	StockAPIBaseURL    string `json:"stockapi_base_url" validate:"omitempty,url"`
	MarketBaseURL      string `json:"market_base_url" validate:"omitempty,url"`
	ImageSearchBaseURL string `json:"imagesearch_base_url" validate:"omitempty,url"`
	ImageSearchAPIKey  string `json:"imagesearch_api_key"`
}

// flagValues carries raw flag strings into load, so tests can exercise the
// precedence logic without touching the global flag set.
type flagValues struct {
	env            string
	logLevel       string
	dataPath       string
	port           string
	queryFile      string
	workers        string
	deadline       string
	targetItems    string
	targetImages   string
	storageBackend string
	localPath      string
	envFile        string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	fv := flagValues{}
	flag.StringVar(&fv.env, "env", "", "Environment (development, staging, production)")
	flag.StringVar(&fv.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&fv.dataPath, "data-path", "", "Base path for catalog data")
	flag.StringVar(&fv.port, "port", "", "API server port (default: 8080)")
	flag.StringVar(&fv.queryFile, "query-file", "", "Path to the worklist file")
	flag.StringVar(&fv.workers, "workers", "", "Ingestion worker count (default: 4)")
	flag.StringVar(&fv.deadline, "deadline", "", "Wall-clock budget for one run (default: none)")
	flag.StringVar(&fv.targetItems, "target-items", "", "Stop the run after this many new items")
	flag.StringVar(&fv.targetImages, "target-images", "", "Stop the run after this many accepted images")
	flag.StringVar(&fv.storageBackend, "storage", "", "Archive sink: local, drive, or none (default: local)")
	flag.StringVar(&fv.localPath, "storage-path", "", "Directory for the local archive sink")
	flag.StringVar(&fv.envFile, "env-file", ".env", "Path to .env file")
	flag.Parse()

	return load(fv)
}

// load builds the config from flags, the environment, and defaults.
func load(fv flagValues) (*Config, error) {
	if fv.envFile != "" {
		// Silently ignore a missing .env file.
		_ = loadEnvFile(fv.envFile)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(fv.env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: strings.ToLower(getConfigValue(fv.logLevel, "LOG_LEVEL", "info")),
		},
		Data: DataConfig{
			BasePath: getConfigValue(fv.dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port: getConfigValue(fv.port, "SERVER_PORT", "8080"),
		},
		Ingest: IngestConfig{
			QueryFile:     getConfigValue(fv.queryFile, "QUERY_FILE", "queries.txt"),
			Workers:       getIntConfigValue(fv.workers, "INGEST_WORKERS", 4),
			MaxAttempts:   getIntConfigValue("", "INGEST_MAX_ATTEMPTS", 3),
			ItemsPerQuery: getIntConfigValue("", "INGEST_ITEMS_PER_QUERY", 10),
			ImagesPerItem: getIntConfigValue("", "INGEST_IMAGES_PER_ITEM", 4),
			TargetItems:   int64(getIntConfigValue(fv.targetItems, "TARGET_ITEMS", 0)),
			TargetImages:  int64(getIntConfigValue(fv.targetImages, "TARGET_IMAGES", 0)),
		},
		Budgets: BudgetsConfig{
			StockAPI: SourceBudget{
				MaxRequests: getIntConfigValue("", "STOCKAPI_MAX_REQUESTS", 100),
			},
			Market: SourceBudget{
				MaxRequests: getIntConfigValue("", "MARKET_MAX_REQUESTS", 50),
			},
			ImageSearch: SourceBudget{
				MaxRequests: getIntConfigValue("", "IMAGESEARCH_MAX_REQUESTS", 200),
			},
		},
		Dedup: DedupConfig{
			Threshold:  getIntConfigValue("", "DEDUP_THRESHOLD", 5),
			WindowSize: getIntConfigValue("", "DEDUP_WINDOW", 512),
		},
		Quality: QualityConfig{
			MinBytes:     getIntConfigValue("", "QUALITY_MIN_BYTES", 5_000),
			MaxBytes:     getIntConfigValue("", "QUALITY_MAX_BYTES", 15<<20),
			MinPixels:    getIntConfigValue("", "QUALITY_MIN_PIXELS", 50_000),
			MinSharpness: getFloatConfigValue("", "QUALITY_MIN_SHARPNESS", 100),
			MaxEdgeRatio: getFloatConfigValue("", "QUALITY_MAX_EDGE_RATIO", 0.30),
			MinAspect:    getFloatConfigValue("", "QUALITY_MIN_ASPECT", 0.5),
			MaxAspect:    getFloatConfigValue("", "QUALITY_MAX_ASPECT", 3.0),
		},
		Storage: StorageConfig{
			Backend:          getConfigValue(fv.storageBackend, "STORAGE_BACKEND", "local"),
			LocalPath:        getConfigValue(fv.localPath, "STORAGE_LOCAL_PATH", ""),
			DriveCredentials: getConfigValue("", "DRIVE_CREDENTIALS_FILE", ""),
			DriveRootID:      getConfigValue("", "DRIVE_ROOT_ID", ""),
		},
		Sources: SourcesConfig{
			StockAPIBaseURL:    getConfigValue("", "STOCKAPI_BASE_URL", ""),
			MarketBaseURL:      getConfigValue("", "MARKET_BASE_URL", ""),
			ImageSearchBaseURL: getConfigValue("", "IMAGESEARCH_BASE_URL", ""),
			ImageSearchAPIKey:  getConfigValue("", "IMAGESEARCH_API_KEY", ""),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = parseDurationValue("", "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue("", "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue("", "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.Ingest.RetryBaseDelay, err = parseDurationValue("", "INGEST_RETRY_BASE_DELAY", "500ms"); err != nil {
		return nil, err
	}
	if cfg.Ingest.Deadline, err = parseDurationValue(fv.deadline, "INGEST_DEADLINE", "0s"); err != nil {
		return nil, err
	}
	if cfg.Budgets.StockAPI.MinInterval, err = parseDurationValue("", "STOCKAPI_MIN_INTERVAL", "1s"); err != nil {
		return nil, err
	}
	if cfg.Budgets.Market.MinInterval, err = parseDurationValue("", "MARKET_MIN_INTERVAL", "2s"); err != nil {
		return nil, err
	}
	if cfg.Budgets.ImageSearch.MinInterval, err = parseDurationValue("", "IMAGESEARCH_MIN_INTERVAL", "500ms"); err != nil {
		return nil, err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and consistent.
func (c *Config) Validate() error {
	v := validation.New()
	for _, section := range []any{
		c.App, c.Logger, c.Data, c.Server, c.Ingest,
		c.Budgets.StockAPI, c.Budgets.Market, c.Budgets.ImageSearch,
		c.Dedup, c.Quality, c.Storage, c.Sources,
	} {
		if err := v.Validate(section); err != nil {
			return err
		}
	}

	if c.Quality.MaxBytes > 0 && c.Quality.MaxBytes < c.Quality.MinBytes {
		return fmt.Errorf("QUALITY_MAX_BYTES (%d) is below QUALITY_MIN_BYTES (%d)", c.Quality.MaxBytes, c.Quality.MinBytes)
	}
	if c.Quality.MaxAspect > 0 && c.Quality.MaxAspect < c.Quality.MinAspect {
		return fmt.Errorf("QUALITY_MAX_ASPECT (%g) is below QUALITY_MIN_ASPECT (%g)", c.Quality.MaxAspect, c.Quality.MinAspect)
	}
	if c.Storage.Backend == "drive" && c.Storage.DriveCredentials == "" {
		return fmt.Errorf("DRIVE_CREDENTIALS_FILE is required when STORAGE_BACKEND is drive")
	}
	return nil
}

// expandPaths expands ~ and defaults the data-derived paths.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	c.Data.BasePath, err = expandPath(c.Data.BasePath, filepath.Join(homeDir, "Soledex", "data"))
	if err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}

	c.Storage.LocalPath, err = expandPath(c.Storage.LocalPath, filepath.Join(c.Data.BasePath, "archive"))
	if err != nil {
		return fmt.Errorf("invalid storage path: %w", err)
	}

	if c.Ingest.QueryFile != "" {
		c.Ingest.QueryFile, err = expandPath(c.Ingest.QueryFile, "")
		if err != nil {
			return fmt.Errorf("invalid query file path: %w", err)
		}
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// parseDurationValue resolves a duration with the usual precedence.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Real env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
