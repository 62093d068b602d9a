package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pauljones0/post-heatmap/internal/heatmap"
	"github.com/pauljones0/post-heatmap/internal/validator"
)

// DefaultNitterHosts is the mirror pool tried when NITTER_HOSTS is unset.
var DefaultNitterHosts = []string{
	"https://nitter.net",
	"https://nitter.fdn.fr",
	"https://nitter.privacydev.net",
	"https://nitter.poast.org",
	"https://nitter.lacontrevoie.fr",
	"https://nitter.cz",
	"https://nitter.mint.lgbt",
	"https://ntrqq.onrender.com",
}

type Config struct {
	DataDir         string `validate:"required"`
	RawFile         string `validate:"required"`
	AccountsFile    string
	FeedsConfigPath string

	MaxPerAccount    int           `validate:"gte=1"`
	DaysBack         int           `validate:"gte=1"`
	RequestTimeout   time.Duration `validate:"gt=0"`
	Retries          int           `validate:"gte=0"`
	NitterHosts      []string      `validate:"dive,http_url"`
	ProxyPrefix      string        `validate:"omitempty,http_url"`
	FetchConcurrency int           `validate:"gte=1"`
	FetchRatePerSec  float64       `validate:"gt=0"`

	Zone              string `validate:"required,timezone"`
	StartHour         int    `validate:"gte=0,lte=23"`
	ExcludePermalinks bool

	Port string `validate:"required,numeric"`

	GeminiAPIKey       string
	GeminiModel        string `validate:"required"`
	InsightsSampleSize int    `validate:"gte=1"`

	DiscordWebhookURL string `validate:"omitempty,http_url"`

	ProjectID     string
	MaxStoredRuns int `validate:"gte=1"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	dataDir := getEnv("DATA_DIR", "./data")

	cfg := &Config{
		DataDir:           dataDir,
		RawFile:           getEnv("RAW_FILE", filepath.Join(dataDir, "x_raw.json")),
		AccountsFile:      getEnv("ACCOUNTS_FILE", "accounts_x.txt"),
		FeedsConfigPath:   os.Getenv("FEEDS_CONFIG_PATH"),
		ProxyPrefix:       getEnv("PROXY_PREFIX", "https://r.jina.ai/http://nitter.net"),
		Zone:              getEnv("HEATMAP_ZONE", heatmap.DefaultZone),
		Port:              getEnv("PORT", "8080"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		ProjectID:         os.Getenv("GOOGLE_CLOUD_PROJECT"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}
	if v, ok := os.LookupEnv("PROXY_PREFIX"); ok && strings.TrimSpace(v) == "" {
		cfg.ProxyPrefix = ""
	}

	var err error
	if cfg.MaxPerAccount, err = getEnvInt("MAX_PER_ACCOUNT", 200); err != nil {
		return nil, err
	}
	if cfg.DaysBack, err = getEnvInt("DAYS_BACK", 14); err != nil {
		return nil, err
	}
	timeoutMS, err := getEnvInt("TIMEOUT_MS", 12000)
	if err != nil {
		return nil, err
	}
	cfg.RequestTimeout = time.Duration(timeoutMS) * time.Millisecond
	if cfg.Retries, err = getEnvInt("RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency, err = getEnvInt("FETCH_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.FetchRatePerSec, err = getEnvFloat("FETCH_RATE_PER_SEC", 2); err != nil {
		return nil, err
	}
	if cfg.StartHour, err = getEnvInt("HEATMAP_START_HOUR", heatmap.DefaultStartHour); err != nil {
		return nil, err
	}
	if cfg.InsightsSampleSize, err = getEnvInt("INSIGHTS_SAMPLE_SIZE", 60); err != nil {
		return nil, err
	}
	if cfg.MaxStoredRuns, err = getEnvInt("MAX_STORED_RUNS", 100); err != nil {
		return nil, err
	}
	if cfg.ExcludePermalinks, err = getEnvBool("EXCLUDE_PERMALINKS", false); err != nil {
		return nil, err
	}

	cfg.NitterHosts = DefaultNitterHosts
	if v := strings.TrimSpace(os.Getenv("NITTER_HOSTS")); v != "" {
		cfg.NitterHosts = strings.Fields(v)
	}

	if cfg.DiscordWebhookURL == "" {
		slog.Debug("DISCORD_WEBHOOK_URL not set, run notifications will be skipped")
	}
	if cfg.ProjectID == "" {
		slog.Debug("GOOGLE_CLOUD_PROJECT not set, run archive disabled")
	}

	if err := validator.New().ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// OutputPath joins name onto the data directory.
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.DataDir, name)
}

// SlogLevel maps LogLevel onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return parsed, nil
}
