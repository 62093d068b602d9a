package ingest

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pauljones0/post-heatmap/internal/validator"
)

//go:embed feeds.yaml
var embeddedFeeds []byte

// Publisher is one news feed fetched alongside the X accounts.
type Publisher struct {
	ID       string `yaml:"id" validate:"required"`
	Name     string `yaml:"name" validate:"required"`
	URL      string `yaml:"url" validate:"required,http_url"`
	Disabled bool   `yaml:"disabled"`
}

type FeedConfig struct {
	Publishers []Publisher `yaml:"publishers" validate:"dive"`
}

// Enabled returns the publishers not marked disabled.
func (c FeedConfig) Enabled() []Publisher {
	out := make([]Publisher, 0, len(c.Publishers))
	for _, p := range c.Publishers {
		if !p.Disabled {
			out = append(out, p)
		}
	}
	return out
}

// LoadFeeds tries, in order:
// 1. The file at path, when path is set
// 2. The embedded feeds.yaml
// 3. Hardcoded defaults
func LoadFeeds(path string) FeedConfig {
	if path != "" {
		cfg, err := LoadFeedsFile(path)
		if err == nil {
			slog.Info("Loaded feeds from external file", "path", path, "publishers", len(cfg.Publishers))
			return cfg
		}
		slog.Warn("Failed to load external feeds, falling back to embedded config", "path", path, "error", err)
	}

	cfg, err := ParseFeeds(embeddedFeeds)
	if err == nil {
		slog.Debug("Loaded feeds from embedded config", "publishers", len(cfg.Publishers))
		return cfg
	}
	slog.Warn("Embedded feeds failed to parse, using defaults", "error", err)
	return DefaultFeeds()
}

func LoadFeedsFile(path string) (FeedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FeedConfig{}, fmt.Errorf("failed to read feeds config file: %w", err)
	}
	return ParseFeeds(data)
}

// ParseFeeds decodes and validates a YAML feed list.
func ParseFeeds(data []byte) (FeedConfig, error) {
	var cfg FeedConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FeedConfig{}, fmt.Errorf("failed to parse feeds YAML: %w", err)
	}
	if err := validator.New().ValidateStruct(cfg); err != nil {
		return FeedConfig{}, err
	}
	return cfg, nil
}

// DefaultFeeds is used only when the embedded file is unusable.
func DefaultFeeds() FeedConfig {
	return FeedConfig{Publishers: []Publisher{
		{ID: "nyt", Name: "New York Times", URL: "https://rss.nytimes.com/services/xml/rss/nyt/HomePage.xml"},
		{ID: "nbc", Name: "NBC News", URL: "https://feeds.nbcnews.com/nbcnews/public/news"},
	}}
}
