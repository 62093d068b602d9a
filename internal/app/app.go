package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pauljones0/post-heatmap/internal/ai"
	"github.com/pauljones0/post-heatmap/internal/config"
	"github.com/pauljones0/post-heatmap/internal/ingest"
	"github.com/pauljones0/post-heatmap/internal/models"
	"github.com/pauljones0/post-heatmap/internal/notifier"
	"github.com/pauljones0/post-heatmap/internal/processor"
	"github.com/pauljones0/post-heatmap/internal/storage"
)

// App holds the wired pipeline stages shared by the CLI and the server.
type App struct {
	cfg        *config.Config
	fetcher    ingest.Fetcher
	publishers []ingest.Publisher
	store      *storage.Client
	archive    processor.RunArchive
	notifier   processor.RunNotifier
	generator  processor.InsightGenerator
}

// Result is the outcome of a full pipeline run.
type Result struct {
	Ingest    ingest.Report
	Aggregate processor.Report
	Insights  *models.Insights
}

// New builds the optional integrations from cfg. Firestore, Discord and
// Gemini are only created when their settings are present.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		cfg:        cfg,
		publishers: ingest.LoadFeeds(cfg.FeedsConfigPath).Enabled(),
	}
	opts := ingest.OptionsFromConfig(cfg, a.publishers)
	a.fetcher = ingest.NewClient(cfg.RequestTimeout, cfg.FetchRatePerSec, opts.AllowedURLs())

	if cfg.ProjectID != "" {
		store, err := storage.New(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize firestore: %w", err)
		}
		a.store = store
		a.archive = store
	}
	if cfg.DiscordWebhookURL != "" {
		a.notifier = notifier.New(cfg.DiscordWebhookURL)
	}
	if cfg.GeminiAPIKey != "" {
		gen, err := ai.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.generator = gen
	}
	slog.Info("Pipeline configured",
		"publishers", len(a.publishers),
		"archive", a.archive != nil,
		"notifier", a.notifier != nil,
		"insights", a.generator != nil)
	return a, nil
}

func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Ingest fetches every account and publisher feed into the raw file.
func (a *App) Ingest(ctx context.Context) (ingest.Report, error) {
	opts := ingest.OptionsFromConfig(a.cfg, a.publishers)
	return ingest.New(a.fetcher, opts).Run(ctx)
}

// Aggregate bins the raw file into the heatmap outputs.
func (a *App) Aggregate(ctx context.Context) (processor.Report, error) {
	agg, err := processor.New(storage.RawFile{Path: a.cfg.RawFile}, storage.FileWriter{}, a.archive, a.notifier, a.cfg)
	if err != nil {
		return processor.Report{}, err
	}
	return agg.Aggregate(ctx)
}

// Insights summarizes the aggregated posts. It returns nil when no model
// is configured.
func (a *App) Insights(ctx context.Context) (*models.Insights, error) {
	source := storage.RawFile{Path: a.cfg.OutputPath(processor.PostsFile)}
	b, err := processor.NewInsights(source, storage.FileWriter{}, a.generator, a.cfg)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx)
}

// Run executes ingest, aggregate and insights in order. Insights failures
// are logged and do not fail the run. Overlapping runs are not serialized;
// the last atomic write wins.
func (a *App) Run(ctx context.Context) (Result, error) {
	var res Result
	var err error
	if res.Ingest, err = a.Ingest(ctx); err != nil {
		return res, fmt.Errorf("ingest: %w", err)
	}
	if res.Aggregate, err = a.Aggregate(ctx); err != nil {
		return res, fmt.Errorf("aggregate: %w", err)
	}
	if res.Insights, err = a.Insights(ctx); err != nil {
		slog.Warn("Insights generation failed", "error", err)
	}
	return res, nil
}

// NewLogger builds the process logger from the configured level and format.
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
