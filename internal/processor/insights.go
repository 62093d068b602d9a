package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pauljones0/post-heatmap/internal/config"
	"github.com/pauljones0/post-heatmap/internal/heatmap"
	"github.com/pauljones0/post-heatmap/internal/models"
	"github.com/pauljones0/post-heatmap/internal/normalize"
	"github.com/pauljones0/post-heatmap/internal/storage"
)

const sampleTitleLimit = 120

// InsightsBuilder turns the aggregated posts into insights.json.
type InsightsBuilder struct {
	source     RawSource
	writer     OutputWriter
	generator  InsightGenerator
	classifier *heatmap.Classifier
	normalizer *normalize.Normalizer
	config     *config.Config
	now        func() time.Time
}

// NewInsights wires a builder. source is normally the x_posts.json written
// by Aggregate. A nil generator makes Build a no-op.
func NewInsights(source RawSource, writer OutputWriter, gen InsightGenerator, cfg *config.Config) (*InsightsBuilder, error) {
	cls, err := heatmap.NewClassifier(cfg.Zone)
	if err != nil {
		return nil, err
	}
	return &InsightsBuilder{
		source:     source,
		writer:     writer,
		generator:  gen,
		classifier: cls,
		normalizer: normalize.New(normalize.Options{ExcludePermalinks: cfg.ExcludePermalinks}),
		config:     cfg,
		now:        time.Now,
	}, nil
}

// Build samples the newest posts, asks the generator for a summary and
// writes insights.json. It returns nil, nil when no generator is configured.
func (b *InsightsBuilder) Build(ctx context.Context) (*models.Insights, error) {
	if b.generator == nil {
		slog.Info("No LLM configured, skipping insights")
		return nil, nil
	}

	items, err := b.source.ReadRaw()
	if err != nil {
		if !errors.Is(err, storage.ErrMalformedInput) {
			return nil, fmt.Errorf("failed to read posts: %w", err)
		}
		slog.Warn("Posts file is not a JSON array, treating as empty", "error", err)
		items = []any{}
	}

	binnedPosts, err := binPosts(items, b.normalizer, b.classifier, b.config.StartHour)
	if err != nil {
		return nil, err
	}
	res := binnedPosts.result
	engagement := heatmap.Flatten(&res.Engagement, res.StartHour)

	metrics := models.InsightMetrics{
		Totals:   res.Totals,
		TopSlots: heatmap.TopCells(engagement, topSlotCount),
		Timezone: res.Zone,
	}
	sample := samplePosts(binnedPosts.included, b.config.InsightsSampleSize)

	result, err := b.generator.Summarize(ctx, metrics, sample)
	if err != nil {
		return nil, fmt.Errorf("failed to generate insights: %w", err)
	}

	insights := &models.Insights{
		GeneratedAt: b.now().UTC(),
		Metrics:     metrics,
		Summary:     result.Summary,
		Bullets:     result.Bullets,
		SamplePosts: sample,
	}
	if insights.Bullets == nil {
		insights.Bullets = []string{}
	}

	path := b.config.OutputPath(InsightsFile)
	if err := b.writer.WriteAll([]storage.Artifact{{Path: path, Data: insights}}); err != nil {
		return nil, fmt.Errorf("failed to write insights: %w", err)
	}
	slog.Info("Wrote insights", "path", path, "samplePosts", len(sample), "bullets", len(insights.Bullets))
	return insights, nil
}

// samplePosts trims the first n posts (already newest first) for the prompt.
func samplePosts(posts []models.Post, n int) []models.InsightSample {
	n = max(0, min(n, len(posts)))
	out := make([]models.InsightSample, 0, n)
	for _, p := range posts[:n] {
		out = append(out, models.InsightSample{
			Publisher:  p.Username,
			Title:      ellipsize(p.Content, sampleTitleLimit),
			CreatedAt:  p.Timestamp,
			URL:        p.URL,
			Likes:      p.LikeCount,
			Replies:    p.ReplyCount,
			Retweets:   p.RetweetCount,
			Quotes:     p.QuoteCount,
			Engagement: p.EngagementScore(),
		})
	}
	return out
}

func ellipsize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
