package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pauljones0/post-heatmap/internal/config"
	"github.com/pauljones0/post-heatmap/internal/heatmap"
	"github.com/pauljones0/post-heatmap/internal/models"
	"github.com/pauljones0/post-heatmap/internal/normalize"
	"github.com/pauljones0/post-heatmap/internal/storage"
)

// Output file names, relative to the data directory.
const (
	PostsFile             = "x_posts.json"
	FrontendPostsFile     = "posts.json"
	LinksHeatmapFile      = "x_heatmap_links.json"
	EngagementHeatmapFile = "x_heatmap_engagement.json"
	SummaryFile           = "x_summary.json"
	InsightsFile          = "insights.json"
)

const (
	topSlotCount    = 5
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

type Processor interface {
	Aggregate(ctx context.Context) (Report, error)
}

// Report describes one aggregation run.
type Report struct {
	Processed int
	Included  int
	Skipped   int
	Rejected  int
	Summary   models.Summary
	TopSlots  []models.HeatCell
}

type Aggregator struct {
	source     RawSource
	writer     OutputWriter
	archive    RunArchive
	notifier   RunNotifier
	classifier *heatmap.Classifier
	normalizer *normalize.Normalizer
	config     *config.Config
	now        func() time.Time
}

// New wires an Aggregator. archive and notifier may be nil.
func New(source RawSource, writer OutputWriter, archive RunArchive, n RunNotifier, cfg *config.Config) (*Aggregator, error) {
	cls, err := heatmap.NewClassifier(cfg.Zone)
	if err != nil {
		return nil, err
	}
	if err := heatmap.ValidateStartHour(cfg.StartHour); err != nil {
		return nil, err
	}
	return &Aggregator{
		source:     source,
		writer:     writer,
		archive:    archive,
		notifier:   n,
		classifier: cls,
		normalizer: normalize.New(normalize.Options{ExcludePermalinks: cfg.ExcludePermalinks}),
		config:     cfg,
		now:        time.Now,
	}, nil
}

// Aggregate reads the raw file, bins every post with a valid timestamp and
// writes the posts, both heatmaps and the summary. Archiving and
// notification run afterwards and never fail the run.
func (a *Aggregator) Aggregate(ctx context.Context) (Report, error) {
	items, err := a.source.ReadRaw()
	if err != nil {
		if !errors.Is(err, storage.ErrMalformedInput) {
			return Report{}, fmt.Errorf("failed to read raw input: %w", err)
		}
		slog.Warn("Raw input is not a JSON array, treating as empty", "error", err)
		items = []any{}
	}

	b, err := binPosts(items, a.normalizer, a.classifier, a.config.StartHour)
	if err != nil {
		return Report{}, err
	}
	res, included := b.result, b.included
	links := heatmap.Flatten(&res.Links, res.StartHour)
	engagement := heatmap.Flatten(&res.Engagement, res.StartHour)

	summary := models.Summary{
		GeneratedAt: a.now().UTC(),
		Timezone:    res.Zone,
		StartHour:   res.StartHour,
		Totals:      res.Totals,
	}

	artifacts := []storage.Artifact{
		{Path: a.config.OutputPath(PostsFile), Data: included},
		{Path: a.config.OutputPath(FrontendPostsFile), Data: included},
		{Path: a.config.OutputPath(LinksHeatmapFile), Data: links},
		{Path: a.config.OutputPath(EngagementHeatmapFile), Data: engagement},
		{Path: a.config.OutputPath(SummaryFile), Data: summary},
	}
	if err := a.writer.WriteAll(artifacts); err != nil {
		return Report{}, fmt.Errorf("failed to write outputs: %w", err)
	}

	report := Report{
		Processed: len(items),
		Included:  len(included),
		Skipped:   b.skipped,
		Rejected:  b.rejected,
		Summary:   summary,
		TopSlots:  heatmap.TopCells(engagement, topSlotCount),
	}
	slog.Info("Aggregation complete",
		"processed", report.Processed,
		"included", report.Included,
		"skipped", report.Skipped,
		"linkPosts", summary.Totals.LinkPosts,
		"engagementSum", summary.Totals.EngagementSum,
	)

	a.publish(ctx, report)
	return report, nil
}

// publish archives and announces the run. Failures are logged only.
func (a *Aggregator) publish(ctx context.Context, report Report) {
	run := models.RunRecord{
		ID:          runID(report.Summary.GeneratedAt),
		GeneratedAt: report.Summary.GeneratedAt,
		Summary:     report.Summary,
		Processed:   report.Processed,
		Skipped:     report.Skipped,
		TopSlots:    report.TopSlots,
	}

	if a.archive != nil {
		if err := a.archive.SaveRun(ctx, run); err != nil {
			if errors.Is(err, storage.ErrRunExists) {
				slog.Info("Run already archived", "id", run.ID)
			} else {
				slog.Warn("Failed to archive run", "id", run.ID, "error", err)
			}
		} else if err := a.archive.TrimOldRuns(ctx, a.config.MaxStoredRuns); err != nil {
			slog.Warn("Failed to trim old runs", "error", err)
		}
	}

	if a.notifier != nil {
		if err := a.notifier.SendRunSummary(ctx, run); err != nil {
			slog.Warn("Failed to send run summary", "error", err)
		}
	}
}

type binned struct {
	included []models.Post
	result   heatmap.Result
	skipped  int
	rejected int
}

// binPosts normalizes raw items and folds them into the grids in one pass.
// Included posts come back newest first with canonical UTC timestamps.
func binPosts(items []any, n *normalize.Normalizer, cls *heatmap.Classifier, startHour int) (binned, error) {
	posts, rejected := n.NormalizeAll(items)
	if len(rejected) > 0 {
		slog.Warn("Skipped raw entries that are not objects", "count", len(rejected))
	}

	acc, err := heatmap.NewAccumulator(cls, startHour)
	if err != nil {
		return binned{}, err
	}

	out := binned{
		included: make([]models.Post, 0, len(posts)),
		rejected: len(rejected),
	}
	for _, p := range posts {
		slot, err := acc.Add(p)
		if err != nil {
			if errors.Is(err, heatmap.ErrInvalidTimestamp) {
				out.skipped++
				slog.Debug("Skipping post with invalid timestamp", "id", p.ID, "timestamp", p.Timestamp)
				continue
			}
			return binned{}, err
		}
		p.PublishedAt = slot.Instant.UTC()
		p.Timestamp = p.PublishedAt.Format(timestampLayout)
		out.included = append(out.included, withSlices(p))
	}
	sortNewestFirst(out.included)

	if out.result, err = acc.Result(); err != nil {
		return binned{}, err
	}
	return out, nil
}

// runID is stable for a given generation time so a retried archive write
// collides instead of duplicating.
func runID(t time.Time) string {
	return t.UTC().Format("20060102T150405.000Z")
}

// sortNewestFirst orders by instant descending, then ID.
func sortNewestFirst(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].PublishedAt.Equal(posts[j].PublishedAt) {
			return posts[i].PublishedAt.After(posts[j].PublishedAt)
		}
		return posts[i].ID < posts[j].ID
	})
}

// withSlices replaces nil link slices so they encode as [] rather than null.
func withSlices(p models.Post) models.Post {
	if p.LinkURLs == nil {
		p.LinkURLs = []string{}
	}
	if p.LinkDomains == nil {
		p.LinkDomains = []string{}
	}
	return p
}
