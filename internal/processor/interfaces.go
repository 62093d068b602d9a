package processor

import (
	"context"

	"github.com/pauljones0/post-heatmap/internal/ai"
	"github.com/pauljones0/post-heatmap/internal/models"
	"github.com/pauljones0/post-heatmap/internal/storage"
)

// RawSource supplies the decoded top-level array of the raw input file.
type RawSource interface {
	ReadRaw() ([]any, error)
}

// OutputWriter persists a run's artifacts all-or-nothing.
type OutputWriter interface {
	WriteAll(artifacts []storage.Artifact) error
}

// RunArchive abstracts the run history store.
type RunArchive interface {
	SaveRun(ctx context.Context, run models.RunRecord) error
	TrimOldRuns(ctx context.Context, maxRuns int) error
}

// RunNotifier abstracts the notification layer.
type RunNotifier interface {
	SendRunSummary(ctx context.Context, run models.RunRecord) error
}

// InsightGenerator abstracts the LLM used for insights.
type InsightGenerator interface {
	Summarize(ctx context.Context, metrics models.InsightMetrics, sample []models.InsightSample) (ai.InsightResult, error)
}
