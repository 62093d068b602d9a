package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/post-heatmap/internal/models"
)

const runsCollection = "heatmap_runs"

// ErrRunExists is returned by SaveRun when a run with the same ID was already archived.
var ErrRunExists = errors.New("run already exists")

type Client struct {
	client *firestore.Client
}

func New(ctx context.Context, projectID string) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SaveRun archives a run summary. The archive is write-only history.
func (c *Client) SaveRun(ctx context.Context, run models.RunRecord) error {
	docRef := c.client.Collection(runsCollection).Doc(run.ID)
	// Create fails if the document already exists.
	if _, err := docRef.Create(ctx, run); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrRunExists
		}
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// TrimOldRuns deletes the oldest runs (by generatedAt) beyond maxRuns.
func (c *Client) TrimOldRuns(ctx context.Context, maxRuns int) error {
	runs := c.client.Collection(runsCollection)

	snap, err := runs.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to count archived runs: %w", err)
	}
	raw, ok := snap["all"]
	if !ok {
		return errors.New("run count aggregation is missing the 'all' alias")
	}
	current, err := countFromAggregation(raw)
	if err != nil {
		return err
	}

	excess := excessRuns(current, maxRuns)
	if excess == 0 {
		return nil
	}
	slog.Info("Trimming archived runs", "current", current, "max", maxRuns, "deleting", excess)

	iter := runs.OrderBy("generatedAt", firestore.Asc).Limit(excess).Documents(ctx)
	defer iter.Stop()

	bw := c.client.BulkWriter(ctx)
	queued := 0
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to list runs for trimming: %w", err)
		}
		if _, err := bw.Delete(doc.Ref); err != nil {
			slog.Warn("Failed to queue run delete", "id", doc.Ref.ID, "error", err)
			continue
		}
		queued++
	}
	bw.End()
	slog.Debug("Deleted archived runs", "count", queued)
	return nil
}

// excessRuns is how many of current runs exceed maxRuns. A non-positive
// maxRuns never trims.
func excessRuns(current, maxRuns int) int {
	if maxRuns <= 0 || current <= maxRuns {
		return 0
	}
	return current - maxRuns
}

func countFromAggregation(v any) (int, error) {
	switch val := v.(type) {
	case int64:
		return int(val), nil
	case *firestorepb.Value:
		return int(val.GetIntegerValue()), nil
	default:
		return 0, fmt.Errorf("unexpected run count type %T", v)
	}
}
