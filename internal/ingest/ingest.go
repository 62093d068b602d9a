// Package ingest collects raw posts from Nitter account feeds and publisher
// RSS feeds into the raw input file consumed by the aggregation run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/post-heatmap/internal/config"
	"github.com/pauljones0/post-heatmap/internal/storage"
	"github.com/pauljones0/post-heatmap/internal/util"
)

// ErrSourceUnavailable marks a source that could not be fetched or parsed.
// Such a source contributes nothing to the run.
var ErrSourceUnavailable = errors.New("source unavailable")

const descriptionLimit = 800

// Record is one entry of the raw file. Account records leave the publisher
// fields empty.
type Record struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	User         string `json:"user"`
	URL          string `json:"url"`
	Content      string `json:"content"`
	LikeCount    int    `json:"likeCount"`
	ReplyCount   int    `json:"replyCount"`
	RetweetCount int    `json:"retweetCount"`
	QuoteCount   int    `json:"quoteCount"`

	PublisherID   string `json:"publisher_id,omitempty"`
	PublisherName string `json:"publisher_name,omitempty"`
	Section       string `json:"section,omitempty"`
	Description   string `json:"description,omitempty"`

	published time.Time
}

type Options struct {
	AccountsFile  string
	OutFile       string
	NitterHosts   []string
	ProxyPrefix   string
	Publishers    []Publisher
	MaxPerAccount int
	DaysBack      int
	Retries       int
	Concurrency   int

	Backoff util.BackoffFunc
	Now     func() time.Time
	Shuffle func([]string)
}

// OptionsFromConfig maps the loaded configuration onto ingestion options.
func OptionsFromConfig(cfg *config.Config, publishers []Publisher) Options {
	return Options{
		AccountsFile:  cfg.AccountsFile,
		OutFile:       cfg.RawFile,
		NitterHosts:   cfg.NitterHosts,
		ProxyPrefix:   cfg.ProxyPrefix,
		Publishers:    publishers,
		MaxPerAccount: cfg.MaxPerAccount,
		DaysBack:      cfg.DaysBack,
		Retries:       cfg.Retries,
		Concurrency:   cfg.FetchConcurrency,
	}
}

// AllowedURLs lists every URL the options may fetch from, for the client allowlist.
func (o Options) AllowedURLs() []string {
	urls := append([]string(nil), o.NitterHosts...)
	if o.ProxyPrefix != "" {
		urls = append(urls, o.ProxyPrefix)
	}
	for _, p := range o.Publishers {
		urls = append(urls, p.URL)
	}
	return urls
}

// Report summarizes one ingestion run.
type Report struct {
	Accounts   int
	Publishers int
	Failed     int
	Records    int
}

type Ingester struct {
	fetcher Fetcher
	opts    Options
}

func New(fetcher Fetcher, opts Options) *Ingester {
	if opts.Backoff == nil {
		opts.Backoff = util.LinearBackoff(2*time.Second, 6*time.Second)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Shuffle == nil {
		opts.Shuffle = func(s []string) {
			rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Ingester{fetcher: fetcher, opts: opts}
}

type source struct {
	name    string
	collect func(ctx context.Context) ([]Record, error)
}

// Run fetches every source and writes the merged records to OutFile. Failed
// sources are logged and skipped. Only a write failure or a cancelled
// context is returned as an error.
func (in *Ingester) Run(ctx context.Context) (Report, error) {
	accounts, err := ReadAccounts(in.opts.AccountsFile)
	if err != nil {
		return Report{}, err
	}

	var sources []source
	for _, handle := range accounts {
		sources = append(sources, source{
			name: "@" + handle,
			collect: func(ctx context.Context) ([]Record, error) {
				body, err := in.fetchAccount(ctx, handle)
				if err != nil {
					return nil, err
				}
				return in.accountRecords(handle, body)
			},
		})
	}
	for _, p := range in.opts.Publishers {
		sources = append(sources, source{
			name: p.ID,
			collect: func(ctx context.Context) ([]Record, error) {
				return in.collectPublisher(ctx, p)
			},
		})
	}

	report := Report{Accounts: len(accounts), Publishers: len(in.opts.Publishers)}
	if len(sources) == 0 {
		slog.Info("No accounts or feeds configured, writing empty raw file", "path", in.opts.OutFile)
		if err := storage.WriteJSON(in.opts.OutFile, []Record{}); err != nil {
			return report, err
		}
		return report, nil
	}

	results := make([][]Record, len(sources))
	failed := make([]bool, len(sources))
	var g errgroup.Group
	g.SetLimit(in.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			recs, err := src.collect(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				err = fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, src.name, err)
				slog.Warn("Source failed", "source", src.name, "error", err)
				failed[i] = true
				return nil
			}
			slog.Info("Fetched source", "source", src.name, "items", len(recs))
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	var all []Record
	for i, recs := range results {
		if failed[i] {
			report.Failed++
			continue
		}
		all = append(all, recs...)
	}

	merged := mergeRecords(all)
	report.Records = len(merged)
	if err := storage.WriteJSON(in.opts.OutFile, merged); err != nil {
		return report, err
	}
	slog.Info("Wrote raw records", "path", in.opts.OutFile, "count", len(merged), "failedSources", report.Failed)
	return report, nil
}

func (in *Ingester) collectPublisher(ctx context.Context, p Publisher) ([]Record, error) {
	body, err := in.fetcher.Fetch(ctx, p.URL)
	if err != nil {
		return nil, err
	}
	items, err := parseFeed(body)
	if err != nil {
		return nil, err
	}
	cutoff := in.cutoff()

	out := make([]Record, 0, len(items))
	for _, it := range items {
		if it.Published.IsZero() || it.Published.Before(cutoff) {
			continue
		}
		id := it.GUID
		if id == "" {
			id = it.Link
		}
		if id == "" {
			id = p.ID + "-" + formatISO(it.Published)
		}
		out = append(out, Record{
			ID:            id,
			Date:          formatISO(it.Published),
			User:          p.ID,
			URL:           it.Link,
			Content:       it.Title,
			PublisherID:   p.ID,
			PublisherName: p.Name,
			Section:       it.Section,
			Description:   truncateRunes(it.Text, descriptionLimit),
			published:     it.Published,
		})
	}
	return out, nil
}

func (in *Ingester) cutoff() time.Time {
	return in.opts.Now().Add(-time.Duration(in.opts.DaysBack) * 24 * time.Hour)
}

// mergeRecords de-duplicates by ID (later records win) and sorts newest
// first, breaking ties by ID so output is stable.
func mergeRecords(all []Record) []Record {
	byID := make(map[string]int, len(all))
	merged := make([]Record, 0, len(all))
	for _, r := range all {
		if i, ok := byID[r.ID]; ok {
			merged[i] = r
			continue
		}
		byID[r.ID] = len(merged)
		merged = append(merged, r)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].published.Equal(merged[j].published) {
			return merged[i].published.After(merged[j].published)
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
