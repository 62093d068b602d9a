package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pauljones0/post-heatmap/internal/util"
)

var statusIDRegex = regexp.MustCompile(`status/(\d+)`)

// nitterURL builds the RSS URL for handle on a mirror or proxy prefix.
func nitterURL(prefix, handle string) string {
	return strings.TrimRight(prefix, "/") + "/" + handle + "/rss"
}

// fetchAccount downloads the RSS for one handle. Mirrors are tried in
// shuffled order with backoff between failures, then the proxy.
func (in *Ingester) fetchAccount(ctx context.Context, handle string) ([]byte, error) {
	hosts := append([]string(nil), in.opts.NitterHosts...)
	in.opts.Shuffle(hosts)

	attempts := min(in.opts.Retries, len(hosts))

	var body []byte
	var lastErr error
	if attempts > 0 {
		lastErr = util.RetryWithPolicy(ctx, attempts-1, in.opts.Backoff, func(attempt int) error {
			u := nitterURL(hosts[attempt], handle)
			b, err := in.fetcher.Fetch(ctx, u)
			if err != nil {
				slog.Debug("Nitter mirror failed", "handle", handle, "url", u, "attempt", attempt+1, "error", err)
				return err
			}
			body = b
			return nil
		})
		if lastErr == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if in.opts.ProxyPrefix == "" {
		if lastErr == nil {
			lastErr = fmt.Errorf("no mirrors configured")
		}
		return nil, lastErr
	}

	b, err := in.fetcher.Fetch(ctx, nitterURL(in.opts.ProxyPrefix, handle))
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	slog.Debug("Fetched via proxy", "handle", handle)
	return b, nil
}

// accountRecords turns one account's feed into records: items without a date
// are dropped, then the window and per-account cap apply in feed order.
func (in *Ingester) accountRecords(handle string, body []byte) ([]Record, error) {
	items, err := parseFeed(body)
	if err != nil {
		return nil, err
	}
	cutoff := in.cutoff()

	var out []Record
	for _, it := range items {
		if len(out) >= in.opts.MaxPerAccount {
			break
		}
		if it.Published.IsZero() || it.Published.Before(cutoff) {
			continue
		}
		content := it.Title
		if content == "" {
			content = it.Text
		}
		out = append(out, Record{
			ID:        accountItemID(handle, it),
			Date:      formatISO(it.Published),
			User:      handle,
			URL:       it.Link,
			Content:   content,
			published: it.Published,
		})
	}
	return out, nil
}

func accountItemID(handle string, it feedItem) string {
	if m := statusIDRegex.FindStringSubmatch(it.Link); m != nil {
		return m[1]
	}
	return handle + "-" + formatISO(it.Published)
}
