package ingest

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pauljones0/post-heatmap/internal/heatmap"
)

// isoLayout matches JavaScript's Date.toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

type feedItem struct {
	GUID      string
	Title     string
	Link      string
	Text      string
	Section   string
	Published time.Time
}

// parseFeed decodes RSS, Atom or JSON Feed. Proxies sometimes prepend a
// plain-text preamble, so anything before the first XML tag is dropped.
func parseFeed(body []byte) ([]feedItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(trimToFeed(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]feedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		it := feedItem{
			GUID:  strings.TrimSpace(entry.GUID),
			Title: htmlToText(entry.Title),
			Link:  strings.TrimSpace(entry.Link),
			Text:  htmlToText(pickDescription(entry)),
		}
		it.Published = itemTime(entry)
		if len(entry.Categories) > 0 {
			it.Section = strings.TrimSpace(entry.Categories[0])
		}
		items = append(items, it)
	}
	return items, nil
}

// itemTime prefers our own parse of the raw date, which resolves zone
// abbreviations without consulting the host zone, over gofeed's.
func itemTime(entry *gofeed.Item) time.Time {
	for _, candidate := range []struct {
		raw    string
		parsed *time.Time
	}{
		{entry.Published, entry.PublishedParsed},
		{entry.Updated, entry.UpdatedParsed},
	} {
		if t, err := heatmap.ParseTimestamp(candidate.raw); err == nil {
			return t.UTC()
		}
		if candidate.parsed != nil {
			return candidate.parsed.UTC()
		}
	}
	return time.Time{}
}

func pickDescription(entry *gofeed.Item) string {
	if entry.Description != "" {
		return entry.Description
	}
	return entry.Content
}

func trimToFeed(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '<' || trimmed[0] == '{') {
		return trimmed
	}
	for _, marker := range [][]byte{[]byte("<?xml"), []byte("<rss"), []byte("<feed"), []byte("<rdf:RDF")} {
		if i := bytes.Index(trimmed, marker); i > 0 {
			return trimmed[i:]
		}
	}
	return trimmed
}

func formatISO(t time.Time) string {
	return t.UTC().Format(isoLayout)
}
