package models

import "time"

// RawItem is a single record as produced by an ingestion source. Field names
// vary by source; see the normalize package for the accepted aliases.
type RawItem = map[string]any

// Post is the canonical shape every source is normalized into.
type Post struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Content      string `json:"content"`
	URL          string `json:"url"`
	Timestamp    string `json:"timestamp"`
	LikeCount    int    `json:"likeCount"`
	ReplyCount   int    `json:"replyCount"`
	RetweetCount int    `json:"retweetCount"`
	QuoteCount   int    `json:"quoteCount"`

	// Derived at normalization time.
	Engagement  int      `json:"engagement"`
	HasLink     bool     `json:"hasLink"`
	LinkURLs    []string `json:"linkUrls"`
	LinkDomains []string `json:"linkDomains"`

	// PublishedAt is set once the timestamp has been classified.
	PublishedAt time.Time `json:"-"`
}

// EngagementScore is the sum of the four count fields, floored at zero per field.
func (p Post) EngagementScore() int {
	return nonNegative(p.LikeCount) + nonNegative(p.ReplyCount) +
		nonNegative(p.RetweetCount) + nonNegative(p.QuoteCount)
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
