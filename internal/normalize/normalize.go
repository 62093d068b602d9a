// Package normalize maps heterogeneous source records onto models.Post.
//
// Every alias lookup happens here, once, at the ingestion boundary. The
// aggregation code only ever sees canonical field names.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pauljones0/post-heatmap/internal/models"
	"github.com/pauljones0/post-heatmap/internal/util"
)

// Canonical field names.
const (
	FieldID           = "id"
	FieldUsername     = "username"
	FieldContent      = "content"
	FieldURL          = "url"
	FieldTimestamp    = "timestamp"
	FieldLikeCount    = "likeCount"
	FieldReplyCount   = "replyCount"
	FieldRetweetCount = "retweetCount"
	FieldQuoteCount   = "quoteCount"
)

// Alias lists the source keys accepted for one canonical field, in priority order.
type Alias struct {
	Field   string
	Sources []string
}

// Aliases is the mapping table. The first source key holding a non-null
// value wins.
var Aliases = []Alias{
	{FieldID, []string{"id", "guid", "id_str"}},
	{FieldUsername, []string{"username", "user", "author", "handle", "publisher_name"}},
	{FieldContent, []string{"content", "text", "body", "title", "description"}},
	{FieldURL, []string{"url", "link"}},
	{FieldTimestamp, []string{"timestamp", "date", "isoDate", "published", "created_at", "pubDate"}},
	{FieldLikeCount, []string{"likeCount", "likes", "favoriteCount"}},
	{FieldReplyCount, []string{"replyCount", "replies"}},
	{FieldRetweetCount, []string{"retweetCount", "rts", "retweets", "shares"}},
	{FieldQuoteCount, []string{"quoteCount", "quotes"}},
}

const unknownUser = "unknown"

// Options tune link-post detection.
type Options struct {
	// ExcludePermalinks ignores the url field and any content URL that is the
	// post's own permalink when deciding whether a post is a link post.
	ExcludePermalinks bool
}

// Normalizer applies the alias table.
type Normalizer struct {
	opts Options
}

func New(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Normalize converts one raw record. The timestamp is copied verbatim; it is
// validated when the post is classified.
func (n *Normalizer) Normalize(raw models.RawItem) models.Post {
	fields := resolve(raw)

	p := models.Post{
		ID:           asString(fields[FieldID]),
		Username:     username(fields[FieldUsername]),
		Content:      asString(fields[FieldContent]),
		URL:          strings.TrimSpace(asString(fields[FieldURL])),
		Timestamp:    strings.TrimSpace(asString(fields[FieldTimestamp])),
		LikeCount:    Count(fields[FieldLikeCount]),
		ReplyCount:   Count(fields[FieldReplyCount]),
		RetweetCount: Count(fields[FieldRetweetCount]),
		QuoteCount:   Count(fields[FieldQuoteCount]),
	}
	p.Engagement = p.EngagementScore()
	n.detectLinks(&p)
	return p
}

// NormalizeAll converts a batch. Elements that are not JSON objects are
// returned as rejected indexes.
func (n *Normalizer) NormalizeAll(items []any) (posts []models.Post, rejected []int) {
	posts = make([]models.Post, 0, len(items))
	for i, item := range items {
		raw, ok := item.(map[string]any)
		if !ok {
			rejected = append(rejected, i)
			continue
		}
		posts = append(posts, n.Normalize(raw))
	}
	return posts, rejected
}

func (n *Normalizer) detectLinks(p *models.Post) {
	urls := util.ExtractURLs(p.Content)
	if n.opts.ExcludePermalinks && p.URL != "" {
		kept := urls[:0]
		for _, u := range urls {
			if !util.SameURL(u, p.URL) {
				kept = append(kept, u)
			}
		}
		urls = kept
	}
	if len(urls) == 0 {
		urls = nil
	}
	p.LinkURLs = urls

	var domains []string
	seen := make(map[string]bool)
	for _, u := range urls {
		if d := util.GetDomain(u); d != "" && !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	p.LinkDomains = domains

	if n.opts.ExcludePermalinks {
		p.HasLink = len(urls) > 0
		return
	}
	p.HasLink = util.ContainsHTTPURL(p.Content) || util.ContainsHTTPURL(p.URL)
}

func resolve(raw models.RawItem) map[string]any {
	out := make(map[string]any, len(Aliases))
	for _, a := range Aliases {
		for _, key := range a.Sources {
			if v, ok := raw[key]; ok && v != nil {
				out[a.Field] = v
				break
			}
		}
	}
	return out
}

// username accepts a plain string or a nested user object.
func username(v any) string {
	if obj, ok := v.(map[string]any); ok {
		for _, key := range []string{"username", "handle", "screen_name", "name"} {
			if s := strings.TrimSpace(asString(obj[key])); s != "" {
				return s
			}
		}
		return unknownUser
	}
	s := strings.TrimSpace(asString(v))
	if s == "" {
		return unknownUser
	}
	return strings.TrimPrefix(s, "@")
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Count coerces an engagement value to a non-negative integer. Absent,
// negative, fractional-garbage and non-numeric inputs all become 0.
func Count(v any) int {
	switch t := v.(type) {
	case nil, bool:
		return 0
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
			return 0
		}
		if t > math.MaxInt32 {
			return math.MaxInt32
		}
		return int(t)
	case int:
		if t < 0 {
			return 0
		}
		return t
	case int64:
		if t < 0 {
			return 0
		}
		return int(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Count(f)
		}
		return 0
	case string:
		return util.CountFromString(t)
	default:
		return 0
	}
}
