package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/post-heatmap/internal/models"
)

const (
	colorEmptyRun = 3092790 // #2F3136
	colorRun      = 3066993 // #2ECC71

	maxRetries       = 3
	defaultRetryWait = time.Second
	maxRetryWait     = 10 * time.Second
)

var dayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type Client struct {
	webhookURL  string
	client      *http.Client
	rateLimiter *rate.Limiter
}

func New(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		// Discord allows 5 webhook requests per 2 seconds.
		rateLimiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 1),
	}
}

// SendRunSummary posts the run's totals and busiest slots to the webhook.
func (c *Client) SendRunSummary(ctx context.Context, run models.RunRecord) error {
	if c.webhookURL == "" {
		return nil
	}
	_, err := c.sendAndGetMessageID(ctx, formatRunToEmbed(run))
	return err
}

// Internal structures
type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      discordEmbedFooter  `json:"footer,omitempty"`
}

type discordMessageResponse struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

func formatRunToEmbed(run models.RunRecord) discordEmbed {
	totals := run.Summary.Totals

	color := colorRun
	if totals.Posts == 0 {
		color = colorEmptyRun
	}

	var isoTimestamp string
	if !run.GeneratedAt.IsZero() {
		isoTimestamp = run.GeneratedAt.UTC().Format(time.RFC3339)
	}

	fields := []discordEmbedField{
		{Name: "Posts", Value: strconv.Itoa(totals.Posts), Inline: true},
		{Name: "Link posts", Value: strconv.Itoa(totals.LinkPosts), Inline: true},
		{Name: "Engagement", Value: strconv.Itoa(totals.EngagementSum), Inline: true},
	}
	if run.Skipped > 0 {
		fields = append(fields, discordEmbedField{Name: "Skipped", Value: strconv.Itoa(run.Skipped), Inline: true})
	}
	if len(run.TopSlots) > 0 {
		lines := make([]string, 0, len(run.TopSlots))
		for _, s := range run.TopSlots {
			lines = append(lines, fmt.Sprintf("%s %02d:00 · %d", dayName(s.DayOfWeek), s.Hour, s.Value))
		}
		fields = append(fields, discordEmbedField{Name: "Top engagement slots", Value: strings.Join(lines, "\n")})
	}

	return discordEmbed{
		Title:       "Posting heatmap updated",
		Description: fmt.Sprintf("Processed %d records.", run.Processed),
		Timestamp:   isoTimestamp,
		Color:       color,
		Fields:      fields,
		Footer:      discordEmbedFooter{Text: fmt.Sprintf("%s · day starts %02d:00", run.Summary.Timezone, run.Summary.StartHour)},
	}
}

func dayName(d int) string {
	if d < 0 || d >= len(dayNames) {
		return "?"
	}
	return dayNames[d]
}

func (c *Client) sendAndGetMessageID(ctx context.Context, embed discordEmbed) (string, error) {
	payload := discordWebhookPayload{Embeds: []discordEmbed{embed}}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	parsedURL, err := url.Parse(c.webhookURL)
	if err != nil {
		return "", err
	}
	q := parsedURL.Query()
	q.Set("wait", "true")
	parsedURL.RawQuery = q.Encode()

	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, parsedURL.String(), bytes.NewReader(payloadBytes))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return "", err
		}
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var msgResponse discordMessageResponse
			if err := json.Unmarshal(bodyBytes, &msgResponse); err != nil {
				return "", err
			}
			return msgResponse.ID, nil
		}

		wait := retryBackoff(resp, attempt)
		if wait == 0 || attempt >= maxRetries {
			return "", fmt.Errorf("discord status: %s, body: %s", resp.Status, string(bodyBytes))
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

// retryBackoff returns how long to wait before retrying resp, or 0 when the
// status is not retryable.
func retryBackoff(resp *http.Response, attempt int) time.Duration {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && secs > 0 {
			return min(time.Duration(secs*float64(time.Second)), maxRetryWait)
		}
		return defaultRetryWait
	case resp.StatusCode >= 500:
		return min(time.Duration(1<<attempt)*250*time.Millisecond, maxRetryWait)
	default:
		return 0
	}
}
