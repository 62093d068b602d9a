package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/pauljones0/post-heatmap/internal/models"
)

const maxBullets = 5

const systemPrompt = `You are an editorial product analyst.
Given recent posts and simple aggregates, write a concise summary (<=120 words)
and 3-5 bullets with plausible reasons certain posts/time slots performed well.
Reference patterns you actually see (topics, timing, cadence).`

// contentGenerator is the subset of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	models  contentGenerator
	modelID string
	config  *genai.GenerateContentConfig
}

type InsightResult struct {
	Summary string   `json:"summary"`
	Bullets []string `json:"bullets"`
}

func NewClient(ctx context.Context, apiKey, modelID string) (*Client, error) {
	if apiKey == "" {
		return nil, nil // Return nil client if no key provided
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newClient(client.Models, modelID), nil
}

func newClient(models contentGenerator, modelID string) *Client {
	return &Client{
		models:  models,
		modelID: modelID,
		config: &genai.GenerateContentConfig{
			Temperature:       genai.Ptr[float32](0.4),
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			// Define the schema for Structured Outputs
			ResponseSchema: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"summary": {
						Type:        genai.TypeString,
						Description: "A concise summary of what performed well, at most 120 words.",
					},
					"bullets": {
						Type:        genai.TypeArray,
						Items:       &genai.Schema{Type: genai.TypeString},
						Description: "3-5 short reasons tied to topics, timing or cadence seen in the data.",
					},
				},
				Required: []string{"summary", "bullets"},
			},
		},
	}
}

type promptPayload struct {
	Aggregates  models.InsightMetrics  `json:"aggregates"`
	PostsSample []models.InsightSample `json:"posts_sample"`
}

// Summarize asks the model for a summary and bullets. A nil client returns
// empty results without error.
func (c *Client) Summarize(ctx context.Context, metrics models.InsightMetrics, sample []models.InsightSample) (InsightResult, error) {
	if c == nil || c.models == nil {
		return InsightResult{}, nil // Graceful degradation
	}

	payload, err := json.Marshal(promptPayload{Aggregates: metrics, PostsSample: sample})
	if err != nil {
		return InsightResult{}, fmt.Errorf("failed to encode prompt: %w", err)
	}

	resp, err := c.models.GenerateContent(ctx, c.modelID, genai.Text(string(payload)), c.config)
	if err != nil {
		return InsightResult{}, fmt.Errorf("gemini generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return InsightResult{}, fmt.Errorf("no response candidates from gemini")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return InsightResult{}, fmt.Errorf("no text part in response")
	}
	return ParseInsight(text), nil
}

var bulletPrefix = regexp.MustCompile(`^[-•*]\s?`)

// ParseInsight decodes the structured response. When the model ignores the
// schema it falls back to reading plain text: the first non-bullet line is
// the summary, bullet lines are bullets.
func ParseInsight(text string) InsightResult {
	// Clean up potential markdown formatting just in case
	jsonStr := strings.TrimSpace(text)
	jsonStr = strings.TrimPrefix(jsonStr, "```json")
	jsonStr = strings.TrimPrefix(jsonStr, "```")
	jsonStr = strings.TrimSuffix(jsonStr, "```")

	var result InsightResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err == nil && result.Summary != "" {
		result.Summary = strings.TrimSpace(result.Summary)
		result.Bullets = cleanBullets(result.Bullets)
		return result
	}

	result = InsightResult{}
	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if bulletPrefix.MatchString(line) {
			bullets = append(bullets, bulletPrefix.ReplaceAllString(line, ""))
			continue
		}
		if result.Summary == "" {
			result.Summary = strings.TrimSpace(trimSummaryLabel(line))
		}
	}
	if result.Summary == "" {
		result.Summary = truncate(strings.TrimSpace(text), 280)
	}
	result.Bullets = cleanBullets(bullets)
	return result
}

func trimSummaryLabel(line string) string {
	if len(line) >= 8 && strings.EqualFold(line[:8], "summary:") {
		return line[8:]
	}
	return line
}

func cleanBullets(in []string) []string {
	out := make([]string, 0, len(in))
	for _, b := range in {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
		if len(out) == maxBullets {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
