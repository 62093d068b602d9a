package models

import "time"

// HeatCell is one flattened heatmap record. Hour is the real hour of day in
// the reference zone, not the display column.
type HeatCell struct {
	DayOfWeek int `json:"dayOfWeek" firestore:"dayOfWeek"`
	Hour      int `json:"hour" firestore:"hour"`
	Value     int `json:"value" firestore:"value"`
}

// Totals are accumulated in the same pass as the grids.
type Totals struct {
	Posts         int `json:"posts" firestore:"posts"`
	LinkPosts     int `json:"linkPosts" firestore:"linkPosts"`
	EngagementSum int `json:"engagementSum" firestore:"engagementSum"`
}

// Summary is written next to the heatmaps on every run.
type Summary struct {
	GeneratedAt time.Time `json:"generatedAt" firestore:"generatedAt"`
	Timezone    string    `json:"timezone" firestore:"timezone"`
	StartHour   int       `json:"startHour" firestore:"startHour"`
	Totals      Totals    `json:"totals" firestore:"totals"`
}

// RunRecord is the archived history entry for one aggregation run.
// GeneratedAt repeats Summary.GeneratedAt at the top level so runs can be ordered.
type RunRecord struct {
	ID          string     `json:"id" firestore:"-"`
	GeneratedAt time.Time  `json:"generatedAt" firestore:"generatedAt"`
	Summary     Summary    `json:"summary" firestore:"summary"`
	Processed   int        `json:"processed" firestore:"processed"`
	Skipped     int        `json:"skipped" firestore:"skipped"`
	TopSlots    []HeatCell `json:"topSlots" firestore:"topSlots"`
}

// Insights is the LLM-enriched digest consumed by the dashboard.
type Insights struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Metrics     InsightMetrics  `json:"metrics"`
	Summary     string          `json:"summary"`
	Bullets     []string        `json:"bullets"`
	SamplePosts []InsightSample `json:"samplePosts"`
}

// InsightMetrics are the aggregates handed to the model alongside the sample.
type InsightMetrics struct {
	Totals   Totals     `json:"totals"`
	TopSlots []HeatCell `json:"topSlots"`
	Timezone string     `json:"timezone"`
}

// InsightSample is a trimmed post used as model context and shown on the frontend.
type InsightSample struct {
	Publisher  string `json:"publisher"`
	Title      string `json:"title"`
	CreatedAt  string `json:"createdAt"`
	URL        string `json:"url"`
	Likes      int    `json:"likes"`
	Replies    int    `json:"replies"`
	Retweets   int    `json:"retweets"`
	Quotes     int    `json:"quotes"`
	Engagement int    `json:"engagement"`
}
