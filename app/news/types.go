package news

import (
	"fmt"
	"time"
)

// Comment is one top-level reply captured alongside a source post.
type Comment struct {
	Body       string  `json:"body"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
}

// RawPost is a community post as returned by the source fetcher.
type RawPost struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"selftext"`
	Author      string    `json:"author"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	Permalink   string    `json:"permalink"`
	URL         string    `json:"url"`
	CreatedUTC  float64   `json:"created_utc"`
	Flair       string    `json:"flair_text,omitempty"`
	Subreddit   string    `json:"subreddit"`
	UpvoteRatio float64   `json:"upvote_ratio"`
	IsSelf      bool      `json:"is_self"`
	TopComments []Comment `json:"top_comments"`
}

// RankedPost is a RawPost with its derived engagement score. Recomputed every run.
type RankedPost struct {
	RawPost
	EngagementScore int `json:"engagement_score"`
}

// FetchResult is what one fetch against the source returns.
type FetchResult struct {
	Posts     []RawPost
	Count     int
	ScrapedAt float64 // epoch seconds; zero when the fetcher did not report one
}

type OpportunityKind string

const (
	KindSingle OpportunityKind = "single"
	KindTrend  OpportunityKind = "trend"
)

func (k OpportunityKind) Valid() bool {
	return k == KindSingle || k == KindTrend
}

type HumorPotential string

const (
	HumorHigh   HumorPotential = "high"
	HumorMedium HumorPotential = "medium"
	HumorLow    HumorPotential = "low"
)

func (h HumorPotential) Valid() bool {
	return h == HumorHigh || h == HumorMedium || h == HumorLow
}

// Opportunity is a proposed grouping of posts worth an article.
type Opportunity struct {
	Kind           OpportunityKind `json:"type"`
	Theme          string          `json:"theme"`
	PostIDs        []string        `json:"post_ids"`
	Justification  string          `json:"justification"`
	HumorPotential HumorPotential  `json:"humor_potential"`
}

// GeneratedArticle is the model's draft for one opportunity.
type GeneratedArticle struct {
	Headline      string   `json:"headline"`
	Description   string   `json:"description"`
	Content       string   `json:"content"`
	Sentiment     string   `json:"sentiment"`
	Tags          []string `json:"tags"`
	TrendCategory string   `json:"trend_category"`
	ArticleType   string   `json:"article_type,omitempty"`
}

// Validate reports the first missing or out-of-enum field.
func (g GeneratedArticle) Validate(sentiments SentimentSet) error {
	required := []struct {
		name  string
		value string
	}{
		{"headline", g.Headline},
		{"description", g.Description},
		{"content", g.Content},
		{"sentiment", g.Sentiment},
		{"trend_category", g.TrendCategory},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("missing required field: %s", field.name)
		}
	}
	if g.Tags == nil {
		return fmt.Errorf("missing required field: tags")
	}
	if !sentiments.Contains(g.Sentiment) {
		return fmt.Errorf("sentiment %q not in %s set", g.Sentiment, sentiments.Name)
	}
	return nil
}

// DailySummaryPayload is the model's mood summary for a whole batch.
type DailySummaryPayload struct {
	MoodEmoji        string `json:"mood_emoji"`
	MoodTitle        string `json:"mood_title"`
	MoodDescription  string `json:"mood_description"`
	OverallSentiment string `json:"overall_sentiment"`
}

func (d DailySummaryPayload) Validate() error {
	if d.MoodEmoji == "" || d.MoodTitle == "" || d.MoodDescription == "" {
		return fmt.Errorf("daily summary is missing mood fields")
	}
	if !ToneSentiments.Contains(d.OverallSentiment) {
		return fmt.Errorf("overall sentiment %q not in %s set", d.OverallSentiment, ToneSentiments.Name)
	}
	return nil
}

// Generation is the single batched response of the content generator.
type Generation struct {
	Articles     []GeneratedArticle
	DailySummary *DailySummaryPayload
}

// PostSnapshot freezes the referenced post as it looked at generation time.
type PostSnapshot struct {
	PostID     string  `json:"post_id"`
	Title      string  `json:"title"`
	Permalink  string  `json:"permalink"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
}

func SnapshotOf(p RankedPost) PostSnapshot {
	return PostSnapshot{
		PostID:     p.ID,
		Title:      p.Title,
		Permalink:  p.Permalink,
		Score:      p.Score,
		CreatedUTC: p.CreatedUTC,
	}
}

// Article is a persisted generated article.
type Article struct {
	ID              string         `json:"id"`
	Headline        string         `json:"headline"`
	Description     string         `json:"description"`
	Content         string         `json:"content"`
	TrendCategory   string         `json:"trend_category"`
	Sentiment       string         `json:"sentiment"`
	Tags            []string       `json:"tags"`
	ReferencedPosts []PostSnapshot `json:"referenced_posts"`
	PostCount       int            `json:"post_count"`
	GeneratedAt     time.Time      `json:"generated_at"`
	IsPublished     bool           `json:"is_published"`
}

// Validate enforces the snapshot invariant: a persisted article always
// references at least one post and PostCount mirrors the snapshot length.
func (a *Article) Validate() error {
	if a.Headline == "" {
		return fmt.Errorf("article headline is required")
	}
	if len(a.ReferencedPosts) == 0 {
		return ErrNoReferencedPosts
	}
	if a.PostCount != len(a.ReferencedPosts) {
		return fmt.Errorf("post_count %d does not match %d referenced posts", a.PostCount, len(a.ReferencedPosts))
	}
	return nil
}

// TotalScore sums the raw score of every referenced post.
func (a *Article) TotalScore() int {
	total := 0
	for _, p := range a.ReferencedPosts {
		total += p.Score
	}
	return total
}

// DailySummary is the one-per-civic-date mood record.
type DailySummary struct {
	Date             string    `json:"date"`
	MoodEmoji        string    `json:"mood_emoji"`
	MoodTitle        string    `json:"mood_title"`
	MoodDescription  string    `json:"mood_description"`
	OverallSentiment string    `json:"overall_sentiment"`
	ArticleCount     int       `json:"article_count"`
	TotalEngagement  int       `json:"total_engagement"`
	ArticleIDs       []string  `json:"referenced_articles"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Stats are the cumulative pipeline counters kept next to the checkpoint.
type Stats struct {
	TotalPostsProcessed    int        `json:"total_posts_processed"`
	TotalArticlesGenerated int        `json:"total_articles_generated"`
	LastProcessingRun      *time.Time `json:"last_processing_run"`
}
