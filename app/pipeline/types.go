package pipeline

import (
	"context"
	"time"

	"github.com/lysyi3m/bruinbrief/app/news"
)

type Fetcher interface {
	FetchSince(ctx context.Context, checkpoint *float64) (news.FetchResult, error)
}

type Identifier interface {
	Identify(ctx context.Context, ranked []news.RankedPost) ([]news.Opportunity, error)
}

type Generator interface {
	Generate(ctx context.Context, opps []news.Opportunity, ranked []news.RankedPost, civicDate string) (news.Generation, error)
}

type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateFiltering   State = "filtering"
	StateIdentifying State = "identifying"
	StateGenerating  State = "generating"
	StatePersisting  State = "persisting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

type ArticleRef struct {
	ID        string `json:"id"`
	Headline  string `json:"headline"`
	Category  string `json:"category"`
	PostCount int    `json:"post_count"`
}

// Result is the structured outcome of one run. Failures are reported here, never as a Go error.
type Result struct {
	Success           bool               `json:"success"`
	Message           string             `json:"message"`
	State             State              `json:"state"`
	ArticlesGenerated int                `json:"articles_generated"`
	PostsProcessed    int                `json:"posts_processed"`
	Opportunities     int                `json:"opportunities"`
	Skipped           int                `json:"skipped"`
	DurationMs        int64              `json:"duration_ms"`
	Checkpoint        *float64           `json:"checkpoint,omitempty"`
	DailySummary      *news.DailySummary `json:"daily_summary,omitempty"`
	Articles          []ArticleRef       `json:"articles"`
	Error             string             `json:"error,omitempty"`
	ErrorKind         string             `json:"error_kind,omitempty"`
}

// Persisted reports whether the run wrote any content readers can see
func (r Result) Persisted() bool {
	return r.ArticlesGenerated > 0 || len(r.Articles) > 0 || r.DailySummary != nil
}

type Settings struct {
	FetchTimeout   time.Duration
	LLMTimeout     time.Duration
	PersistTimeout time.Duration
	Dedup          bool
}

func DefaultSettings() Settings {
	return Settings{
		FetchTimeout:   2 * time.Minute,
		LLMTimeout:     60 * time.Second,
		PersistTimeout: 30 * time.Second,
		Dedup:          true,
	}
}
