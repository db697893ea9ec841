package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/bruinbrief/app/news"
)

var _ SummaryRepository = (*SummaryStore)(nil)

type SummaryStore struct {
	db *DB
}

func NewSummaryStore(db *DB) *SummaryStore {
	return &SummaryStore{db: db}
}

// UpsertDailySummary stores the summary for its date, replacing any earlier one outright.
func (s *SummaryStore) UpsertDailySummary(ctx context.Context, summary *news.DailySummary) (*news.DailySummary, error) {
	if summary.Date == "" {
		return nil, fmt.Errorf("daily summary date is required")
	}
	if summary.GeneratedAt.IsZero() {
		summary.GeneratedAt = time.Now().UTC()
	}

	ids := summary.ArticleIDs
	if ids == nil {
		ids = []string{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode article ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_summaries (
			date, mood_emoji, mood_title, mood_description, overall_sentiment,
			article_count, total_engagement, article_ids, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			mood_emoji = excluded.mood_emoji,
			mood_title = excluded.mood_title,
			mood_description = excluded.mood_description,
			overall_sentiment = excluded.overall_sentiment,
			article_count = excluded.article_count,
			total_engagement = excluded.total_engagement,
			article_ids = excluded.article_ids,
			generated_at = excluded.generated_at
	`, summary.Date, summary.MoodEmoji, summary.MoodTitle, summary.MoodDescription, summary.OverallSentiment,
		summary.ArticleCount, summary.TotalEngagement, string(idsJSON), toMillis(summary.GeneratedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert daily summary: %w", err)
	}

	return s.GetDailySummary(ctx, summary.Date)
}

// GetDailySummary returns nil, nil when no summary exists for the date
func (s *SummaryStore) GetDailySummary(ctx context.Context, date string) (*news.DailySummary, error) {
	var summary news.DailySummary
	var idsJSON string
	var generatedAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT date, mood_emoji, mood_title, mood_description, overall_sentiment,
		       article_count, total_engagement, article_ids, generated_at
		FROM daily_summaries
		WHERE date = ?
	`, date).Scan(
		&summary.Date, &summary.MoodEmoji, &summary.MoodTitle, &summary.MoodDescription, &summary.OverallSentiment,
		&summary.ArticleCount, &summary.TotalEngagement, &idsJSON, &generatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily summary: %w", err)
	}

	if err := json.Unmarshal([]byte(idsJSON), &summary.ArticleIDs); err != nil {
		return nil, fmt.Errorf("failed to decode article ids: %w", err)
	}
	summary.GeneratedAt = fromMillis(generatedAt)

	return &summary, nil
}
