package database

import (
	"context"
	"time"

	"github.com/lysyi3m/bruinbrief/app/news"
)

type ArticleRepository interface {
	SaveArticle(ctx context.Context, article *news.Article) (string, error)
	GetArticleByID(ctx context.Context, id string) (*news.Article, error)
	GetArticlesSince(ctx context.Context, since time.Time, limit int) ([]news.Article, error)
	GetArticlesBefore(ctx context.Context, before time.Time, limit int) ([]news.Article, error)
	GetRecentArticles(ctx context.Context, limit int) ([]news.Article, error)
	GetArticlesByIDs(ctx context.Context, ids []string) ([]news.Article, error)
	CountArticles(ctx context.Context) (int, error)
	CountArticlesSince(ctx context.Context, since time.Time) (int, error)
	ReferencedPostIDsExist(ctx context.Context, postIDs []string) (map[string]bool, error)
}

type SummaryRepository interface {
	UpsertDailySummary(ctx context.Context, summary *news.DailySummary) (*news.DailySummary, error)
	GetDailySummary(ctx context.Context, date string) (*news.DailySummary, error)
}

type MetadataRepository interface {
	GetCheckpoint(ctx context.Context) (*float64, error)
	SetCheckpoint(ctx context.Context, checkpoint float64) error
	GetStats(ctx context.Context) (news.Stats, error)
	SetStats(ctx context.Context, stats news.Stats) error
	SaveProgress(ctx context.Context, stats news.Stats, checkpoint *float64) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, id string, name *string, passwordHash *string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type ReactionRepository interface {
	ToggleReaction(ctx context.Context, articleID, userID string, kind ReactionKind) (bool, error)
	GetCounts(ctx context.Context, articleIDs []string) (map[string]ReactionCounts, error)
	GetUserReactions(ctx context.Context, articleID, userID string) (map[ReactionKind]bool, error)
	GetBookmarkedArticleIDs(ctx context.Context, userID string, limit int) ([]string, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *Comment) error
	GetComments(ctx context.Context, articleID string, limit int) ([]Comment, error)
	GetCommentByID(ctx context.Context, id string) (*Comment, error)
	DeleteComment(ctx context.Context, id string) error
}
