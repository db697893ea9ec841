package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var _ ReactionRepository = (*ReactionStore)(nil)

// ReactionStore keeps likes and bookmarks as separate relations over (article, user)
type ReactionStore struct {
	db *DB
}

func NewReactionStore(db *DB) *ReactionStore {
	return &ReactionStore{db: db}
}

// ToggleReaction removes the reaction if present, otherwise adds it. Returns the new state.
func (s *ReactionStore) ToggleReaction(ctx context.Context, articleID, userID string, kind ReactionKind) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM reactions WHERE article_id = ? AND user_id = ? AND kind = ?`,
		articleID, userID, string(kind))
	if err != nil {
		return false, fmt.Errorf("failed to remove reaction: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	active := removed == 0
	if active {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO reactions (article_id, user_id, kind, created_at) VALUES (?, ?, ?, ?)`,
			articleID, userID, string(kind), toMillis(time.Now()))
		if err != nil {
			return false, fmt.Errorf("failed to add reaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit reaction: %w", err)
	}
	return active, nil
}

// GetCounts returns like and bookmark totals keyed by article id. Articles without reactions are absent.
func (s *ReactionStore) GetCounts(ctx context.Context, articleIDs []string) (map[string]ReactionCounts, error) {
	counts := make(map[string]ReactionCounts, len(articleIDs))
	if len(articleIDs) == 0 {
		return counts, nil
	}

	query, args, err := sq.Select("article_id", "kind", "COUNT(*)").
		From("reactions").
		Where(sq.Eq{"article_id": articleIDs}).
		GroupBy("article_id", "kind").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build reaction count query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var articleID, kind string
		var n int
		if err := rows.Scan(&articleID, &kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan reaction count: %w", err)
		}
		c := counts[articleID]
		switch ReactionKind(kind) {
		case ReactionLike:
			c.Likes = n
		case ReactionBookmark:
			c.Bookmarks = n
		}
		counts[articleID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reaction counts: %w", err)
	}

	return counts, nil
}

func (s *ReactionStore) GetUserReactions(ctx context.Context, articleID, userID string) (map[ReactionKind]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind FROM reactions WHERE article_id = ? AND user_id = ?`, articleID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user reactions: %w", err)
	}
	defer rows.Close()

	state := make(map[ReactionKind]bool, 2)
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return nil, fmt.Errorf("failed to scan reaction: %w", err)
		}
		state[ReactionKind(kind)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reactions: %w", err)
	}
	return state, nil
}

// GetBookmarkedArticleIDs lists the user's bookmarks, most recent first
func (s *ReactionStore) GetBookmarkedArticleIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	builder := sq.Select("article_id").
		From("reactions").
		Where(sq.Eq{"user_id": userID, "kind": string(ReactionBookmark)}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build bookmark query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookmarks: %w", err)
	}
	return ids, nil
}
