package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var _ CommentRepository = (*CommentStore)(nil)

var commentColumns = []string{
	"c.id", "c.article_id", "c.user_id", "COALESCE(u.name, '')", "c.type", "c.content",
	"c.audio_data", "c.audio_duration", "c.audio_format", "c.created_at",
}

type CommentStore struct {
	db *DB
}

func NewCommentStore(db *DB) *CommentStore {
	return &CommentStore{db: db}
}

func (s *CommentStore) CreateComment(ctx context.Context, comment *Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	if comment.Type == CommentVoice && comment.AudioFormat == "" {
		comment.AudioFormat = "webm"
	}

	query, args, err := sq.Insert("comments").
		Columns("id", "article_id", "user_id", "type", "content", "audio_data", "audio_duration", "audio_format", "created_at").
		Values(comment.ID, comment.ArticleID, comment.UserID, string(comment.Type), comment.Content,
			comment.AudioData, comment.AudioDuration, comment.AudioFormat, toMillis(comment.CreatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build comment insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// GetComments returns the article's comments oldest first
func (s *CommentStore) GetComments(ctx context.Context, articleID string, limit int) ([]Comment, error) {
	builder := s.selectComments().
		Where(sq.Eq{"c.article_id": articleID}).
		OrderBy("c.created_at ASC", "c.rowid ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build comment query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comment rows: %w", err)
	}
	return comments, nil
}

// GetCommentByID returns nil, nil when the comment does not exist
func (s *CommentStore) GetCommentByID(ctx context.Context, id string) (*Comment, error) {
	query, args, err := s.selectComments().Where(sq.Eq{"c.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build comment query: %w", err)
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	comment, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s *CommentStore) DeleteComment(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

func (s *CommentStore) selectComments() sq.SelectBuilder {
	return sq.Select(commentColumns...).
		From("comments c").
		LeftJoin("users u ON u.id = c.user_id")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (Comment, error) {
	var comment Comment
	var commentType string
	var createdAt int64

	err := row.Scan(
		&comment.ID, &comment.ArticleID, &comment.UserID, &comment.UserName, &commentType, &comment.Content,
		&comment.AudioData, &comment.AudioDuration, &comment.AudioFormat, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return comment, err
	}
	if err != nil {
		return comment, fmt.Errorf("failed to scan comment row: %w", err)
	}

	comment.Type = CommentType(commentType)
	comment.CreatedAt = fromMillis(createdAt)
	return comment, nil
}
