package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/lysyi3m/bruinbrief/app/news"
)

var _ ArticleRepository = (*ArticleStore)(nil)

var articleColumns = []string{
	"id", "headline", "description", "content", "trend_category",
	"sentiment", "tags", "post_count", "is_published", "generated_at",
}

// ArticleStore handles database operations for generated articles and their post snapshots
type ArticleStore struct {
	db *DB
}

func NewArticleStore(db *DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// SaveArticle validates and stores the article with its snapshot rows in one transaction.
// A missing ID or GeneratedAt is filled in on the passed article.
func (s *ArticleStore) SaveArticle(ctx context.Context, article *news.Article) (string, error) {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	if article.GeneratedAt.IsZero() {
		article.GeneratedAt = time.Now().UTC()
	}
	if err := article.Validate(); err != nil {
		return "", fmt.Errorf("invalid article: %w", err)
	}

	tags := article.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertArticle, args, err := sq.Insert("articles").
		Columns(articleColumns...).
		Values(article.ID, article.Headline, article.Description, article.Content, article.TrendCategory,
			article.Sentiment, string(tagsJSON), article.PostCount, article.IsPublished, toMillis(article.GeneratedAt)).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build article insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertArticle, args...); err != nil {
		return "", fmt.Errorf("failed to insert article: %w", err)
	}

	insertPosts := sq.Insert("article_posts").
		Columns("article_id", "position", "post_id", "title", "permalink", "score", "created_utc")
	for i, post := range article.ReferencedPosts {
		insertPosts = insertPosts.Values(article.ID, i, post.PostID, post.Title, post.Permalink, post.Score, post.CreatedUTC)
	}
	postsSQL, postArgs, err := insertPosts.ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build snapshot insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, postsSQL, postArgs...); err != nil {
		return "", fmt.Errorf("failed to insert post snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit article: %w", err)
	}

	return article.ID, nil
}

// GetArticleByID returns nil, nil when no article has that id
func (s *ArticleStore) GetArticleByID(ctx context.Context, id string) (*news.Article, error) {
	articles, err := s.listArticles(ctx, sq.Eq{"id": id}, 1)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, nil
	}
	return &articles[0], nil
}

// GetArticlesSince returns articles generated at or after since, newest first
func (s *ArticleStore) GetArticlesSince(ctx context.Context, since time.Time, limit int) ([]news.Article, error) {
	return s.listArticles(ctx, sq.GtOrEq{"generated_at": toMillis(since)}, limit)
}

// GetArticlesBefore returns articles generated strictly before the given instant, newest first
func (s *ArticleStore) GetArticlesBefore(ctx context.Context, before time.Time, limit int) ([]news.Article, error) {
	return s.listArticles(ctx, sq.Lt{"generated_at": toMillis(before)}, limit)
}

func (s *ArticleStore) GetRecentArticles(ctx context.Context, limit int) ([]news.Article, error) {
	return s.listArticles(ctx, nil, limit)
}

// GetArticlesByIDs keeps the order of ids and silently drops unknown ones
func (s *ArticleStore) GetArticlesByIDs(ctx context.Context, ids []string) ([]news.Article, error) {
	if len(ids) == 0 {
		return []news.Article{}, nil
	}

	found, err := s.listArticles(ctx, sq.Eq{"id": ids}, 0)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]news.Article, len(found))
	for _, article := range found {
		byID[article.ID] = article
	}

	ordered := make([]news.Article, 0, len(found))
	for _, id := range ids {
		if article, ok := byID[id]; ok {
			ordered = append(ordered, article)
		}
	}
	return ordered, nil
}

func (s *ArticleStore) CountArticles(ctx context.Context) (int, error) {
	return s.count(ctx, nil)
}

func (s *ArticleStore) CountArticlesSince(ctx context.Context, since time.Time) (int, error) {
	return s.count(ctx, sq.GtOrEq{"generated_at": toMillis(since)})
}

// ReferencedPostIDsExist reports which of postIDs already back a stored article
func (s *ArticleStore) ReferencedPostIDsExist(ctx context.Context, postIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(postIDs) == 0 {
		return existing, nil
	}

	query, args, err := sq.Select("DISTINCT post_id").
		From("article_posts").
		Where(sq.Eq{"post_id": postIDs}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build post lookup: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up referenced posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan post id: %w", err)
		}
		existing[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post ids: %w", err)
	}

	return existing, nil
}

func (s *ArticleStore) count(ctx context.Context, where sq.Sqlizer) (int, error) {
	builder := sq.Select("COUNT(*)").From("articles").Where(sq.Eq{"is_published": true})
	if where != nil {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

func (s *ArticleStore) listArticles(ctx context.Context, where sq.Sqlizer, limit int) ([]news.Article, error) {
	builder := sq.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"is_published": true}).
		OrderBy("generated_at DESC", "rowid DESC")
	if where != nil {
		builder = builder.Where(where)
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles: %w", err)
	}
	defer rows.Close()

	articles := []news.Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}
	rows.Close()

	if len(articles) == 0 {
		return articles, nil
	}

	ids := make([]string, len(articles))
	for i, article := range articles {
		ids[i] = article.ID
	}
	snapshots, err := s.loadSnapshots(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		articles[i].ReferencedPosts = snapshots[articles[i].ID]
	}

	return articles, nil
}

func (s *ArticleStore) loadSnapshots(ctx context.Context, articleIDs []string) (map[string][]news.PostSnapshot, error) {
	query, args, err := sq.Select("article_id", "post_id", "title", "permalink", "score", "created_utc").
		From("article_posts").
		Where(sq.Eq{"article_id": articleIDs}).
		OrderBy("article_id", "position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get post snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make(map[string][]news.PostSnapshot, len(articleIDs))
	for rows.Next() {
		var articleID string
		var post news.PostSnapshot
		if err := rows.Scan(&articleID, &post.PostID, &post.Title, &post.Permalink, &post.Score, &post.CreatedUTC); err != nil {
			return nil, fmt.Errorf("failed to scan post snapshot: %w", err)
		}
		snapshots[articleID] = append(snapshots[articleID], post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}

	return snapshots, nil
}

func scanArticle(rows *sql.Rows) (news.Article, error) {
	var article news.Article
	var tagsJSON string
	var generatedAt int64

	err := rows.Scan(
		&article.ID, &article.Headline, &article.Description, &article.Content, &article.TrendCategory,
		&article.Sentiment, &tagsJSON, &article.PostCount, &article.IsPublished, &generatedAt,
	)
	if err != nil {
		return article, fmt.Errorf("failed to scan article row: %w", err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &article.Tags); err != nil {
		return article, fmt.Errorf("failed to decode tags for article %s: %w", article.ID, err)
	}
	article.GeneratedAt = fromMillis(generatedAt)

	return article, nil
}
