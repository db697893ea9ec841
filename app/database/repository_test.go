package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/bruinbrief/app/news"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatal(err)
	}
	if version != 1 || dirty {
		t.Fatalf("Expected clean migration version 1, got %d (dirty=%v)", version, dirty)
	}

	return db
}

func testArticle(headline string, generatedAt time.Time, postIDs ...string) *news.Article {
	article := &news.Article{
		Headline:      headline,
		Description:   "desc",
		Content:       "content",
		TrendCategory: "campus_life",
		Sentiment:     "positive",
		Tags:          []string{"ucla"},
		GeneratedAt:   generatedAt,
		IsPublished:   true,
	}
	for i, id := range postIDs {
		article.ReferencedPosts = append(article.ReferencedPosts, news.PostSnapshot{
			PostID:     id,
			Title:      "post " + id,
			Permalink:  "https://reddit.com/r/ucla/comments/" + id,
			Score:      10 * (i + 1),
			CreatedUTC: 1700000000 + float64(i),
		})
	}
	article.PostCount = len(article.ReferencedPosts)
	return article
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	version, _, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected version 1, got %d", version)
	}
}

func TestArticleStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewArticleStore(setupTestDB(t))

	generatedAt := time.Date(2024, 4, 1, 18, 0, 0, 0, time.UTC)
	article := testArticle("Powell Cat Spotted", generatedAt, "p2", "p1")

	id, err := store.SaveArticle(ctx, article)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" || id != article.ID {
		t.Fatalf("Expected generated id on article, got %q / %q", id, article.ID)
	}

	got, err := store.GetArticleByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("Expected article, got nil")
	}
	if got.Headline != "Powell Cat Spotted" {
		t.Errorf("Expected headline, got %q", got.Headline)
	}
	if !got.GeneratedAt.Equal(generatedAt) {
		t.Errorf("Expected generated_at %s, got %s", generatedAt, got.GeneratedAt)
	}
	if got.PostCount != 2 || len(got.ReferencedPosts) != 2 {
		t.Fatalf("Expected 2 snapshots, got count=%d len=%d", got.PostCount, len(got.ReferencedPosts))
	}
	if got.ReferencedPosts[0].PostID != "p2" || got.ReferencedPosts[1].PostID != "p1" {
		t.Errorf("Snapshot order not preserved: %+v", got.ReferencedPosts)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "ucla" {
		t.Errorf("Expected tags [ucla], got %v", got.Tags)
	}

	missing, err := store.GetArticleByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for unknown id, got %v, %v", missing, err)
	}
}

func TestArticleStore_RejectsArticleWithoutPosts(t *testing.T) {
	store := NewArticleStore(setupTestDB(t))

	article := testArticle("Empty", time.Now())
	_, err := store.SaveArticle(context.Background(), article)
	if !errors.Is(err, news.ErrNoReferencedPosts) {
		t.Errorf("Expected ErrNoReferencedPosts, got %v", err)
	}

	count, _ := store.CountArticles(context.Background())
	if count != 0 {
		t.Errorf("Expected no stored articles, got %d", count)
	}
}

func TestArticleStore_SinceAndBefore(t *testing.T) {
	ctx := context.Background()
	store := NewArticleStore(setupTestDB(t))

	boundary := time.Date(2024, 4, 2, 7, 0, 0, 0, time.UTC)
	yesterday := testArticle("Yesterday", boundary.Add(-time.Minute), "a")
	today := testArticle("Today", boundary, "b")
	later := testArticle("Later", boundary.Add(time.Hour), "c")

	for _, a := range []*news.Article{yesterday, today, later} {
		if _, err := store.SaveArticle(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	since, err := store.GetArticlesSince(ctx, boundary, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(since) != 2 || since[0].Headline != "Later" || since[1].Headline != "Today" {
		t.Errorf("Unexpected articles since boundary: %+v", since)
	}

	before, err := store.GetArticlesBefore(ctx, boundary, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != 1 || before[0].Headline != "Yesterday" {
		t.Errorf("Unexpected articles before boundary: %+v", before)
	}

	recent, err := store.GetRecentArticles(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Headline != "Later" {
		t.Errorf("Unexpected recent articles: %+v", recent)
	}

	total, _ := store.CountArticles(ctx)
	sinceCount, _ := store.CountArticlesSince(ctx, boundary)
	if total != 3 || sinceCount != 2 {
		t.Errorf("Expected counts 3/2, got %d/%d", total, sinceCount)
	}

	byIDs, err := store.GetArticlesByIDs(ctx, []string{yesterday.ID, "missing", later.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(byIDs) != 2 || byIDs[0].ID != yesterday.ID || byIDs[1].ID != later.ID {
		t.Errorf("Expected requested order without unknown ids, got %+v", byIDs)
	}
}

func TestArticleStore_ReferencedPostIDsExist(t *testing.T) {
	ctx := context.Background()
	store := NewArticleStore(setupTestDB(t))

	if _, err := store.SaveArticle(ctx, testArticle("One", time.Now(), "x1", "x2")); err != nil {
		t.Fatal(err)
	}

	existing, err := store.ReferencedPostIDsExist(ctx, []string{"x1", "x3"})
	if err != nil {
		t.Fatal(err)
	}
	if !existing["x1"] || existing["x3"] || len(existing) != 1 {
		t.Errorf("Unexpected existing set: %v", existing)
	}
}

func TestSummaryStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewSummaryStore(setupTestDB(t))

	first := &news.DailySummary{
		Date: "2024-04-01", MoodEmoji: "🔥", MoodTitle: "Hype", MoodDescription: "Game day",
		OverallSentiment: "positive", ArticleCount: 3, TotalEngagement: 300, ArticleIDs: []string{"a", "b", "c"},
	}
	if _, err := store.UpsertDailySummary(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := &news.DailySummary{
		Date: "2024-04-01", MoodEmoji: "😴", MoodTitle: "Tired", MoodDescription: "Post game",
		OverallSentiment: "mixed", ArticleCount: 1, TotalEngagement: 40, ArticleIDs: []string{"d"},
	}
	stored, err := store.UpsertDailySummary(ctx, second)
	if err != nil {
		t.Fatal(err)
	}

	if stored.ArticleCount != 1 || stored.TotalEngagement != 40 {
		t.Errorf("Expected second call values only, got count=%d engagement=%d", stored.ArticleCount, stored.TotalEngagement)
	}
	if stored.MoodTitle != "Tired" || len(stored.ArticleIDs) != 1 || stored.ArticleIDs[0] != "d" {
		t.Errorf("Expected replaced summary, got %+v", stored)
	}

	missing, err := store.GetDailySummary(ctx, "2024-04-02")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for missing date, got %v, %v", missing, err)
	}
}

func TestMetadataStore_CheckpointAndStats(t *testing.T) {
	ctx := context.Background()
	store := NewMetadataStore(setupTestDB(t))

	checkpoint, err := store.GetCheckpoint(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if checkpoint != nil {
		t.Fatalf("Expected nil checkpoint on fresh database, got %v", *checkpoint)
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalPostsProcessed != 0 || stats.LastProcessingRun != nil {
		t.Errorf("Expected zero stats, got %+v", stats)
	}

	if err := store.SetCheckpoint(ctx, 1700000000.5); err != nil {
		t.Fatal(err)
	}
	checkpoint, _ = store.GetCheckpoint(ctx)
	if checkpoint == nil || *checkpoint != 1700000000.5 {
		t.Errorf("Expected checkpoint 1700000000.5, got %v", checkpoint)
	}

	runAt := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	next := 1700000100.0
	err = store.SaveProgress(ctx, news.Stats{TotalPostsProcessed: 12, TotalArticlesGenerated: 2, LastProcessingRun: &runAt}, &next)
	if err != nil {
		t.Fatal(err)
	}

	stats, _ = store.GetStats(ctx)
	if stats.TotalPostsProcessed != 12 || stats.TotalArticlesGenerated != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.LastProcessingRun == nil || !stats.LastProcessingRun.Equal(runAt) {
		t.Errorf("Expected last run %s, got %v", runAt, stats.LastProcessingRun)
	}
	checkpoint, _ = store.GetCheckpoint(ctx)
	if checkpoint == nil || *checkpoint != next {
		t.Errorf("Expected checkpoint %v, got %v", next, checkpoint)
	}

	if err := store.SaveProgress(ctx, news.Stats{TotalPostsProcessed: 13}, nil); err != nil {
		t.Fatal(err)
	}
	checkpoint, _ = store.GetCheckpoint(ctx)
	if checkpoint == nil || *checkpoint != next {
		t.Errorf("Expected nil checkpoint to leave %v in place, got %v", next, checkpoint)
	}
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(setupTestDB(t))

	user := &User{Email: "Joe@UCLA.edu", Name: "Joe Bruin", PasswordHash: "hash"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	if user.ID == "" || user.Role != "user" {
		t.Errorf("Expected id and default role, got %+v", user)
	}

	if err := store.CreateUser(ctx, &User{Email: "joe@ucla.edu", Name: "Dup", PasswordHash: "x"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("Expected ErrDuplicateEmail, got %v", err)
	}

	found, err := store.GetUserByEmail(ctx, "JOE@ucla.edu")
	if err != nil || found == nil || found.ID != user.ID {
		t.Fatalf("Expected case-insensitive lookup, got %v, %v", found, err)
	}

	name := "Josie Bruin"
	if err := store.UpdateUser(ctx, user.ID, &name, nil); err != nil {
		t.Fatal(err)
	}
	if err := store.TouchLastLogin(ctx, user.ID, time.Now()); err != nil {
		t.Fatal(err)
	}

	found, _ = store.GetUserByID(ctx, user.ID)
	if found.Name != "Josie Bruin" || found.PasswordHash != "hash" || found.LastLoginAt == nil {
		t.Errorf("Unexpected user after update: %+v", found)
	}

	missing, err := store.GetUserByID(ctx, "nobody")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil, got %v, %v", missing, err)
	}
}

func TestReactionAndCommentStores(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	articles := NewArticleStore(db)
	users := NewUserStore(db)
	reactions := NewReactionStore(db)
	comments := NewCommentStore(db)

	article := testArticle("Reacted", time.Now(), "r1")
	if _, err := articles.SaveArticle(ctx, article); err != nil {
		t.Fatal(err)
	}
	user := &User{Email: "a@ucla.edu", Name: "Alex", PasswordHash: "h"}
	if err := users.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}

	liked, err := reactions.ToggleReaction(ctx, article.ID, user.ID, ReactionLike)
	if err != nil || !liked {
		t.Fatalf("Expected like to be added, got %v, %v", liked, err)
	}
	bookmarked, _ := reactions.ToggleReaction(ctx, article.ID, user.ID, ReactionBookmark)
	if !bookmarked {
		t.Error("Expected bookmark to be added")
	}

	counts, err := reactions.GetCounts(ctx, []string{article.ID})
	if err != nil {
		t.Fatal(err)
	}
	if counts[article.ID].Likes != 1 || counts[article.ID].Bookmarks != 1 {
		t.Errorf("Unexpected counts: %+v", counts[article.ID])
	}

	ids, _ := reactions.GetBookmarkedArticleIDs(ctx, user.ID, 10)
	if len(ids) != 1 || ids[0] != article.ID {
		t.Errorf("Expected bookmarked article, got %v", ids)
	}

	liked, _ = reactions.ToggleReaction(ctx, article.ID, user.ID, ReactionLike)
	if liked {
		t.Error("Expected second toggle to remove like")
	}
	state, _ := reactions.GetUserReactions(ctx, article.ID, user.ID)
	if state[ReactionLike] || !state[ReactionBookmark] {
		t.Errorf("Unexpected reaction state: %v", state)
	}

	text := &Comment{ArticleID: article.ID, UserID: user.ID, Type: CommentText, Content: "lol"}
	voice := &Comment{ArticleID: article.ID, UserID: user.ID, Type: CommentVoice, AudioData: "UklGRg==", AudioDuration: 4.5}
	for _, c := range []*Comment{text, voice} {
		if err := comments.CreateComment(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	list, err := comments.GetComments(ctx, article.ID, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != text.ID || list[1].AudioFormat != "webm" || list[0].UserName != "Alex" {
		t.Errorf("Unexpected comments: %+v", list)
	}

	if err := comments.DeleteComment(ctx, text.ID); err != nil {
		t.Fatal(err)
	}
	gone, err := comments.GetCommentByID(ctx, text.ID)
	if err != nil || gone != nil {
		t.Errorf("Expected deleted comment to be gone, got %v, %v", gone, err)
	}
}
