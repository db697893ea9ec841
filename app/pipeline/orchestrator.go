package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/bruinbrief/app/civic"
	"github.com/lysyi3m/bruinbrief/app/database"
	"github.com/lysyi3m/bruinbrief/app/news"
	"github.com/lysyi3m/bruinbrief/app/ranking"
)

// Deps wires the collaborators into the orchestrator
type Deps struct {
	Fetcher    Fetcher
	Identifier Identifier
	Generator  Generator
	Articles   database.ArticleRepository
	Summaries  database.SummaryRepository
	Metadata   database.MetadataRepository
	Filterer   *ranking.Filterer
	Ranker     *ranking.Ranker
	Calendar   *civic.Calendar
	Sentiments news.SentimentSet
}

// Orchestrator runs fetch, filter, identify, generate and persist in sequence.
// Callers serialize runs; the orchestrator holds no lock across steps.
type Orchestrator struct {
	deps     Deps
	settings Settings
	state    atomic.Value
}

func NewOrchestrator(deps Deps, settings Settings) *Orchestrator {
	if deps.Filterer == nil {
		deps.Filterer = ranking.NewFilterer(ranking.DefaultMinScore)
	}
	if deps.Ranker == nil {
		deps.Ranker = ranking.NewRanker(ranking.DefaultMaxPostsBatch)
	}
	if deps.Sentiments.Name == "" {
		deps.Sentiments = news.ToneSentiments
	}

	o := &Orchestrator{deps: deps, settings: settings}
	o.state.Store(StateIdle)
	return o
}

// State is the step of the run in progress, or the terminal state of the last one
func (o *Orchestrator) State() State {
	return o.state.Load().(State)
}

func (o *Orchestrator) setState(res *Result, state State) {
	res.State = state
	o.state.Store(state)
	slog.Debug("Pipeline state changed", "state", state)
}

// Run executes one pipeline pass. It never panics and never returns an error:
// batch-level failures leave the checkpoint untouched and are reported in the Result.
func (o *Orchestrator) Run(ctx context.Context) (res Result) {
	start := o.deps.Calendar.Now()
	res = Result{State: StateIdle, Articles: []ArticleRef{}}

	defer func() {
		if r := recover(); r != nil {
			o.fail(&res, fmt.Errorf("panic during %s: %v", res.State, r))
		}
		res.DurationMs = o.deps.Calendar.Now().Sub(start).Milliseconds()

		logArgs := []any{
			"state", res.State,
			"posts", res.PostsProcessed,
			"articles", res.ArticlesGenerated,
			"skipped", res.Skipped,
			"duration", time.Duration(res.DurationMs) * time.Millisecond,
		}
		if res.Success {
			slog.Info("Pipeline run completed", logArgs...)
		} else {
			slog.Error("Pipeline run failed", append(logArgs, "error", res.Error, "kind", res.ErrorKind)...)
		}
	}()

	o.setState(&res, StateFetching)

	checkpoint, err := o.deps.Metadata.GetCheckpoint(ctx)
	if err != nil {
		o.fail(&res, fmt.Errorf("failed to read checkpoint: %w", err))
		return res
	}
	res.Checkpoint = checkpoint

	fetched, err := o.fetch(ctx, checkpoint)
	if err != nil {
		o.fail(&res, fmt.Errorf("failed to fetch posts: %w", err))
		return res
	}

	if len(fetched.Posts) == 0 {
		if next := advance(checkpoint, fetched.ScrapedAt); next != nil {
			if err := o.deps.Metadata.SetCheckpoint(ctx, *next); err != nil {
				o.fail(&res, fmt.Errorf("failed to record checkpoint: %w", err))
				return res
			}
			res.Checkpoint = next
		}
		o.done(&res, "No new posts to process")
		return res
	}

	o.setState(&res, StateFiltering)

	valid := o.deps.Filterer.Run(fetched.Posts)
	slog.Debug("Posts filtered", "fetched", len(fetched.Posts), "valid", len(valid))

	if len(valid) == 0 {
		if err := o.finish(ctx, &res, checkpoint, fetched.ScrapedAt, 0, 0); err != nil {
			o.fail(&res, err)
			return res
		}
		o.done(&res, "No valid posts after filtering")
		return res
	}

	ranked := o.deps.Ranker.Top(o.deps.Ranker.Run(valid))
	res.PostsProcessed = len(valid)

	o.setState(&res, StateIdentifying)

	proposed, err := o.identify(ctx, ranked)
	if err != nil {
		o.fail(&res, fmt.Errorf("failed to identify opportunities: %w", err))
		return res
	}

	accepted := acceptOpportunities(proposed, ranked)
	res.Opportunities = len(accepted)

	if len(accepted) == 0 {
		if err := o.finish(ctx, &res, checkpoint, fetched.ScrapedAt, len(valid), 0); err != nil {
			o.fail(&res, err)
			return res
		}
		o.done(&res, "No article opportunities identified")
		return res
	}

	o.setState(&res, StateGenerating)

	civicDate := o.deps.Calendar.DateString(start)
	generation, err := o.generate(ctx, accepted, ranked, civicDate)
	if err != nil {
		o.fail(&res, fmt.Errorf("failed to generate articles: %w", err))
		return res
	}

	o.setState(&res, StatePersisting)

	persistCtx, cancel := o.withTimeout(ctx, o.settings.PersistTimeout)
	defer cancel()

	saved := o.persistArticles(persistCtx, &res, accepted, generation.Articles, ranked)
	res.ArticlesGenerated = len(saved)

	if len(saved) > 0 && generation.DailySummary != nil {
		summary, err := o.persistSummary(persistCtx, civicDate, *generation.DailySummary, saved)
		if err != nil {
			slog.Warn("Daily summary not saved", "date", civicDate, "error", err)
		} else {
			res.DailySummary = summary
		}
	}

	if err := o.finish(ctx, &res, checkpoint, fetched.ScrapedAt, len(valid), len(saved)); err != nil {
		o.fail(&res, err)
		return res
	}

	o.done(&res, fmt.Sprintf("Generated %d articles from %d posts", len(saved), len(valid)))
	return res
}

func (o *Orchestrator) fetch(ctx context.Context, checkpoint *float64) (news.FetchResult, error) {
	ctx, cancel := o.withTimeout(ctx, o.settings.FetchTimeout)
	defer cancel()
	return o.deps.Fetcher.FetchSince(ctx, checkpoint)
}

func (o *Orchestrator) identify(ctx context.Context, ranked []news.RankedPost) ([]news.Opportunity, error) {
	ctx, cancel := o.withTimeout(ctx, o.settings.LLMTimeout)
	defer cancel()
	return o.deps.Identifier.Identify(ctx, ranked)
}

func (o *Orchestrator) generate(ctx context.Context, opps []news.Opportunity, ranked []news.RankedPost, civicDate string) (news.Generation, error) {
	ctx, cancel := o.withTimeout(ctx, o.settings.LLMTimeout)
	defer cancel()
	return o.deps.Generator.Generate(ctx, opps, ranked, civicDate)
}

func (o *Orchestrator) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// acceptOpportunities drops empty and low-humor proposals and any that reference a post outside the batch
func acceptOpportunities(proposed []news.Opportunity, ranked []news.RankedPost) []news.Opportunity {
	inBatch := make(map[string]bool, len(ranked))
	for _, p := range ranked {
		inBatch[p.ID] = true
	}

	accepted := make([]news.Opportunity, 0, len(proposed))
	for _, opp := range proposed {
		if len(opp.PostIDs) == 0 {
			slog.Debug("Opportunity dropped: no posts", "theme", opp.Theme)
			continue
		}
		if opp.HumorPotential == news.HumorLow {
			slog.Debug("Opportunity dropped: low humor potential", "theme", opp.Theme)
			continue
		}

		var integrityErr error
		for _, id := range opp.PostIDs {
			if !inBatch[id] {
				integrityErr = &news.IntegrityError{PostID: id, Theme: opp.Theme}
				break
			}
		}
		if integrityErr != nil {
			slog.Warn("Opportunity skipped", "error", integrityErr, "kind", news.ErrorKind(integrityErr))
			continue
		}

		accepted = append(accepted, opp)
	}

	return accepted
}

func (o *Orchestrator) persistArticles(ctx context.Context, res *Result, opps []news.Opportunity, drafts []news.GeneratedArticle, ranked []news.RankedPost) []*news.Article {
	byID := make(map[string]news.RankedPost, len(ranked))
	for _, p := range ranked {
		byID[p.ID] = p
	}

	n := min(len(opps), len(drafts))
	if n < len(opps) {
		slog.Warn("Fewer articles generated than opportunities", "opportunities", len(opps), "generated", len(drafts))
	}

	saved := make([]*news.Article, 0, n)
	for i := 0; i < n; i++ {
		article, err := o.persistArticle(ctx, opps[i], drafts[i], byID)
		if err != nil {
			itemErr := &news.PartialItemError{Index: i, Err: err}
			slog.Warn("Article skipped", "theme", opps[i].Theme, "error", itemErr, "kind", news.ErrorKind(itemErr))
			res.Skipped++
			continue
		}

		saved = append(saved, article)
		res.Articles = append(res.Articles, ArticleRef{
			ID:        article.ID,
			Headline:  article.Headline,
			Category:  article.TrendCategory,
			PostCount: article.PostCount,
		})
		slog.Info("Article saved", "id", article.ID, "headline", article.Headline, "posts", article.PostCount)
	}

	return saved
}

func (o *Orchestrator) persistArticle(ctx context.Context, opp news.Opportunity, draft news.GeneratedArticle, byID map[string]news.RankedPost) (*news.Article, error) {
	if err := draft.Validate(o.deps.Sentiments); err != nil {
		return nil, err
	}

	article := &news.Article{
		Headline:      strings.TrimSpace(draft.Headline),
		Description:   strings.TrimSpace(draft.Description),
		Content:       draft.Content,
		TrendCategory: strings.TrimSpace(draft.TrendCategory),
		Sentiment:     draft.Sentiment,
		Tags:          news.NormalizeTags(draft.Tags),
		GeneratedAt:   o.deps.Calendar.Now().UTC(),
		IsPublished:   true,
	}

	seen := make(map[string]bool, len(opp.PostIDs))
	for _, id := range opp.PostIDs {
		post, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		article.ReferencedPosts = append(article.ReferencedPosts, news.SnapshotOf(post))
	}
	article.PostCount = len(article.ReferencedPosts)

	if err := article.Validate(); err != nil {
		return nil, err
	}

	if o.settings.Dedup {
		duplicate, err := o.isDuplicate(ctx, article)
		if err != nil {
			return nil, err
		}
		if duplicate {
			return nil, news.ErrDuplicateArticle
		}
	}

	if _, err := o.deps.Articles.SaveArticle(ctx, article); err != nil {
		return nil, fmt.Errorf("failed to save article: %w", err)
	}

	return article, nil
}

// isDuplicate reports whether every referenced post already backs a stored article
func (o *Orchestrator) isDuplicate(ctx context.Context, article *news.Article) (bool, error) {
	ids := make([]string, len(article.ReferencedPosts))
	for i, p := range article.ReferencedPosts {
		ids[i] = p.PostID
	}

	existing, err := o.deps.Articles.ReferencedPostIDsExist(ctx, ids)
	if err != nil {
		return false, fmt.Errorf("failed to check referenced posts: %w", err)
	}

	for _, id := range ids {
		if !existing[id] {
			return false, nil
		}
	}
	return true, nil
}

func (o *Orchestrator) persistSummary(ctx context.Context, civicDate string, payload news.DailySummaryPayload, saved []*news.Article) (*news.DailySummary, error) {
	if err := payload.Validate(); err != nil {
		return nil, &news.PartialItemError{Index: -1, Err: err}
	}

	summary := &news.DailySummary{
		Date:             civicDate,
		MoodEmoji:        payload.MoodEmoji,
		MoodTitle:        payload.MoodTitle,
		MoodDescription:  payload.MoodDescription,
		OverallSentiment: payload.OverallSentiment,
		ArticleCount:     len(saved),
		GeneratedAt:      o.deps.Calendar.Now().UTC(),
	}
	for _, article := range saved {
		summary.TotalEngagement += article.TotalScore()
		summary.ArticleIDs = append(summary.ArticleIDs, article.ID)
	}

	return o.deps.Summaries.UpsertDailySummary(ctx, summary)
}

// finish adds this run to the cumulative stats and moves the checkpoint forward in one write
func (o *Orchestrator) finish(ctx context.Context, res *Result, checkpoint *float64, scrapedAt float64, posts, articles int) error {
	stats, err := o.deps.Metadata.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	now := o.deps.Calendar.Now().UTC()
	stats.TotalPostsProcessed += posts
	stats.TotalArticlesGenerated += articles
	stats.LastProcessingRun = &now

	next := advance(checkpoint, scrapedAt)
	if err := o.deps.Metadata.SaveProgress(ctx, stats, next); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	if next != nil {
		res.Checkpoint = next
	}
	return nil
}

// advance returns the new checkpoint, or nil when scrapedAt would not move it forward
func advance(current *float64, scrapedAt float64) *float64 {
	if scrapedAt <= 0 {
		return nil
	}
	if current != nil && scrapedAt <= *current {
		return nil
	}
	return &scrapedAt
}

func (o *Orchestrator) done(res *Result, message string) {
	res.Success = true
	res.Message = message
	o.setState(res, StateDone)
}

func (o *Orchestrator) fail(res *Result, err error) {
	res.Success = false
	res.Error = err.Error()
	res.ErrorKind = news.ErrorKind(err)
	res.Message = failureMessage(err)
	o.setState(res, StateFailed)
}

func failureMessage(err error) string {
	var transportErr *news.TransportError
	switch {
	case errors.As(err, &transportErr) && transportErr.Timeout:
		return "Pipeline timed out waiting for " + transportErr.Op
	case errors.As(err, &transportErr):
		return "Pipeline could not reach " + transportErr.Op
	case news.ErrorKind(err) == "malformed_response":
		return "Pipeline received an unusable response"
	default:
		return "Pipeline failed"
	}
}
