package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/bruinbrief/app/cache"
	"github.com/lysyi3m/bruinbrief/app/feed"
	"github.com/lysyi3m/bruinbrief/app/llm"
	"github.com/lysyi3m/bruinbrief/app/news"
)

const (
	defaultListLimit = 10
	maxListLimit     = 50
	feedItems        = 50
	testTimeout      = 30 * time.Second
)

// errNotFound keeps misses out of the cache
var errNotFound = errors.New("not found")

func NewHandler(deps Deps) *Handler {
	c := deps.Cache
	if c == nil {
		c = cache.NoopCache{}
	}

	return &Handler{
		articles:  deps.Articles,
		summaries: deps.Summaries,
		metadata:  deps.Metadata,
		reactions: deps.Reactions,
		comments:  deps.Comments,
		auth:      deps.Auth,
		scheduler: deps.Scheduler,
		cache:     c,
		calendar:  deps.Calendar,
		source:    deps.Source,
		model:     deps.Model,
		generator: feed.NewGenerator(),
		baseURL:   deps.BaseURL,
		version:   deps.Version,
	}
}

// cached serves key from the cache or stores what load returns
func cached[T any](ctx context.Context, c cache.Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var value T
	if hit, err := c.GetJSON(ctx, key, &value); err != nil {
		slog.Warn("Cache read failed", "key", key, "error", err)
	} else if hit {
		return value, nil
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	if err := c.SetJSON(ctx, key, value, ttl); err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
	}
	return value, nil
}

// parseLimit clamps ?limit= to 1..50
func parseLimit(c *gin.Context, fallback int) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func serverError(c *gin.Context, message string, operation string, err error) {
	slog.Error("Database error", "operation", operation, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": message,
		"error":   err.Error(),
	})
}

func (h *Handler) ListArticles(c *gin.Context) {
	ctx := c.Request.Context()
	limit := parseLimit(c, defaultListLimit)

	articles, err := cached(ctx, h.cache, cache.ArticlesKey(limit), cache.ListTTL, func() ([]news.Article, error) {
		return h.articles.GetRecentArticles(ctx, limit)
	})
	if err != nil {
		serverError(c, "Failed to fetch articles", "get_recent_articles", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"articles": articles,
		"count":    len(articles),
	})
}

func (h *Handler) GetTodayArticles(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.calendar.Now()
	date := h.calendar.DateString(now)
	limit := parseLimit(c, maxListLimit)

	articles, err := cached(ctx, h.cache, cache.TodayKey(date)+":"+strconv.Itoa(limit), cache.ListTTL, func() ([]news.Article, error) {
		return h.articles.GetArticlesSince(ctx, h.calendar.StartOfDay(now), limit)
	})
	if err != nil {
		serverError(c, "Failed to fetch articles", "get_today_articles", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"date":     date,
		"articles": articles,
		"count":    len(articles),
	})
}

func (h *Handler) GetPastArticles(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.calendar.Now()
	date := h.calendar.DateString(now)
	limit := parseLimit(c, maxListLimit)

	articles, err := cached(ctx, h.cache, cache.PastKey(date, limit), cache.ListTTL, func() ([]news.Article, error) {
		return h.articles.GetArticlesBefore(ctx, h.calendar.StartOfDay(now), limit)
	})
	if err != nil {
		serverError(c, "Failed to fetch articles", "get_past_articles", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"before":   date,
		"articles": articles,
		"count":    len(articles),
	})
}

func (h *Handler) GetArticle(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	article, err := cached(ctx, h.cache, cache.ArticleKey(id), cache.ArticleTTL, func() (*news.Article, error) {
		article, err := h.articles.GetArticleByID(ctx, id)
		if err == nil && article == nil {
			return nil, errNotFound
		}
		return article, err
	})
	if errors.Is(err, errNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Article not found"})
		return
	}
	if err != nil {
		serverError(c, "Failed to fetch article", "get_article", err)
		return
	}

	userID := ""
	if claims := currentClaims(c); claims != nil {
		userID = claims.UserID
	}

	reactions, err := h.reactionState(ctx, article.ID, userID)
	if err != nil {
		serverError(c, "Failed to fetch article", "get_reactions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"article":   article,
		"reactions": reactions,
	})
}

func (h *Handler) GetDailySummary(c *gin.Context) {
	ctx := c.Request.Context()

	date := c.Param("date")
	if date == "" {
		date = h.calendar.Today()
	} else if _, err := h.calendar.ParseDate(date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid date format. Use YYYY-MM-DD"})
		return
	}

	type summaryView struct {
		Summary  *news.DailySummary `json:"summary"`
		Articles []news.Article     `json:"articles"`
	}

	view, err := cached(ctx, h.cache, cache.SummaryKey(date), cache.SummaryTTL, func() (summaryView, error) {
		summary, err := h.summaries.GetDailySummary(ctx, date)
		if err != nil {
			return summaryView{}, err
		}
		if summary == nil {
			return summaryView{}, errNotFound
		}
		articles, err := h.articles.GetArticlesByIDs(ctx, summary.ArticleIDs)
		if err != nil {
			return summaryView{}, err
		}
		return summaryView{Summary: summary, Articles: articles}, nil
	})
	if errors.Is(err, errNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "date": date, "message": "No daily summary for this date"})
		return
	}
	if err != nil {
		serverError(c, "Failed to fetch daily summary", "get_daily_summary", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"summary":  view.Summary,
		"articles": view.Articles,
	})
}

type systemStats struct {
	news.Stats
	TotalArticlesInDB int     `json:"total_articles_in_db"`
	ArticlesLast24h   int     `json:"articles_last_24h"`
	LastScraped       *string `json:"last_scraped"`
}

func (h *Handler) GetSystemStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := cached(ctx, h.cache, cache.StatsKey(), cache.ListTTL, func() (systemStats, error) {
		var out systemStats

		stats, err := h.metadata.GetStats(ctx)
		if err != nil {
			return out, err
		}
		out.Stats = stats

		if out.TotalArticlesInDB, err = h.articles.CountArticles(ctx); err != nil {
			return out, err
		}
		if out.ArticlesLast24h, err = h.articles.CountArticlesSince(ctx, time.Now().Add(-24*time.Hour)); err != nil {
			return out, err
		}

		checkpoint, err := h.metadata.GetCheckpoint(ctx)
		if err != nil {
			return out, err
		}
		if checkpoint != nil {
			scraped := time.UnixMilli(int64(*checkpoint * 1000)).UTC().Format(time.RFC3339)
			out.LastScraped = &scraped
		}
		return out, nil
	})
	if err != nil {
		serverError(c, "Failed to fetch system stats", "get_stats", err)
		return
	}

	response := gin.H{
		"success": true,
		"stats":   stats,
	}
	if h.scheduler != nil {
		response["scheduler"] = h.scheduler.Status()
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GenerateArticles(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Pipeline is not configured"})
		return
	}

	slog.Info("Manual pipeline trigger requested", "client_ip", c.ClientIP())

	res, err := h.scheduler.TriggerRun(c.Request.Context())
	if err != nil {
		slog.Error("Error running pipeline", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Failed to run pipeline",
			"error":   err.Error(),
		})
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, res)
}

type serviceCheck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Posts   int    `json:"posts,omitempty"`
	Model   string `json:"model,omitempty"`
}

func (h *Handler) TestServices(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), testTimeout)
	defer cancel()

	results := map[string]serviceCheck{}

	if h.source != nil {
		posts, err := h.source.TestConnection(ctx)
		if err != nil {
			results["reddit"] = serviceCheck{Message: err.Error()}
		} else {
			results["reddit"] = serviceCheck{Success: true, Message: "Reddit reachable", Posts: posts}
		}
	} else {
		results["reddit"] = serviceCheck{Message: "Source not configured"}
	}

	if h.model != nil {
		if err := llm.TestConnection(ctx, h.model); err != nil {
			results["model"] = serviceCheck{Message: err.Error(), Model: h.model.Name()}
		} else {
			results["model"] = serviceCheck{Success: true, Message: "Model responding", Model: h.model.Name()}
		}
	} else {
		results["model"] = serviceCheck{Message: "Model not configured"}
	}

	allSuccessful := true
	for _, r := range results {
		allSuccessful = allSuccessful && r.Success
	}

	message := "All services operational"
	if !allSuccessful {
		message = "Some services have issues"
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  allSuccessful,
		"message":  message,
		"services": results,
	})
}

func (h *Handler) GetSchedulerStatus(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Pipeline is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "scheduler": h.scheduler.Status()})
}

func (h *Handler) GetFeed(c *gin.Context) {
	ctx := c.Request.Context()

	rss, err := cached(ctx, h.cache, cache.FeedKey(h.baseURL), cache.FeedTTL, func() (string, error) {
		articles, err := h.articles.GetRecentArticles(ctx, feedItems)
		if err != nil {
			return "", err
		}
		return h.generator.Run(feed.DefaultChannel(h.baseURL, h.version), articles)
	})
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx := c.Request.Context()

	health := map[string]interface{}{
		"success":   true,
		"status":    "healthy",
		"timestamp": time.Now().In(h.calendar.Location()).Format(time.RFC3339),
		"version":   h.version,
		"cache":     h.cache.Health(ctx),
	}

	if count, err := h.articles.CountArticles(ctx); err == nil {
		health["articles"] = count
	} else {
		health["success"] = false
		health["status"] = "degraded"
		health["database_error"] = err.Error()
	}

	c.JSON(http.StatusOK, health)
}
