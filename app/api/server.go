package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Options struct {
	APIAccessKey  string
	CORSOrigin    string
	RateLimit     RateLimit
	AuthRateLimit RateLimit
}

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, opts Options) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())
	r.Use(corsMiddleware(opts.CORSOrigin))

	setupRoutes(r, handler, opts)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, opts Options) {
	r.GET("/health", handler.GetHealth)
	r.GET("/feed.xml", handler.GetFeed)

	api := r.Group("/api")
	api.Use(rateLimitMiddleware(opts.RateLimit, "Too many requests from this IP, please try again later."))

	api.GET("/health", handler.GetHealth)

	serviceAuth := serviceAuthMiddleware(opts.APIAccessKey, handler.auth)
	requireUser := userAuthMiddleware(handler.auth)
	optionalUser := optionalUserMiddleware(handler.auth)

	articles := api.Group("/articles")
	{
		articles.GET("", handler.ListArticles)
		articles.GET("/today", handler.GetTodayArticles)
		articles.GET("/past", handler.GetPastArticles)
		articles.GET("/system/stats", handler.GetSystemStats)
		articles.GET("/system/test", serviceAuth, handler.TestServices)
		articles.POST("/generate", serviceAuth, handler.GenerateArticles)

		articles.GET("/:id", optionalUser, handler.GetArticle)
		articles.POST("/:id/like", requireUser, handler.ToggleLike)
		articles.POST("/:id/bookmark", requireUser, handler.ToggleBookmark)
		articles.GET("/:id/comments", handler.ListComments)
		articles.POST("/:id/comments", requireUser, handler.CreateComment)
	}

	api.DELETE("/comments/:id", requireUser, handler.DeleteComment)

	api.GET("/daily-summary", handler.GetDailySummary)
	api.GET("/daily-summary/:date", handler.GetDailySummary)

	authLimit := rateLimitMiddleware(opts.AuthRateLimit, "Too many authentication attempts, please try again later.")
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authLimit, handler.Register)
		authGroup.POST("/login", authLimit, handler.Login)
		authGroup.GET("/me", requireUser, handler.GetMe)
		authGroup.PATCH("/me", requireUser, handler.UpdateMe)
		authGroup.POST("/logout", requireUser, handler.Logout)
		authGroup.GET("/bookmarks", requireUser, handler.ListBookmarks)
	}

	admin := api.Group("/admin", requireUser, adminOnly())
	{
		admin.GET("/scheduler", handler.GetSchedulerStatus)
	}

	if opts.APIAccessKey != "" {
		slog.Info("Service endpoints accept the API access key")
	} else {
		slog.Info("Service endpoints restricted to admin users (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "Bruin Brief",
			"version":     handler.version,
			"description": "Campus news written up from what UCLA is posting about",
			"endpoints": map[string]string{
				"articles":      "/api/articles",
				"today":         "/api/articles/today",
				"past":          "/api/articles/past",
				"article":       "/api/articles/<id>",
				"daily_summary": "/api/daily-summary[/<YYYY-MM-DD>]",
				"stats":         "/api/articles/system/stats",
				"generate":      "/api/articles/generate (POST, requires X-API-Key header)",
				"test":          "/api/articles/system/test (requires X-API-Key header)",
				"auth":          "/api/auth/{register,login,me,logout,bookmarks}",
				"feed":          "/feed.xml",
				"health":        "/health",
			},
			"api_status": map[string]interface{}{
				"service_key_enabled": opts.APIAccessKey != "",
				"header":              "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}
