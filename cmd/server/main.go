package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/bruinbrief/app/api"
	"github.com/lysyi3m/bruinbrief/app/auth"
	"github.com/lysyi3m/bruinbrief/app/cache"
	"github.com/lysyi3m/bruinbrief/app/cfg"
	"github.com/lysyi3m/bruinbrief/app/civic"
	"github.com/lysyi3m/bruinbrief/app/database"
	"github.com/lysyi3m/bruinbrief/app/llm"
	"github.com/lysyi3m/bruinbrief/app/news"
	"github.com/lysyi3m/bruinbrief/app/pipeline"
	"github.com/lysyi3m/bruinbrief/app/ranking"
	"github.com/lysyi3m/bruinbrief/app/reddit"
	"github.com/lysyi3m/bruinbrief/app/tasks"
)

func main() {
	config, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if config == nil {
		// Help was shown
		return
	}

	setupLogger(config.Debug)

	if err := run(config); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(config *cfg.Cfg) error {
	slog.Info("Starting Bruin Brief", "version", config.Version)

	db, err := database.NewConnection(config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", config.DBPath, "schema_version", version, "dirty", dirty)

	calendar, err := civic.NewCalendar(config.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load civic time zone: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	responseCache := cache.New(ctx, config.RedisAddr, config.RedisDB)
	defer responseCache.Close()

	sources, err := reddit.LoadSources(config.SourcesFile)
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	slog.Info("Sources loaded", "file", config.SourcesFile, "communities", len(sources.EnabledCommunities()))

	fetcher := reddit.NewClient(reddit.Options{
		ClientID:           config.RedditClientID,
		ClientSecret:       config.RedditClientSecret,
		UserAgent:          config.UserAgent,
		MaxPosts:           config.MaxPosts,
		Backfill:           time.Duration(config.BackfillDays) * 24 * time.Hour,
		ExtractLinkContent: config.ExtractLinkContent,
	}, sources, &http.Client{Timeout: config.FetchTimeout})

	modelName := config.GeminiModel
	if config.LLMProvider == llm.ProviderAnthropic {
		modelName = config.AnthropicModel
	}
	model, err := llm.New(config.LLMProvider, config.ModelAPIKey(), modelName,
		&http.Client{Timeout: config.LLMTimeout}, llm.NewArchive(config.LLMArchiveDir))
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}
	slog.Info("Model configured", "model", model.Name())

	sentiments, err := news.SentimentSetByName(config.SentimentSet)
	if err != nil {
		return err
	}

	articles := database.NewArticleStore(db)
	summaries := database.NewSummaryStore(db)
	metadata := database.NewMetadataStore(db)
	users := database.NewUserStore(db)
	reactions := database.NewReactionStore(db)
	comments := database.NewCommentStore(db)

	settings := pipeline.DefaultSettings()
	settings.LLMTimeout = config.LLMTimeout
	settings.Dedup = config.DedupReferencedPosts

	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		Fetcher:    fetcher,
		Identifier: llm.NewIdentifier(model),
		Generator:  llm.NewGenerator(model, sentiments),
		Articles:   articles,
		Summaries:  summaries,
		Metadata:   metadata,
		Filterer:   ranking.NewFilterer(config.MinScore),
		Ranker:     ranking.NewRanker(config.MaxPostsPerBatch),
		Calendar:   calendar,
		Sentiments: sentiments,
	}, settings)

	scheduler, err := tasks.NewScheduler(orchestrator, responseCache, config.Schedule, calendar.Location(), config.RunRetries)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	authService, err := auth.NewService(users, config.JWTSecret, auth.DefaultTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	handler := api.NewHandler(api.Deps{
		Articles:  articles,
		Summaries: summaries,
		Metadata:  metadata,
		Reactions: reactions,
		Comments:  comments,
		Auth:      authService,
		Scheduler: scheduler,
		Cache:     responseCache,
		Calendar:  calendar,
		Source:    fetcher,
		Model:     model,
		BaseURL:   config.BaseUrl,
		Version:   config.Version,
	})
	router := api.NewServer(handler, api.Options{
		APIAccessKey:  config.APIAccessKey,
		CORSOrigin:    config.CORSOrigin,
		RateLimit:     api.DefaultRateLimit,
		AuthRateLimit: api.DefaultAuthRateLimit,
	})

	// Manual generate requests hold the connection for a full pipeline run
	httpServer := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", config.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if config.Schedule != "" {
		if err := scheduler.EnqueueStartupRun(); err != nil {
			slog.Warn("Failed to enqueue startup run", "error", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return runErr
}
