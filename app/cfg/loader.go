package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath    string `long:"db-path" env:"DB_PATH" default:"./data/bruinbrief.db" description:"SQLite database file"`
	RedisAddr string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for response caching (optional)"`
	RedisDB   int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`

	// HTTP surface
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://news.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for pipeline triggers and system endpoints"`
	JWTSecret    string `long:"jwt-secret" env:"JWT_SECRET" description:"Secret used to sign user session tokens (required)" required:"true"`
	CORSOrigin   string `long:"cors-origin" env:"CORS_ORIGIN" default:"*" description:"Allowed CORS origin"`

	// Source fetching
	SourcesFile        string `long:"sources-file" env:"SOURCES_FILE" default:"./sources.yml" description:"YAML file listing communities to fetch"`
	RedditClientID     string `long:"reddit-client-id" env:"REDDIT_CLIENT_ID" description:"Reddit app client id (optional, anonymous access otherwise)"`
	RedditClientSecret string `long:"reddit-client-secret" env:"REDDIT_CLIENT_SECRET" description:"Reddit app client secret"`
	MaxPosts           int    `long:"max-posts" env:"MAX_POSTS" default:"100" description:"Posts requested per community, split across new/hot/rising"`
	BackfillDays       int    `long:"backfill-days" env:"BACKFILL_DAYS" default:"7" description:"How far back the first run looks when no checkpoint exists"`
	FetchTimeout       int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Source fetch timeout in seconds"`
	ExtractLinkContent bool   `long:"extract-link-content" env:"EXTRACT_LINK_CONTENT" description:"Extract readable text from linked pages of link posts"`

	// Model provider
	LLMProvider    string `long:"llm-provider" env:"LLM_PROVIDER" default:"gemini" choice:"gemini" choice:"anthropic" description:"Language model provider"`
	GeminiAPIKey   string `long:"gemini-api-key" env:"GEMINI_API_KEY" description:"Gemini API key"`
	GeminiModel    string `long:"gemini-model" env:"GEMINI_MODEL" default:"gemini-2.0-flash" description:"Gemini model name"`
	AnthropicKey   string `long:"anthropic-api-key" env:"ANTHROPIC_API_KEY" description:"Anthropic API key"`
	AnthropicModel string `long:"anthropic-model" env:"ANTHROPIC_MODEL" default:"claude-sonnet-4-5" description:"Anthropic model name"`
	LLMTimeout     int    `long:"llm-timeout" env:"LLM_TIMEOUT" default:"60" description:"Model call timeout in seconds"`
	LLMArchiveDir  string `long:"llm-archive-dir" env:"LLM_ARCHIVE_DIR" description:"Directory to archive model prompts and responses (optional)"`

	// Pipeline
	MinScore             int    `long:"min-score" env:"MIN_SCORE" default:"10" description:"Minimum post score to be considered"`
	MaxPostsPerBatch     int    `long:"max-posts-per-batch" env:"MAX_POSTS_PER_BATCH" default:"100" description:"Top-ranked posts sent to the opportunity identifier"`
	SentimentSet         string `long:"sentiment-set" env:"SENTIMENT_SET" default:"tone" choice:"tone" choice:"content_type" description:"Article sentiment vocabulary"`
	KeepDuplicates       bool   `long:"keep-duplicates" env:"KEEP_DUPLICATES" description:"Keep articles whose posts were all covered by earlier articles"`
	Schedule             string `long:"schedule" env:"SCHEDULE" default:"0 */6 * * *" description:"Cron schedule for pipeline runs (empty disables)"`
	RunRetries           int    `long:"run-retries" env:"RUN_RETRIES" default:"2" description:"Retries for a failed scheduled run"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"bruinbrief/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"CIVIC_TIMEZONE" default:"America/Los_Angeles" description:"Civic time zone for daily grouping"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses command-line flags and environment. It returns nil, nil when help was requested.
func Load() (*Cfg, error) {
	return Parse(nil)
}

// Parse is Load with explicit arguments; nil means os.Args.
func Parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:               raw.DBPath,
		RedisAddr:            raw.RedisAddr,
		RedisDB:              raw.RedisDB,
		Port:                 raw.Port,
		BaseUrl:              raw.BaseUrl,
		APIAccessKey:         raw.APIAccessKey,
		JWTSecret:            raw.JWTSecret,
		CORSOrigin:           raw.CORSOrigin,
		SourcesFile:          raw.SourcesFile,
		RedditClientID:       raw.RedditClientID,
		RedditClientSecret:   raw.RedditClientSecret,
		MaxPosts:             raw.MaxPosts,
		BackfillDays:         raw.BackfillDays,
		FetchTimeout:         time.Duration(raw.FetchTimeout) * time.Second,
		ExtractLinkContent:   raw.ExtractLinkContent,
		LLMProvider:          raw.LLMProvider,
		GeminiAPIKey:         raw.GeminiAPIKey,
		GeminiModel:          raw.GeminiModel,
		AnthropicKey:         raw.AnthropicKey,
		AnthropicModel:       raw.AnthropicModel,
		LLMTimeout:           time.Duration(raw.LLMTimeout) * time.Second,
		LLMArchiveDir:        raw.LLMArchiveDir,
		MinScore:             raw.MinScore,
		MaxPostsPerBatch:     raw.MaxPostsPerBatch,
		SentimentSet:         raw.SentimentSet,
		DedupReferencedPosts: !raw.KeepDuplicates,
		Schedule:             raw.Schedule,
		RunRetries:           raw.RunRetries,
		UserAgent:            raw.UserAgent,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Cfg) validate() error {
	positive := map[string]int{
		"max posts":           c.MaxPosts,
		"max posts per batch": c.MaxPostsPerBatch,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	nonNegative := map[string]int{
		"min score":     c.MinScore,
		"backfill days": c.BackfillDays,
		"run retries":   c.RunRetries,
	}
	for name, value := range nonNegative {
		if value < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}

	if c.FetchTimeout <= 0 || c.LLMTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	return nil
}

// ModelAPIKey returns the key for the configured provider.
func (c *Cfg) ModelAPIKey() string {
	if c.LLMProvider == "anthropic" {
		return c.AnthropicKey
	}
	return c.GeminiAPIKey
}
