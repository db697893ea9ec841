package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath    string
	RedisAddr string
	RedisDB   int

	// HTTP surface
	Port         string
	BaseUrl      string
	APIAccessKey string
	JWTSecret    string
	CORSOrigin   string

	// Source fetching
	SourcesFile        string
	RedditClientID     string
	RedditClientSecret string
	MaxPosts           int
	BackfillDays       int
	FetchTimeout       time.Duration
	ExtractLinkContent bool

	// Model provider
	LLMProvider    string
	GeminiAPIKey   string
	GeminiModel    string
	AnthropicKey   string
	AnthropicModel string
	LLMTimeout     time.Duration
	LLMArchiveDir  string

	// Pipeline
	MinScore             int
	MaxPostsPerBatch     int
	SentimentSet         string
	DedupReferencedPosts bool
	Schedule             string
	RunRetries           int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
