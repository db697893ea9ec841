package reddit

import "encoding/json"

// Sources configuration

type SourcesConfig struct {
	Communities []Community    `yaml:"communities"`
	Settings    SourceSettings `yaml:"settings"`
}

type Community struct {
	Name     string   `yaml:"name"`
	Listings []string `yaml:"listings"` // new, hot, rising, top
	Disabled bool     `yaml:"disabled"`
}

type SourceSettings struct {
	CommentsPerPost int `yaml:"comments_per_post"`
	ExtractTimeout  int `yaml:"extract_timeout"` // seconds
	ExtractMaxChars int `yaml:"extract_max_chars"`
}

// API payloads

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children *[]thing `json:"children"`
		After    string   `json:"after"`
	} `json:"data"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type postData struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Selftext      string  `json:"selftext"`
	Author        string  `json:"author"`
	Score         int     `json:"score"`
	NumComments   int     `json:"num_comments"`
	Permalink     string  `json:"permalink"`
	URL           string  `json:"url"`
	CreatedUTC    float64 `json:"created_utc"`
	LinkFlairText *string `json:"link_flair_text"`
	Subreddit     string  `json:"subreddit"`
	UpvoteRatio   float64 `json:"upvote_ratio"`
	IsSelf        bool    `json:"is_self"`
}

type commentData struct {
	Body       string  `json:"body"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}
