package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/bruinbrief/app/news"
)

const (
	PublicURL     = "https://www.reddit.com"
	OAuthURL      = "https://oauth.reddit.com"
	TokenURL      = "https://www.reddit.com/api/v1/access_token"
	PermalinkRoot = "https://reddit.com"

	deletedAuthor = "[deleted]"
)

type Options struct {
	ClientID           string
	ClientSecret       string
	UserAgent          string
	MaxPosts           int
	Backfill           time.Duration
	ExtractLinkContent bool
}

// Client fetches recent posts from the configured communities
type Client struct {
	httpClient *http.Client
	opts       Options
	sources    *SourcesConfig
	extractor  *ContentExtractor
	now        func() time.Time

	publicURL string
	oauthURL  string
	tokenURL  string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(opts Options, sources *SourcesConfig, httpClient *http.Client) *Client {
	if sources == nil {
		sources = DefaultSources()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "bruinbrief/1.0"
	}

	c := &Client{
		httpClient: httpClient,
		opts:       opts,
		sources:    sources,
		now:        time.Now,
		publicURL:  PublicURL,
		oauthURL:   OAuthURL,
		tokenURL:   TokenURL,
	}

	if opts.ExtractLinkContent {
		extractClient := &http.Client{Timeout: time.Duration(sources.Settings.ExtractTimeout) * time.Second}
		c.extractor = NewContentExtractor(extractClient, opts.UserAgent, sources.Settings.ExtractMaxChars)
	}

	return c
}

// WithEndpoints overrides the API roots
func (c *Client) WithEndpoints(publicURL, oauthURL, tokenURL string) *Client {
	c.publicURL = strings.TrimSuffix(publicURL, "/")
	c.oauthURL = strings.TrimSuffix(oauthURL, "/")
	c.tokenURL = tokenURL
	return c
}

func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// FetchSince returns posts created strictly after checkpoint. Without a
// checkpoint, posts from the backfill window are returned.
func (c *Client) FetchSince(ctx context.Context, checkpoint *float64) (news.FetchResult, error) {
	startTime := c.now()
	scrapedAt := float64(startTime.UnixMilli()) / 1000

	var cutoff float64
	if checkpoint != nil {
		cutoff = *checkpoint
	} else if c.opts.Backfill > 0 {
		cutoff = float64(startTime.Add(-c.opts.Backfill).Unix())
	}

	limit := c.opts.MaxPosts / 3
	if limit < 1 {
		limit = 1
	}

	seen := make(map[string]bool)
	var posts []news.RawPost

	for _, community := range c.sources.EnabledCommunities() {
		for _, listingName := range community.Listings {
			batch, err := c.fetchListing(ctx, community.Name, listingName, limit)
			if err != nil {
				return news.FetchResult{}, err
			}

			for _, post := range batch {
				if seen[post.ID] || post.CreatedUTC <= cutoff {
					continue
				}
				seen[post.ID] = true
				posts = append(posts, post)
			}
		}
	}

	for i := range posts {
		c.enrich(ctx, &posts[i])
	}

	slog.Info("Posts fetched", "count", len(posts), "cutoff", cutoff, "duration", time.Since(startTime))

	return news.FetchResult{
		Posts:     posts,
		Count:     len(posts),
		ScrapedAt: scrapedAt,
	}, nil
}

// TestConnection performs a single small listing request
func (c *Client) TestConnection(ctx context.Context) (int, error) {
	communities := c.sources.EnabledCommunities()
	if len(communities) == 0 {
		return 0, fmt.Errorf("no communities configured")
	}

	posts, err := c.fetchListing(ctx, communities[0].Name, "new", 5)
	if err != nil {
		return 0, err
	}
	return len(posts), nil
}

func (c *Client) fetchListing(ctx context.Context, community, listingName string, limit int) ([]news.RawPost, error) {
	path := fmt.Sprintf("/r/%s/%s.json?limit=%d&raw_json=1", url.PathEscape(community), listingName, limit)

	var l listing
	if err := c.getJSON(ctx, path, &l); err != nil {
		return nil, err
	}
	if l.Data.Children == nil {
		return nil, &news.MalformedResponseError{Op: "reddit listing", Err: errors.New("missing data.children")}
	}

	posts := make([]news.RawPost, 0, len(*l.Data.Children))
	for _, child := range *l.Data.Children {
		if child.Kind != "t3" {
			continue
		}

		var data postData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			return nil, &news.MalformedResponseError{Op: "reddit listing", Err: err}
		}
		posts = append(posts, toRawPost(data))
	}

	return posts, nil
}

func toRawPost(data postData) news.RawPost {
	author := data.Author
	if author == "" {
		author = deletedAuthor
	}

	var flair string
	if data.LinkFlairText != nil {
		flair = *data.LinkFlairText
	}

	return news.RawPost{
		ID:          data.ID,
		Title:       data.Title,
		Body:        data.Selftext,
		Author:      author,
		Score:       data.Score,
		NumComments: data.NumComments,
		Permalink:   PermalinkRoot + data.Permalink,
		URL:         data.URL,
		CreatedUTC:  data.CreatedUTC,
		Flair:       flair,
		Subreddit:   data.Subreddit,
		UpvoteRatio: data.UpvoteRatio,
		IsSelf:      data.IsSelf,
		TopComments: []news.Comment{},
	}
}

// enrich adds top comments and linked page text. Failures leave the post as is.
func (c *Client) enrich(ctx context.Context, post *news.RawPost) {
	if c.sources.Settings.CommentsPerPost > 0 {
		comments, err := c.fetchComments(ctx, post.ID, c.sources.Settings.CommentsPerPost)
		if err != nil {
			slog.Warn("Failed to fetch comments", "post", post.ID, "error", err)
		} else {
			post.TopComments = comments
		}
	}

	if c.extractor != nil && !post.IsSelf && post.Body == "" && post.URL != "" {
		text, err := c.extractor.Extract(ctx, post.URL)
		if err != nil {
			slog.Debug("Link content extraction skipped", "post", post.ID, "url", post.URL, "error", err)
			return
		}
		post.Body = text
	}
}

func (c *Client) fetchComments(ctx context.Context, postID string, limit int) ([]news.Comment, error) {
	path := fmt.Sprintf("/comments/%s.json?limit=%d&depth=1&sort=top&raw_json=1", url.PathEscape(postID), limit)

	var listings []listing
	if err := c.getJSON(ctx, path, &listings); err != nil {
		return nil, err
	}
	if len(listings) < 2 || listings[1].Data.Children == nil {
		return nil, &news.MalformedResponseError{Op: "reddit comments", Err: errors.New("missing comment listing")}
	}

	comments := []news.Comment{}
	for _, child := range *listings[1].Data.Children {
		if len(comments) == limit {
			break
		}
		if child.Kind != "t1" {
			continue
		}

		var data commentData
		if err := json.Unmarshal(child.Data, &data); err != nil {
			continue
		}
		if data.Body == "" {
			continue
		}
		comments = append(comments, news.Comment{Body: data.Body, Score: data.Score, CreatedUTC: data.CreatedUTC})
	}

	return comments, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	base := c.publicURL
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		base = c.oauthURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return news.NewTransportError("reddit", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.resetToken()
	}
	if resp.StatusCode >= 400 {
		return &news.TransportError{Op: "reddit", Err: fmt.Errorf("GET %s returned status %d", path, resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return news.NewTransportError("reddit", fmt.Errorf("failed to read response: %w", err))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &news.MalformedResponseError{Op: "reddit", Err: fmt.Errorf("failed to decode %s: %w", path, err)}
	}

	return nil
}

// accessToken returns an app-only OAuth token, or "" for anonymous access
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.opts.ClientID == "" || c.opts.ClientSecret == "" {
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.opts.ClientID, c.opts.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", news.NewTransportError("reddit auth", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &news.TransportError{Op: "reddit auth", Err: fmt.Errorf("token endpoint returned status %d", resp.StatusCode)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &news.MalformedResponseError{Op: "reddit auth", Err: err}
	}
	if tr.AccessToken == "" {
		return "", &news.MalformedResponseError{Op: "reddit auth", Err: fmt.Errorf("no access token (error %q)", tr.Error)}
	}

	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	c.token = tr.AccessToken
	c.tokenExpiry = c.now().Add(expiresIn - time.Minute)

	slog.Debug("Obtained reddit access token", "expires_in", expiresIn)
	return c.token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}
