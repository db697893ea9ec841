package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/bruinbrief/app/news"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func postChild(id string, created time.Time, extra map[string]any) map[string]any {
	data := map[string]any{
		"id":           id,
		"title":        "Post " + id,
		"selftext":     "body " + id,
		"author":       "bruin_" + id,
		"score":        42,
		"num_comments": 7,
		"permalink":    "/r/ucla/comments/" + id + "/post/",
		"url":          "https://www.reddit.com/r/ucla/comments/" + id,
		"created_utc":  float64(created.Unix()),
		"subreddit":    "ucla",
		"upvote_ratio": 0.93,
		"is_self":      true,
	}
	for k, v := range extra {
		data[k] = v
	}
	return map[string]any{"kind": "t3", "data": data}
}

func listingBody(children ...map[string]any) []byte {
	if children == nil {
		children = []map[string]any{}
	}
	body, _ := json.Marshal(map[string]any{
		"kind": "Listing",
		"data": map[string]any{"children": children, "after": nil},
	})
	return body
}

func commentsBody(bodies ...string) []byte {
	children := []map[string]any{}
	for i, b := range bodies {
		children = append(children, map[string]any{
			"kind": "t1",
			"data": map[string]any{"body": b, "score": 10 - i, "created_utc": 1.0},
		})
	}
	children = append(children, map[string]any{"kind": "more", "data": map[string]any{"count": 3}})

	body, _ := json.Marshal([]map[string]any{
		{"kind": "Listing", "data": map[string]any{"children": []map[string]any{}}},
		{"kind": "Listing", "data": map[string]any{"children": children}},
	})
	return body
}

func singleCommunity(listings ...string) *SourcesConfig {
	config := &SourcesConfig{Communities: []Community{{Name: "ucla", Listings: listings}}}
	applyDefaults(config)
	return config
}

func newTestClient(server *httptest.Server, opts Options, sources *SourcesConfig) *Client {
	return NewClient(opts, sources, server.Client()).
		WithEndpoints(server.URL, server.URL+"/oauth", server.URL+"/api/v1/access_token").
		WithClock(func() time.Time { return fixedNow })
}

func TestFetchSinceMergesListingsAndFiltersByCheckpoint(t *testing.T) {
	checkpoint := float64(fixedNow.Add(-2 * time.Hour).Unix())

	mux := http.NewServeMux()
	mux.HandleFunc("/r/ucla/new.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "33" {
			t.Errorf("Expected limit 33, got %s", r.URL.Query().Get("limit"))
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("Expected user agent, got %s", r.Header.Get("User-Agent"))
		}
		w.Write(listingBody(
			postChild("a", fixedNow.Add(-time.Hour), nil),
			postChild("old", fixedNow.Add(-3*time.Hour), nil),
			postChild("edge", time.Unix(int64(checkpoint), 0), nil),
		))
	})
	mux.HandleFunc("/r/ucla/hot.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(listingBody(
			postChild("a", fixedNow.Add(-time.Hour), nil),
			postChild("b", fixedNow.Add(-30*time.Minute), map[string]any{"author": "", "link_flair_text": "Meme"}),
		))
	})
	mux.HandleFunc("/r/ucla/rising.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(listingBody())
	})
	mux.HandleFunc("/comments/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(commentsBody("first", "", "second", "third", "fourth", "fifth", "sixth"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server, Options{UserAgent: "test-agent", MaxPosts: 100}, singleCommunity())

	result, err := client.FetchSince(context.Background(), &checkpoint)
	if err != nil {
		t.Fatalf("FetchSince failed: %v", err)
	}

	if result.Count != 2 || len(result.Posts) != 2 {
		t.Fatalf("Expected 2 posts, got %d", result.Count)
	}
	if result.Posts[0].ID != "a" || result.Posts[1].ID != "b" {
		t.Errorf("Unexpected posts: %s, %s", result.Posts[0].ID, result.Posts[1].ID)
	}
	if result.ScrapedAt != float64(fixedNow.Unix()) {
		t.Errorf("Expected scrapedAt %v, got %v", float64(fixedNow.Unix()), result.ScrapedAt)
	}

	a := result.Posts[0]
	if a.Permalink != "https://reddit.com/r/ucla/comments/a/post/" {
		t.Errorf("Unexpected permalink: %s", a.Permalink)
	}
	if len(a.TopComments) != 5 {
		t.Fatalf("Expected 5 comments, got %d", len(a.TopComments))
	}
	if a.TopComments[0].Body != "first" || a.TopComments[1].Body != "second" {
		t.Errorf("Expected empty comment bodies skipped, got %+v", a.TopComments)
	}

	b := result.Posts[1]
	if b.Author != "[deleted]" {
		t.Errorf("Expected missing author to become [deleted], got %q", b.Author)
	}
	if b.Flair != "Meme" {
		t.Errorf("Expected flair, got %q", b.Flair)
	}
}

func TestFetchSinceFirstRunUsesBackfillWindow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/r/ucla/new.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(listingBody(
			postChild("recent", fixedNow.Add(-24*time.Hour), nil),
			postChild("ancient", fixedNow.Add(-30*24*time.Hour), nil),
		))
	})
	mux.HandleFunc("/comments/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(commentsBody())
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server, Options{MaxPosts: 9, Backfill: 7 * 24 * time.Hour}, singleCommunity("new"))

	result, err := client.FetchSince(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchSince failed: %v", err)
	}
	if result.Count != 1 || result.Posts[0].ID != "recent" {
		t.Errorf("Expected only the recent post, got %+v", result.Posts)
	}
	if len(result.Posts[0].TopComments) != 0 || result.Posts[0].TopComments == nil {
		t.Errorf("Expected empty non-nil comments, got %v", result.Posts[0].TopComments)
	}
}

func TestFetchSinceCommentFailureIsBestEffort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/r/ucla/new.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(listingBody(postChild("a", fixedNow.Add(-time.Minute), nil)))
	})
	mux.HandleFunc("/comments/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server, Options{MaxPosts: 3}, singleCommunity("new"))

	result, err := client.FetchSince(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchSince failed: %v", err)
	}
	if result.Count != 1 || len(result.Posts[0].TopComments) != 0 {
		t.Errorf("Expected post without comments, got %+v", result.Posts)
	}
}

func TestFetchSinceErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "down", http.StatusServiceUnavailable)
			},
			wantKind: "transport",
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>"))
			},
			wantKind: "malformed_response",
		},
		{
			name: "missing children",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"kind": "Listing", "data": {}}`))
			},
			wantKind: "malformed_response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := newTestClient(server, Options{MaxPosts: 3}, singleCommunity("new"))
			_, err := client.FetchSince(context.Background(), nil)
			if kind := news.ErrorKind(err); kind != tt.wantKind {
				t.Errorf("Expected %s error, got %s (%v)", tt.wantKind, kind, err)
			}
		})
	}
}

func TestFetchSinceTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(server, Options{MaxPosts: 3}, singleCommunity("new"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchSince(ctx, nil)

	var transportErr *news.TransportError
	if !errors.As(err, &transportErr) || !transportErr.Timeout {
		t.Errorf("Expected timeout TransportError, got %v", err)
	}
}

func TestFetchSinceUsesOAuthWhenConfigured(t *testing.T) {
	var tokenRequests atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			t.Errorf("Expected basic auth, got %q %q", user, pass)
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("Expected client_credentials grant, got %v", r.PostForm)
		}
		fmt.Fprint(w, `{"access_token": "tok", "token_type": "bearer", "expires_in": 86400}`)
	})
	mux.HandleFunc("/oauth/r/ucla/new.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Write(listingBody(postChild("a", fixedNow.Add(-time.Minute), nil)))
	})
	mux.HandleFunc("/oauth/comments/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(commentsBody("hi"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server, Options{ClientID: "id", ClientSecret: "secret", MaxPosts: 3}, singleCommunity("new"))

	for i := 0; i < 2; i++ {
		result, err := client.FetchSince(context.Background(), nil)
		if err != nil {
			t.Fatalf("FetchSince failed: %v", err)
		}
		if result.Count != 1 {
			t.Errorf("Expected 1 post, got %d", result.Count)
		}
	}

	if tokenRequests.Load() != 1 {
		t.Errorf("Expected token to be cached, got %d token requests", tokenRequests.Load())
	}
}

func TestFetchSinceExtractsLinkContent(t *testing.T) {
	mux := http.NewServeMux()
	var serverURL string
	mux.HandleFunc("/r/ucla/new.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(listingBody(
			postChild("link", fixedNow.Add(-time.Minute), map[string]any{
				"is_self": false, "selftext": "", "url": serverURL + "/story",
			}),
		))
	})
	mux.HandleFunc("/comments/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(commentsBody())
	})
	mux.HandleFunc("/story", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Story</title></head><body><article>
			<h1>Regents approve new housing</h1>
			<p>The UC Regents approved a new residence hall near Westwood on Thursday, adding hundreds of beds for students.</p>
			<p>Construction is expected to begin next spring and finish before the start of the next academic year, officials said.</p>
			<p>Students have long complained about the cost and availability of housing close to campus in Los Angeles.</p>
			<p>The project is part of a broader plan to guarantee housing for incoming first year and transfer students, and the university says more buildings are under review.</p>
		</article></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	serverURL = server.URL

	client := newTestClient(server, Options{MaxPosts: 3, ExtractLinkContent: true}, singleCommunity("new"))

	result, err := client.FetchSince(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchSince failed: %v", err)
	}
	if !strings.Contains(result.Posts[0].Body, "residence hall near Westwood") {
		t.Errorf("Expected extracted body, got %q", result.Posts[0].Body)
	}
}

func TestTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("Expected limit 5, got %s", r.URL.Query().Get("limit"))
		}
		w.Write(listingBody(postChild("a", fixedNow, nil), postChild("b", fixedNow, nil)))
	}))
	defer server.Close()

	client := newTestClient(server, Options{MaxPosts: 3}, singleCommunity("new"))

	count, err := client.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("TestConnection failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 posts, got %d", count)
	}
}
