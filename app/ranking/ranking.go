package ranking

import (
	"slices"

	"github.com/lysyi3m/bruinbrief/app/news"
)

const (
	DefaultMinScore      = 10
	DefaultMaxPostsBatch = 100
)

var removedMarkers = map[string]bool{
	"[deleted]": true,
	"[removed]": true,
}

type Filterer struct {
	minScore int
}

func NewFilterer(minScore int) *Filterer {
	return &Filterer{minScore: minScore}
}

// Run keeps posts that still have a title and an author and clear the score floor.
func (f *Filterer) Run(posts []news.RawPost) []news.RawPost {
	valid := make([]news.RawPost, 0, len(posts))
	for _, post := range posts {
		if f.isValid(post) {
			valid = append(valid, post)
		}
	}
	return valid
}

func (f *Filterer) isValid(post news.RawPost) bool {
	if post.Title == "" || removedMarkers[post.Title] {
		return false
	}
	if removedMarkers[post.Author] {
		return false
	}
	return post.Score >= f.minScore
}

// EngagementScore weights a comment as two upvotes.
func EngagementScore(post news.RawPost) int {
	return post.Score + post.NumComments*2
}

type Ranker struct {
	maxPosts int
}

func NewRanker(maxPosts int) *Ranker {
	return &Ranker{maxPosts: maxPosts}
}

// Run scores every post and sorts by engagement, highest first. Ties keep fetch order.
func (r *Ranker) Run(posts []news.RawPost) []news.RankedPost {
	ranked := make([]news.RankedPost, len(posts))
	for i, post := range posts {
		ranked[i] = news.RankedPost{RawPost: post, EngagementScore: EngagementScore(post)}
	}
	slices.SortStableFunc(ranked, func(a, b news.RankedPost) int {
		return b.EngagementScore - a.EngagementScore
	})
	return ranked
}

// Top returns at most the configured number of leading posts.
func (r *Ranker) Top(ranked []news.RankedPost) []news.RankedPost {
	if r.maxPosts <= 0 || len(ranked) <= r.maxPosts {
		return ranked
	}
	return ranked[:r.maxPosts]
}
