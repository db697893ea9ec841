package database

import (
	"time"
)

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string // user, admin
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}

type ReactionKind string

const (
	ReactionLike     ReactionKind = "like"
	ReactionBookmark ReactionKind = "bookmark"
)

type ReactionCounts struct {
	Likes     int
	Bookmarks int
}

type CommentType string

const (
	CommentText  CommentType = "text"
	CommentVoice CommentType = "voice"
)

type Comment struct {
	ID            string
	ArticleID     string
	UserID        string
	UserName      string // joined from users on read
	Type          CommentType
	Content       string
	AudioData     string // base64
	AudioDuration float64
	AudioFormat   string
	CreatedAt     time.Time
}

const (
	checkpointKey = "last_scraped_timestamp"
	statsKey      = "processing_stats"
)
