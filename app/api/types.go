package api

import (
	"context"
	"time"

	"github.com/lysyi3m/bruinbrief/app/auth"
	"github.com/lysyi3m/bruinbrief/app/cache"
	"github.com/lysyi3m/bruinbrief/app/civic"
	"github.com/lysyi3m/bruinbrief/app/database"
	"github.com/lysyi3m/bruinbrief/app/feed"
	"github.com/lysyi3m/bruinbrief/app/llm"
	"github.com/lysyi3m/bruinbrief/app/news"
	"github.com/lysyi3m/bruinbrief/app/tasks"
)

type GeneratorInterface interface {
	Run(channel feed.Channel, articles []news.Article) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

// SourceTester checks that the post source is reachable
type SourceTester interface {
	TestConnection(ctx context.Context) (int, error)
}

type Deps struct {
	Articles  database.ArticleRepository
	Summaries database.SummaryRepository
	Metadata  database.MetadataRepository
	Reactions database.ReactionRepository
	Comments  database.CommentRepository
	Auth      *auth.Service
	Scheduler tasks.TaskSchedulerInterface
	Cache     cache.Cache
	Calendar  *civic.Calendar
	Source    SourceTester
	Model     llm.Model
	BaseURL   string
	Version   string
}

type Handler struct {
	articles  database.ArticleRepository
	summaries database.SummaryRepository
	metadata  database.MetadataRepository
	reactions database.ReactionRepository
	comments  database.CommentRepository
	auth      *auth.Service
	scheduler tasks.TaskSchedulerInterface
	cache     cache.Cache
	calendar  *civic.Calendar
	source    SourceTester
	model     llm.Model
	generator GeneratorInterface
	baseURL   string
	version   string
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toUserResponse(u *database.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

type commentAuthor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type commentResponse struct {
	ID            string        `json:"id"`
	ArticleID     string        `json:"article_id"`
	Type          string        `json:"type"`
	Content       string        `json:"content,omitempty"`
	AudioData     string        `json:"audio_data,omitempty"`
	AudioDuration float64       `json:"audio_duration,omitempty"`
	AudioFormat   string        `json:"audio_format,omitempty"`
	Author        commentAuthor `json:"author"`
	CreatedAt     time.Time     `json:"created_at"`
}

func toCommentResponse(c database.Comment) commentResponse {
	return commentResponse{
		ID:            c.ID,
		ArticleID:     c.ArticleID,
		Type:          string(c.Type),
		Content:       c.Content,
		AudioData:     c.AudioData,
		AudioDuration: c.AudioDuration,
		AudioFormat:   c.AudioFormat,
		Author:        commentAuthor{ID: c.UserID, Name: c.UserName},
		CreatedAt:     c.CreatedAt,
	}
}

type reactionState struct {
	Likes      int  `json:"likes"`
	Bookmarks  int  `json:"bookmarks"`
	Liked      bool `json:"liked"`
	Bookmarked bool `json:"bookmarked"`
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type profileUpdate struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=100"`
	Password *string `json:"password" binding:"omitempty,min=6"`
}

type commentRequest struct {
	Type          string  `json:"type" binding:"omitempty,oneof=text voice"`
	Content       string  `json:"content" binding:"max=1000"`
	AudioData     string  `json:"audio_data"`
	AudioDuration float64 `json:"audio_duration" binding:"gte=0,lte=60"`
	AudioFormat   string  `json:"audio_format" binding:"omitempty,oneof=webm ogg mp3 wav m4a"`
}
