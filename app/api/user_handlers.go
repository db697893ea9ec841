package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/lysyi3m/bruinbrief/app/auth"
	"github.com/lysyi3m/bruinbrief/app/database"
	"github.com/lysyi3m/bruinbrief/app/news"
)

const (
	defaultCommentLimit = 50
	maxVoiceSeconds     = 60
)

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"success": false, "message": message}
	if err != nil {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Validation failed", err)
		return
	}

	user, token, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		badRequest(c, "Email already registered", nil)
		return
	case errors.Is(err, auth.ErrWeakPassword):
		badRequest(c, err.Error(), nil)
		return
	case err != nil:
		serverError(c, "Registration failed", "create_user", err)
		return
	}

	slog.Info("User registered", "user_id", user.ID)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user":    toUserResponse(user),
		"token":   token,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Validation failed", err)
		return
	}

	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid email or password"})
		return
	}
	if err != nil {
		serverError(c, "Login failed", "login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    toUserResponse(user),
		"token":   token,
	})
}

func (h *Handler) GetMe(c *gin.Context) {
	user, err := h.auth.GetUser(c.Request.Context(), currentClaims(c).UserID)
	if errors.Is(err, auth.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}
	if err != nil {
		serverError(c, "Failed to fetch user", "get_user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": toUserResponse(user)})
}

func (h *Handler) UpdateMe(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, "Invalid updates", err)
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		badRequest(c, "Invalid updates", err)
		return
	}
	for key := range fields {
		if key != "name" && key != "password" {
			badRequest(c, "Invalid updates", nil)
			return
		}
	}

	var update profileUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		badRequest(c, "Invalid updates", err)
		return
	}
	if err := binding.Validator.ValidateStruct(&update); err != nil {
		badRequest(c, "Validation failed", err)
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), currentClaims(c).UserID, update.Name, update.Password)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	case errors.Is(err, auth.ErrWeakPassword):
		badRequest(c, err.Error(), nil)
		return
	case err != nil:
		serverError(c, "Failed to update user", "update_user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": toUserResponse(user)})
}

func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

func (h *Handler) ListBookmarks(c *gin.Context) {
	ctx := c.Request.Context()

	ids, err := h.reactions.GetBookmarkedArticleIDs(ctx, currentClaims(c).UserID, parseLimit(c, maxListLimit))
	if err != nil {
		serverError(c, "Failed to fetch bookmarks", "get_bookmarks", err)
		return
	}

	articles, err := h.articles.GetArticlesByIDs(ctx, ids)
	if err != nil {
		serverError(c, "Failed to fetch bookmarks", "get_articles_by_ids", err)
		return
	}

	byID := make(map[string]news.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}
	ordered := make([]news.Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"articles": ordered,
		"count":    len(ordered),
	})
}

func (h *Handler) ToggleLike(c *gin.Context) {
	h.toggleReaction(c, database.ReactionLike)
}

func (h *Handler) ToggleBookmark(c *gin.Context) {
	h.toggleReaction(c, database.ReactionBookmark)
}

func (h *Handler) toggleReaction(c *gin.Context, kind database.ReactionKind) {
	ctx := c.Request.Context()
	articleID := c.Param("id")
	userID := currentClaims(c).UserID

	if !h.articleExists(c, articleID) {
		return
	}

	if _, err := h.reactions.ToggleReaction(ctx, articleID, userID, kind); err != nil {
		serverError(c, "Error toggling "+string(kind), "toggle_reaction", err)
		return
	}

	state, err := h.reactionState(ctx, articleID, userID)
	if err != nil {
		serverError(c, "Error toggling "+string(kind), "get_reactions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"liked":      state.Liked,
		"bookmarked": state.Bookmarked,
		"likes":      state.Likes,
		"bookmarks":  state.Bookmarks,
	})
}

func (h *Handler) reactionState(ctx context.Context, articleID, userID string) (reactionState, error) {
	var state reactionState

	counts, err := h.reactions.GetCounts(ctx, []string{articleID})
	if err != nil {
		return state, err
	}
	state.Likes = counts[articleID].Likes
	state.Bookmarks = counts[articleID].Bookmarks

	if userID == "" {
		return state, nil
	}

	mine, err := h.reactions.GetUserReactions(ctx, articleID, userID)
	if err != nil {
		return state, err
	}
	state.Liked = mine[database.ReactionLike]
	state.Bookmarked = mine[database.ReactionBookmark]
	return state, nil
}

// articleExists writes a 404 or 500 and returns false when the article cannot be used
func (h *Handler) articleExists(c *gin.Context, id string) bool {
	article, err := h.articles.GetArticleByID(c.Request.Context(), id)
	if err != nil {
		serverError(c, "Failed to fetch article", "get_article", err)
		return false
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Article not found"})
		return false
	}
	return true
}

func (h *Handler) ListComments(c *gin.Context) {
	articleID := c.Param("id")
	if !h.articleExists(c, articleID) {
		return
	}

	comments, err := h.comments.GetComments(c.Request.Context(), articleID, parseLimit(c, defaultCommentLimit))
	if err != nil {
		serverError(c, "Failed to fetch comments", "get_comments", err)
		return
	}

	out := make([]commentResponse, 0, len(comments))
	for _, comment := range comments {
		out = append(out, toCommentResponse(comment))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"comments": out,
		"count":    len(out),
	})
}

func (h *Handler) CreateComment(c *gin.Context) {
	ctx := c.Request.Context()
	articleID := c.Param("id")
	claims := currentClaims(c)

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Validation failed", err)
		return
	}

	comment, problem := buildComment(req)
	if problem != "" {
		badRequest(c, problem, nil)
		return
	}
	comment.ArticleID = articleID
	comment.UserID = claims.UserID

	if !h.articleExists(c, articleID) {
		return
	}

	user, err := h.auth.GetUser(ctx, claims.UserID)
	if errors.Is(err, auth.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}
	if err != nil {
		serverError(c, "Failed to create comment", "get_user", err)
		return
	}
	comment.UserName = user.Name

	if err := h.comments.CreateComment(ctx, comment); err != nil {
		serverError(c, "Failed to create comment", "create_comment", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "comment": toCommentResponse(*comment)})
}

// buildComment returns a user-facing message when the request is not a valid comment
func buildComment(req commentRequest) (*database.Comment, string) {
	switch database.CommentType(req.Type) {
	case "", database.CommentText:
		content := strings.TrimSpace(req.Content)
		if content == "" {
			return nil, "Comment content is required"
		}
		return &database.Comment{Type: database.CommentText, Content: content}, ""

	case database.CommentVoice:
		audio := req.AudioData
		if i := strings.Index(audio, ";base64,"); strings.HasPrefix(audio, "data:") && i >= 0 {
			audio = audio[i+len(";base64,"):]
		}
		if audio == "" {
			return nil, "Audio data is required for voice comments"
		}
		if _, err := base64.StdEncoding.DecodeString(audio); err != nil {
			return nil, "Audio data must be base64 encoded"
		}
		if req.AudioDuration <= 0 || req.AudioDuration > maxVoiceSeconds {
			return nil, "Voice comments must be between 0 and 60 seconds"
		}
		format := req.AudioFormat
		if format == "" {
			format = "webm"
		}
		return &database.Comment{
			Type:          database.CommentVoice,
			Content:       strings.TrimSpace(req.Content),
			AudioData:     audio,
			AudioDuration: req.AudioDuration,
			AudioFormat:   format,
		}, ""
	}

	return nil, "Comment type must be text or voice"
}

func (h *Handler) DeleteComment(c *gin.Context) {
	ctx := c.Request.Context()
	claims := currentClaims(c)

	comment, err := h.comments.GetCommentByID(ctx, c.Param("id"))
	if err != nil {
		serverError(c, "Failed to delete comment", "get_comment", err)
		return
	}
	if comment == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Comment not found"})
		return
	}

	if comment.UserID != claims.UserID && !claims.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Not allowed to delete this comment"})
		return
	}

	if err := h.comments.DeleteComment(ctx, comment.ID); err != nil {
		serverError(c, "Failed to delete comment", "delete_comment", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Comment deleted"})
}
