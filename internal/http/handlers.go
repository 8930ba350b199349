package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sujalbistaa/askhub/internal/ai"
	"github.com/sujalbistaa/askhub/internal/models"
	"github.com/sujalbistaa/askhub/internal/query"
	"github.com/sujalbistaa/askhub/internal/vote"
	"github.com/sujalbistaa/askhub/internal/ws"
)

// --- Structs for request binding ---

type CreatePostInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Author  string `json:"author"`
	UserID  string `json:"userId"`
}

type ReplyInput struct {
	Content string `json:"content"`
	Author  string `json:"author"`
	UserID  string `json:"userId"`
}

type VoteInput struct {
	UserID string `json:"userId"`
}

type AIQuestionInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Env holds the handler dependencies. Notifier is an injected capability so
// tests can record events instead of opening sockets.
type Env struct {
	DB       *gorm.DB
	Notifier ws.Notifier
	AI       *ai.Assistant

	voteLocks *postLocks
}

func NewEnv(db *gorm.DB, notifier ws.Notifier, assistant *ai.Assistant) *Env {
	return &Env{
		DB:        db,
		Notifier:  notifier,
		AI:        assistant,
		voteLocks: newPostLocks(),
	}
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// internalError surfaces the fault's message to the client.
func internalError(c *gin.Context, err error) {
	log.Printf("Unexpected error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	fail(c, http.StatusInternalServerError, err.Error())
}

// findPost loads a post by the :id route param. On failure it writes the
// error response and returns false.
func (e *Env) findPost(c *gin.Context) (models.Post, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid post ID")
		return models.Post{}, false
	}

	var post models.Post
	if err := e.DB.First(&post, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "Post not found")
		} else {
			internalError(c, err)
		}
		return models.Post{}, false
	}
	return post, true
}

// --- Post commands ---

func (e *Env) CreatePost(c *gin.Context) {
	var input CreatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	// Validate what will actually be stored: construction trims, so a
	// whitespace-only field is an empty field.
	input.Title = strings.TrimSpace(input.Title)
	input.Content = strings.TrimSpace(input.Content)
	if input.Title == "" || input.Content == "" {
		fail(c, http.StatusBadRequest, "Title and content are required")
		return
	}
	if utf8.RuneCountInString(input.Title) > models.MaxTitleLength {
		fail(c, http.StatusBadRequest, "Title cannot exceed 200 characters")
		return
	}
	if input.UserID == "" {
		fail(c, http.StatusUnauthorized, "Authentication required to create a post")
		return
	}

	post := models.NewPost(input.Title, input.Content, input.Author)
	if err := e.DB.Create(&post).Error; err != nil {
		internalError(c, err)
		return
	}

	e.Notifier.Emit("newPost", post)

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": post})
}

func (e *Env) GetPosts(c *gin.Context) {
	mode := query.ParseSortMode(c.Query("sortBy"))
	filter := query.ParseAnsweredFilter(c.Query("filterAnswered"))

	posts, err := query.ListPosts(e.DB, mode, filter)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(posts), "data": posts})
}

func (e *Env) GetPost(c *gin.Context) {
	post, ok := e.findPost(c)
	if !ok {
		return
	}

	replies, err := query.RepliesForPost(e.DB, post.ID)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"post": post, "replies": replies},
	})
}

func (e *Env) SearchPosts(c *gin.Context) {
	posts, err := query.SearchPosts(e.DB, c.Param("keyword"))
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(posts), "data": posts})
}

// --- Reply command ---

func (e *Env) AddReply(c *gin.Context) {
	var input ReplyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	input.Content = strings.TrimSpace(input.Content)
	if input.Content == "" {
		fail(c, http.StatusBadRequest, "Reply content is required")
		return
	}
	if input.UserID == "" {
		fail(c, http.StatusUnauthorized, "Authentication required to post a reply")
		return
	}

	post, ok := e.findPost(c)
	if !ok {
		return
	}

	reply := models.NewReply(post.ID, input.Content, input.Author)
	if err := e.DB.Create(&reply).Error; err != nil {
		internalError(c, err)
		return
	}

	e.Notifier.Emit("newReply", gin.H{"postId": post.ID, "reply": reply})

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": reply})
}

// --- Vote commands ---

func (e *Env) UpvotePost(c *gin.Context) {
	e.votePost(c, vote.ApplyUpvote, "hasUpvoted", "User ID is required to upvote")
}

func (e *Env) DownvotePost(c *gin.Context) {
	e.votePost(c, vote.ApplyDownvote, "hasDownvoted", "User ID is required to downvote")
}

func (e *Env) votePost(c *gin.Context, apply func(*models.Post, string) (vote.Result, error), flagName, missingMsg string) {
	var input VoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.UserID == "" {
		fail(c, http.StatusBadRequest, missingMsg)
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid post ID")
		return
	}

	// The read-modify-write is one atomic unit per post.
	e.voteLocks.lock(uint(id))
	defer e.voteLocks.unlock(uint(id))

	var post models.Post
	var result vote.Result

	err = e.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, uint(id)).Error; err != nil {
			return err
		}
		res, err := apply(&post, input.UserID)
		if err != nil {
			return err
		}
		result = res
		return tx.Save(&post).Error
	})

	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			fail(c, http.StatusNotFound, "Post not found")
		case errors.Is(err, vote.ErrMissingUserID):
			fail(c, http.StatusBadRequest, missingMsg)
		default:
			internalError(c, err)
		}
		return
	}

	// Membership sets are not broadcast, only the new counter.
	e.Notifier.Emit("postUpvoted", gin.H{"postId": post.ID, "votes": post.Votes})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": result.Message,
		"data":    post,
		flagName:  result.Active,
	})
}

// --- Answered toggle ---

// ToggleAnswered flips isAnswered. It is a boolean negation, not a
// set-to-true, and any caller may invoke it.
func (e *Env) ToggleAnswered(c *gin.Context) {
	post, ok := e.findPost(c)
	if !ok {
		return
	}

	post.IsAnswered = !post.IsAnswered
	if err := e.DB.Save(&post).Error; err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": post})
}

// --- AI helpers (all fail soft) ---

func (e *Env) AISuggestions(c *gin.Context) {
	var input AIQuestionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.Title == "" || input.Content == "" {
		fail(c, http.StatusBadRequest, "Title and content are required")
		return
	}

	suggestions := e.AI.Suggestions(c.Request.Context(), input.Title, input.Content)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"suggestions": suggestions},
	})
}

func (e *Env) AISimilarPosts(c *gin.Context) {
	var input AIQuestionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.Title == "" {
		fail(c, http.StatusBadRequest, "Title is required")
		return
	}

	candidates, err := query.TopPostsByVotes(e.DB, 10)
	if err != nil {
		internalError(c, err)
		return
	}

	matches := e.AI.SimilarQuestions(c.Request.Context(), input.Title, input.Content, candidates)
	if matches == nil {
		matches = []models.Post{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(matches), "data": matches})
}

func (e *Env) SummarizePost(c *gin.Context) {
	post, ok := e.findPost(c)
	if !ok {
		return
	}

	replies, err := query.RepliesForPost(e.DB, post.ID)
	if err != nil {
		internalError(c, err)
		return
	}
	if len(replies) == 0 {
		fail(c, http.StatusBadRequest, "No replies to summarize")
		return
	}

	summary, err := e.AI.SummarizeThread(c.Request.Context(), post, replies)
	if err != nil {
		// Degrade to an empty summary rather than failing the request.
		log.Printf("ai: summary failed for post %d: %v", post.ID, err)
		summary = ""
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"postId": post.ID, "summary": summary},
	})
}

func (e *Env) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
