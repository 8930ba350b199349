package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/askhub/internal/ai"
	"github.com/sujalbistaa/askhub/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// recordingNotifier captures emitted events instead of broadcasting them.
type recordingNotifier struct {
	events []recordedEvent
}

type recordedEvent struct {
	name    string
	payload interface{}
}

func (r *recordingNotifier) Emit(event string, payload interface{}) {
	r.events = append(r.events, recordedEvent{name: event, payload: payload})
}

func (r *recordingNotifier) names() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.name
	}
	return out
}

func newTestEnv(t *testing.T) (*Env, *recordingNotifier) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Post{}, &models.Reply{}))

	notifier := &recordingNotifier{}
	return NewEnv(db, notifier, &ai.Assistant{}), notifier
}

// newTestRouter registers the API routes without the rate limiter or the
// websocket endpoint so tests exercise handlers directly.
func newTestRouter(env *Env) *gin.Engine {
	router := gin.New()
	api := router.Group("/api")
	api.GET("/health", env.Health)
	api.GET("/posts/search/:keyword", env.SearchPosts)
	api.POST("/posts", env.CreatePost)
	api.GET("/posts", env.GetPosts)
	api.GET("/posts/:id", env.GetPost)
	api.POST("/posts/:id/reply", env.AddReply)
	api.POST("/posts/:id/upvote", env.UpvotePost)
	api.POST("/posts/:id/downvote", env.DownvotePost)
	api.PATCH("/posts/:id/answer", env.ToggleAnswered)
	api.GET("/posts/:id/summary", env.SummarizePost)
	api.POST("/ai/suggestions", env.AISuggestions)
	api.POST("/ai/similar", env.AISimilarPosts)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func seedPost(t *testing.T, env *Env, title string, votes int, answered bool) models.Post {
	t.Helper()
	post := models.NewPost(title, "content of "+title, "seeder")
	post.Votes = votes
	post.IsAnswered = answered
	require.NoError(t, env.DB.Create(&post).Error)
	return post
}

// --- Create post ---

func TestCreatePost_Success(t *testing.T) {
	env, notifier := newTestEnv(t)
	router := newTestRouter(env)

	w := doJSON(t, router, "POST", "/api/posts", gin.H{
		"title":   "How to deploy?",
		"content": "Need help",
		"userId":  "u1",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "How to deploy?", data["title"])
	assert.EqualValues(t, 0, data["votes"])
	assert.Equal(t, false, data["isAnswered"])
	assert.Equal(t, "Anonymous", data["author"])

	require.Equal(t, []string{"newPost"}, notifier.names())
}

func TestCreatePost_AuthorKeptWhenGiven(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)

	w := doJSON(t, router, "POST", "/api/posts", gin.H{
		"title":   "t",
		"content": "c",
		"author":  "alice",
		"userId":  "u1",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "alice", data["author"])
}

func TestCreatePost_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   gin.H
		status int
	}{
		{"missing title", gin.H{"content": "c", "userId": "u1"}, http.StatusBadRequest},
		{"missing content", gin.H{"title": "t", "userId": "u1"}, http.StatusBadRequest},
		{"whitespace-only title", gin.H{"title": "   ", "content": "c", "userId": "u1"}, http.StatusBadRequest},
		{"whitespace-only content", gin.H{"title": "t", "content": " \t\n ", "userId": "u1"}, http.StatusBadRequest},
		{"missing userId", gin.H{"title": "t", "content": "c"}, http.StatusUnauthorized},
		{"title too long", gin.H{"title": strings.Repeat("x", 201), "content": "c", "userId": "u1"}, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, notifier := newTestEnv(t)
			router := newTestRouter(env)

			w := doJSON(t, router, "POST", "/api/posts", tc.body)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, false, decode(t, w)["success"])
			assert.Empty(t, notifier.events, "no event on rejected input")

			var count int64
			env.DB.Model(&models.Post{}).Count(&count)
			assert.Zero(t, count, "nothing persisted on rejected input")
		})
	}
}

// --- List / sort / filter ---

func TestGetPosts_RepliesSortScenario(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)

	none := seedPost(t, env, "none", 9, false)
	five := seedPost(t, env, "five", 0, false)
	two := seedPost(t, env, "two", 3, false)
	for i := 0; i < 5; i++ {
		reply := models.NewReply(five.ID, "r", "")
		require.NoError(t, env.DB.Create(&reply).Error)
	}
	for i := 0; i < 2; i++ {
		reply := models.NewReply(two.ID, "r", "")
		require.NoError(t, env.DB.Create(&reply).Error)
	}

	w := doJSON(t, router, "GET", "/api/posts?sortBy=replies", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 3, body["count"])

	data := body["data"].([]interface{})
	var order []string
	var counts []float64
	for _, item := range data {
		p := item.(map[string]interface{})
		order = append(order, p["title"].(string))
		counts = append(counts, p["replyCount"].(float64))
	}
	assert.Equal(t, []string{"five", "two", "none"}, order)
	assert.Equal(t, []float64{5, 2, 0}, counts)
	_ = none
}

func TestGetPosts_FilterAnswered(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)

	seedPost(t, env, "answered", 0, true)
	seedPost(t, env, "open", 0, false)

	w := doJSON(t, router, "GET", "/api/posts?filterAnswered=answered", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["count"])

	w = doJSON(t, router, "GET", "/api/posts?filterAnswered=unanswered", nil)
	body = decode(t, w)
	assert.EqualValues(t, 1, body["count"])

	w = doJSON(t, router, "GET", "/api/posts", nil)
	body = decode(t, w)
	assert.EqualValues(t, 2, body["count"])
}

// --- Get one ---

func TestGetPost_NotFound(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)

	w := doJSON(t, router, "GET", "/api/posts/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Post not found", decode(t, w)["message"])
}

func TestGetPost_WithRepliesOldestFirst(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)

	post := seedPost(t, env, "thread", 0, false)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, content := range []string{"first", "second"} {
		reply := models.NewReply(post.ID, content, "")
		reply.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, env.DB.Create(&reply).Error)
	}

	w := doJSON(t, router, "GET", fmt.Sprintf("/api/posts/%d", post.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)["data"].(map[string]interface{})
	replies := data["replies"].([]interface{})
	require.Len(t, replies, 2)
	assert.Equal(t, "first", replies[0].(map[string]interface{})["content"])
	assert.Equal(t, "second", replies[1].(map[string]interface{})["content"])
}

// --- Search ---

func TestSearchPosts_OrderedByVotes(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)

	seedPost(t, env, "Deploy with Docker", 1, false)
	seedPost(t, env, "DEPLOY to cloud", 8, false)
	seedPost(t, env, "Unrelated", 99, false)

	w := doJSON(t, router, "GET", "/api/posts/search/deploy", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 2, body["count"])
	data := body["data"].([]interface{})
	assert.Equal(t, "DEPLOY to cloud", data[0].(map[string]interface{})["title"])
}

// --- Replies ---

func TestAddReply_Success(t *testing.T) {
	env, notifier := newTestEnv(t)
	router := newTestRouter(env)
	post := seedPost(t, env, "q", 0, false)

	w := doJSON(t, router, "POST", fmt.Sprintf("/api/posts/%d/reply", post.ID), gin.H{
		"content": "try this",
		"userId":  "u1",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "try this", data["content"])
	assert.Equal(t, "Anonymous", data["author"])
	assert.EqualValues(t, post.ID, data["postId"])

	require.Equal(t, []string{"newReply"}, notifier.names())
}

func TestAddReply_NonexistentPostPersistsNothing(t *testing.T) {
	env, notifier := newTestEnv(t)
	router := newTestRouter(env)

	w := doJSON(t, router, "POST", "/api/posts/42/reply", gin.H{
		"content": "hello",
		"userId":  "u1",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, notifier.events)

	var count int64
	env.DB.Model(&models.Reply{}).Count(&count)
	assert.Zero(t, count)
}

func TestAddReply_ValidationErrors(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)
	post := seedPost(t, env, "q", 0, false)
	path := fmt.Sprintf("/api/posts/%d/reply", post.ID)

	w := doJSON(t, router, "POST", path, gin.H{"userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", path, gin.H{"content": "   ", "userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", path, gin.H{"content": "c"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var count int64
	env.DB.Model(&models.Reply{}).Count(&count)
	assert.Zero(t, count, "nothing persisted on rejected input")
}

// --- Votes ---

func upvote(t *testing.T, router *gin.Engine, postID uint, userID string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, "POST", fmt.Sprintf("/api/posts/%d/upvote", postID), gin.H{"userId": userID})
}

func downvote(t *testing.T, router *gin.Engine, postID uint, userID string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, "POST", fmt.Sprintf("/api/posts/%d/downvote", postID), gin.H{"userId": userID})
}

func TestUpvote_MissingUserID(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)
	post := seedPost(t, env, "q", 0, false)

	w := upvote(t, router, post.ID, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User ID is required to upvote", decode(t, w)["message"])
}

func TestUpvote_PostNotFound(t *testing.T) {
	env, notifier := newTestEnv(t)
	router := newTestRouter(env)

	w := upvote(t, router, 123, "u1")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, notifier.events)
}

func TestUpvote_ToggleTwiceRestoresState(t *testing.T) {
	env, notifier := newTestEnv(t)
	router := newTestRouter(env)
	post := seedPost(t, env, "q", 0, false)

	w := upvote(t, router, post.ID, "u1")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["hasUpvoted"])
	assert.EqualValues(t, 1, body["data"].(map[string]interface{})["votes"])

	w = upvote(t, router, post.ID, "u1")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, false, body["hasUpvoted"])
	assert.Equal(t, "Upvote removed", body["message"])
	assert.EqualValues(t, 0, body["data"].(map[string]interface{})["votes"])

	var stored models.Post
	require.NoError(t, env.DB.First(&stored, post.ID).Error)
	assert.Equal(t, 0, stored.Votes)
	assert.False(t, stored.UpvotedBy.Contains("u1"))

	assert.Equal(t, []string{"postUpvoted", "postUpvoted"}, notifier.names())
}

func TestDownvote_WhileUpvotedCrossesToMinusOne(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)
	post := seedPost(t, env, "q", 0, false)

	w := upvote(t, router, post.ID, "u1")
	require.Equal(t, http.StatusOK, w.Code)

	w = downvote(t, router, post.ID, "u1")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["hasDownvoted"])
	assert.EqualValues(t, -1, body["data"].(map[string]interface{})["votes"])

	var stored models.Post
	require.NoError(t, env.DB.First(&stored, post.ID).Error)
	assert.False(t, stored.UpvotedBy.Contains("u1"))
	assert.True(t, stored.DownvotedBy.Contains("u1"))
}

func TestVoteEvent_CarriesOnlyIDAndVotes(t *testing.T) {
	env, notifier := newTestEnv(t)
	router := newTestRouter(env)
	post := seedPost(t, env, "q", 0, false)

	w := upvote(t, router, post.ID, "u1")
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, notifier.events, 1)
	payload := notifier.events[0].payload.(gin.H)
	assert.Equal(t, post.ID, payload["postId"])
	assert.Equal(t, 1, payload["votes"])
	assert.Len(t, payload, 2, "membership sets are not broadcast")
}

// --- Answered toggle ---

func TestToggleAnswered_FlipsBothWays(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)
	post := seedPost(t, env, "q", 0, false)
	path := fmt.Sprintf("/api/posts/%d/answer", post.ID)

	w := doJSON(t, router, "PATCH", path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["data"].(map[string]interface{})["isAnswered"])

	w = doJSON(t, router, "PATCH", path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["data"].(map[string]interface{})["isAnswered"])
}

func TestToggleAnswered_NotFound(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)

	w := doJSON(t, router, "PATCH", "/api/posts/5/answer", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- AI helpers (assistant unconfigured in tests; everything fails soft) ---

func TestAISuggestions_FailsSoftWhenUnconfigured(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)

	w := doJSON(t, router, "POST", "/api/ai/suggestions", gin.H{"title": "t", "content": "c"})
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "", data["suggestions"])
}

func TestAISuggestions_RequiresTitleAndContent(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)

	w := doJSON(t, router, "POST", "/api/ai/suggestions", gin.H{"title": "t"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAISimilar_EmptyWhenUnconfigured(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)
	seedPost(t, env, "existing", 3, false)

	w := doJSON(t, router, "POST", "/api/ai/similar", gin.H{"title": "t", "content": "c"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 0, body["count"])
	assert.Empty(t, body["data"])
}

func TestSummary_NotFoundAndNoReplies(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)

	w := doJSON(t, router, "GET", "/api/posts/9/summary", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	post := seedPost(t, env, "quiet", 0, false)
	w = doJSON(t, router, "GET", fmt.Sprintf("/api/posts/%d/summary", post.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No replies to summarize", decode(t, w)["message"])
}

func TestSummary_FailsSoftWhenUnconfigured(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)
	post := seedPost(t, env, "busy", 0, false)
	reply := models.NewReply(post.ID, "an answer", "bob")
	require.NoError(t, env.DB.Create(&reply).Error)

	w := doJSON(t, router, "GET", fmt.Sprintf("/api/posts/%d/summary", post.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "", data["summary"])
}

// --- Health ---

func TestHealth(t *testing.T) {
	env, _ := newTestEnv(t)
	router := newTestRouter(env)

	w := doJSON(t, router, "GET", "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}
