package http

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/sujalbistaa/askhub/internal/ws"
)

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, env *Env, hub *ws.Hub) {
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	corsOrigin := os.Getenv("CORS_ORIGIN")
	if corsOrigin == "" {
		corsOrigin = "*" // Default to allow all for local dev
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	limiter := NewIPRateLimiter(rate.Limit(rateLimitRPS), rateLimitBurst)
	go func() {
		for {
			time.Sleep(10 * time.Minute)
			limiter.Evict()
		}
	}()

	api := router.Group("/api")
	{
		api.GET("/health", env.Health)

		// Search is registered before the :id routes for readability; gin
		// resolves the static segment first either way.
		api.GET("/posts/search/:keyword", env.SearchPosts)

		api.POST("/posts", RateLimitMiddleware(limiter), env.CreatePost)
		api.GET("/posts", env.GetPosts)
		api.GET("/posts/:id", env.GetPost)
		api.POST("/posts/:id/reply", env.AddReply)
		api.POST("/posts/:id/upvote", env.UpvotePost)
		api.POST("/posts/:id/downvote", env.DownvotePost)
		api.PATCH("/posts/:id/answer", env.ToggleAnswered)
		api.GET("/posts/:id/summary", env.SummarizePost)

		api.POST("/ai/suggestions", env.AISuggestions)
		api.POST("/ai/similar", env.AISimilarPosts)
	}

	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(hub, c.Writer, c.Request)
	})
}
