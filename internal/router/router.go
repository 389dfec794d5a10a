// server/internal/router/router.go
package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/config"
	"github.com/Freedomtukun/free-yoga/internal/handlers"
	"github.com/Freedomtukun/free-yoga/internal/metrics"
	"github.com/Freedomtukun/free-yoga/internal/practice"
	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// Deps are the services the HTTP API is built on.
type Deps struct {
	Content    handlers.ContentStore
	Records    handlers.RecordStore
	Manager    *practice.Manager
	Broker     *practice.Broker
	Comparator metrics.Comparator
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.Header("Retry-After", fmt.Sprintf("%.0f", time.Until(info.ResetTime).Seconds()))
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Try again later."})
}

func Setup(log *zap.Logger, cfg config.ServerConfig, deps Deps) *gin.Engine {
	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400,
	})
	router.Use(sessions.Sessions("freeyoga", store))
	router.Use(Identity(cfg.UserHeader))

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			c.Abort()
			return
		}
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	// Handlers and routes
	contentHandler := handlers.NewContentHandler(log, deps.Content, deps.Records, deps.Comparator)
	practiceHandler := handlers.NewPracticeHandler(log, deps.Content, deps.Manager, deps.Broker)
	historyHandler := handlers.NewHistoryHandler(log, deps.Records)

	limit := cfg.RateLimit
	if limit == 0 {
		limit = 10
	}
	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: limit,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "activeSessions": deps.Manager.Active()})
	})

	api := router.Group("/api")
	{
		poseRoutes := api.Group("/poses")
		{
			poseRoutes.GET("", contentHandler.ListPoses)
			poseRoutes.GET("/:id", contentHandler.GetPose)
			poseRoutes.POST("/:id/analyze", contentHandler.AnalyzePose)
		}

		sequenceRoutes := api.Group("/sequences")
		{
			sequenceRoutes.GET("", contentHandler.ListSequences)
			sequenceRoutes.GET("/:id", contentHandler.GetSequence)
			sequenceRoutes.POST("/:id/analyze", contentHandler.AnalyzeSequencePose)
			sequenceRoutes.POST("/:id/complete", contentHandler.CompleteSequence)
			sequenceRoutes.POST("/:id/practice", limiter, practiceHandler.Start)
		}

		practiceRoutes := api.Group("/practice")
		{
			practiceRoutes.GET("/current", practiceHandler.Current)
			practiceRoutes.GET("/:sid", practiceHandler.Get)
			practiceRoutes.POST("/:sid/keypoints", practiceHandler.Keypoints)
			practiceRoutes.POST("/:sid/pause", practiceHandler.Pause)
			practiceRoutes.POST("/:sid/resume", practiceHandler.Resume)
			practiceRoutes.POST("/:sid/skip", practiceHandler.Skip)
			practiceRoutes.POST("/:sid/exit", practiceHandler.Exit)
			practiceRoutes.GET("/:sid/summary", practiceHandler.Summary)
			practiceRoutes.GET("/:sid/events", practiceHandler.Events)
		}

		historyRoutes := api.Group("/history")
		historyRoutes.Use(UserRequired(log))
		{
			historyRoutes.GET("", historyHandler.Attempts)
			historyRoutes.GET("/results", historyHandler.Results)
			historyRoutes.GET("/poses", historyHandler.Poses)
			historyRoutes.GET("/chart", historyHandler.Chart)
		}
	}

	return router
}
