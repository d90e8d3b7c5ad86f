package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/wataru-taketani/feelcycle-hub-sub000/config"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/batch"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/mw"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/store"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/waitlist"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(ctx context.Context, cfg *config.ServerConfig, s store.Store, wl *waitlist.Service, coord *batch.Coordinator, runner *batch.Runner, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(ctx, s, wl, coord, runner, webpushOptions)

	limit := rate.Limit(10)
	if cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RateLimitPerSec)
	}
	rateLimiter := mw.RateLimiter(limit, 5)

	cacheTTL := 5 * time.Minute
	if cfg.CacheTTLSeconds > 0 {
		cacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/studios", caching, handler.GetStudios)
		api.GET("/lessons", caching, handler.GetLessons)

		api.POST("/batch/run", handler.TriggerRun)
		api.POST("/batch/continue", handler.ContinueRun)
		api.GET("/batch/progress", handler.GetProgress)

		api.POST("/waitlists", handler.CreateWaitlist)
		api.GET("/waitlists", handler.ListWaitlists)
		api.POST("/waitlists/pause", handler.PauseWaitlist)
		api.POST("/waitlists/resume", handler.ResumeWaitlist)
		api.POST("/waitlists/cancel", handler.CancelWaitlist)
		api.POST("/waitlists/complete", handler.CompleteWaitlist)

		api.GET("/vapid-key", handler.GetVAPIDPublicKey)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
	}

	return r
}
