package webserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) attachRoutes(r *gin.Engine) {
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	v1 := r.Group("/v1")
	v1.Use(JWTMiddleware([]byte(s.cfg.JWTSecret)))
	{
		lb := leaderboardHandler{deps: s.deps, base: s.baseContext}
		v1.GET("/leaderboard/status", lb.Status)
		v1.POST("/leaderboard/start", lb.Start)
		v1.POST("/leaderboard/stop", lb.Stop)

		ix := indexHandler{deps: s.deps}
		v1.GET("/index/stats", ix.Stats)
		v1.POST("/index/rebuild", RateLimitMiddleware(NewRateLimiter(2, time.Minute)), ix.Rebuild)

		ev := eventsHandler{deps: s.deps}
		v1.GET("/events", ev.List)
	}
}
