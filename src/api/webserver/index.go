package webserver

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type indexHandler struct {
	deps Deps
}

func (h indexHandler) Stats(c *gin.Context) {
	if h.deps.Index == nil {
		unavailable(c, "index")
		return
	}
	stats := h.deps.Index.Stats()
	total := 0
	for _, n := range stats {
		total += n
	}
	out := gin.H{"tags": stats, "total": total}
	if h.deps.Attributions != nil {
		n, err := h.deps.Attributions.Count(c.Request.Context())
		if err != nil {
			log.Printf("webserver: count attributions: %v", err)
		} else {
			out["attributions"] = n
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h indexHandler) Rebuild(c *gin.Context) {
	if h.deps.Index == nil || h.deps.Forum == nil {
		unavailable(c, "index")
		return
	}
	stats, err := h.deps.Index.Rebuild(c.Request.Context(), h.deps.Forum)
	if err != nil {
		log.Printf("webserver: rebuild requested by %s failed: %v", c.GetString("sub"), err)
		c.JSON(http.StatusBadGateway, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"threads": stats.Threads,
		"entries": stats.Entries,
		"skipped": stats.Skipped,
	})
}
