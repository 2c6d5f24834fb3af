package webserver

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/forum-triage/src/triage"
	ranking "github.com/stake-plus/forum-triage/src/triage/leaderboard"
)

type leaderboardHandler struct {
	deps Deps
	base func() context.Context
}

type tagView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h leaderboardHandler) Status(c *gin.Context) {
	if h.deps.Leaderboard == nil {
		unavailable(c, "leaderboard")
		return
	}
	st := h.deps.Leaderboard.Status()
	resp := gin.H{
		"running":          st.Running,
		"scope":            ranking.ScopeLabel(st.Tag),
		"interval_seconds": int(st.Interval.Seconds()),
		"runs":             st.Runs,
		"last_error":       st.LastError,
	}
	if st.Tag.ID != "" {
		resp["tag"] = tagView{ID: st.Tag.ID, Name: st.Tag.Name}
	}
	if !st.LastRun.IsZero() {
		resp["last_run"] = st.LastRun.UTC()
	}
	c.JSON(http.StatusOK, resp)
}

func (h leaderboardHandler) Start(c *gin.Context) {
	if h.deps.Leaderboard == nil {
		unavailable(c, "leaderboard")
		return
	}
	var req struct {
		Tag string `json:"tag"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	tag, err := h.deps.Leaderboard.ResolveTag(c.Request.Context(), req.Tag)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, triage.ErrConfiguration) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"err": err.Error()})
		return
	}

	if !h.deps.Leaderboard.Start(h.base(), tag) {
		c.JSON(http.StatusConflict, gin.H{"err": "leaderboard is already running"})
		return
	}
	log.Printf("webserver: %s started the leaderboard %s", c.GetString("sub"), ranking.ScopeLabel(tag))
	c.JSON(http.StatusOK, gin.H{"started": true, "scope": ranking.ScopeLabel(tag)})
}

func (h leaderboardHandler) Stop(c *gin.Context) {
	if h.deps.Leaderboard == nil {
		unavailable(c, "leaderboard")
		return
	}
	if !h.deps.Leaderboard.Stop() {
		c.JSON(http.StatusConflict, gin.H{"err": "leaderboard is not running"})
		return
	}
	log.Printf("webserver: %s stopped the leaderboard", c.GetString("sub"))
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}
