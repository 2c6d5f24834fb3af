package webserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/forum-triage/src/triage"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

type eventsHandler struct {
	deps Deps
}

type eventView struct {
	Kind        string    `json:"kind"`
	ThreadID    string    `json:"thread_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	URL         string    `json:"url,omitempty"`
	TagIDs      []string  `json:"tag_ids,omitempty"`
	SubmitterID string    `json:"submitter_id,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	At          time.Time `json:"at"`
}

func toView(ev triage.Event) eventView {
	return eventView{
		Kind:        ev.Kind,
		ThreadID:    ev.ThreadID,
		Title:       ev.Title,
		URL:         ev.URL,
		TagIDs:      ev.TagIDs,
		SubmitterID: ev.SubmitterID,
		Detail:      ev.Detail,
		At:          ev.At.UTC(),
	}
}

func (h eventsHandler) List(c *gin.Context) {
	if h.deps.Events == nil {
		unavailable(c, "event stream")
		return
	}

	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"err": "limit must be a positive integer"})
			return
		}
		if n > maxEventLimit {
			n = maxEventLimit
		}
		limit = n
	}

	events, err := h.deps.Events.Recent(c.Request.Context(), int64(limit))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"err": err.Error()})
		return
	}
	out := make([]eventView, 0, len(events))
	for _, ev := range events {
		out = append(out, toView(ev))
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}
