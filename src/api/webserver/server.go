// Package webserver serves the operator API: leaderboard control, index
// maintenance and the recent event feed.
package webserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	sharedconfig "github.com/stake-plus/forum-triage/src/config"
	"github.com/stake-plus/forum-triage/src/triage"
	ranking "github.com/stake-plus/forum-triage/src/triage/leaderboard"
	"github.com/stake-plus/forum-triage/src/triage/similarity"
)

// Leaderboard is the scheduler the API controls.
type Leaderboard interface {
	ResolveTag(ctx context.Context, query string) (triage.TopicTag, error)
	Start(ctx context.Context, tag triage.TopicTag) bool
	Stop() bool
	Status() ranking.Status
}

// Index is the duplicate index the API inspects.
type Index interface {
	Stats() map[string]int
	Rebuild(ctx context.Context, src similarity.ThreadSource) (similarity.RebuildStats, error)
}

// AttributionCounter reports how many filed threads have a stored submitter.
type AttributionCounter interface {
	Count(ctx context.Context) (int64, error)
}

// EventLog reads back published events, newest first.
type EventLog interface {
	Recent(ctx context.Context, n int64) ([]triage.Event, error)
}

// Deps are the services behind the API. Nil members make their endpoints
// answer 503.
type Deps struct {
	Leaderboard  Leaderboard
	Index        Index
	Forum        similarity.ThreadSource
	Events       EventLog
	// Attributions is optional; without it index stats omit the count.
	Attributions AttributionCounter
}

// Server is an actions module running the HTTP API.
type Server struct {
	cfg    sharedconfig.APIConfig
	deps   Deps
	router *gin.Engine

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	srv    *http.Server
}

func New(cfg sharedconfig.APIConfig, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{cfg: cfg, deps: deps, ctx: context.Background()}
	r := gin.New()
	r.Use(gin.Recovery())
	s.attachRoutes(r)
	s.router = r
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Name() string { return "api" }

// baseContext outlives requests so that work started through the API keeps
// running after the response is sent.
func (s *Server) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("webserver: listen %s: %w", s.cfg.Listen, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.ctx, s.cancel, s.srv = runCtx, cancel, srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("webserver: serve: %v", err)
		}
	}()
	log.Printf("webserver: listening on %s", ln.Addr())
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv, cancel := s.srv, s.cancel
	s.srv, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if srv == nil {
		return
	}
	shutCtx, done := context.WithTimeout(ctx, 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("webserver: shutdown: %v", err)
	}
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"err": what + " is not enabled"})
}
