package webserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	sharedconfig "github.com/stake-plus/forum-triage/src/config"
	"github.com/stake-plus/forum-triage/src/data"
	"github.com/stake-plus/forum-triage/src/triage"
	ranking "github.com/stake-plus/forum-triage/src/triage/leaderboard"
	"github.com/stake-plus/forum-triage/src/triage/similarity"
	"github.com/stake-plus/forum-triage/src/triage/triagetest"
)

const testSecret = "test-secret"

type fixture struct {
	server *Server
	agg    *ranking.Aggregator
	index  *similarity.Index
	forum  *triagetest.Forum
	events *data.EventStream
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	forum := triagetest.NewForum(triage.TopicTag{ID: "t1", Name: "Keynote"})
	forum.AddThread(
		triage.Thread{ID: "th-1", Name: "Is the keynote recorded?", TagIDs: []string{"t1"}},
		triage.Message{Content: "**Asked by alice**", AuthorID: triagetest.BotID},
	)
	agg := ranking.New(forum, forum, ranking.Config{ChannelID: "board", Interval: time.Hour})
	t.Cleanup(func() { agg.Stop() })

	f := &fixture{
		agg:    agg,
		index:  similarity.NewIndex(),
		forum:  forum,
		events: data.NewEventStream(rdb),
	}
	f.server = New(sharedconfig.APIConfig{JWTSecret: testSecret}, Deps{
		Leaderboard: agg,
		Index:       f.index,
		Forum:       forum,
		Events:      f.events,
	})

	token, err := IssueToken([]byte(testSecret), "ops", time.Hour)
	require.NoError(t, err)
	f.token = token
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthzNeedsNoToken(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTRequired(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/index/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.token, _ = IssueToken([]byte("other-secret"), "ops", time.Hour)
	rec, _ = f.do(t, http.MethodGet, "/v1/index/stats", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	f.token = expired
	rec, _ = f.do(t, http.MethodGet, "/v1/index/stats", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIssueTokenRejectsEmptySecret(t *testing.T) {
	_, err := IssueToken(nil, "ops", time.Hour)
	assert.Error(t, err)
}

func TestLeaderboardLifecycle(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/v1/leaderboard/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["running"])
	assert.Equal(t, "of all time", body["scope"])

	rec, _ = f.do(t, http.MethodPost, "/v1/leaderboard/stop", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/v1/leaderboard/start", `{"tag":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodPost, "/v1/leaderboard/start", `{"tag":"keynote"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "for Keynote", body["scope"])

	rec, _ = f.do(t, http.MethodPost, "/v1/leaderboard/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Eventually(t, func() bool { return f.agg.Status().Runs > 0 }, time.Second, 10*time.Millisecond)
	rec, body = f.do(t, http.MethodGet, "/v1/leaderboard/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(3600), body["interval_seconds"])
	assert.Equal(t, map[string]interface{}{"id": "t1", "name": "Keynote"}, body["tag"])

	rec, _ = f.do(t, http.MethodPost, "/v1/leaderboard/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.agg.Status().Running)
}

func TestLeaderboardSurvivesRequestContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/v1/leaderboard/start", strings.NewReader(`{}`)).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	cancel()

	require.Eventually(t, func() bool { return f.agg.Status().Runs > 0 }, time.Second, 10*time.Millisecond)
	assert.True(t, f.agg.Status().Running)
}

func TestIndexEndpoints(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/v1/index/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["total"])

	rec, body = f.do(t, http.MethodPost, "/v1/index/rebuild", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["threads"])
	assert.Equal(t, float64(1), body["entries"])
	assert.Equal(t, 1, f.index.Len("t1"))

	rec, body = f.do(t, http.MethodGet, "/v1/index/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"t1": float64(1)}, body["tags"])

	f.do(t, http.MethodPost, "/v1/index/rebuild", "")
	rec, _ = f.do(t, http.MethodPost, "/v1/index/rebuild", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestIndexStatsReportAttributions(t *testing.T) {
	f := newFixture(t)
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, data.Migrate(db))
	store := data.NewAttributionStore(db)
	require.NoError(t, store.RecordAttribution(context.Background(), triage.Attribution{
		ThreadID: "th-1", SubmitterID: "u1", SubmitterHandle: "alice", Question: "Is the keynote recorded?",
	}))

	f.server = New(sharedconfig.APIConfig{JWTSecret: testSecret}, Deps{Index: f.index, Attributions: store})
	rec, body := f.do(t, http.MethodGet, "/v1/index/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["attributions"])

	rec, body = newFixture(t).do(t, http.MethodGet, "/v1/index/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, body, "attributions")
}

func TestEventsEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.events.Publish(ctx, triage.Event{Kind: triage.EventThreadFiled, ThreadID: "th-1", TagIDs: []string{"t1"}, At: at}))
	require.NoError(t, f.events.Publish(ctx, triage.Event{Kind: triage.EventLeaderboardUpdated, Detail: "1 threads ranked", At: at}))

	rec, body := f.do(t, http.MethodGet, "/v1/events?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := body["events"].([]interface{})
	require.Len(t, events, 1)
	assert.Equal(t, "leaderboard_updated", events[0].(map[string]interface{})["kind"])

	rec, body = f.do(t, http.MethodGet, "/v1/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["events"], 2)

	rec, _ = f.do(t, http.MethodGet, "/v1/events?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissingDepsAnswerUnavailable(t *testing.T) {
	s := New(sharedconfig.APIConfig{JWTSecret: testSecret}, Deps{})
	token, err := IssueToken([]byte(testSecret), "ops", 0)
	require.NoError(t, err)

	for _, path := range []string{"/v1/leaderboard/status", "/v1/index/stats", "/v1/events"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(time.Minute)
	assert.True(t, rl.allow("a"))
}
