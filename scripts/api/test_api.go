// Minimal end-to-end check of a running forum-triage operator API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/stake-plus/forum-triage/src/api/webserver"
	"github.com/stake-plus/forum-triage/src/data"
	"github.com/stake-plus/forum-triage/src/triage"
)

var (
	baseURL   = getenv("API_URL", "http://localhost:8080")
	redisURL  = getenv("REDIS_URL", "redis://localhost:6379/0")
	jwtSecret = os.Getenv("JWT_SECRET")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must match the server's secret")
	}
	token, err := webserver.IssueToken([]byte(jwtSecret), "api-smoke", 5*time.Minute)
	if err != nil {
		log.Fatalf("token: %v", err)
	}

	doReq("GET", "/healthz", "", nil, nil, http.StatusOK)
	doReq("GET", "/v1/index/stats", "", nil, nil, http.StatusUnauthorized)

	var stats struct {
		Tags  map[string]int
		Total int
	}
	doReq("GET", "/v1/index/stats", token, nil, &stats, http.StatusOK)
	fmt.Printf("index: %d entries across %d tags\n", stats.Total, len(stats.Tags))

	var status struct {
		Running bool
		Scope   string
	}
	doReq("GET", "/v1/leaderboard/status", token, nil, &status, http.StatusOK)
	fmt.Printf("leaderboard: running=%v scope=%q\n", status.Running, status.Scope)

	threadID := publishMarker()
	checkEvents(token, threadID)

	fmt.Println("✓ all endpoints passed")
}

// publishMarker appends a synthetic event straight to the stream the server reads.
func publishMarker() string {
	rdb, err := data.NewRedis(redisURL)
	if err != nil {
		log.Fatalf("redis url: %v", err)
	}
	defer rdb.Close()

	threadID := "smoke-" + uuid.NewString()
	err = data.NewEventStream(rdb).Publish(context.Background(), triage.Event{
		Kind:     "smoke_test",
		ThreadID: threadID,
		Detail:   "api smoke test",
	})
	if err != nil {
		log.Fatalf("publish: %v", err)
	}
	return threadID
}

func checkEvents(token, threadID string) {
	var resp struct {
		Events []struct {
			Kind     string `json:"kind"`
			ThreadID string `json:"thread_id"`
		}
	}
	doReq("GET", "/v1/events?limit=10", token, nil, &resp, http.StatusOK)
	for _, ev := range resp.Events {
		if ev.ThreadID == threadID {
			return
		}
	}
	log.Fatal("events: published marker not found")
}

func doReq(method, path, token string, body, out any, want int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, path, err)
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatalf("%s %s: want %d got %d", method, path, want, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}
