// Package integration verifies the assembled HTTP stack: middleware chain,
// handlers, service, resolver, and store wired together the way cmd/notesd
// wires them, using the in-memory store in place of Redis.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gitter-badger/ashaw-notes/internal/notes"
	"github.com/gitter-badger/ashaw-notes/internal/search/resolver"
	"github.com/gitter-badger/ashaw-notes/internal/server"
	"github.com/gitter-badger/ashaw-notes/internal/store"
	"github.com/gitter-badger/ashaw-notes/pkg/health"
	"github.com/gitter-badger/ashaw-notes/pkg/metrics"
	"github.com/gitter-badger/ashaw-notes/pkg/middleware"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.NewMemory()
	m := metrics.NewWith(prometheus.NewRegistry())
	svc := notes.NewService(notes.NewRepository(st), nil, nil, m, true)
	h := server.New(svc, resolver.New(st), nil, nil, m, 0)

	checker := health.NewChecker()
	checker.Register("store", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(5 * time.Second)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	ts := httptest.NewServer(chain)
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, url, nil)
	} else {
		req, err = http.NewRequest(method, url, strings.NewReader(body))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return resp, raw
}

func TestNoteLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	// Save three notes.
	for _, body := range []string{
		`{"timestamp": 100, "text": "buy milk #errand"}`,
		`{"timestamp": 200, "text": "write code"}`,
		`{"timestamp": 300, "text": "buy bread #errand"}`,
	} {
		resp, raw := do(t, http.MethodPost, ts.URL+"/api/v1/notes", body)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("save: status %d body %s", resp.StatusCode, raw)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Error("response missing X-Request-ID header")
		}
	}

	// Intersection search, ascending order.
	resp, raw := do(t, http.MethodGet, ts.URL+"/api/v1/search?q=buy", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: status %d", resp.StatusCode)
	}
	var searchResp struct {
		Count   int          `json:"count"`
		Results []notes.Note `json:"results"`
	}
	if err := json.Unmarshal(raw, &searchResp); err != nil {
		t.Fatalf("decoding %s: %v", raw, err)
	}
	if searchResp.Count != 2 || searchResp.Results[0].Timestamp != 100 || searchResp.Results[1].Timestamp != 300 {
		t.Fatalf("search results = %+v", searchResp)
	}

	// Exclusion-only search.
	resp, raw = do(t, http.MethodGet, ts.URL+"/api/v1/search?q="+strings.ReplaceAll("NOT errand", " ", "+"), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("exclusion search: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &searchResp); err != nil {
		t.Fatalf("decoding %s: %v", raw, err)
	}
	if searchResp.Count != 1 || searchResp.Results[0].Text != "write code" {
		t.Fatalf("exclusion results = %+v", searchResp)
	}

	// Move a note, then delete it.
	resp, raw = do(t, http.MethodPut, ts.URL+"/api/v1/notes/200", `{"timestamp": 250, "text": "review code"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status %d body %s", resp.StatusCode, raw)
	}
	resp, _ = do(t, http.MethodDelete, ts.URL+"/api/v1/notes/250", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	// Empty result is an empty array, not null.
	resp, raw = do(t, http.MethodGet, ts.URL+"/api/v1/search?q=review", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search after delete: status %d", resp.StatusCode)
	}
	if !strings.Contains(string(raw), `"results":[]`) {
		t.Errorf("empty search body = %s, want empty array", raw)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, raw := do(t, http.MethodGet, ts.URL+path, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d body %s", path, resp.StatusCode, raw)
		}
	}
}

func TestRequestIDPropagation(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/words", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("X-Request-ID", "integration-test-42")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "integration-test-42" {
		t.Errorf("X-Request-ID = %q, want caller's ID echoed", got)
	}
}

func TestConcurrentWritersKeepIndexConsistent(t *testing.T) {
	ts := newTestServer(t)

	done := make(chan error, 8)
	for w := 0; w < 8; w++ {
		go func(w int) {
			for i := 0; i < 10; i++ {
				tsVal := 1000 + w*10 + i
				body := fmt.Sprintf(`{"timestamp": %d, "text": "note number %d #load"}`, tsVal, tsVal)
				resp, raw := do(t, http.MethodPost, ts.URL+"/api/v1/notes", body)
				if resp.StatusCode != http.StatusCreated {
					done <- fmt.Errorf("save %d: status %d body %s", tsVal, resp.StatusCode, raw)
					return
				}
			}
			done <- nil
		}(w)
	}
	for w := 0; w < 8; w++ {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}

	resp, raw := do(t, http.MethodGet, ts.URL+"/api/v1/search?q=%23load", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: status %d", resp.StatusCode)
	}
	var searchResp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(raw, &searchResp); err != nil {
		t.Fatalf("decoding %s: %v", raw, err)
	}
	if searchResp.Count != 80 {
		t.Errorf("matched %d notes, want 80", searchResp.Count)
	}
}
