package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/seospider/seospider/internal/crawler"
	"github.com/seospider/seospider/internal/types"
)

func newTestAPI() (*crawler.Controller, http.Handler) {
	c := crawler.New(log.New(io.Discard))
	return c, NewServer(c, log.New(io.Discard)).Handler()
}

func siteServer() *httptest.Server {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>t</title></head><body><a href="%s/a">a</a></body></html>`, srv.URL)
	})
	return srv
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeControl(t *testing.T, w *httptest.ResponseRecorder) (bool, string) {
	t.Helper()
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp.Success, resp.Message
}

func TestStartStatusLifecycle(t *testing.T) {
	srv := siteServer()
	defer srv.Close()
	c, handler := newTestAPI()

	body := fmt.Sprintf(`{"url": %q, "config": {"discover_sitemaps": false, "delay": 0, "poll_interval": 2000000, "idle_poll_limit": 5}}`, srv.URL+"/")
	w := postJSON(t, handler, "/api/crawl/start", body)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d, body %s", w.Code, w.Body.String())
	}
	if ok, msg := decodeControl(t, w); !ok {
		t.Fatalf("start failed: %s", msg)
	}

	c.Wait()

	req := httptest.NewRequest(http.MethodGet, "/api/crawl/status", nil)
	sw := httptest.NewRecorder()
	handler.ServeHTTP(sw, req)
	if sw.Code != http.StatusOK {
		t.Fatalf("status code = %d", sw.Code)
	}
	var snap types.Snapshot
	if err := json.Unmarshal(sw.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.State != types.StateCompleted {
		t.Errorf("state = %s, want completed", snap.State)
	}
	if len(snap.Pages) == 0 {
		t.Error("snapshot has no crawled pages")
	}
}

func TestStartConflictsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" && r.Method == http.MethodGet {
			<-release
		}
		fmt.Fprint(w, "<html><head><title>t</title></head><body></body></html>")
	}))
	defer srv.Close()
	defer close(release)
	c, handler := newTestAPI()

	body := fmt.Sprintf(`{"url": %q, "config": {"discover_sitemaps": false, "delay": 0}}`, srv.URL+"/")
	if ok, msg := decodeControl(t, postJSON(t, handler, "/api/crawl/start", body)); !ok {
		t.Fatalf("first start failed: %s", msg)
	}

	w := postJSON(t, handler, "/api/crawl/start", body)
	if w.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", w.Code)
	}
	if ok, _ := decodeControl(t, w); ok {
		t.Error("second start reported success")
	}

	if ok, _ := c.Stop(); !ok {
		t.Fatal("stop failed")
	}
}

func TestControlGuardsWhenIdle(t *testing.T) {
	_, handler := newTestAPI()
	for _, path := range []string{"/api/crawl/stop", "/api/crawl/pause", "/api/crawl/resume"} {
		w := postJSON(t, handler, path, "")
		if w.Code != http.StatusConflict {
			t.Errorf("%s status = %d, want 409", path, w.Code)
		}
	}
}

func TestStartValidation(t *testing.T) {
	_, handler := newTestAPI()

	if w := postJSON(t, handler, "/api/crawl/start", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing url status = %d, want 400", w.Code)
	}
	if w := postJSON(t, handler, "/api/crawl/start", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, handler := newTestAPI()

	req := httptest.NewRequest(http.MethodGet, "/api/crawl/start", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET start status = %d, want 405", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/crawl/status", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status status = %d, want 405", w.Code)
	}
}

func TestHealth(t *testing.T) {
	_, handler := newTestAPI()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("health body = %s", w.Body.String())
	}
}
