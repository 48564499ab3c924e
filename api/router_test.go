package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gamedeck/api/handler"
	"github.com/use-agent/gamedeck/config"
	"github.com/use-agent/gamedeck/models"
)

// gatedExecutor blocks each run until release is closed.
type gatedExecutor struct {
	release chan struct{}
	views   chan []config.View
}

func (e *gatedExecutor) Run(_ context.Context, id string, views []config.View) *models.RunReport {
	e.views <- views
	<-e.release
	return &models.RunReport{
		ID:         id,
		Status:     models.RunStatusCompleted,
		Total:      1,
		FinishedAt: time.Now().Unix(),
		Views:      []models.ViewReport{{Platform: views[0].Platform, Extracted: 1, Added: 1}},
		Records: []models.Record{{
			Title:    "GAME A",
			Pricing:  models.NewPricing(10, nil),
			GameType: models.GameTypeAll,
			URL:      "https://x/a?b=1&c=2",
			ImgURL:   "https://x/a.png",
			Platform: views[0].Platform,
		}},
	}
}

func newTestServer(t *testing.T, keys []string) (*gin.Engine, *gatedExecutor, *handler.RunStore) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	exec := &gatedExecutor{release: make(chan struct{}), views: make(chan []config.View, 2)}
	store := handler.NewRunStore(ctx, exec)
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		Auth:      config.AuthConfig{APIKeys: keys},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		Catalog:   config.CatalogConfig{Views: config.DefaultViews},
	}
	return NewRouter(ctx, store, cfg, time.Now()), exec, store
}

func do(r http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == nil {
		t.Fatalf("not an error response: %s", w.Body.String())
	}
	return resp.Error.Code
}

func TestRunLifecycle(t *testing.T) {
	r, exec, store := newTestServer(t, []string{"k1"})
	key := []string{"X-API-Key", "k1"}

	w := do(r, http.MethodPost, "/api/v1/runs", `{"views":[{"platform":"PC","document":"https://cdn.example/pc.html"}]}`, key...)
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST status = %d: %s", w.Code, w.Body.String())
	}
	var accepted models.RunAccepted
	_ = json.Unmarshal(w.Body.Bytes(), &accepted)
	if accepted.Views != 1 || accepted.Status != models.RunStatusRunning {
		t.Errorf("accepted = %+v", accepted)
	}
	if got := <-exec.views; got[0].Document != "https://cdn.example/pc.html" {
		t.Errorf("executor got %+v", got)
	}

	// Second run is rejected while the first is active.
	w = do(r, http.MethodPost, "/api/v1/runs", "", key...)
	if w.Code != http.StatusConflict || decodeError(t, w) != models.ErrCodeRunInProgress {
		t.Errorf("concurrent POST = %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/health", "")
	if !strings.Contains(w.Body.String(), `"busy"`) || !strings.Contains(w.Body.String(), accepted.ID) {
		t.Errorf("health while running = %s", w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/runs/"+accepted.ID+"/records", "", key...)
	if w.Code != http.StatusConflict {
		t.Errorf("records while running = %d", w.Code)
	}

	close(exec.release)
	store.Wait()

	w = do(r, http.MethodGet, "/api/v1/runs/"+accepted.ID, "", key...)
	var report models.RunReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Status != models.RunStatusCompleted || report.Total != 1 {
		t.Errorf("report = %+v", report)
	}
	if strings.Contains(w.Body.String(), "GAME A") {
		t.Error("report should not embed records")
	}

	w = do(r, http.MethodGet, "/api/v1/runs/"+accepted.ID+"/records", "", key...)
	if w.Code != http.StatusOK {
		t.Fatalf("records status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "?b=1&c=2") || !strings.Contains(w.Body.String(), `"discountPercentage": null`) {
		t.Errorf("records body = %s", w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/health", "")
	if !strings.Contains(w.Body.String(), `"healthy"`) {
		t.Errorf("health after run = %s", w.Body.String())
	}
}

func TestPostRun_DefaultViews(t *testing.T) {
	r, exec, store := newTestServer(t, nil)
	w := do(r, http.MethodPost, "/api/v1/runs", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := <-exec.views; len(got) != len(config.DefaultViews) {
		t.Errorf("views = %+v", got)
	}
	close(exec.release)
	store.Wait()
}

func TestPostRun_InvalidViews(t *testing.T) {
	r, _, _ := newTestServer(t, []string{"k1"})
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"views":`},
		{"missing platform", `{"views":[{"url":"https://x"}]}`},
		{"no source", `{"views":[{"platform":"PC"}]}`},
		{"bad url", `{"views":[{"platform":"PC","url":"not a url"}]}`},
		{"local document", `{"views":[{"platform":"PC","document":"/etc/passwd"}]}`},
		{"file url document", `{"views":[{"platform":"PC","document":"file:///etc/passwd"}]}`},
		{"non-http url", `{"views":[{"platform":"PC","url":"ftp://x/catalog"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/runs", tt.body, "X-API-Key", "k1")
			if w.Code != http.StatusBadRequest || decodeError(t, w) != models.ErrCodeInvalidInput {
				t.Errorf("status = %d body = %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestPostRun_ViewsNeedAPIKey(t *testing.T) {
	r, exec, store := newTestServer(t, nil)

	w := do(r, http.MethodPost, "/api/v1/runs", `{"views":[{"platform":"PC","url":"http://10.0.0.1/admin"}]}`)
	if w.Code != http.StatusForbidden || decodeError(t, w) != models.ErrCodeForbidden {
		t.Errorf("custom views on open API = %d %s", w.Code, w.Body.String())
	}

	// The configured views stay available without a key.
	w = do(r, http.MethodPost, "/api/v1/runs", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("default run = %d %s", w.Code, w.Body.String())
	}
	<-exec.views
	close(exec.release)
	store.Wait()
}

func TestGetRun_NotFound(t *testing.T) {
	r, _, _ := newTestServer(t, nil)
	w := do(r, http.MethodGet, "/api/v1/runs/run-nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestAuth(t *testing.T) {
	r, _, _ := newTestServer(t, []string{"k1"})

	if w := do(r, http.MethodGet, "/api/v1/runs/x", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing key: status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/runs/x", "", "X-API-Key", "bad"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad key: status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/runs/x", "", "Authorization", "Bearer k1"); w.Code != http.StatusNotFound {
		t.Errorf("valid key: status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/health", ""); w.Code != http.StatusOK {
		t.Errorf("health must stay open: status = %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := handler.NewRunStore(ctx, &gatedExecutor{})
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1},
	}
	r := NewRouter(ctx, store, cfg, time.Now())

	if w := do(r, http.MethodGet, "/api/v1/runs/x", ""); w.Code != http.StatusNotFound {
		t.Fatalf("first request status = %d", w.Code)
	}
	w := do(r, http.MethodGet, "/api/v1/runs/x", "")
	if w.Code != http.StatusTooManyRequests || decodeError(t, w) != models.ErrCodeRateLimited {
		t.Errorf("second request = %d %s", w.Code, w.Body.String())
	}
}
