package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/use-agent/gamedeck/models"
)

const recordsBody = `[
  {"price": "100,00", "gameType": "All", "title": "GAME A", "url": "https://x/a?b=1&c=2", "imgUrl": "https://x/a.png", "platform": "PC", "discountPercentage": null},
  {"price": "0,00", "gameType": "Free", "title": "GAME B", "url": "https://x/b", "imgUrl": "https://x/b.png", "platform": "PC", "discountPercentage": null}
]`

// fakeAPI mimics the run endpoints. The run finishes after polls GETs.
type fakeAPI struct {
	polls   int32
	gets    atomic.Int32
	lastKey atomic.Value
	posted  atomic.Value
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lastKey.Store(r.Header.Get("X-API-Key"))
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/runs":
		var req models.RunRequest
		if r.ContentLength > 0 {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		f.posted.Store(req)
		if len(req.Views) > 0 && r.Header.Get("X-API-Key") == "" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"FORBIDDEN","message":"choosing views requires an API key"}}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"run-1","status":"running","views":2}`))
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/runs/run-1":
		status := models.RunStatusRunning
		if f.gets.Add(1) > f.polls {
			status = models.RunStatusPartial
		}
		_ = json.NewEncoder(w).Encode(models.RunReport{
			ID:         "run-1",
			Status:     status,
			Total:      2,
			OutputFile: "xbox-data/ab12_xbox_games.json",
			Views: []models.ViewReport{
				{Platform: "PC", Steps: 3, Extracted: 2, Added: 2},
				{Platform: "Console", Error: &models.ErrorDetail{Code: models.ErrCodeViewInit, Message: "catalog cards did not render"}},
			},
		})
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/runs/run-1/records":
		_, _ = w.Write([]byte(recordsBody))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"INVALID_INPUT","message":"run not found"}}`))
	}
}

func newTestClient(t *testing.T, key string, polls int32) (*apiClient, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{polls: polls}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c := newAPIClient(srv.URL+"/", key)
	c.pollInterval = time.Millisecond
	return c, api
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestStartRun_ConfiguredViews(t *testing.T) {
	c, api := newTestClient(t, "", 0)

	res, err := c.handleStartRun(context.Background(), callTool("start_run", nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(res))
	}
	if got := resultText(res); !strings.Contains(got, "run-1") || !strings.Contains(got, "2 view(s)") {
		t.Errorf("text = %q", got)
	}
	if req := api.posted.Load().(models.RunRequest); len(req.Views) != 0 {
		t.Errorf("posted views = %+v, want none", req.Views)
	}
}

func TestStartRun_ViewsAndWait(t *testing.T) {
	c, api := newTestClient(t, "k1", 2)

	res, err := c.handleStartRun(context.Background(), callTool("start_run", map[string]any{
		"views":     "PC=https://www.xbox.com/es-AR/games/browse?PlayWith=PC",
		"documents": "Console=https://cdn.example/console.html",
		"wait":      true,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(res))
	}

	req := api.posted.Load().(models.RunRequest)
	want := []models.ViewSpec{
		{Platform: "PC", URL: "https://www.xbox.com/es-AR/games/browse?PlayWith=PC"},
		{Platform: "Console", Document: "https://cdn.example/console.html"},
	}
	if len(req.Views) != 2 || req.Views[0] != want[0] || req.Views[1] != want[1] {
		t.Errorf("posted views = %+v", req.Views)
	}
	if api.lastKey.Load().(string) != "k1" {
		t.Errorf("X-API-Key = %q", api.lastKey.Load())
	}
	if n := api.gets.Load(); n != 3 {
		t.Errorf("polled %d times, want 3", n)
	}
	got := resultText(res)
	for _, want := range []string{"run-1: partial, 2 records", "PC: 3 steps", "FAILED [VIEW_INIT_FAILED]"} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

func TestStartRun_Errors(t *testing.T) {
	c, _ := newTestClient(t, "", 0)

	res, _ := c.handleStartRun(context.Background(), callTool("start_run", map[string]any{"views": "broken"}))
	if !res.IsError {
		t.Error("malformed views should be a tool error")
	}

	res, _ = c.handleStartRun(context.Background(), callTool("start_run", map[string]any{
		"views": "PC=https://www.xbox.com/es-AR/games/browse",
	}))
	if !res.IsError || !strings.Contains(resultText(res), "[FORBIDDEN]") {
		t.Errorf("result = %+v", res)
	}
}

func TestGetRun(t *testing.T) {
	c, _ := newTestClient(t, "", 0)

	res, _ := c.handleGetRun(context.Background(), callTool("get_run", map[string]any{"id": "run-1"}))
	if res.IsError || !strings.Contains(resultText(res), "xbox-data/ab12_xbox_games.json") {
		t.Errorf("result = %s", resultText(res))
	}

	res, _ = c.handleGetRun(context.Background(), callTool("get_run", map[string]any{"id": "run-nope"}))
	if !res.IsError || !strings.Contains(resultText(res), "run not found") {
		t.Errorf("unknown run = %s", resultText(res))
	}

	res, _ = c.handleGetRun(context.Background(), callTool("get_run", nil))
	if !res.IsError {
		t.Error("missing id should be a tool error")
	}
}

func TestGetRunRecords(t *testing.T) {
	c, _ := newTestClient(t, "", 0)

	res, _ := c.handleGetRunRecords(context.Background(), callTool("get_run_records", map[string]any{"id": "run-1"}))
	got := resultText(res)
	if res.IsError || !strings.HasPrefix(got, "2 of 2 records") {
		t.Fatalf("result = %s", got)
	}
	if !strings.Contains(got, "?b=1&c=2") {
		t.Errorf("'&' should not be escaped:\n%s", got)
	}

	res, _ = c.handleGetRunRecords(context.Background(), callTool("get_run_records", map[string]any{"id": "run-1", "limit": 1}))
	got = resultText(res)
	if !strings.HasPrefix(got, "1 of 2 records") || strings.Contains(got, "GAME B") {
		t.Errorf("limited result = %s", got)
	}
}

func TestNewServer_ListsRunTools(t *testing.T) {
	c, _ := newTestClient(t, "", 0)
	s := newServer(c)

	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	body, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"start_run", "get_run", "get_run_records"} {
		if !strings.Contains(string(body), `"`+name+`"`) {
			t.Errorf("tools/list missing %s: %s", name, body)
		}
	}
}
