package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/gamedeck/config"
	"github.com/use-agent/gamedeck/models"
)

// apiClient talks to a running "gamedeck serve" instance.
type apiClient struct {
	baseURL      string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
}

func newAPIClient(baseURL, apiKey string) *apiClient {
	return &apiClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		http:         &http.Client{Timeout: 60 * time.Second},
		pollInterval: 5 * time.Second,
	}
}

// newServer registers the run tools on a fresh MCP server.
func newServer(api *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"gamedeck",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	startRunTool := mcp.NewTool("start_run",
		mcp.WithDescription("Start a scrape of the Xbox store catalog. Without views it scrapes the server's configured catalog pages. Only one run can be active at a time; a full catalog takes several minutes."),
		mcp.WithString("views",
			mcp.Description(`Catalog URLs as "Platform=https://...,Platform=https://..." (needs an API key on the server)`),
		),
		mcp.WithString("documents",
			mcp.Description(`Pre-fetched catalog documents as "Platform=https://...,..." (needs an API key on the server)`),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Block until the run finishes and return its report (default: false)"),
		),
	)
	s.AddTool(startRunTool, api.handleStartRun)

	getRunTool := mcp.NewTool("get_run",
		mcp.WithDescription("Get the status and per-view report of a run."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Run id returned by start_run"),
		),
	)
	s.AddTool(getRunTool, api.handleGetRun)

	getRecordsTool := mcp.NewTool("get_run_records",
		mcp.WithDescription("Get the merged game records of a finished run as JSON (title, price, gameType, url, imgUrl, platform, discountPercentage, oldPrice)."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Run id returned by start_run"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Return at most this many records (default: all)"),
		),
	)
	s.AddTool(getRecordsTool, api.handleGetRunRecords)

	return s
}

// call sends a request to the API and returns the body and status code.
func (a *apiClient) call(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// apiError turns an error response body into a tool error.
func apiError(status int, body []byte) *mcp.CallToolResult {
	var resp models.ErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != nil {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message))
	}
	return mcp.NewToolResultError(fmt.Sprintf("API returned status %d", status))
}

func (a *apiClient) handleStartRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urls, err := config.ParseViews(request.GetString("views", ""), false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := config.ParseViews(request.GetString("documents", ""), true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var payload any
	if views := append(urls, docs...); len(views) > 0 {
		req := models.RunRequest{Views: make([]models.ViewSpec, len(views))}
		for i, v := range views {
			req.Views[i] = models.ViewSpec{Platform: v.Platform, URL: v.URL, Document: v.Document}
		}
		payload = req
	}

	body, status, err := a.call(ctx, http.MethodPost, "/api/v1/runs", payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if status != http.StatusAccepted {
		return apiError(status, body), nil
	}

	var accepted models.RunAccepted
	if err := json.Unmarshal(body, &accepted); err != nil || accepted.ID == "" {
		return mcp.NewToolResultError("failed to parse run response"), nil
	}

	if !request.GetBool("wait", false) {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Run %s started over %d view(s). Call get_run with this id to follow it.",
			accepted.ID, accepted.Views)), nil
	}

	report, err := a.waitRun(ctx, accepted.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("waiting for run %s failed: %v", accepted.ID, err)), nil
	}
	return mcp.NewToolResultText(formatReport(report)), nil
}

// waitRun polls the run until it leaves the running state or ctx ends.
func (a *apiClient) waitRun(ctx context.Context, id string) (*models.RunReport, error) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		report, err := a.getRun(ctx, id)
		if err != nil {
			return nil, err
		}
		if report.Status != models.RunStatusRunning {
			return report, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *apiClient) getRun(ctx context.Context, id string) (*models.RunReport, error) {
	body, status, err := a.call(ctx, http.MethodGet, "/api/v1/runs/"+id, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		res := apiError(status, body)
		return nil, fmt.Errorf("%s", resultText(res))
	}
	var report models.RunReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("parse run report: %w", err)
	}
	return &report, nil
}

func (a *apiClient) handleGetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}
	report, err := a.getRun(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatReport(report)), nil
}

func (a *apiClient) handleGetRunRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	body, status, err := a.call(ctx, http.MethodGet, "/api/v1/runs/"+id+"/records", nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if status != http.StatusOK {
		return apiError(status, body), nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse records: %v", err)), nil
	}
	total := len(records)
	if limit := request.GetInt("limit", 0); limit > 0 && limit < total {
		records = records[:limit]
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode records: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d of %d records:\n%s", len(records), total, buf.String())), nil
}

// formatReport renders a run report as plain text.
func formatReport(r *models.RunReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run %s: %s, %d records", r.ID, r.Status, r.Total))
	if r.OutputFile != "" {
		sb.WriteString(" in " + r.OutputFile)
	}
	sb.WriteString("\n")
	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: [%s] %s\n", r.Error.Code, r.Error.Message))
	}
	for _, v := range r.Views {
		sb.WriteString(fmt.Sprintf("- %s: %d steps, %d extracted, %d added, %d duplicates",
			v.Platform, v.Steps, v.Extracted, v.Added, v.Duplicates))
		if v.Error != nil {
			sb.WriteString(fmt.Sprintf(", FAILED [%s] %s", v.Error.Code, v.Error.Message))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// resultText returns the first text content of res.
func resultText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
