package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/sigillum/models"
)

// apiClient talks to a running sigillum server.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func (c *apiClient) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

// apiError turns a non-200 response into a tool error message.
func apiError(status int, body []byte) string {
	var e models.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != nil {
		return fmt.Sprintf("[%s] %s", e.Error.Code, e.Error.Message)
	}
	return fmt.Sprintf("API returned status %d", status)
}

func handleLookup(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		casCode, err := request.RequireString("cas_code")
		if err != nil || strings.TrimSpace(casCode) == "" {
			return mcp.NewToolResultError("cas_code is required"), nil
		}

		payload := models.ScrapeRequest{
			CASCode: casCode,
			MaxAge:  int(request.GetFloat("max_age", 0)),
		}
		body, status, err := c.do(ctx, http.MethodPost, "/api/v1/scrape", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if status != http.StatusOK {
			return mcp.NewToolResultError(apiError(status, body)), nil
		}

		var out models.ScrapeOutcome
		if err := json.Unmarshal(body, &out); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if out.Status == models.StatusError {
			return mcp.NewToolResultError(fmt.Sprintf("lookup of %s failed: %s", out.CASCode, out.Message)), nil
		}
		return mcp.NewToolResultText(formatOutcome(&out)), nil
	}
}

func handleHealth(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, status, err := c.do(ctx, http.MethodGet, "/api/v1/health", nil)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if status != http.StatusOK {
			return mcp.NewToolResultError(apiError(status, body)), nil
		}

		var h models.HealthResponse
		if err := json.Unmarshal(body, &h); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Status: %s (v%s, up %s)\nSessions: %d/%d busy, %d runs served",
			h.Status, h.Version, h.Uptime,
			h.SessionStats.ActiveSessions, h.SessionStats.MaxSessions, h.SessionStats.TotalRuns)), nil
	}
}

// formatOutcome renders a non-error outcome for a language model: the
// Markdown summary when there is one, otherwise what went missing.
func formatOutcome(out *models.ScrapeOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CAS: %s\nStatus: %s\n", out.CASCode, out.Status)

	if out.Status == models.StatusNoResults {
		b.WriteString("\nThe registry has no substance matching this CAS number.")
		return b.String()
	}

	d := out.Data
	if d == nil {
		return b.String()
	}
	fmt.Fprintf(&b, "Toxicology section opened: %t\n", d.ToxicologyAccessed)
	if d.Error != "" {
		fmt.Fprintf(&b, "Extraction problem: %s\n", d.Error)
	}

	s := d.Summary
	if s == nil {
		return b.String()
	}
	if s.Error != "" {
		fmt.Fprintf(&b, "Summary problem: %s\n", s.Error)
	}
	if s.KeyInfo != nil {
		text := s.KeyInfo.Markdown
		if text == "" {
			text = s.KeyInfo.TextContent
		}
		fmt.Fprintf(&b, "\n## Description of key information\n\n%s\n", strings.TrimSpace(text))
	}
	return b.String()
}
