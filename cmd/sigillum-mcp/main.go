// Command sigillum-mcp exposes the scraping API to MCP clients over stdio.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("SIGILLUM_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	// Optional: the API runs without auth by default.
	apiKey := os.Getenv("SIGILLUM_API_KEY")

	s := newServer(&apiClient{
		baseURL: apiURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 5 * time.Minute},
	})

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(c *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"sigillum",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	lookupTool := mcp.NewTool("lookup_toxicology",
		mcp.WithDescription("Look up a chemical substance by CAS number in the ECHA CHEM registry and return the "+
			"repeated-dose toxicity 'Description of key information' from its lead REACH registration dossier. "+
			"Drives a real browser; a lookup usually takes 30-90 seconds."),
		mcp.WithString("cas_code",
			mcp.Required(),
			mcp.Description("CAS registry number, e.g. 627-83-8"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Reuse a cached answer younger than this many milliseconds (default: 0, always scrape)"),
		),
	)
	s.AddTool(lookupTool, handleLookup(c))

	healthTool := mcp.NewTool("scraper_health",
		mcp.WithDescription("Report whether the scraping service is up and how many browser sessions are busy."),
	)
	s.AddTool(healthTool, handleHealth(c))

	return s
}
