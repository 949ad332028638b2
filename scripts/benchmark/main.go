// Command benchmark times repeated lookups against a running sigillum
// server and writes a JSON report.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/sigillum/models"
)

// Default substances: known registrations, a substance without the
// repeated-dose summary, and an identifier with no match.
var defaultCAS = []string{"627-83-8", "64-17-5", "7732-18-5", "000-00-0"}

type runResult struct {
	Run        int           `json:"run"`
	WallMs     int64         `json:"wall_ms"`
	DurationMs int64         `json:"duration_ms"`
	Status     models.Status `json:"status"`
	KeyInfo    bool          `json:"key_info"`
	TextLength int           `json:"text_length"`
	Message    string        `json:"message,omitempty"`
}

type casResult struct {
	CASCode  string         `json:"cas_code"`
	Runs     []runResult    `json:"runs"`
	MedianMs int64          `json:"median_ms"`
	Statuses map[string]int `json:"statuses"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerCAS int         `json:"runs_per_cas"`
	Results    []casResult `json:"results"`
}

type bench struct {
	apiURL string
	apiKey string
	runs   int
	output string
	client *http.Client
}

func main() {
	b := &bench{client: &http.Client{Timeout: 5 * time.Minute}}

	cmd := &cobra.Command{
		Use:          "benchmark [cas-code...]",
		Short:        "Time toxicology lookups against a sigillum server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = defaultCAS
			}
			return b.run(cmd.OutOrStdout(), args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&b.apiURL, "api-url", "http://127.0.0.1:8000", "sigillum API base URL")
	f.StringVar(&b.apiKey, "api-key", "", "API key for authenticated requests")
	f.IntVar(&b.runs, "runs", 3, "number of runs per CAS code")
	f.StringVar(&b.output, "output", "benchmark-results.json", "JSON output file path")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (b *bench) run(w io.Writer, casCodes []string) error {
	fmt.Fprintln(w, "=== Sigillum Benchmark ===")
	fmt.Fprintf(w, "API URL:   %s\nRuns/CAS:  %d\n\n", b.apiURL, b.runs)

	if err := b.checkAPI(); err != nil {
		return fmt.Errorf("cannot reach API at %s: %w", b.apiURL, err)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     b.apiURL,
		RunsPerCAS: b.runs,
	}

	for _, cas := range casCodes {
		fmt.Fprintf(w, "Benchmarking %s ...\n", cas)
		cr := casResult{CASCode: cas, Statuses: map[string]int{}}
		for i := 1; i <= b.runs; i++ {
			rr := b.lookup(cas, i)
			fmt.Fprintf(w, "  run %d/%d  %-10s %6dms  key_info=%t\n", i, b.runs, rr.Status, rr.WallMs, rr.KeyInfo)
			cr.Runs = append(cr.Runs, rr)
			cr.Statuses[string(rr.Status)]++
		}
		cr.MedianMs = median(cr.Runs)
		report.Results = append(report.Results, cr)
	}

	printTable(w, report.Results)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(b.output, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nDetailed results written to %s\n", b.output)
	return nil
}

func (b *bench) checkAPI() error {
	resp, err := b.client.Get(b.apiURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (b *bench) lookup(cas string, run int) runResult {
	rr := runResult{Run: run, Status: models.StatusError}

	body, _ := json.Marshal(models.ScrapeRequest{CASCode: cas})
	req, err := http.NewRequest(http.MethodPost, b.apiURL+"/api/v1/scrape", bytes.NewReader(body))
	if err != nil {
		rr.Message = err.Error()
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	start := time.Now()
	resp, err := b.client.Do(req)
	rr.WallMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Message = err.Error()
		return rr
	}
	defer resp.Body.Close()

	var out models.ScrapeOutcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		rr.Message = fmt.Sprintf("decode error (HTTP %d): %v", resp.StatusCode, err)
		return rr
	}
	rr.Status = out.Status
	rr.DurationMs = out.DurationMs
	rr.Message = out.Message
	if out.Data != nil && out.Data.Summary != nil && out.Data.Summary.KeyInfo != nil {
		rr.KeyInfo = true
		rr.TextLength = len(out.Data.Summary.KeyInfo.TextContent)
	}
	return rr
}

func median(runs []runResult) int64 {
	if len(runs) == 0 {
		return 0
	}
	ms := make([]int64, len(runs))
	for i, r := range runs {
		ms[i] = r.WallMs
	}
	slices.Sort(ms)
	return ms[len(ms)/2]
}

func printTable(w io.Writer, results []casResult) {
	fmt.Fprintln(w, strings.Repeat("─", 60))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CAS\tMedian\tStatuses\n")
	for _, r := range results {
		var parts []string
		for _, s := range []models.Status{models.StatusSuccess, models.StatusNoResults, models.StatusError} {
			if n := r.Statuses[string(s)]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s=%d", s, n))
			}
		}
		fmt.Fprintf(tw, "%s\t%dms\t%s\n", r.CASCode, r.MedianMs, strings.Join(parts, " "))
	}
	tw.Flush()
	fmt.Fprintln(w, strings.Repeat("─", 60))
}
