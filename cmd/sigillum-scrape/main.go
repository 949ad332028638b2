// Command sigillum-scrape runs one lookup from the terminal and prints the
// outcome as JSON on stdout. With --visible and --narrate it doubles as a
// demo: the browser window is shown and every stage is narrated on stderr.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/use-agent/sigillum/config"
	"github.com/use-agent/sigillum/engine"
	"github.com/use-agent/sigillum/models"
	"github.com/use-agent/sigillum/scraper"
)

type runner interface {
	Run(ctx context.Context, identifier string) *models.ScrapeOutcome
}

// runnerFactory builds the pipeline from the final configuration.
type runnerFactory func(cfg *config.Config, obs scraper.Observer) runner

func newScraper(cfg *config.Config, obs scraper.Observer) runner {
	return scraper.New(engine.NewRodLauncher(cfg.Browser, cfg.Scraper), cfg.Scraper,
		scraper.WithSelectors(cfg.Selectors),
		scraper.WithOutput(cfg.Output),
		scraper.WithObserver(obs),
	)
}

type options struct {
	visible    bool
	narrate    bool
	out        string
	screenshot string
	verbose    bool
}

// errFailed makes the process exit non-zero after the outcome was printed.
type errFailed struct{ status models.Status }

func (e errFailed) Error() string { return "scrape finished with status " + string(e.status) }

func newRootCmd(newRunner runnerFactory) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "sigillum-scrape <cas-code>",
		Short: "Look up the repeated-dose toxicity key information of a substance",
		Long: "Searches the ECHA CHEM registry for the CAS code, opens the lead REACH " +
			"registration dossier and extracts the key information summary.",
		Example:       "  sigillum-scrape 627-83-8\n  sigillum-scrape 627-83-8 --visible --narrate",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)

			initLogger(cmd.ErrOrStderr(), opts.verbose)

			// Stdout carries only the outcome so it can be piped.
			var obs scraper.Observer = scraper.NewSlogObserver(slog.Default())
			if opts.narrate {
				obs = scraper.NewNarrationObserver(cmd.ErrOrStderr())
			}

			out := newRunner(cfg, obs).Run(cmd.Context(), args[0])
			if err := printOutcome(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if out.Status == models.StatusError {
				return errFailed{status: out.Status}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.visible, "visible", false, "show the browser window")
	f.BoolVar(&opts.narrate, "narrate", false, "narrate every stage on stderr")
	f.StringVarP(&opts.out, "out", "o", "", "file the key information HTML is saved to")
	f.StringVar(&opts.screenshot, "screenshot", "", "file an extraction failure screenshot is saved to")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	return cmd
}

// apply lets explicitly set flags win over the environment.
func (o options) apply(cmd *cobra.Command, cfg *config.Config) {
	if o.visible {
		cfg.Browser.Headless = false
	}
	if cmd.Flags().Changed("out") {
		cfg.Output.ArtifactPath = o.out
	}
	if cmd.Flags().Changed("screenshot") {
		cfg.Output.ScreenshotPath = o.screenshot
	}
}

func printOutcome(w io.Writer, out *models.ScrapeOutcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func initLogger(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newScraper).ExecuteContext(ctx); err != nil {
		if _, failed := err.(errFailed); !failed {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
