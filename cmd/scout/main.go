// Command scout discovers a competitor's social and review profiles from the
// terminal and prints the results as a table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joho/godotenv"

	"github.com/scoutbase/scout"
	"github.com/scoutbase/scout/auth"
	"github.com/scoutbase/scout/metadata"
	"github.com/scoutbase/scout/platform"
	"github.com/scoutbase/scout/scraper"
	"github.com/scoutbase/scout/search"
)

var (
	website   = flag.String("website", "", "competitor website URL")
	timeout   = flag.Duration("timeout", 2*time.Minute, "maximum time to wait for discovery")
	variables = flag.Bool("vars", false, "print campaign variables instead of a table")
	cookies   = flag.Bool("browser-cookies", false, "use local browser cookies for gated sites")
	verbose   = flag.Bool("v", false, "verbose logging")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	if len(flag.Args()) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <competitor-name>\n\n", os.Args[0])
		fmt.Fprint(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s -website https://acme.com \"Acme Inc\"\n", os.Args[0])
		os.Exit(1)
	}
	competitorName := flag.Args()[0]

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []scout.Option{
		scout.WithLogger(logger),
		scout.WithMaxWait(*timeout),
	}

	scraperOpts := []scraper.Option{scraper.WithLogger(logger)}
	if *cookies {
		scraperOpts = append(scraperOpts, scraper.WithCookieSource(auth.NewBrowserSource(logger)))
	}
	if key := os.Getenv("FIRECRAWL_API_KEY"); key != "" {
		fc := scraper.NewFirecrawl(key, scraper.WithFirecrawlLogger(logger))
		scraperOpts = append(scraperOpts, scraper.WithFetcher(fc))
	}
	opts = append(opts, scout.WithScraper(scraper.New(scraperOpts...)))

	creds := search.Credentials{
		PerplexityKey: os.Getenv("PERPLEXITY_API_KEY"),
		OpenRouterKey: os.Getenv("OPENROUTER_API_KEY"),
	}
	if creds.Configured() {
		strategies := search.Strategies(creds, "")
		opts = append(opts,
			scout.WithSearcher(search.New(strategies, search.WithLogger(logger))),
			scout.WithMetadata(metadata.New(strategies, metadata.WithLogger(logger))),
		)
	} else {
		fmt.Fprintln(os.Stderr, "note: no search API keys set, using website links only")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+10*time.Second)
	defer cancel()

	results, err := scout.New(opts...).Run(ctx, competitorName, *website)
	if err != nil {
		fmt.Fprintf(os.Stderr, "discovery failed: %v\n", err)
		os.Exit(1)
	}

	if *variables {
		printVariables(results)
		return
	}
	if m := results.Metadata; m != nil {
		fmt.Printf("%s: %s (audience: %s)\n\n", m.Industry, m.Description, m.TargetAudience)
	}
	printTable(results)
}

func printVariables(results *platform.Results) {
	for key, value := range scout.CampaignVariables(results) {
		fmt.Printf("%s=%s\n", key, value)
	}
}

func printTable(results *platform.Results) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Profiles for %s", results.CompetitorName)
	t.AppendHeader(table.Row{"Platform", "Confidence", "Source", "URL"})

	for _, p := range platform.All() {
		profile, ok := results.Profiles[p]
		if !ok {
			continue
		}
		name := string(p)
		if cfg, ok := platform.ConfigFor(p); ok {
			name = cfg.DisplayName
		}
		confidence := string(profile.Confidence)
		switch profile.Confidence {
		case platform.Verified:
			confidence = text.FgGreen.Sprint(confidence)
		case platform.Likely:
			confidence = text.FgYellow.Sprint(confidence)
		case platform.NotFound:
			confidence = text.FgHiBlack.Sprint(confidence)
		}
		url := profile.URL
		if url == "" {
			url = "-"
		}
		t.AppendRow(table.Row{name, confidence, profile.Source, url})
	}

	t.AppendFooter(table.Row{"", "", "found",
		fmt.Sprintf("%d (%d verified, %d likely)",
			results.TotalFound, results.VerifiedCount, results.LikelyCount)})
	t.SetStyle(table.StyleLight)
	t.Render()
}
