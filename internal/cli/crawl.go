package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seospider/seospider/internal/crawler"
	"github.com/seospider/seospider/internal/export"
	"github.com/seospider/seospider/internal/pagespeed"
	"github.com/seospider/seospider/internal/storage"
	"github.com/seospider/seospider/internal/types"
)

var (
	seedURL       string
	maxDepth      int
	maxURLs       int
	concurrency   int
	delayMs       int
	timeoutSec    int
	retries       int
	userAgent     string
	crawlExternal bool
	ignoreRobots  bool
	noSitemaps    bool

	includeExts string
	excludeExts string

	enableRendering bool
	renderPoolSize  int
	renderWaitSec   int

	rotateHeaders  bool
	tlsFingerprint bool
	proxyURL       string

	pageSpeedKey    string
	enablePageSpeed bool

	outputDir     string
	exportJSON    bool
	exportCSV     bool
	exportSitemap bool
	sqlitePath    string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a crawl to completion",
	Long:  `Crawl a site from the given URL, then print a summary and write the requested exports`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedURL == "" {
			return fmt.Errorf("--url is required")
		}
		logger := newLogger()

		cfg := buildConfig()
		ctl := crawler.New(logger)
		if cfg.EnablePageSpeed {
			ctl.SetAuditor(pagespeed.New(cfg.PageSpeedAPIKey, logger))
		}

		ok, msg := ctl.Start(cfg, seedURL)
		if !ok {
			return fmt.Errorf("starting crawl: %s", msg)
		}
		ctl.Wait()

		snap := ctl.Status()
		fmt.Printf("Crawl completed: %d pages, %d links, %d issues\n",
			len(snap.Pages), len(snap.Links), len(snap.Issues))
		fmt.Printf("Discovered: %d, Max depth: %d, Speed: %.1f pages/s\n",
			snap.Stats.Discovered, snap.Stats.MaxDepthReached, snap.Stats.Speed)

		return writeOutputs(snap)
	},
}

func buildConfig() types.Config {
	cfg := types.DefaultConfig()
	cfg.MaxDepth = maxDepth
	cfg.MaxURLs = maxURLs
	cfg.Concurrency = concurrency
	cfg.Delay = time.Duration(delayMs) * time.Millisecond
	cfg.Timeout = time.Duration(timeoutSec) * time.Second
	cfg.Retries = retries
	if userAgent != "" {
		cfg.UserAgent = userAgent
	}
	cfg.CrawlExternal = crawlExternal
	cfg.RespectRobots = !ignoreRobots
	cfg.DiscoverSitemaps = !noSitemaps
	if includeExts != "" {
		cfg.IncludeExtensions = splitList(includeExts)
	}
	if excludeExts != "" {
		cfg.ExcludeExtensions = splitList(excludeExts)
	}
	cfg.EnableRendering = enableRendering
	cfg.RenderPoolSize = renderPoolSize
	cfg.RenderWait = time.Duration(renderWaitSec) * time.Second
	cfg.RotateHeaders = rotateHeaders
	cfg.EnableTLSFingerprint = tlsFingerprint
	cfg.ProxyURL = proxyURL
	cfg.EnablePageSpeed = enablePageSpeed
	cfg.PageSpeedAPIKey = pageSpeedKey
	return cfg
}

func writeOutputs(snap types.Snapshot) error {
	if exportJSON || exportCSV || exportSitemap {
		exporter, err := export.NewExporter(outputDir)
		if err != nil {
			return err
		}
		if exportJSON {
			if err := exporter.ExportJSON(snap, "report.json"); err != nil {
				return err
			}
		}
		if exportCSV {
			if err := exporter.ExportPagesCSV(snap.Pages, "pages.csv"); err != nil {
				return err
			}
			if err := exporter.ExportIssuesCSV(snap.Issues, "issues.csv"); err != nil {
				return err
			}
		}
		if exportSitemap {
			n, err := exporter.ExportSitemap(snap.Pages, "sitemap.xml")
			if err != nil {
				return err
			}
			fmt.Printf("Sitemap written with %d URLs\n", n)
		}
	}

	if sqlitePath != "" {
		store, err := storage.Open(sqlitePath)
		if err != nil {
			return fmt.Errorf("opening results database: %w", err)
		}
		defer store.Close()
		if err := store.SaveSnapshot(snap); err != nil {
			return fmt.Errorf("saving results: %w", err)
		}
		fmt.Printf("Results saved to %s\n", sqlitePath)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func init() {
	f := crawlCmd.Flags()
	f.StringVar(&seedURL, "url", "", "Starting URL (required)")
	f.IntVar(&maxDepth, "max-depth", 3, "Maximum link depth from the seed")
	f.IntVar(&maxURLs, "max-urls", 1000, "Maximum number of pages to crawl")
	f.IntVar(&concurrency, "concurrency", 5, "Concurrent fetches")
	f.IntVar(&delayMs, "delay", 1000, "Delay between fetches per worker in milliseconds")
	f.IntVar(&timeoutSec, "timeout", 10, "Request timeout in seconds")
	f.IntVar(&retries, "retries", 3, "Retry attempts per URL on transport errors")
	f.StringVar(&userAgent, "user-agent", "", "Override the default user agent")
	f.BoolVar(&crawlExternal, "crawl-external", false, "Also crawl pages on other domains")
	f.BoolVar(&ignoreRobots, "ignore-robots", false, "Ignore robots.txt")
	f.BoolVar(&noSitemaps, "no-sitemaps", false, "Skip sitemap discovery at crawl start")
	f.StringVar(&includeExts, "include-extensions", "", "Comma-separated extensions to allow")
	f.StringVar(&excludeExts, "exclude-extensions", "", "Comma-separated extensions to skip")
	f.BoolVar(&enableRendering, "render", false, "Render pages with headless Chrome")
	f.IntVar(&renderPoolSize, "render-pool", 3, "Number of browser sessions")
	f.IntVar(&renderWaitSec, "render-wait", 3, "Seconds to wait for dynamic content")
	f.BoolVar(&rotateHeaders, "rotate-headers", false, "Rotate browser header profiles")
	f.BoolVar(&tlsFingerprint, "tls-fingerprint", false, "Mimic real browser TLS fingerprints")
	f.StringVar(&proxyURL, "proxy", "", "Proxy URL for all fetches")
	f.BoolVar(&enablePageSpeed, "pagespeed", false, "Run a PageSpeed Insights audit after the crawl")
	f.StringVar(&pageSpeedKey, "pagespeed-key", "", "PageSpeed Insights API key")
	f.StringVar(&outputDir, "output-dir", "./out", "Directory for exports")
	f.BoolVar(&exportJSON, "export-json", false, "Write the full report as JSON")
	f.BoolVar(&exportCSV, "export-csv", false, "Write pages and issues as CSV")
	f.BoolVar(&exportSitemap, "export-sitemap", false, "Write an XML sitemap of crawled pages")
	f.StringVar(&sqlitePath, "sqlite", "", "Save results to a SQLite database at this path")
}
