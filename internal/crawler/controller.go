// Package crawler runs the crawl lifecycle: seeding, dispatch, rate
// limiting, termination watchdogs and result collection.
package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/seospider/seospider/internal/analyzer"
	"github.com/seospider/seospider/internal/fetch"
	"github.com/seospider/seospider/internal/frontier"
	"github.com/seospider/seospider/internal/issues"
	"github.com/seospider/seospider/internal/render"
	"github.com/seospider/seospider/internal/robots"
	"github.com/seospider/seospider/internal/sitemap"
	"github.com/seospider/seospider/internal/types"
)

// Renderer produces browser-rendered HTML for a URL.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close()
}

// SpeedAuditor runs the post-crawl performance audit for one URL.
type SpeedAuditor interface {
	Audit(ctx context.Context, url string) []types.PageSpeedResult
}

// Controller owns exactly one crawl at a time and its lifecycle state.
// All control methods are safe for concurrent use.
type Controller struct {
	logger *log.Logger

	mu     sync.Mutex
	state  types.CrawlState
	cfg    types.Config
	cancel context.CancelFunc
	done   chan struct{}

	seedURL    string
	baseDomain string

	frontier *frontier.Frontier
	gate     *robots.Gate
	fetcher  *fetch.Fetcher
	detector *issues.Detector
	policy   *policy
	rec      *recorder
	renderer Renderer
	auditor  SpeedAuditor

	startTime time.Time
	crawled   atomic.Int64
	inFlight  atomic.Int64
	maxDepth  atomic.Int64

	// newRenderer builds the render pool at crawl start. Swappable so the
	// lifecycle can be exercised without a browser.
	newRenderer func(cfg types.Config, logger *log.Logger) (Renderer, error)
	// bootstrap discovers sitemap seed URLs. Swappable for the same reason.
	bootstrap func(client *http.Client, seedURL string) []string
}

// New builds an idle controller.
func New(logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		logger: logger,
		state:  types.StateIdle,
		newRenderer: func(cfg types.Config, logger *log.Logger) (Renderer, error) {
			return render.NewPool(render.Options{
				PoolSize:  cfg.RenderPoolSize,
				Wait:      cfg.RenderWait,
				Timeout:   cfg.RenderTimeout,
				UserAgent: cfg.UserAgent,
			}, logger)
		},
		bootstrap: func(client *http.Client, seedURL string) []string {
			return sitemap.New(client, logger).Discover(seedURL)
		},
	}
}

// SetAuditor wires the post-crawl performance auditor.
func (c *Controller) SetAuditor(a SpeedAuditor) {
	c.mu.Lock()
	c.auditor = a
	c.mu.Unlock()
}

// Start begins a crawl from seedURL with the given settings. It fails when
// a crawl is already in progress.
func (c *Controller) Start(cfg types.Config, seedURL string) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case types.StateRunning, types.StatePaused, types.StateStopping:
		return false, "a crawl is already in progress"
	}

	u, err := url.Parse(seedURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return false, "invalid seed URL"
	}

	client, err := fetch.NewClient(cfg)
	if err != nil {
		return false, "building HTTP client: " + err.Error()
	}

	var renderer Renderer
	if cfg.EnableRendering {
		renderer, err = c.newRenderer(cfg, c.logger)
		if err != nil {
			return false, "starting render pool: " + err.Error()
		}
	}

	// Fresh collections every run; results from the previous crawl are
	// discarded the moment a new one starts.
	c.cfg = cfg
	c.seedURL = seedURL
	c.baseDomain = u.Host
	c.frontier = frontier.New()
	c.gate = robots.NewGate(client, cfg.RespectRobots)
	c.fetcher = fetch.NewFetcher(client, fetch.Options{
		UserAgent:     cfg.UserAgent,
		MaxFileSize:   cfg.MaxFileSize,
		Retries:       cfg.Retries,
		RotateHeaders: cfg.RotateHeaders,
	})
	c.detector = issues.NewDetector(cfg.IssueExclusionPatterns)
	c.policy = newPolicy(cfg, u.Host, c.logger)
	c.rec = newRecorder()
	c.renderer = renderer
	c.startTime = time.Now()
	c.crawled.Store(0)
	c.inFlight.Store(0)
	c.maxDepth.Store(0)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = types.StateRunning

	go c.run(ctx, client)

	c.logger.Info("crawl started", "seed", seedURL, "rendering", cfg.EnableRendering)
	return true, "crawl started"
}

// Stop requests termination. In-flight fetches finish; nothing new is
// dispatched.
func (c *Controller) Stop() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case types.StateRunning, types.StatePaused:
		c.state = types.StateStopping
		c.cancel()
		return true, "crawl stopping"
	default:
		return false, "no crawl in progress"
	}
}

// Pause suspends dispatch. In-flight fetches run to completion and their
// results are recorded; the frontier is retained.
func (c *Controller) Pause() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.StateRunning {
		return false, "no crawl running"
	}
	c.state = types.StatePaused
	return true, "crawl paused"
}

// Resume continues a paused crawl.
func (c *Controller) Resume() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.StatePaused {
		return false, "crawl is not paused"
	}
	c.state = types.StateRunning
	return true, "crawl resumed"
}

// State returns the current lifecycle state.
func (c *Controller) State() types.CrawlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until the current crawl's run loop has exited. Returns
// immediately when no crawl was started.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Status returns a point-in-time snapshot with fresh speed and progress
// numbers.
func (c *Controller) Status() types.Snapshot {
	c.mu.Lock()
	state := c.state
	rec := c.rec
	fr := c.frontier
	start := c.startTime
	c.mu.Unlock()

	snap := types.Snapshot{State: state}
	if rec == nil {
		return snap
	}

	crawled := int(c.crawled.Load())
	snap.Stats = types.CrawlStats{
		Discovered:      fr.Discovered(),
		Crawled:         crawled,
		MaxDepthReached: int(c.maxDepth.Load()),
		StartTime:       start,
	}
	if elapsed := time.Since(start).Seconds(); elapsed > 0 {
		snap.Stats.Speed = float64(crawled) / elapsed
	}
	snap.Progress = c.progress(state, crawled, fr.Size())
	snap.Pages = rec.Pages()
	snap.Links = rec.Links()
	snap.Issues = rec.Issues()
	snap.PageSpeed = rec.PageSpeed()
	return snap
}

func (c *Controller) progress(state types.CrawlState, crawled, queued int) float64 {
	if state == types.StateCompleted {
		return 100
	}
	total := crawled + queued + int(c.inFlight.Load())
	if c.cfg.MaxURLs > 0 && total > c.cfg.MaxURLs {
		total = c.cfg.MaxURLs
	}
	if total == 0 {
		return 0
	}
	p := float64(crawled) / float64(total) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// run is the crawl's single dispatch loop. It seeds the frontier, hands
// URLs to workers through a counting semaphore, and decides termination.
func (c *Controller) run(ctx context.Context, client *http.Client) {
	defer c.finish()

	c.admit(c.seedURL, 0)
	if c.cfg.DiscoverSitemaps {
		for _, u := range c.bootstrap(client, c.seedURL) {
			// Sitemap seeds bypass depth accounting but not admission.
			c.admit(u, 0)
		}
	}

	workers := c.cfg.Concurrency
	if c.cfg.EnableRendering {
		// Rendered mode: in-flight fetches are bounded by the session
		// pool, not the plain-fetch concurrency setting.
		workers = c.cfg.RenderPoolSize
	}
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	poll := c.cfg.PollInterval
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	idleLimit := c.cfg.IdlePollLimit
	if idleLimit <= 0 {
		idleLimit = 20
	}
	stallLimit := c.cfg.NoProgressPollLimit
	if stallLimit <= 0 {
		stallLimit = 600
	}

	idlePolls := 0
	stallPolls := 0
	lastCrawled := int64(-1)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		if c.State() == types.StatePaused {
			c.sleep(ctx, poll)
			continue
		}

		crawled := c.crawled.Load()
		if crawled != lastCrawled {
			lastCrawled = crawled
			stallPolls = 0
		}

		if c.cfg.MaxURLs > 0 && crawled+c.inFlight.Load() >= int64(c.cfg.MaxURLs) {
			if c.inFlight.Load() == 0 {
				c.logger.Info("URL limit reached", "crawled", crawled)
				break loop
			}
			c.sleep(ctx, poll)
			continue
		}

		// The semaphore is taken non-blockingly so the watchdogs keep
		// polling even when every worker slot is occupied by a stuck fetch.
		select {
		case sem <- struct{}{}:
		default:
			idlePolls = 0
			stallPolls++
			if stallPolls >= stallLimit {
				c.logger.Warn("no progress watchdog tripped", "in_flight", c.inFlight.Load())
				break loop
			}
			c.sleep(ctx, poll)
			continue
		}

		entry, ok := c.frontier.Dequeue()
		if !ok {
			<-sem
			if c.inFlight.Load() == 0 {
				idlePolls++
				if idlePolls >= idleLimit {
					break loop
				}
			} else {
				idlePolls = 0
				stallPolls++
				if stallPolls >= stallLimit {
					c.logger.Warn("no progress watchdog tripped", "in_flight", c.inFlight.Load())
					break loop
				}
			}
			c.sleep(ctx, poll)
			continue
		}
		idlePolls = 0

		c.inFlight.Add(1)
		wg.Add(1)
		go func(e types.FrontierEntry) {
			defer wg.Done()
			defer c.inFlight.Add(-1)
			defer func() { <-sem }()
			c.crawlOne(ctx, e)
			c.sleep(ctx, c.cfg.Delay)
		}(entry)
	}

	// Termination is decided; abort whatever is still in flight rather
	// than waiting out slow fetches.
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	wg.Wait()

	if c.auditor != nil && c.cfg.EnablePageSpeed && c.crawled.Load() > 0 {
		c.runSpeedAudit()
	}
}

// finish releases resources and settles the terminal state: a stopped
// crawl returns to Idle, natural termination lands in Completed.
func (c *Controller) finish() {
	c.mu.Lock()
	if c.state == types.StateStopping {
		c.state = types.StateIdle
	} else {
		c.state = types.StateCompleted
	}
	renderer := c.renderer
	c.renderer = nil
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if renderer != nil {
		renderer.Close()
	}
	if cancel != nil {
		cancel()
	}
	c.logger.Info("crawl finished", "crawled", c.crawled.Load())
	close(done)
}

// admit runs the full admission pipeline: URL policy, robots gate, then
// an atomic not-seen check and enqueue. Returns whether the URL entered
// the frontier.
func (c *Controller) admit(rawURL string, depth int) bool {
	if rawURL == "" || c.frontier.Seen(rawURL) {
		return false
	}
	if !c.policy.admit(rawURL) {
		return false
	}
	if !c.gate.IsAllowed(rawURL, c.cfg.UserAgent) {
		return false
	}
	return c.frontier.Enqueue(rawURL, depth)
}

// crawlOne fetches and analyzes a single URL and records everything it
// produced. Child links are admitted here while the page's depth budget
// is known.
func (c *Controller) crawlOne(ctx context.Context, entry types.FrontierEntry) {
	var result types.PageResult
	if c.cfg.EnableRendering {
		result = c.fetchRendered(ctx, entry)
	} else {
		result = c.fetchPlain(ctx, entry)
	}

	c.rec.AddPage(result)
	c.rec.AddEdges(result.Edges)
	c.rec.AddIssues(c.detector.Detect(result))
	c.crawled.Add(1)
	for {
		cur := c.maxDepth.Load()
		if int64(entry.Depth) <= cur || c.maxDepth.CompareAndSwap(cur, int64(entry.Depth)) {
			break
		}
	}

	if entry.Depth < c.cfg.MaxDepth {
		for _, child := range result.DiscoveredLinks {
			c.admit(child.URL, entry.Depth+1)
		}
	}

	if result.Error != nil {
		c.logger.Debug("page failed", "url", entry.URL, "err", *result.Error)
	} else {
		c.logger.Debug("page crawled", "url", entry.URL, "status", result.StatusCode, "depth", entry.Depth)
	}
}

func (c *Controller) fetchPlain(ctx context.Context, entry types.FrontierEntry) types.PageResult {
	resp, err := c.fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		if errors.Is(err, fetch.ErrOversized) {
			return types.ErrorResult(entry.URL, entry.Depth, 0, "file exceeds size limit")
		}
		return types.ErrorResult(entry.URL, entry.Depth, 0, err.Error())
	}

	result := types.PageResult{
		URL:          entry.URL,
		StatusCode:   resp.StatusCode,
		ContentType:  resp.ContentType,
		Size:         int64(len(resp.Body)),
		IsInternal:   analyzer.SameSite(entry.URL, c.baseDomain),
		Depth:        entry.Depth,
		ResponseTime: float64(resp.ResponseTime.Milliseconds()),
		CrawledAt:    time.Now(),
	}
	if isHTMLContent(resp.ContentType) && resp.StatusCode < 400 {
		c.analyze(string(resp.Body), &result)
	}
	return result
}

func (c *Controller) fetchRendered(ctx context.Context, entry types.FrontierEntry) types.PageResult {
	htmlContent, err := c.renderer.Render(ctx, entry.URL)
	if err != nil {
		return types.ErrorResult(entry.URL, entry.Depth, 0, err.Error())
	}
	result := types.PageResult{
		URL:         entry.URL,
		StatusCode:  200,
		ContentType: "text/html",
		Size:        int64(len(htmlContent)),
		IsInternal:  analyzer.SameSite(entry.URL, c.baseDomain),
		Depth:       entry.Depth,
		Rendered:    true,
		CrawledAt:   time.Now(),
	}
	c.analyze(htmlContent, &result)
	return result
}

// analyze fills in page fields, link edges and child frontier candidates.
func (c *Controller) analyze(htmlContent string, result *types.PageResult) {
	result.Fields = analyzer.Analyze(htmlContent, result.URL, c.baseDomain)
	result.Edges = analyzer.ExtractEdges(htmlContent, result.URL, c.baseDomain)
	for _, e := range result.Edges {
		if e.IsInternal {
			result.DiscoveredLinks = append(result.DiscoveredLinks, types.FrontierEntry{URL: e.TargetURL})
		}
	}
}

// runSpeedAudit audits the homepage plus up to two top-level category
// pages after the crawl settles.
func (c *Controller) runSpeedAudit() {
	// The crawl context is cancelled on Stop; the audit runs on its own
	// context so a stopped crawl still gets its report.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	for _, pageURL := range c.speedAuditPages() {
		c.rec.AddPageSpeed(c.auditor.Audit(ctx, pageURL))
	}
}

// speedAuditPages picks the home page (the crawled internal page with the
// shortest path) and up to two single-segment pages, the usual shape of
// category landing pages.
func (c *Controller) speedAuditPages() []string {
	var home string
	homeLen := -1
	var categories []string

	for _, p := range c.rec.Pages() {
		if !p.IsInternal || p.StatusCode != 200 || p.Error != nil {
			continue
		}
		u, err := url.Parse(p.URL)
		if err != nil {
			continue
		}
		trimmed := strings.Trim(u.Path, "/")
		if homeLen == -1 || len(trimmed) < homeLen {
			home, homeLen = p.URL, len(trimmed)
		}
		if trimmed != "" && !strings.Contains(trimmed, "/") {
			categories = append(categories, p.URL)
		}
	}

	if home == "" {
		if seed, err := url.Parse(c.seedURL); err == nil {
			home = seed.Scheme + "://" + seed.Host + "/"
		}
	}

	pages := []string{home}
	for _, u := range categories {
		if len(pages) >= 3 {
			break
		}
		if u != home {
			pages = append(pages, u)
		}
	}
	return pages
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func isHTMLContent(contentType string) bool {
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml")
}
