package types

import (
	"time"
)

// Config holds per-crawl settings. It is copied at start time and never
// mutated while a crawl is running; updates apply to the next crawl.
type Config struct {
	MaxDepth      int           `json:"max_depth"`
	MaxURLs       int           `json:"max_urls"`
	Concurrency   int           `json:"concurrency"`
	Delay         time.Duration `json:"delay"`
	Timeout       time.Duration `json:"timeout"`
	Retries       int           `json:"retries"`
	MaxFileSize   int64         `json:"max_file_size"`
	UserAgent     string        `json:"user_agent"`
	CrawlExternal bool          `json:"crawl_external"`
	RespectRobots bool          `json:"respect_robots"`

	IncludeExtensions []string `json:"include_extensions"`
	ExcludeExtensions []string `json:"exclude_extensions"`
	IncludePatterns   []string `json:"include_patterns"`
	ExcludePatterns   []string `json:"exclude_patterns"`

	DiscoverSitemaps bool `json:"discover_sitemaps"`

	// JavaScript rendering
	EnableRendering bool          `json:"enable_rendering"`
	RenderPoolSize  int           `json:"render_pool_size"`
	RenderWait      time.Duration `json:"render_wait"`
	RenderTimeout   time.Duration `json:"render_timeout"`

	// Browser-like fetch hardening
	RotateHeaders        bool   `json:"rotate_headers"`
	EnableTLSFingerprint bool   `json:"enable_tls_fingerprint"`
	ProxyURL             string `json:"proxy_url"`

	// Secondary performance audit
	EnablePageSpeed bool   `json:"enable_pagespeed"`
	PageSpeedAPIKey string `json:"pagespeed_api_key"`

	// Paths never audited by the issue detector (glob patterns).
	IssueExclusionPatterns []string `json:"issue_exclusion_patterns"`

	// Termination tuning. Zero values fall back to defaults.
	IdlePollLimit       int           `json:"idle_poll_limit"`
	NoProgressPollLimit int           `json:"no_progress_poll_limit"`
	PollInterval        time.Duration `json:"poll_interval"`
}

// DefaultConfig mirrors the defaults the control surface advertises.
func DefaultConfig() Config {
	return Config{
		MaxDepth:          3,
		MaxURLs:           1000,
		Concurrency:       5,
		Delay:             time.Second,
		Timeout:           10 * time.Second,
		Retries:           3,
		MaxFileSize:       50 * 1024 * 1024,
		UserAgent:         "SEOSpider/1.0 (Site Audit Crawler)",
		RespectRobots:     true,
		DiscoverSitemaps:  true,
		IncludeExtensions: []string{"html", "htm", "php", "asp", "aspx", "jsp"},
		ExcludeExtensions: []string{"pdf", "doc", "docx", "zip", "exe", "dmg"},
		RenderPoolSize:    3,
		RenderWait:        3 * time.Second,
		RenderTimeout:     30 * time.Second,

		IssueExclusionPatterns: DefaultIssueExclusions(),

		IdlePollLimit:       20,
		NoProgressPollLimit: 600,
		PollInterval:        50 * time.Millisecond,
	}
}

// DefaultIssueExclusions lists path globs that are crawled but never audited:
// admin panels, auth flows, checkout funnels, build artifacts and feeds.
func DefaultIssueExclusions() []string {
	return []string{
		"/wp-admin/*", "/wp-content/plugins/*", "/wp-content/themes/*",
		"/wp-includes/*", "/wp-login.php", "/wp-json/*", "/xmlrpc.php",
		"/login*", "/signin*", "/register*", "/signup*", "/logout*",
		"/forgot-password*", "/reset-password*", "/auth/*", "/verify/*",
		"/admin/*", "/administrator/*", "/backend/*", "/dashboard/*",
		"/checkout/*", "/cart/*", "/basket/*", "/payment/*", "/billing/*",
		"/account/*", "/profile/*", "/settings/*", "/my-account/*",
		"/cgi-bin/*", "/.git/*", "/.env", "/.htaccess",
		"/node_modules/*", "/vendor/*", "/_next/*", "/_nuxt/*",
		"/test/*", "/tests/*", "/debug/*", "/staging/*",
		"/api/internal/*", "/api/admin/*", "/private/*", "/internal/*",
		"/tmp/*", "/cache/*", "/logs/*", "/backup/*",
		"/search*", "/print/*", "/preview/*", "/embed/*", "/amp/*",
		"/feed/*", "/feeds/*", "/rss/*", "/atom/*",
		"*.json", "*.xml", "*.yaml", "*.yml", "*.txt", "*.csv",
		"*.map", "*.min.js", "*.min.css",
	}
}

// FrontierEntry is a pending URL with its breadth-first depth.
// Sitemap seeds always carry depth 0; discovered children carry parent+1.
type FrontierEntry struct {
	URL   string
	Depth int
}

// Severity classifies an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a single finding for a page. Never mutated after creation.
type Issue struct {
	URL      string   `json:"url"`
	Severity Severity `json:"severity"`
	Category string   `json:"category"`
	Name     string   `json:"name"`
	Details  string   `json:"details"`
}

// LinkEdge records one discovered link, deduplicated by (source, target).
type LinkEdge struct {
	SourceURL    string `json:"source_url"`
	TargetURL    string `json:"target_url"`
	AnchorText   string `json:"anchor_text"`
	IsInternal   bool   `json:"is_internal"`
	TargetDomain string `json:"target_domain"`
	// TargetStatus is nil until the target has been crawled.
	TargetStatus *int `json:"target_status"`
}

// ImageRef describes one <img> on a page.
type ImageRef struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

// Hreflang is one alternate-language declaration.
type Hreflang struct {
	Lang string `json:"lang"`
	URL  string `json:"url"`
}

// Analytics flags which tracking stacks a page loads.
type Analytics struct {
	GoogleAnalytics bool   `json:"google_analytics"`
	Gtag            bool   `json:"gtag"`
	GA4ID           string `json:"ga4_id"`
	GTMID           string `json:"gtm_id"`
	FacebookPixel   bool   `json:"facebook_pixel"`
	Hotjar          bool   `json:"hotjar"`
	Mixpanel        bool   `json:"mixpanel"`
}

// PageFields is the analyzer's output for one HTML document.
type PageFields struct {
	Title           string            `json:"title"`
	MetaDescription string            `json:"meta_description"`
	H1              string            `json:"h1"`
	H2              []string          `json:"h2"`
	H3              []string          `json:"h3"`
	WordCount       int               `json:"word_count"`
	MetaTags        map[string]string `json:"meta_tags"`
	OGTags          map[string]string `json:"og_tags"`
	TwitterTags     map[string]string `json:"twitter_tags"`
	CanonicalURL    string            `json:"canonical_url"`
	Lang            string            `json:"lang"`
	Charset         string            `json:"charset"`
	Viewport        string            `json:"viewport"`
	Robots          string            `json:"robots"`
	Author          string            `json:"author"`
	Keywords        string            `json:"keywords"`
	Generator       string            `json:"generator"`
	ThemeColor      string            `json:"theme_color"`
	JSONLD          []string          `json:"json_ld"`
	Analytics       Analytics         `json:"analytics"`
	Images          []ImageRef        `json:"images"`
	InternalLinks   int               `json:"internal_links"`
	ExternalLinks   int               `json:"external_links"`
	Hreflang        []Hreflang        `json:"hreflang"`
}

// PageResult is the immutable outcome of fetching and analyzing one URL.
// A fetch worker builds it; the controller owns it afterwards.
type PageResult struct {
	URL          string     `json:"url"`
	StatusCode   int        `json:"status_code"`
	ContentType  string     `json:"content_type"`
	Size         int64      `json:"size"`
	IsInternal   bool       `json:"is_internal"`
	Depth        int        `json:"depth"`
	ResponseTime float64    `json:"response_time_ms"`
	Rendered     bool       `json:"rendered,omitempty"`
	Error        *string    `json:"error,omitempty"`
	Fields       PageFields `json:"fields"`
	CrawledAt    time.Time  `json:"crawled_at"`

	// DiscoveredLinks are child frontier candidates; the controller merges
	// them into the frontier rather than the worker touching it directly.
	DiscoveredLinks []FrontierEntry `json:"-"`
	// Edges are the raw link edges found on the page.
	Edges []LinkEdge `json:"-"`
}

// ErrorResult builds a PageResult carrying only an error annotation.
func ErrorResult(url string, depth int, statusCode int, msg string) PageResult {
	return PageResult{
		URL:        url,
		Depth:      depth,
		StatusCode: statusCode,
		Error:      &msg,
		CrawledAt:  time.Now(),
	}
}

// CrawlStats is owned by the controller and updated under its result lock.
type CrawlStats struct {
	Discovered      int       `json:"discovered"`
	Crawled         int       `json:"crawled"`
	MaxDepthReached int       `json:"max_depth_reached"`
	Speed           float64   `json:"speed"`
	StartTime       time.Time `json:"start_time"`
}

// CrawlState is the controller lifecycle state.
type CrawlState string

const (
	StateIdle      CrawlState = "idle"
	StateRunning   CrawlState = "running"
	StatePaused    CrawlState = "paused"
	StateStopping  CrawlState = "stopping"
	StateCompleted CrawlState = "completed"
)

// PageSpeedMetrics are the core-vitals numbers extracted from one PSI run.
type PageSpeedMetrics struct {
	FirstContentfulPaint   float64 `json:"first_contentful_paint"`
	LargestContentfulPaint float64 `json:"largest_contentful_paint"`
	CumulativeLayoutShift  float64 `json:"cumulative_layout_shift"`
	SpeedIndex             float64 `json:"speed_index"`
	TimeToInteractive      float64 `json:"time_to_interactive"`
}

// PageSpeedResult is the audit outcome for one page and strategy.
type PageSpeedResult struct {
	URL              string            `json:"url"`
	Strategy         string            `json:"strategy"`
	Success          bool              `json:"success"`
	PerformanceScore int               `json:"performance_score"`
	Metrics          *PageSpeedMetrics `json:"metrics,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// Snapshot is the full status payload returned by the controller.
type Snapshot struct {
	State     CrawlState        `json:"status"`
	Stats     CrawlStats        `json:"stats"`
	Pages     []PageResult      `json:"urls"`
	Links     []LinkEdge        `json:"links"`
	Issues    []Issue           `json:"issues"`
	PageSpeed []PageSpeedResult `json:"pagespeed,omitempty"`
	Progress  float64           `json:"progress"`
}
