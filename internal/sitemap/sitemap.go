// Package sitemap discovers a site's sitemap URLs so they can seed the
// frontier before crawling starts.
package sitemap

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// maxNestingDepth caps sitemap-index recursion to bound cycles and
// pathological indexes.
const maxNestingDepth = 10

var wellKnownPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemaps.xml",
	"/sitemap/sitemap.xml",
}

// Bootstrapper fetches and parses sitemaps recursively.
type Bootstrapper struct {
	client *http.Client
	logger *log.Logger

	mu      sync.Mutex
	visited map[string]struct{}
}

// New creates a bootstrapper using the shared crawl HTTP client.
func New(client *http.Client, logger *log.Logger) *Bootstrapper {
	if logger == nil {
		logger = log.Default()
	}
	return &Bootstrapper{
		client:  client,
		logger:  logger,
		visited: make(map[string]struct{}),
	}
}

// Discover returns every page URL found in the site's sitemaps: the
// well-known locations plus any declared in robots.txt, with sitemap
// indexes followed recursively. It never fails; a site without sitemaps
// yields an empty slice.
func (b *Bootstrapper) Discover(seedURL string) []string {
	parsed, err := url.Parse(seedURL)
	if err != nil || parsed.Host == "" {
		return nil
	}
	origin := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)

	candidates := make([]string, 0, len(wellKnownPaths)+2)
	for _, p := range wellKnownPaths {
		candidates = append(candidates, origin+p)
	}
	candidates = append(candidates, b.sitemapsFromRobots(origin)...)

	var mu sync.Mutex
	all := make([]string, 0)

	var g errgroup.Group
	g.SetLimit(4)
	for _, candidate := range candidates {
		g.Go(func() error {
			urls := b.parse(candidate, 1)
			mu.Lock()
			all = append(all, urls...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	b.logger.Info("sitemap discovery finished", "candidates", len(candidates), "urls", len(all))
	return all
}

// sitemapsFromRobots reads Sitemap: declarations out of robots.txt.
func (b *Bootstrapper) sitemapsFromRobots(origin string) []string {
	resp, err := b.client.Get(origin + "/robots.txt")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	var declared []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if len(line) >= 8 && strings.EqualFold(line[:8], "sitemap:") {
			if u := strings.TrimSpace(line[8:]); u != "" {
				declared = append(declared, u)
			}
		}
	}
	return declared
}

// parse fetches one sitemap and returns its page URLs, recursing into
// nested sitemap references.
func (b *Bootstrapper) parse(sitemapURL string, depth int) []string {
	if depth > maxNestingDepth {
		return nil
	}
	if !b.markVisited(sitemapURL) {
		return nil
	}

	content, err := b.fetch(sitemapURL)
	if err != nil {
		b.logger.Debug("sitemap fetch failed", "url", sitemapURL, "err", err)
		return nil
	}

	pages, nested := extractLocs(content)

	all := make([]string, 0, len(pages))
	all = append(all, pages...)
	for _, n := range nested {
		all = append(all, b.parse(n, depth+1)...)
	}
	return all
}

func (b *Bootstrapper) markVisited(sitemapURL string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.visited[sitemapURL]; ok {
		return false
	}
	b.visited[sitemapURL] = struct{}{}
	return true
}

// fetch retrieves the sitemap body, transparently decompressing gzip
// payloads (.gz sitemaps or gzip content types served without
// Content-Encoding).
func (b *Bootstrapper) fetch(sitemapURL string) ([]byte, error) {
	resp, err := b.client.Get(sitemapURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(sitemapURL, ".gz") || isGzip(body) {
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err == nil {
			if decompressed, err := io.ReadAll(gz); err == nil {
				body = decompressed
			}
			gz.Close()
		}
	}
	return body, nil
}

func isGzip(body []byte) bool {
	return len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b
}

// extractLocs pulls <loc> values out of a sitemap document, split into page
// URLs and nested sitemap references. goquery's lenient parser drops XML
// namespace prefixes, so the queries work on any namespaced sitemap.
func extractLocs(content []byte) (pages, nested []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil
	}

	doc.Find("sitemap loc").Each(func(_ int, s *goquery.Selection) {
		if u := strings.TrimSpace(s.Text()); u != "" {
			nested = append(nested, u)
		}
	})
	doc.Find("url loc").Each(func(_ int, s *goquery.Selection) {
		if u := strings.TrimSpace(s.Text()); u != "" {
			pages = append(pages, u)
		}
	})

	// Bare sitemaps with no url/sitemap wrappers still carry loc entries.
	if len(pages) == 0 && len(nested) == 0 {
		doc.Find("loc").Each(func(_ int, s *goquery.Selection) {
			if u := strings.TrimSpace(s.Text()); u != "" {
				pages = append(pages, u)
			}
		})
	}
	return pages, nested
}
