package crawler

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/seospider/seospider/internal/analyzer"
	"github.com/seospider/seospider/internal/types"
)

// policy decides whether a candidate URL may enter the frontier. It covers
// scheme, domain scope, extension lists and URL regex filters; the robots
// gate is consulted separately by the controller.
type policy struct {
	cfg        types.Config
	baseDomain string
	includeRe  []*regexp.Regexp
	excludeRe  []*regexp.Regexp
}

func newPolicy(cfg types.Config, baseDomain string, logger *log.Logger) *policy {
	return &policy{
		cfg:        cfg,
		baseDomain: baseDomain,
		includeRe:  compilePatterns(cfg.IncludePatterns, logger),
		excludeRe:  compilePatterns(cfg.ExcludePatterns, logger),
	}
}

// compilePatterns drops invalid regexes with a warning instead of failing
// the whole crawl over one bad filter.
func compilePatterns(patterns []string, logger *log.Logger) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			logger.Warn("skipping invalid URL pattern", "pattern", p, "err", err)
			continue
		}
		out = append(out, re)
	}
	return out
}

// admit reports whether the URL passes every configured filter.
func (p *policy) admit(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !p.cfg.CrawlExternal && !analyzer.SameSite(rawURL, p.baseDomain) {
		return false
	}

	// Extension filters apply only to URLs that actually carry one;
	// extensionless paths always pass.
	if ext := urlExtension(u); ext != "" {
		if containsFold(p.cfg.ExcludeExtensions, ext) {
			return false
		}
		if len(p.cfg.IncludeExtensions) > 0 && !containsFold(p.cfg.IncludeExtensions, ext) {
			return false
		}
	}

	for _, re := range p.excludeRe {
		if re.MatchString(rawURL) {
			return false
		}
	}
	if len(p.includeRe) > 0 {
		matched := false
		for _, re := range p.includeRe {
			if re.MatchString(rawURL) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func urlExtension(u *url.URL) string {
	ext := path.Ext(u.Path)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
