package analyzer

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seospider/seospider/internal/types"
)

const maxAnchorText = 100

// ExtractEdges collects every anchor on the page as a LinkEdge,
// deduplicated by (source, target). Both fetch modes consume this the same
// way; the crawler decides separately which targets enter the frontier.
func ExtractEdges(htmlContent, sourceURL, baseDomain string) []types.LinkEdge {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	edges := make([]types.LinkEdge, 0)
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		target := NormalizeURL(href, sourceURL)
		if target == "" || target == sourceURL {
			return
		}
		if _, ok := seen[target]; ok {
			return
		}
		seen[target] = struct{}{}

		anchor := strings.TrimSpace(s.Text())
		// Truncate on rune boundaries so multi-byte text stays valid UTF-8.
		if runes := []rune(anchor); len(runes) > maxAnchorText {
			anchor = string(runes[:maxAnchorText])
		}
		if anchor == "" {
			anchor = "(no text)"
		}

		parsed, err := url.Parse(target)
		if err != nil {
			return
		}

		edges = append(edges, types.LinkEdge{
			SourceURL:    sourceURL,
			TargetURL:    target,
			AnchorText:   anchor,
			IsInternal:   SameSite(target, baseDomain),
			TargetDomain: parsed.Host,
		})
	})

	return edges
}

// NormalizeURL resolves href against base, strips the fragment, and rejects
// non-navigable schemes. Returns "" for anything that cannot become a
// crawlable absolute URL.
func NormalizeURL(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") {
		return ""
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// SameSite reports whether the URL's host matches baseDomain, treating
// "www." prefixes as equivalent.
func SameSite(rawURL, baseDomain string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return stripWWW(u.Host) == stripWWW(baseDomain)
}

func stripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
