// Package analyzer turns raw HTML into the structured SEO fields of a
// page. It is pure data transformation: both fetch modes feed it the same
// way, and a parse failure in any one field leaves that field empty rather
// than failing the page.
package analyzer

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/seospider/seospider/internal/types"
)

const (
	maxHeadings = 10
	maxImages   = 20
)

var (
	ga4IDPattern  = regexp.MustCompile(`G-[A-Z0-9]{10}`)
	gtmIDPattern  = regexp.MustCompile(`GTM-[A-Z0-9]+`)
	wordPattern   = regexp.MustCompile(`\b\w+\b`)
	charsetInline = regexp.MustCompile(`charset=([^;]+)`)

	gaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)gtag\(`),
		regexp.MustCompile(`(?i)\bga\(`),
		regexp.MustCompile(`(?i)GoogleAnalyticsObject`),
		regexp.MustCompile(`(?i)google-analytics\.com`),
		regexp.MustCompile(`(?i)googletagmanager\.com`),
	}
	fbPixelPattern  = regexp.MustCompile(`(?i)fbq\(|facebook\.com/tr`)
	hotjarPattern   = regexp.MustCompile(`(?i)hotjar\.com|\bhj\(`)
	mixpanelPattern = regexp.MustCompile(`(?i)mixpanel\.com|mixpanel\.track`)
)

// Analyze extracts all SEO-relevant fields from an HTML document.
// baseDomain is the crawl's host, used to split internal from external
// link counts with www-insensitive comparison.
func Analyze(htmlContent, pageURL, baseDomain string) types.PageFields {
	fields := emptyFields()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return fields
	}

	extractBasics(doc, &fields)
	extractMetaTags(doc, &fields)
	extractSocialTags(doc, &fields)
	extractJSONLD(doc, &fields)
	extractAnalytics(htmlContent, &fields)
	extractImages(doc, pageURL, &fields)
	extractLinkCounts(doc, pageURL, baseDomain, &fields)
	extractHreflang(doc, &fields)
	fields.WordCount = countWords(htmlContent)

	return fields
}

func emptyFields() types.PageFields {
	return types.PageFields{
		H2:          []string{},
		H3:          []string{},
		MetaTags:    map[string]string{},
		OGTags:      map[string]string{},
		TwitterTags: map[string]string{},
		JSONLD:      []string{},
		Images:      []types.ImageRef{},
		Hreflang:    []types.Hreflang{},
	}
}

func extractBasics(doc *goquery.Document, fields *types.PageFields) {
	fields.Title = strings.TrimSpace(doc.Find("title").First().Text())
	fields.H1 = strings.TrimSpace(doc.Find("h1").First().Text())

	doc.Find("h2").EachWithBreak(func(i int, s *goquery.Selection) bool {
		fields.H2 = append(fields.H2, strings.TrimSpace(s.Text()))
		return i < maxHeadings-1
	})
	doc.Find("h3").EachWithBreak(func(i int, s *goquery.Selection) bool {
		fields.H3 = append(fields.H3, strings.TrimSpace(s.Text()))
		return i < maxHeadings-1
	})

	if lang, ok := doc.Find("html").Attr("lang"); ok {
		fields.Lang = lang
	}
	if charset, ok := doc.Find("meta[charset]").Attr("charset"); ok {
		fields.Charset = charset
	} else if content, ok := doc.Find(`meta[http-equiv="Content-Type"]`).Attr("content"); ok {
		if m := charsetInline.FindStringSubmatch(content); m != nil {
			fields.Charset = m[1]
		}
	}
	if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		fields.CanonicalURL = canonical
	}
}

func extractMetaTags(doc *goquery.Document, fields *types.PageFields) {
	doc.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		name := strings.ToLower(s.AttrOr("name", ""))
		content := s.AttrOr("content", "")
		if name == "" {
			return
		}
		fields.MetaTags[name] = content

		switch name {
		case "description":
			fields.MetaDescription = strings.TrimSpace(content)
		case "viewport":
			fields.Viewport = content
		case "robots":
			fields.Robots = content
		case "author":
			fields.Author = content
		case "keywords":
			fields.Keywords = content
		case "generator":
			fields.Generator = content
		case "theme-color":
			fields.ThemeColor = content
		}
	})
}

func extractSocialTags(doc *goquery.Document, fields *types.PageFields) {
	doc.Find("meta[property]").Each(func(_ int, s *goquery.Selection) {
		prop := s.AttrOr("property", "")
		if strings.HasPrefix(prop, "og:") {
			fields.OGTags[strings.TrimPrefix(prop, "og:")] = s.AttrOr("content", "")
		}
	})
	doc.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if strings.HasPrefix(name, "twitter:") {
			fields.TwitterTags[strings.TrimPrefix(name, "twitter:")] = s.AttrOr("content", "")
		}
	})
}

func extractJSONLD(doc *goquery.Document, fields *types.PageFields) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" || !json.Valid([]byte(raw)) {
			return
		}
		fields.JSONLD = append(fields.JSONLD, raw)
	})
}

func extractAnalytics(htmlContent string, fields *types.PageFields) {
	if m := ga4IDPattern.FindString(htmlContent); m != "" {
		fields.Analytics.GA4ID = m
		fields.Analytics.Gtag = true
	}
	if m := gtmIDPattern.FindString(htmlContent); m != "" {
		fields.Analytics.GTMID = m
	}
	for _, p := range gaPatterns {
		if p.MatchString(htmlContent) {
			fields.Analytics.GoogleAnalytics = true
			break
		}
	}
	fields.Analytics.FacebookPixel = fbPixelPattern.MatchString(htmlContent)
	fields.Analytics.Hotjar = hotjarPattern.MatchString(htmlContent)
	fields.Analytics.Mixpanel = mixpanelPattern.MatchString(htmlContent)
}

func extractImages(doc *goquery.Document, pageURL string, fields *types.PageFields) {
	doc.Find("img").EachWithBreak(func(i int, s *goquery.Selection) bool {
		src := s.AttrOr("src", "")
		if src != "" {
			if abs := NormalizeURL(src, pageURL); abs != "" {
				fields.Images = append(fields.Images, types.ImageRef{
					Src:    abs,
					Alt:    s.AttrOr("alt", ""),
					Width:  s.AttrOr("width", ""),
					Height: s.AttrOr("height", ""),
				})
			}
		}
		return i < maxImages-1
	})
}

func extractLinkCounts(doc *goquery.Document, pageURL, baseDomain string, fields *types.PageFields) {
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		abs := NormalizeURL(href, pageURL)
		if abs == "" {
			return
		}
		if SameSite(abs, baseDomain) {
			fields.InternalLinks++
		} else {
			fields.ExternalLinks++
		}
	})
}

func extractHreflang(doc *goquery.Document, fields *types.PageFields) {
	doc.Find(`link[rel="alternate"][hreflang]`).Each(func(_ int, s *goquery.Selection) {
		lang := s.AttrOr("hreflang", "")
		href := s.AttrOr("href", "")
		if lang != "" && href != "" {
			fields.Hreflang = append(fields.Hreflang, types.Hreflang{Lang: lang, URL: href})
		}
	})
}

// countWords counts words in the rendered text of the document, skipping
// script and style bodies.
func countWords(htmlContent string) int {
	node, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return 0
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)

	return len(wordPattern.FindAllString(sb.String(), -1))
}
