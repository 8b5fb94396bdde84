// Package issues is the rule engine that turns a PageResult into audit
// findings. Detection is pure and stateless: the same result always yields
// the same issues.
package issues

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/seospider/seospider/internal/types"
)

const (
	categorySEO       = "SEO"
	categoryTechnical = "Technical"
	categoryContent   = "Content"
	categoryMobile    = "Mobile"
	categorySocial    = "Social"
	categorySecurity  = "Security"
	categoryURL       = "URL"
)

// utilityPathHints mark pages whose missing SEO fields are expected, so
// their findings are downgraded rather than dropped.
var utilityPathHints = []string{
	"/thank-you", "/thankyou", "/confirmation",
	"/privacy-policy", "/privacy", "/terms", "/legal",
	"/cookie-policy", "/gdpr", "/dmca",
	"/login", "/register", "/signup", "/account",
	"/cart", "/checkout", "/wishlist",
	"/search", "/404", "/error",
}

// Detector evaluates the audit rules, skipping excluded paths.
type Detector struct {
	exclusions []string
}

// NewDetector creates a detector with the given glob exclusion list.
func NewDetector(exclusions []string) *Detector {
	return &Detector{exclusions: exclusions}
}

// Detect returns all findings for one page. Pages matching an exclusion
// glob produce no findings at all.
func (d *Detector) Detect(result types.PageResult) []types.Issue {
	if d.excluded(result.URL) {
		return nil
	}

	if result.StatusCode == 0 {
		details := "Failed to connect to server or request blocked"
		if result.Error != nil {
			details = *result.Error
		}
		return []types.Issue{{
			URL:      result.URL,
			Severity: types.SeverityError,
			Category: categoryTechnical,
			Name:     "Connection Failed",
			Details:  details,
		}}
	}

	var found []types.Issue
	add := func(severity types.Severity, category, name, details string) {
		found = append(found, types.Issue{
			URL:      result.URL,
			Severity: severity,
			Category: category,
			Name:     name,
			Details:  details,
		})
	}

	utility := isUtilityPage(result.URL)

	checkStatus(result, add)
	if isHTML(result) {
		checkTitle(result, utility, add)
		checkMetaDescription(result, utility, add)
		checkHeadings(result, add)
		checkContent(result, add)
		checkIndexability(result, add)
		checkMobile(result, add)
		checkSocial(result, add)
		checkImages(result, add)
		checkStructuredData(result, add)
	}
	checkSecurity(result, add)
	checkURLShape(result, add)

	return found
}

func (d *Detector) excluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.Path
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	for _, pattern := range d.exclusions {
		if matchGlob(pattern, path) {
			return true
		}
	}
	return false
}

func isHTML(r types.PageResult) bool {
	return r.StatusCode == 200 && strings.Contains(r.ContentType, "text/html")
}

func isUtilityPage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, hint := range utilityPathHints {
		if strings.Contains(path, hint) {
			return true
		}
	}
	return false
}

type addFunc func(severity types.Severity, category, name, details string)

func checkStatus(r types.PageResult, add addFunc) {
	switch {
	case r.StatusCode >= 500:
		add(types.SeverityError, categoryTechnical, "Server Error",
			fmt.Sprintf("Page returned status %d", r.StatusCode))
	case r.StatusCode >= 400:
		add(types.SeverityError, categoryTechnical, "Client Error",
			fmt.Sprintf("Page returned status %d", r.StatusCode))
	case r.StatusCode >= 300:
		add(types.SeverityInfo, categoryTechnical, "Redirect",
			fmt.Sprintf("Page returned status %d", r.StatusCode))
	}
}

func checkTitle(r types.PageResult, utility bool, add addFunc) {
	title := r.Fields.Title

	if title == "" {
		if utility {
			add(types.SeverityWarning, categorySEO, "Missing Title Tag (Utility)",
				"Page has no title tag (utility page, lower priority)")
		} else {
			add(types.SeverityError, categorySEO, "Missing Title Tag",
				"Page has no title tag")
		}
		return
	}

	if len(title) > 60 {
		add(types.SeverityWarning, categorySEO, "Title Over 60 Characters",
			fmt.Sprintf("Title is %d characters", len(title)))
	}
	if len(title) < 30 {
		add(types.SeverityWarning, categorySEO, "Title Too Short",
			fmt.Sprintf("Title is %d characters (recommended: 30-60)", len(title)))
	}
}

func checkMetaDescription(r types.PageResult, utility bool, add addFunc) {
	desc := r.Fields.MetaDescription

	if desc == "" {
		severity := types.SeverityWarning
		if utility {
			severity = types.SeverityInfo
		}
		add(severity, categorySEO, "Missing Meta Description",
			"Page has no meta description")
		return
	}

	if len(desc) > 155 {
		add(types.SeverityWarning, categorySEO, "Meta Description Over 155 Characters",
			fmt.Sprintf("Description is %d characters", len(desc)))
	}
}

func checkHeadings(r types.PageResult, add addFunc) {
	if r.Fields.H1 == "" {
		add(types.SeverityWarning, categorySEO, "Missing H1",
			"Page has no h1 heading")
	}
}

func checkContent(r types.PageResult, add addFunc) {
	if r.Fields.WordCount > 0 && r.Fields.WordCount < 300 {
		add(types.SeverityInfo, categoryContent, "Thin Content",
			fmt.Sprintf("Page has only %d words", r.Fields.WordCount))
	}
}

func checkIndexability(r types.PageResult, add addFunc) {
	robots := strings.ToLower(r.Fields.Robots)
	if strings.Contains(robots, "noindex") {
		add(types.SeverityWarning, categoryTechnical, "Noindex Meta Tag",
			"Page is excluded from search indexes")
	}

	canonical := r.Fields.CanonicalURL
	if canonical != "" && normalizeForComparison(canonical) != normalizeForComparison(r.URL) {
		add(types.SeverityInfo, categoryTechnical, "Canonicalized URL",
			fmt.Sprintf("Canonical points to %s", canonical))
	}
}

func checkMobile(r types.PageResult, add addFunc) {
	if r.Fields.Viewport == "" {
		add(types.SeverityWarning, categoryMobile, "Missing Viewport Meta Tag",
			"Page has no viewport meta tag")
	}
}

func checkSocial(r types.PageResult, add addFunc) {
	if len(r.Fields.OGTags) == 0 {
		add(types.SeverityInfo, categorySocial, "Missing Open Graph Tags",
			"Page has no og: meta tags")
	}
	if len(r.Fields.TwitterTags) == 0 {
		add(types.SeverityInfo, categorySocial, "Missing Twitter Card Tags",
			"Page has no twitter: meta tags")
	}
}

func checkImages(r types.PageResult, add addFunc) {
	missing := 0
	for _, img := range r.Fields.Images {
		if img.Alt == "" {
			missing++
		}
	}
	if missing > 0 {
		add(types.SeverityWarning, categorySEO, "Images Missing Alt Text",
			fmt.Sprintf("%d of %d images have no alt attribute", missing, len(r.Fields.Images)))
	}
}

func checkStructuredData(r types.PageResult, add addFunc) {
	schemaTypes := make([]string, 0)
	for _, block := range r.Fields.JSONLD {
		var payload struct {
			Type any `json:"@type"`
		}
		if err := json.Unmarshal([]byte(block), &payload); err != nil {
			continue
		}
		if t, ok := payload.Type.(string); ok && t != "" {
			schemaTypes = append(schemaTypes, t)
		}
	}
	if len(schemaTypes) > 0 {
		add(types.SeverityInfo, categorySEO, "Structured Data Detected",
			fmt.Sprintf("JSON-LD types: %s", strings.Join(schemaTypes, ", ")))
	}
}

func checkSecurity(r types.PageResult, add addFunc) {
	if strings.HasPrefix(r.URL, "http://") {
		add(types.SeverityWarning, categorySecurity, "Page Served Over HTTP",
			"Page is not served over HTTPS")
	}
}

func checkURLShape(r types.PageResult, add addFunc) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return
	}
	if len(r.URL) > 115 {
		add(types.SeverityInfo, categoryURL, "URL Over 115 Characters",
			fmt.Sprintf("URL is %d characters", len(r.URL)))
	}
	if u.Path != strings.ToLower(u.Path) {
		add(types.SeverityInfo, categoryURL, "Uppercase Characters In URL",
			"URL path contains uppercase characters")
	}
	if strings.Contains(u.Path, "_") {
		add(types.SeverityInfo, categoryURL, "Underscores In URL",
			"URL path contains underscores")
	}
}

// normalizeForComparison lowercases and strips the trailing slash so that
// canonical comparisons ignore cosmetic differences.
func normalizeForComparison(rawURL string) string {
	u, err := url.Parse(strings.ToLower(rawURL))
	if err != nil {
		return strings.TrimRight(strings.ToLower(rawURL), "/")
	}
	path := strings.TrimRight(u.Path, "/")
	normalized := u.Scheme + "://" + u.Host + path
	if u.RawQuery != "" {
		normalized += "?" + u.RawQuery
	}
	return normalized
}

// matchGlob matches path globs where '*' spans any run of characters,
// including slashes, and '?' matches one character. This mirrors how the
// exclusion lists are written ("/wp-admin/*" covers the whole subtree).
func matchGlob(pattern, s string) bool {
	return matchHere(pattern, s)
}

func matchHere(pattern, s string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for i := len(s); i >= 0; i-- {
				if matchHere(pattern[1:], s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
		default:
			if len(s) == 0 || pattern[0] != s[0] {
				return false
			}
		}
		pattern = pattern[1:]
		s = s[1:]
	}
	return len(s) == 0
}
