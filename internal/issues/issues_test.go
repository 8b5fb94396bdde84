package issues

import (
	"reflect"
	"testing"

	"github.com/seospider/seospider/internal/types"
)

func htmlResult(url string) types.PageResult {
	return types.PageResult{
		URL:         url,
		StatusCode:  200,
		ContentType: "text/html",
		Fields: types.PageFields{
			Title:           "A perfectly reasonable page title here",
			MetaDescription: "A meta description of sufficient length for the audit rules.",
			H1:              "Heading",
			WordCount:       500,
			Viewport:        "width=device-width",
			OGTags:          map[string]string{"title": "x"},
			TwitterTags:     map[string]string{"card": "summary"},
		},
	}
}

func findByName(issues []types.Issue, name string) []types.Issue {
	var out []types.Issue
	for _, i := range issues {
		if i.Name == name {
			out = append(out, i)
		}
	}
	return out
}

func TestMissingTitleTag(t *testing.T) {
	d := NewDetector(nil)
	r := htmlResult("https://example.com/page")
	r.Fields.Title = ""

	got := findByName(d.Detect(r), "Missing Title Tag")
	if len(got) != 1 {
		t.Fatalf("Missing Title Tag issues = %d, want 1", len(got))
	}
	if got[0].Severity != types.SeverityError || got[0].Category != "SEO" {
		t.Errorf("issue = %+v, want severity=error category=SEO", got[0])
	}
}

func TestUtilityPageDowngradesTitle(t *testing.T) {
	d := NewDetector(nil)
	r := htmlResult("https://example.com/login")
	r.Fields.Title = ""

	issues := d.Detect(r)
	if len(findByName(issues, "Missing Title Tag")) != 0 {
		t.Error("utility page should not produce the error-level missing title issue")
	}
	got := findByName(issues, "Missing Title Tag (Utility)")
	if len(got) != 1 || got[0].Severity != types.SeverityWarning {
		t.Errorf("utility missing title = %v, want one warning", got)
	}
}

func TestTitleLengthRules(t *testing.T) {
	d := NewDetector(nil)

	r := htmlResult("https://example.com/page")
	r.Fields.Title = "Short"
	if len(findByName(d.Detect(r), "Title Too Short")) != 1 {
		t.Error("want Title Too Short for 5-char title")
	}

	r.Fields.Title = "This title is far too long to fit inside a search result snippet without truncation"
	if len(findByName(d.Detect(r), "Title Over 60 Characters")) != 1 {
		t.Error("want Title Over 60 Characters")
	}
}

func TestConnectionFailedShortCircuits(t *testing.T) {
	d := NewDetector(nil)
	msg := "connection refused"
	r := types.PageResult{URL: "https://example.com/down", StatusCode: 0, Error: &msg}

	issues := d.Detect(r)
	if len(issues) != 1 {
		t.Fatalf("issues = %d, want exactly 1", len(issues))
	}
	if issues[0].Name != "Connection Failed" || issues[0].Details != msg {
		t.Errorf("issue = %+v", issues[0])
	}
}

func TestStatusRules(t *testing.T) {
	d := NewDetector(nil)

	r := types.PageResult{URL: "https://example.com/missing", StatusCode: 404}
	if len(findByName(d.Detect(r), "Client Error")) != 1 {
		t.Error("want Client Error for 404")
	}

	r.StatusCode = 503
	if len(findByName(d.Detect(r), "Server Error")) != 1 {
		t.Error("want Server Error for 503")
	}
}

func TestNoindexAndCanonical(t *testing.T) {
	d := NewDetector(nil)

	r := htmlResult("https://example.com/page")
	r.Fields.Robots = "noindex, nofollow"
	if len(findByName(d.Detect(r), "Noindex Meta Tag")) != 1 {
		t.Error("want Noindex Meta Tag")
	}

	r = htmlResult("https://example.com/page")
	r.Fields.CanonicalURL = "https://example.com/other"
	if len(findByName(d.Detect(r), "Canonicalized URL")) != 1 {
		t.Error("want Canonicalized URL for mismatched canonical")
	}

	// Trailing slash is cosmetic, not a canonical mismatch.
	r.Fields.CanonicalURL = "https://example.com/page/"
	if len(findByName(d.Detect(r), "Canonicalized URL")) != 0 {
		t.Error("trailing-slash canonical should not be a mismatch")
	}
}

func TestExclusionGlobs(t *testing.T) {
	d := NewDetector([]string{"/wp-admin/*", "*.json"})

	r := htmlResult("https://example.com/wp-admin/options.php")
	r.Fields.Title = ""
	if issues := d.Detect(r); len(issues) != 0 {
		t.Errorf("excluded path produced %d issues, want 0", len(issues))
	}

	r = htmlResult("https://example.com/data/feed.json")
	if issues := d.Detect(r); len(issues) != 0 {
		t.Errorf("excluded extension produced %d issues, want 0", len(issues))
	}
}

func TestDetectIsPure(t *testing.T) {
	d := NewDetector(nil)
	r := htmlResult("https://example.com/Page_one")
	r.Fields.Title = ""
	r.Fields.Viewport = ""

	a := d.Detect(r)
	b := d.Detect(r)
	if !reflect.DeepEqual(a, b) {
		t.Error("Detect() not deterministic for identical input")
	}
}

func TestImagesMissingAlt(t *testing.T) {
	d := NewDetector(nil)
	r := htmlResult("https://example.com/page")
	r.Fields.Images = []types.ImageRef{
		{Src: "https://example.com/a.png", Alt: "ok"},
		{Src: "https://example.com/b.png"},
	}

	got := findByName(d.Detect(r), "Images Missing Alt Text")
	if len(got) != 1 {
		t.Fatal("want Images Missing Alt Text issue")
	}
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern, path string
		want          bool
	}{
		{"/wp-admin/*", "/wp-admin/deep/nested/file.php", true},
		{"/wp-admin/*", "/wp-admin/", true},
		{"/wp-admin/*", "/public/page", false},
		{"*.json", "/api/data.json", true},
		{"*.json", "/api/data.jsonl", false},
		{"/login*", "/login?next=/home", true},
		{"/search*", "/search", true},
	}
	for _, tt := range tests {
		if got := matchGlob(tt.pattern, tt.path); got != tt.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}
