package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/seospider/seospider/internal/types"
)

func intPtr(v int) *int { return &v }

func sampleSnapshot() types.Snapshot {
	errMsg := "connection refused"
	return types.Snapshot{
		State: types.StateCompleted,
		Pages: []types.PageResult{
			{
				URL: "https://example.com/", StatusCode: 200, ContentType: "text/html",
				Size: 1234, IsInternal: true, Depth: 0, ResponseTime: 42.5,
				Fields:    types.PageFields{Title: "Home", WordCount: 500},
				CrawledAt: time.Now(),
			},
			{
				URL: "https://example.com/down", StatusCode: 0, Depth: 1,
				IsInternal: true, Error: &errMsg, CrawledAt: time.Now(),
			},
		},
		Links: []types.LinkEdge{
			{SourceURL: "https://example.com/", TargetURL: "https://example.com/a", IsInternal: true, TargetStatus: intPtr(200)},
			{SourceURL: "https://example.com/", TargetURL: "https://example.com/gone", IsInternal: true, TargetStatus: intPtr(404)},
			{SourceURL: "https://example.com/", TargetURL: "https://other.com/", AnchorText: "out"},
		},
		Issues: []types.Issue{
			{URL: "https://example.com/", Severity: types.SeverityWarning, Category: "seo", Name: "Title Too Short"},
			{URL: "https://example.com/down", Severity: types.SeverityError, Category: "technical", Name: "Connection Failed"},
		},
		PageSpeed: []types.PageSpeedResult{
			{URL: "https://example.com/", Strategy: "mobile", Success: true, PerformanceScore: 91,
				Metrics: &types.PageSpeedMetrics{FirstContentfulPaint: 1100}},
		},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveSnapshot(sampleSnapshot()); err != nil {
		t.Fatalf("saving snapshot: %v", err)
	}

	n, err := s.PageCount()
	if err != nil {
		t.Fatalf("counting pages: %v", err)
	}
	if n != 2 {
		t.Errorf("page count = %d, want 2", n)
	}

	counts, err := s.IssueCountBySeverity()
	if err != nil {
		t.Fatalf("counting issues: %v", err)
	}
	if counts["error"] != 1 || counts["warning"] != 1 {
		t.Errorf("issue counts = %v", counts)
	}
}

func TestSaveSnapshotReplacesPreviousRun(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveSnapshot(sampleSnapshot()); err != nil {
		t.Fatalf("first save: %v", err)
	}

	small := types.Snapshot{Pages: []types.PageResult{
		{URL: "https://example.com/", StatusCode: 200, CrawledAt: time.Now()},
	}}
	if err := s.SaveSnapshot(small); err != nil {
		t.Fatalf("second save: %v", err)
	}

	n, _ := s.PageCount()
	if n != 1 {
		t.Errorf("page count after replace = %d, want 1", n)
	}
	counts, _ := s.IssueCountBySeverity()
	if len(counts) != 0 {
		t.Errorf("issues survived replacement: %v", counts)
	}
}

func TestBrokenLinks(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveSnapshot(sampleSnapshot()); err != nil {
		t.Fatalf("saving snapshot: %v", err)
	}

	broken, err := s.BrokenLinks()
	if err != nil {
		t.Fatalf("querying broken links: %v", err)
	}
	if len(broken) != 1 {
		t.Fatalf("broken links = %d, want 1", len(broken))
	}
	if broken[0].TargetURL != "https://example.com/gone" {
		t.Errorf("broken target = %s", broken[0].TargetURL)
	}
	if broken[0].TargetStatus == nil || *broken[0].TargetStatus != 404 {
		t.Errorf("broken status = %v, want 404", broken[0].TargetStatus)
	}
}
