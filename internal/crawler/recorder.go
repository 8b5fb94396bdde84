package crawler

import (
	"sync"

	"github.com/seospider/seospider/internal/types"
)

// recorder accumulates crawl output. Each collection has its own lock so a
// status snapshot never blocks behind a page append. Where both the page and
// link locks are needed, the order is always pagesMu then linksMu, so an
// edge insert and the page that resolves its target status can never miss
// each other.
type recorder struct {
	pagesMu sync.Mutex
	pages   []types.PageResult
	// status holds the final HTTP status per crawled URL, used to fill in
	// TargetStatus on link edges whenever either side arrives first.
	status map[string]int

	linksMu   sync.Mutex
	links     []types.LinkEdge
	edgeSeen  map[string]struct{} // source|target
	byTarget  map[string][]int    // target URL -> indexes into links
	speedMu   sync.Mutex
	pageSpeed []types.PageSpeedResult

	issuesMu sync.Mutex
	issues   []types.Issue
}

func newRecorder() *recorder {
	return &recorder{
		status:   make(map[string]int),
		edgeSeen: make(map[string]struct{}),
		byTarget: make(map[string][]int),
	}
}

// AddPage stores a crawled page and back-fills the target status on every
// edge already pointing at it.
func (r *recorder) AddPage(p types.PageResult) {
	r.pagesMu.Lock()
	defer r.pagesMu.Unlock()
	r.pages = append(r.pages, p)
	r.status[p.URL] = p.StatusCode

	r.linksMu.Lock()
	for _, idx := range r.byTarget[p.URL] {
		code := p.StatusCode
		r.links[idx].TargetStatus = &code
	}
	r.linksMu.Unlock()
}

// AddEdges merges newly discovered edges, deduplicated by (source, target).
func (r *recorder) AddEdges(edges []types.LinkEdge) {
	if len(edges) == 0 {
		return
	}
	r.pagesMu.Lock()
	defer r.pagesMu.Unlock()
	r.linksMu.Lock()
	defer r.linksMu.Unlock()
	for _, e := range edges {
		key := e.SourceURL + "|" + e.TargetURL
		if _, dup := r.edgeSeen[key]; dup {
			continue
		}
		r.edgeSeen[key] = struct{}{}
		if code, ok := r.status[e.TargetURL]; ok {
			c := code
			e.TargetStatus = &c
		}
		r.links = append(r.links, e)
		r.byTarget[e.TargetURL] = append(r.byTarget[e.TargetURL], len(r.links)-1)
	}
}

func (r *recorder) AddIssues(issues []types.Issue) {
	if len(issues) == 0 {
		return
	}
	r.issuesMu.Lock()
	r.issues = append(r.issues, issues...)
	r.issuesMu.Unlock()
}

func (r *recorder) AddPageSpeed(results []types.PageSpeedResult) {
	if len(results) == 0 {
		return
	}
	r.speedMu.Lock()
	r.pageSpeed = append(r.pageSpeed, results...)
	r.speedMu.Unlock()
}

// Pages returns a copy of the crawled pages.
func (r *recorder) Pages() []types.PageResult {
	r.pagesMu.Lock()
	defer r.pagesMu.Unlock()
	out := make([]types.PageResult, len(r.pages))
	copy(out, r.pages)
	return out
}

// Links returns a copy of the link edges.
func (r *recorder) Links() []types.LinkEdge {
	r.linksMu.Lock()
	defer r.linksMu.Unlock()
	out := make([]types.LinkEdge, len(r.links))
	copy(out, r.links)
	return out
}

// Issues returns a copy of the detected issues.
func (r *recorder) Issues() []types.Issue {
	r.issuesMu.Lock()
	defer r.issuesMu.Unlock()
	out := make([]types.Issue, len(r.issues))
	copy(out, r.issues)
	return out
}

// PageSpeed returns a copy of the audit results.
func (r *recorder) PageSpeed() []types.PageSpeedResult {
	r.speedMu.Lock()
	defer r.speedMu.Unlock()
	out := make([]types.PageSpeedResult, len(r.pageSpeed))
	copy(out, r.pageSpeed)
	return out
}

func (r *recorder) PageCount() int {
	r.pagesMu.Lock()
	defer r.pagesMu.Unlock()
	return len(r.pages)
}
