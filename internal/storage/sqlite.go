// Package storage persists finished crawl results to SQLite for later
// querying. The live crawl never touches the database; a snapshot is
// written in one transaction after the crawl settles.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/seospider/seospider/internal/types"
)

// Store wraps the SQLite database holding audit results.
type Store struct {
	db *sql.DB
}

// Open creates or opens the results database and ensures the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT UNIQUE NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		size INTEGER,
		depth INTEGER NOT NULL,
		is_internal INTEGER NOT NULL,
		response_time_ms REAL,
		rendered INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		title TEXT,
		meta_description TEXT,
		h1 TEXT,
		word_count INTEGER,
		canonical_url TEXT,
		crawled_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(status_code);
	CREATE INDEX IF NOT EXISTS idx_pages_depth ON pages(depth);

	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_url TEXT NOT NULL,
		target_url TEXT NOT NULL,
		anchor_text TEXT,
		is_internal INTEGER NOT NULL,
		target_domain TEXT,
		target_status INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_url);
	CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_url);

	CREATE TABLE IF NOT EXISTS issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		severity TEXT NOT NULL,
		category TEXT NOT NULL,
		name TEXT NOT NULL,
		details TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_issues_url ON issues(url);
	CREATE INDEX IF NOT EXISTS idx_issues_severity ON issues(severity);

	CREATE TABLE IF NOT EXISTS pagespeed (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		strategy TEXT NOT NULL,
		success INTEGER NOT NULL,
		performance_score INTEGER,
		first_contentful_paint REAL,
		largest_contentful_paint REAL,
		cumulative_layout_shift REAL,
		speed_index REAL,
		time_to_interactive REAL,
		error TEXT
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveSnapshot writes a full crawl snapshot in one transaction. Existing
// rows are cleared first so the database always reflects the latest run.
func (s *Store) SaveSnapshot(snap types.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"pages", "links", "issues", "pagespeed"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if err := savePages(tx, snap.Pages); err != nil {
		return err
	}
	if err := saveLinks(tx, snap.Links); err != nil {
		return err
	}
	if err := saveIssues(tx, snap.Issues); err != nil {
		return err
	}
	if err := savePageSpeed(tx, snap.PageSpeed); err != nil {
		return err
	}
	return tx.Commit()
}

func savePages(tx *sql.Tx, pages []types.PageResult) error {
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO pages
		(url, status_code, content_type, size, depth, is_internal,
		 response_time_ms, rendered, error, title, meta_description, h1,
		 word_count, canonical_url, crawled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pages {
		var errText sql.NullString
		if p.Error != nil {
			errText = sql.NullString{String: *p.Error, Valid: true}
		}
		_, err := stmt.Exec(
			p.URL, p.StatusCode, p.ContentType, p.Size, p.Depth, p.IsInternal,
			p.ResponseTime, p.Rendered, errText, p.Fields.Title,
			p.Fields.MetaDescription, p.Fields.H1, p.Fields.WordCount,
			p.Fields.CanonicalURL, p.CrawledAt,
		)
		if err != nil {
			return fmt.Errorf("saving page %s: %w", p.URL, err)
		}
	}
	return nil
}

func saveLinks(tx *sql.Tx, links []types.LinkEdge) error {
	stmt, err := tx.Prepare(`
		INSERT INTO links
		(source_url, target_url, anchor_text, is_internal, target_domain, target_status)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range links {
		var status sql.NullInt64
		if l.TargetStatus != nil {
			status = sql.NullInt64{Int64: int64(*l.TargetStatus), Valid: true}
		}
		if _, err := stmt.Exec(l.SourceURL, l.TargetURL, l.AnchorText, l.IsInternal, l.TargetDomain, status); err != nil {
			return fmt.Errorf("saving link %s -> %s: %w", l.SourceURL, l.TargetURL, err)
		}
	}
	return nil
}

func saveIssues(tx *sql.Tx, issues []types.Issue) error {
	stmt, err := tx.Prepare(`
		INSERT INTO issues (url, severity, category, name, details)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, i := range issues {
		if _, err := stmt.Exec(i.URL, string(i.Severity), i.Category, i.Name, i.Details); err != nil {
			return fmt.Errorf("saving issue %s for %s: %w", i.Name, i.URL, err)
		}
	}
	return nil
}

func savePageSpeed(tx *sql.Tx, results []types.PageSpeedResult) error {
	stmt, err := tx.Prepare(`
		INSERT INTO pagespeed
		(url, strategy, success, performance_score, first_contentful_paint,
		 largest_contentful_paint, cumulative_layout_shift, speed_index,
		 time_to_interactive, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		m := r.Metrics
		if m == nil {
			m = &types.PageSpeedMetrics{}
		}
		_, err := stmt.Exec(
			r.URL, r.Strategy, r.Success, r.PerformanceScore,
			m.FirstContentfulPaint, m.LargestContentfulPaint,
			m.CumulativeLayoutShift, m.SpeedIndex, m.TimeToInteractive,
			r.Error,
		)
		if err != nil {
			return fmt.Errorf("saving pagespeed for %s: %w", r.URL, err)
		}
	}
	return nil
}

// PageCount returns the number of stored pages.
func (s *Store) PageCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM pages").Scan(&n)
	return n, err
}

// IssueCountBySeverity returns issue totals keyed by severity.
func (s *Store) IssueCountBySeverity() (map[string]int, error) {
	rows, err := s.db.Query("SELECT severity, COUNT(*) FROM issues GROUP BY severity")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var severity string
		var n int
		if err := rows.Scan(&severity, &n); err != nil {
			return nil, err
		}
		out[severity] = n
	}
	return out, rows.Err()
}

// BrokenLinks returns internal edges whose target answered 4xx or 5xx.
func (s *Store) BrokenLinks() ([]types.LinkEdge, error) {
	rows, err := s.db.Query(`
		SELECT source_url, target_url, anchor_text, is_internal, target_domain, target_status
		FROM links WHERE target_status >= 400
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.LinkEdge
	for rows.Next() {
		var e types.LinkEdge
		var status sql.NullInt64
		if err := rows.Scan(&e.SourceURL, &e.TargetURL, &e.AnchorText, &e.IsInternal, &e.TargetDomain, &status); err != nil {
			return nil, err
		}
		if status.Valid {
			v := int(status.Int64)
			e.TargetStatus = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
