// Package export writes crawl results to files: JSON for the full report,
// CSV for spreadsheets, and an XML sitemap built from the crawled pages.
package export

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/seospider/seospider/internal/types"
)

type Exporter struct {
	outputDir string
}

func NewExporter(outputDir string) (*Exporter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Exporter{outputDir: outputDir}, nil
}

func (e *Exporter) path(name string) string {
	return filepath.Join(e.outputDir, name)
}

// ExportJSON writes the full snapshot, pages, links and issues included.
func (e *Exporter) ExportJSON(snap types.Snapshot, filename string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(e.path(filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	return nil
}

// ExportPagesCSV writes one row per crawled page.
func (e *Exporter) ExportPagesCSV(pages []types.PageResult, filename string) error {
	file, err := os.Create(e.path(filename))
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	headers := []string{
		"URL", "StatusCode", "ContentType", "Size", "Depth", "Title",
		"MetaDescription", "H1", "WordCount", "ResponseTimeMs", "Error", "CrawledAt",
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range pages {
		errText := ""
		if p.Error != nil {
			errText = *p.Error
		}
		record := []string{
			p.URL,
			strconv.Itoa(p.StatusCode),
			p.ContentType,
			strconv.FormatInt(p.Size, 10),
			strconv.Itoa(p.Depth),
			p.Fields.Title,
			p.Fields.MetaDescription,
			p.Fields.H1,
			strconv.Itoa(p.Fields.WordCount),
			strconv.FormatFloat(p.ResponseTime, 'f', 1, 64),
			errText,
			p.CrawledAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	return nil
}

// ExportIssuesCSV writes one row per detected issue.
func (e *Exporter) ExportIssuesCSV(issues []types.Issue, filename string) error {
	file, err := os.Create(e.path(filename))
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"URL", "Severity", "Category", "Name", "Details"}); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, i := range issues {
		record := []string{i.URL, string(i.Severity), i.Category, i.Name, i.Details}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	return nil
}

// URLSet is the XML sitemap root element.
type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

// URL is a single sitemap entry.
type URL struct {
	Loc        string  `xml:"loc"`
	Lastmod    string  `xml:"lastmod,omitempty"`
	Changefreq string  `xml:"changefreq,omitempty"`
	Priority   float64 `xml:"priority,omitempty"`
}

// ExportSitemap writes an XML sitemap of every internal page that answered
// 200. Returns the number of URLs written.
func (e *Exporter) ExportSitemap(pages []types.PageResult, filename string) (int, error) {
	urlSet := URLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]URL, 0),
	}
	for _, p := range pages {
		if !p.IsInternal || p.StatusCode != 200 || p.Error != nil {
			continue
		}
		urlSet.URLs = append(urlSet.URLs, URL{
			Loc:      p.URL,
			Lastmod:  p.CrawledAt.Format(time.RFC3339),
			Priority: 0.8,
		})
	}

	output, err := xml.MarshalIndent(urlSet, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal XML: %w", err)
	}
	content := []byte(xml.Header + string(output) + "\n")
	if err := os.WriteFile(e.path(filename), content, 0644); err != nil {
		return 0, fmt.Errorf("failed to write sitemap: %w", err)
	}
	return len(urlSet.URLs), nil
}
