package sitemap

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync/atomic"
	"testing"
)

func TestDiscoverSimpleSitemap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>https://example.com/a</loc></url>
	<url><loc>https://example.com/b</loc></url>
</urlset>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	b := New(srv.Client(), nil)
	urls := b.Discover(srv.URL + "/")

	sort.Strings(urls)
	if len(urls) != 2 {
		t.Fatalf("Discover() found %d URLs, want 2: %v", len(urls), urls)
	}
	if urls[0] != "https://example.com/a" {
		t.Errorf("urls[0] = %q", urls[0])
	}
}

func TestDiscoverNestedIndex(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<sitemap><loc>%s/pages.xml</loc></sitemap>
</sitemapindex>`, srv.URL)
	})
	mux.HandleFunc("/pages.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<urlset><url><loc>https://example.com/nested</loc></url></urlset>`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	b := New(srv.Client(), nil)
	urls := b.Discover(srv.URL + "/")

	if len(urls) != 1 || urls[0] != "https://example.com/nested" {
		t.Errorf("Discover() = %v, want [https://example.com/nested]", urls)
	}
}

func TestDiscoverFromRobots(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nSitemap: %s/custom-map.xml\n", srv.URL)
	})
	mux.HandleFunc("/custom-map.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<urlset><url><loc>https://example.com/from-robots</loc></url></urlset>`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	b := New(srv.Client(), nil)
	urls := b.Discover(srv.URL + "/")

	if len(urls) != 1 || urls[0] != "https://example.com/from-robots" {
		t.Errorf("Discover() = %v, want URL from robots-declared sitemap", urls)
	}
}

func TestDiscoverGzipSitemap(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte(`<urlset><url><loc>https://example.com/zipped</loc></url></urlset>`))
	gz.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	b := New(srv.Client(), nil)
	urls := b.Discover(srv.URL + "/")

	if len(urls) != 1 || urls[0] != "https://example.com/zipped" {
		t.Errorf("Discover() = %v, want gzip-decoded URL", urls)
	}
}

func TestCycleDoesNotLoop(t *testing.T) {
	var srv *httptest.Server
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprintf(w, `<sitemapindex><sitemap><loc>%s/sitemap.xml</loc></sitemap></sitemapindex>`, srv.URL)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	b := New(srv.Client(), nil)
	b.Discover(srv.URL + "/")

	if hits.Load() != 1 {
		t.Errorf("self-referencing sitemap fetched %d times, want 1", hits.Load())
	}
}

func TestDiscoverNoSitemaps(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	b := New(srv.Client(), nil)
	if urls := b.Discover(srv.URL + "/"); len(urls) != 0 {
		t.Errorf("Discover() = %v, want empty", urls)
	}
}
