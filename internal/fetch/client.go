package fetch

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/seospider/seospider/internal/types"
)

// NewClient builds the HTTP client used for all plain-mode traffic: robots,
// sitemaps, preflights and page fetches share its connection pool.
func NewClient(cfg types.Config) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Concurrency * 2,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	if cfg.EnableTLSFingerprint {
		tf := NewTLSFingerprinter(cfg.Timeout)
		transport.DialTLSContext = tf.DialTLSContext
		transport.ForceAttemptHTTP2 = false
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}, nil
}
