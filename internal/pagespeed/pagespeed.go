// Package pagespeed queries the PageSpeed Insights v5 API for core-vitals
// numbers on a handful of representative pages after a crawl.
package pagespeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"github.com/seospider/seospider/internal/types"
)

const defaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

var strategies = []string{"mobile", "desktop"}

// Client audits URLs against the PSI API. Quota errors are retried with
// exponential backoff and jitter; other failures report per strategy
// without aborting the whole audit.
type Client struct {
	httpClient *http.Client
	logger     *log.Logger
	endpoint   string
	apiKey     string

	maxRetries  int
	baseBackoff time.Duration
}

// New builds a PSI client. The API key may be empty; Google then applies
// a far stricter anonymous quota.
func New(apiKey string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      logger,
		endpoint:    defaultEndpoint,
		apiKey:      apiKey,
		maxRetries:  3,
		baseBackoff: 2 * time.Second,
	}
}

// Audit runs the performance audit for one URL, mobile then desktop.
// Always returns one result per strategy.
func (c *Client) Audit(ctx context.Context, pageURL string) []types.PageSpeedResult {
	results := make([]types.PageSpeedResult, 0, len(strategies))
	for _, strategy := range strategies {
		r := c.run(ctx, pageURL, strategy)
		if r.Success {
			c.logger.Info("pagespeed audit done", "url", pageURL, "strategy", strategy, "score", r.PerformanceScore)
		} else {
			c.logger.Warn("pagespeed audit failed", "url", pageURL, "strategy", strategy, "err", r.Error)
		}
		results = append(results, r)
	}
	return results
}

func (c *Client) run(ctx context.Context, pageURL, strategy string) types.PageSpeedResult {
	result := types.PageSpeedResult{URL: pageURL, Strategy: strategy}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with jitter so parallel audits do not
			// hammer the quota window in lockstep.
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			backoff += time.Duration(rand.Int63n(int64(c.baseBackoff)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				result.Error = ctx.Err().Error()
				return result
			}
		}

		status, body, err := c.request(ctx, pageURL, strategy)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		if status == http.StatusTooManyRequests {
			result.Error = "quota exceeded"
			continue
		}
		if status != http.StatusOK {
			result.Error = fmt.Sprintf("API returned status %d", status)
			return result
		}

		score, metrics, err := parseReport(body)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Success = true
		result.Error = ""
		result.PerformanceScore = score
		result.Metrics = metrics
		return result
	}
	return result
}

func (c *Client) request(ctx context.Context, pageURL, strategy string) (int, []byte, error) {
	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("strategy", strategy)
	q.Set("category", "performance")
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// report mirrors the slice of the PSI v5 response we care about.
type report struct {
	LighthouseResult struct {
		Categories struct {
			Performance struct {
				Score float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
		Audits map[string]struct {
			NumericValue float64 `json:"numericValue"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

func parseReport(body []byte) (int, *types.PageSpeedMetrics, error) {
	var r report
	if err := json.Unmarshal(body, &r); err != nil {
		return 0, nil, fmt.Errorf("decoding PSI response: %w", err)
	}

	audits := r.LighthouseResult.Audits
	metric := func(name string) float64 {
		return audits[name].NumericValue
	}
	metrics := &types.PageSpeedMetrics{
		FirstContentfulPaint:   metric("first-contentful-paint"),
		LargestContentfulPaint: metric("largest-contentful-paint"),
		CumulativeLayoutShift:  metric("cumulative-layout-shift"),
		SpeedIndex:             metric("speed-index"),
		TimeToInteractive:      metric("interactive"),
	}
	score := int(r.LighthouseResult.Categories.Performance.Score * 100)
	return score, metrics, nil
}
