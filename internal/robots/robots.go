package robots

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// Gate enforces robot exclusion rules. Policies are cached per origin for
// the lifetime of a crawl: robots.txt is fetched at most once per origin,
// and an unfetchable or unparseable file fails open (allow).
type Gate struct {
	client  *http.Client
	respect bool

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData // nil entry means allow-all
}

// NewGate creates a gate backed by the given client. When respect is false
// every URL is allowed without a fetch.
func NewGate(client *http.Client, respect bool) *Gate {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gate{
		client:  client,
		respect: respect,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether the user agent may fetch the URL.
func (g *Gate) IsAllowed(rawURL, userAgent string) bool {
	if !g.respect {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	data := g.policyFor(u)
	if data == nil {
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, userAgent)
}

// policyFor returns the cached robots policy for the URL's origin, fetching
// it on first use. The cache holds nil for origins that failed to produce a
// usable robots.txt so they are not refetched.
func (g *Gate) policyFor(u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host

	g.mu.Lock()
	defer g.mu.Unlock()

	if data, ok := g.cache[origin]; ok {
		return data
	}

	data := g.fetch(origin)
	g.cache[origin] = data
	return data
}

func (g *Gate) fetch(origin string) *robotstxt.RobotsData {
	resp, err := g.client.Get(fmt.Sprintf("%s/robots.txt", origin))
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil
	}
	return data
}
