package fetch

import (
	"math/rand"
	"net/http"
	"time"
)

// BrowserProfile is a coherent set of request headers mimicking one browser.
type BrowserProfile struct {
	UserAgent       string
	Accept          string
	AcceptLanguage  string
	AcceptEncoding  string
	SecChUA         string
	SecChUAPlatform string
	SecChUAMobile   string
	UpgradeInsecure string
}

var browserProfiles = []BrowserProfile{
	// Chrome on Windows
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		AcceptLanguage:  "en-US,en;q=0.9",
		AcceptEncoding:  "gzip, deflate, br",
		SecChUA:         `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChUAPlatform: `"Windows"`,
		SecChUAMobile:   "?0",
		UpgradeInsecure: "1",
	},
	// Chrome on macOS
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		AcceptLanguage:  "en-US,en;q=0.9",
		AcceptEncoding:  "gzip, deflate, br",
		SecChUA:         `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChUAPlatform: `"macOS"`,
		SecChUAMobile:   "?0",
		UpgradeInsecure: "1",
	},
	// Firefox on Windows
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:134.0) Gecko/20100101 Firefox/134.0",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		AcceptLanguage:  "en-US,en;q=0.5",
		AcceptEncoding:  "gzip, deflate, br",
		UpgradeInsecure: "1",
	},
	// Safari on macOS
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		AcceptLanguage: "en-US,en;q=0.9",
		AcceptEncoding: "gzip, deflate, br",
	},
}

// HeaderRotator picks a random browser profile per request.
type HeaderRotator struct {
	profiles []BrowserProfile
	rnd      *rand.Rand
}

// NewHeaderRotator creates a rotator over the built-in profiles.
func NewHeaderRotator() *HeaderRotator {
	return &HeaderRotator{
		profiles: browserProfiles,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Apply sets a random profile's headers on the request.
func (hr *HeaderRotator) Apply(req *http.Request) {
	p := hr.profiles[hr.rnd.Intn(len(hr.profiles))]

	req.Header.Set("User-Agent", p.UserAgent)
	req.Header.Set("Accept", p.Accept)
	req.Header.Set("Accept-Language", p.AcceptLanguage)
	req.Header.Set("Accept-Encoding", p.AcceptEncoding)

	if p.SecChUA != "" {
		req.Header.Set("Sec-Ch-Ua", p.SecChUA)
		req.Header.Set("Sec-Ch-Ua-Platform", p.SecChUAPlatform)
		req.Header.Set("Sec-Ch-Ua-Mobile", p.SecChUAMobile)
	}
	if p.UpgradeInsecure != "" {
		req.Header.Set("Upgrade-Insecure-Requests", p.UpgradeInsecure)
	}
}
