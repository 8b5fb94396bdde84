package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// ErrOversized marks a page rejected by the preflight size check. It is
// never retried and never followed by a body fetch.
var ErrOversized = errors.New("content exceeds max file size")

// retryBackoff is the fixed wait between GET attempts.
const retryBackoff = time.Second

// Options configures a Fetcher.
type Options struct {
	UserAgent     string
	MaxFileSize   int64
	Retries       int
	RotateHeaders bool
}

// Response is the raw outcome of one successful fetch.
type Response struct {
	StatusCode   int
	ContentType  string
	Body         []byte
	ResponseTime time.Duration
}

// Fetcher performs plain network fetches with preflight size checks and
// bounded retries. It is safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	opts    Options
	rotator *HeaderRotator
}

// NewFetcher wraps an HTTP client with crawl fetch semantics.
func NewFetcher(client *http.Client, opts Options) *Fetcher {
	f := &Fetcher{client: client, opts: opts}
	if opts.RotateHeaders {
		f.rotator = NewHeaderRotator()
	}
	return f
}

// Fetch retrieves a URL. The sequence is: optional HEAD preflight against
// MaxFileSize (oversized returns ErrOversized immediately), then GET with
// up to Retries+1 attempts and a fixed backoff between them. Transport
// errors are retried; HTTP error statuses are returned as data, since a
// 404 or 500 page is itself an audit finding, not a fetch failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if f.opts.MaxFileSize > 0 {
		if err := f.preflight(ctx, rawURL); err != nil {
			return nil, err
		}
	}

	start := time.Now()

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt <= f.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, lastErr = f.get(ctx, rawURL)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("fetch failed after %d attempts: %w", f.opts.Retries+1, lastErr)
	}
	defer resp.Body.Close()

	var body []byte
	var err error
	if f.opts.MaxFileSize > 0 {
		body, err = io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxFileSize+1))
		if err == nil && int64(len(body)) > f.opts.MaxFileSize {
			return nil, ErrOversized
		}
	} else {
		body, err = io.ReadAll(resp.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("body read failed: %w", err)
	}

	if enc := resp.Header.Get("Content-Encoding"); enc != "" {
		body, err = decodeBody(body, enc)
		if err != nil {
			return nil, fmt.Errorf("decoding %s body: %w", enc, err)
		}
		if f.opts.MaxFileSize > 0 && int64(len(body)) > f.opts.MaxFileSize {
			return nil, ErrOversized
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}

	return &Response{
		StatusCode:   resp.StatusCode,
		ContentType:  strings.TrimSpace(contentType),
		Body:         body,
		ResponseTime: time.Since(start),
	}, nil
}

// decodeBody reverses the Content-Encoding the server applied. Setting
// Accept-Encoding by hand (header rotation does) disables net/http's
// transparent gzip handling, so the fetcher must decompress the payload
// itself before anything downstream parses it.
func decodeBody(body []byte, encoding string) ([]byte, error) {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case "deflate":
		// RFC 9110 deflate means zlib-wrapped, but some servers send
		// raw flate streams under the same token.
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer zr.Close()
			r = zr
		} else {
			fr := flate.NewReader(bytes.NewReader(body))
			defer fr.Close()
			r = fr
		}
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	default:
		return body, nil
	}
	return io.ReadAll(r)
}

// preflight issues a HEAD request and rejects oversized content before any
// body transfer. A failed HEAD is not an error: many servers mishandle
// HEAD, so the size check simply falls through to the GET's limit reader.
func (f *Fetcher) preflight(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	f.applyHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > f.opts.MaxFileSize {
			return fmt.Errorf("%w: %d bytes", ErrOversized, n)
		}
	}
	return nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("request creation failed: %w", err)
	}
	f.applyHeaders(req)
	return f.client.Do(req)
}

func (f *Fetcher) applyHeaders(req *http.Request) {
	if f.rotator != nil {
		f.rotator.Apply(req)
		return
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
}
