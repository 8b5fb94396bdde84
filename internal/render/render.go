// Package render drives browser-rendered fetches through a small pool of
// pre-warmed headless Chrome sessions.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp"
)

// ErrSessionStarved is returned when no render session frees up within the
// acquire window. The fetch is abandoned rather than left to hang; the pool
// itself keeps serving other URLs.
var ErrSessionStarved = errors.New("no render session available")

const defaultAcquireTimeout = 5 * time.Second

// Options configures the render pool.
type Options struct {
	PoolSize       int
	Wait           time.Duration // settle time for dynamic content after navigation
	Timeout        time.Duration // per-navigation budget
	AcquireTimeout time.Duration
	UserAgent      string
}

// Pool owns the Chrome allocator and a fixed set of reusable tab sessions.
type Pool struct {
	opts        Options
	allocCtx    context.Context
	allocCancel context.CancelFunc
	sessions    chan *session
	logger      *log.Logger
}

type session struct {
	id     int
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool starts headless Chrome and pre-warms PoolSize tab sessions.
func NewPool(opts Options, logger *log.Logger) (*Pool, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 1
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = defaultAcquireTimeout
	}
	if logger == nil {
		logger = log.Default()
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)

	p := &Pool{
		opts:        opts,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		sessions:    make(chan *session, opts.PoolSize),
	}

	for i := 0; i < opts.PoolSize; i++ {
		ctx, cancel := chromedp.NewContext(allocCtx)
		// Run an empty task so the tab exists before the crawl starts.
		if err := chromedp.Run(ctx); err != nil {
			cancel()
			p.Close()
			return nil, fmt.Errorf("warming render session %d: %w", i, err)
		}
		p.sessions <- &session{id: i, ctx: ctx, cancel: cancel}
	}

	logger.Info("render pool ready", "sessions", opts.PoolSize)
	p.logger = logger
	return p, nil
}

// Render navigates a session to the URL, waits the settle duration, and
// returns the rendered outer HTML. The session is always returned to the
// pool, error or not.
func (p *Pool) Render(ctx context.Context, url string) (string, error) {
	s, err := p.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer p.release(s)

	navCtx, cancel := context.WithTimeout(s.ctx, p.opts.Timeout)
	defer cancel()

	var htmlContent string
	err = chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(p.opts.Wait),
		chromedp.OuterHTML("html", &htmlContent),
	)
	if err != nil {
		return "", fmt.Errorf("render failed: %w", err)
	}
	return htmlContent, nil
}

// acquire blocks until a session frees up, the acquire window expires, or
// the caller's context is cancelled.
func (p *Pool) acquire(ctx context.Context) (*session, error) {
	timer := time.NewTimer(p.opts.AcquireTimeout)
	defer timer.Stop()

	select {
	case s := <-p.sessions:
		return s, nil
	case <-timer.C:
		return nil, ErrSessionStarved
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(s *session) {
	p.sessions <- s
}

// Close tears down every session and the browser process. Best effort: a
// hung session cannot be force-terminated, only abandoned with its
// resources released.
func (p *Pool) Close() {
	for {
		select {
		case s := <-p.sessions:
			s.cancel()
		default:
			p.allocCancel()
			return
		}
	}
}
