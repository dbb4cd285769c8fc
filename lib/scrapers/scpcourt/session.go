// Package scpcourt drives the Supreme Court of Pakistan online
// case-information form through a real browser and parses the detail
// pages it lands on. The upstream form is an ASP.NET postback page:
// every pager and "View Details" click is a form submission, so the
// package leans on deliberate settle delays and bounded retries rather
// than raw speed.
package scpcourt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("caseharvest.lib.scrapers.scpcourt")

const (
	BaseUrl   = "https://scp.gov.pk"
	SearchUrl = BaseUrl + "/OnlineCaseInformation.aspx"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

type Options struct {
	Headless bool
	// Timeout bounds every single navigation action, not the whole
	// session. Zero means 30s.
	Timeout time.Duration
}

// Session owns one dedicated browser instance. Sessions are not safe
// for concurrent use, each worker gets its own.
type Session struct {
	browser context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			// the case form works fine without images and loads much faster
			chromedp.Flag("blink-settings", "imagesEnabled=false"),
			chromedp.UserAgent(userAgent),
		)...,
	)
	browser, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &Session{
		browser: browser,
		timeout: opts.Timeout,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}

	// spawn the browser process up front so a broken chrome install
	// fails here instead of mid-extraction
	err := s.run(ctx)
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	return s, nil
}

func (s *Session) Close() {
	s.cancel()
}

// run executes chromedp actions against the session browser, bounded by
// the per-action timeout and by the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opctx, cancel := context.WithTimeout(s.browser, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(opctx, actions...)
}

// OpenSearch navigates to the case-information form and waits for it to
// become interactive.
func (s *Session) OpenSearch(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "OpenSearch")
	defer span.End()

	return s.run(ctx,
		chromedp.Navigate(SearchUrl),
		chromedp.WaitVisible("#ddlCaseType", chromedp.ByQuery),
	)
}

// HTML returns the full serialized page the session currently sits on.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// recoverResubmission detects the browser's "confirm form resubmission"
// interstitial the postback-heavy form sometimes strands us on, and
// reloads past it.
func (s *Session) recoverResubmission(ctx context.Context) (bool, error) {
	html, err := s.HTML(ctx)
	if err != nil {
		return false, err
	}
	lower := strings.ToLower(html)
	if !strings.Contains(lower, "confirm form resubmission") &&
		!strings.Contains(lower, "err_cache_miss") {
		return false, nil
	}
	err = s.run(ctx,
		chromedp.Reload(),
		chromedp.Sleep(time.Second*2),
	)
	return true, err
}
