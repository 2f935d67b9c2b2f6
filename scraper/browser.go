package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"rightmove-scraper/utils"
)

// BrowserOptions configures a BrowserFetcher.
type BrowserOptions struct {
	ChromeBin  string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	Pacer      *utils.Pacer
}

// BrowserFetcher loads pages in headless Chrome and returns the served
// document. It does not interact with the page.
type BrowserFetcher struct {
	opts   BrowserOptions
	logger *utils.Logger
	retry  *utils.RetryConfig

	once        sync.Once
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelCtx   context.CancelFunc
}

func NewBrowserFetcher(opts BrowserOptions, logger *utils.Logger) *BrowserFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &BrowserFetcher{
		opts:   opts,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
			Retryable:   isRetryable,
		},
	}
}

func (b *BrowserFetcher) start() {
	chromeBin := b.opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	b.logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.opts.UserAgent))
	}
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	b.browserCtx = browserCtx
	b.cancelAlloc = cancelAlloc
	b.cancelCtx = cancelCtx
}

// Fetch navigates to url in a fresh tab and parses the rendered HTML.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	b.once.Do(b.start)

	var html string
	err := b.retry.Do(ctx, "browse "+url, func() error {
		if err := b.opts.Pacer.Wait(ctx); err != nil {
			return &FetchError{URL: url, Err: err}
		}

		tabCtx, cancel := chromedp.NewContext(b.browserCtx)
		defer cancel()
		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.opts.Timeout)
		defer cancelTimeout()

		// propagate caller cancellation into the tab
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		err := chromedp.Run(tabCtx,
			chromedp.Navigate(url),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
		if err != nil {
			return &FetchError{URL: url, Err: fmt.Errorf("chromedp: %w", err)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("parse html: %w", err)}
	}
	return doc, nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() error {
	if b.cancelCtx != nil {
		b.cancelCtx()
		b.cancelAlloc()
	}
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
