package scraper

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"rightmove-scraper/utils"
)

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int
	RetryDelay time.Duration
	Pacer      *utils.Pacer
}

// HTTPFetcher fetches pages with a plain HTTP GET.
type HTTPFetcher struct {
	client *resty.Client
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// NewHTTPFetcher builds a resty-backed Fetcher. Every request waits on the
// pacer before it is sent, including retries.
func NewHTTPFetcher(opts HTTPOptions, logger *utils.Logger) *HTTPFetcher {
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	client.SetHeader("Accept", "text/html,application/xhtml+xml")

	pacer := opts.Pacer
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return pacer.Wait(req.Context())
	})

	delay := opts.RetryDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	return &HTTPFetcher{
		client: client,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   delay,
			Logger:      logger,
			Retryable:   isRetryable,
		},
		logger: logger,
	}
}

// Fetch performs the GET and parses the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	var body []byte

	err := f.retry.Do(ctx, "GET "+url, func() error {
		res, err := f.client.R().
			SetContext(ctx).
			Get(url)
		if err != nil {
			return &FetchError{URL: url, Err: err}
		}
		if res.IsError() {
			return &FetchError{URL: url, StatusCode: res.StatusCode()}
		}
		body = res.Body()
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.logger.Debug("[http] GET %s (%d bytes)", url, len(body))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("parse html: %w", err)}
	}
	return doc, nil
}
