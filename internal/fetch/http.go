package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
)

// HTTP fetches pages with net/http. Transport errors, 429 and 5xx responses
// are retried with exponential backoff starting at Options.Delay.
type HTTP struct {
	client    *http.Client
	userAgent string
	retries   int
	delay     time.Duration
	inFlight  chan struct{}
}

// NewHTTP creates an HTTP fetcher
func NewHTTP(opts Options) *HTTP {
	opts = opts.withDefaults()
	return &HTTP{
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		userAgent: opts.UserAgent,
		retries:   opts.Retries,
		delay:     opts.Delay,
		inFlight:  make(chan struct{}, opts.Parallelism),
	}
}

// Fetch fetches and parses a page
func (h *HTTP) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	select {
	case h.inFlight <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-h.inFlight }()

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	var doc *goquery.Document
	err = backoff.Retry(func() error {
		var err error
		doc, err = h.get(ctx, u)
		return err
	}, h.backOff(ctx))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (h *HTTP) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if h.delay > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = h.delay
		b = exp
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(h.retries)), ctx)
}

// get performs one attempt. Errors that a retry cannot fix are marked permanent.
func (h *HTTP) get(ctx context.Context, u *url.URL) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := statusError(resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parsing HTML: %w", err))
	}
	doc.Url = resp.Request.URL

	return doc, nil
}
