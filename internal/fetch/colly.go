package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"
)

// retryCountKey is the request context key for the retry count in OnError
const retryCountKey = "retry_count"

// Colly fetches pages through a shared colly collector. Each Fetch runs on a
// clone, so limits and the visited-URL store are shared across calls: a URL
// is fetched at most once per Colly instance.
type Colly struct {
	base    *colly.Collector
	retries int
}

// NewColly creates a colly-backed fetcher
func NewColly(opts Options) (*Colly, error) {
	opts = opts.withDefaults()

	collectorOpts := []colly.CollectorOption{
		colly.IgnoreRobotsTxt(),
	}
	if opts.UserAgent != "" {
		collectorOpts = append(collectorOpts, colly.UserAgent(opts.UserAgent))
	}

	c := colly.NewCollector(collectorOpts...)
	c.SetRequestTimeout(opts.Timeout)

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: opts.Parallelism,
		Delay:       opts.Delay,
	}); err != nil {
		return nil, fmt.Errorf("setting limit rule: %w", err)
	}

	return &Colly{base: c, retries: opts.Retries}, nil
}

// Fetch visits a page and returns the parsed document
func (f *Colly) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.base.Clone()

	var (
		doc      *goquery.Document
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode != http.StatusOK {
			fetchErr = statusError(r.StatusCode)
			return
		}
		parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			fetchErr = fmt.Errorf("parsing HTML: %w", err)
			return
		}
		parsed.Url = r.Request.URL
		doc = parsed
	})

	c.OnError(func(r *colly.Response, err error) {
		attempt, _ := r.Ctx.GetAny(retryCountKey).(int)
		if attempt < f.retries && ctx.Err() == nil {
			r.Ctx.Put(retryCountKey, attempt+1)
			_ = r.Request.Retry()
		}
		if doc != nil {
			return
		}
		if r.StatusCode != 0 {
			fetchErr = statusError(r.StatusCode)
			return
		}
		fetchErr = fmt.Errorf("fetching page: %w", err)
	})

	visitErr := c.Visit(rawURL)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if visitErr != nil {
		return nil, fmt.Errorf("visiting %s: %w", rawURL, visitErr)
	}
	return nil, fmt.Errorf("visiting %s: no response", rawURL)
}
