package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrStatus is returned when a page responds with a non-200 status
var ErrStatus = errors.New("unexpected status code")

// Fetcher retrieves a URL and returns the parsed document with Url set
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Options shared by the fetch backends
type Options struct {
	UserAgent   string
	Timeout     time.Duration
	Parallelism int
	Delay       time.Duration
	Retries     int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Parallelism < 1 {
		o.Parallelism = 1
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	return o
}

func statusError(code int) error {
	return fmt.Errorf("%w: %d", ErrStatus, code)
}
