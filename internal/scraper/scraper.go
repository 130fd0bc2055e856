package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/cuya-elections/internal/documents"
	"github.com/pfrederiksen/cuya-elections/internal/extract"
	"github.com/pfrederiksen/cuya-elections/internal/fetch"
	"github.com/pfrederiksen/cuya-elections/internal/logger"
	"github.com/pfrederiksen/cuya-elections/internal/meeting"
	"github.com/pfrederiksen/cuya-elections/internal/metrics"
	"github.com/pfrederiksen/cuya-elections/internal/sink"
	"golang.org/x/sync/errgroup"
)

// EventListSelector matches one row of the calendar listing
const EventListSelector = "ul.item-list li.item"

// Skip and drop reasons reported in logs and metrics
const (
	reasonNotRelevant = "not_relevant"
	reasonNoTitle     = "no_title"
	reasonNoDetailURL = "no_detail_url"
	reasonFetch       = "fetch_failed"
	reasonDate        = "malformed_date"
)

// ErrBranchFailed wraps the failures of calendar listings that could not be crawled.
// Meetings from the other listings are still emitted.
var ErrBranchFailed = errors.New("calendar crawl failed")

// Config describes the site being scraped
type Config struct {
	Spider       string
	Keyword      string
	CalendarURLs []string
	DocumentsURL string
	Location     meeting.Location
	TimeLocation *time.Location
}

// Result summarizes a run
type Result struct {
	Emitted int
	Skipped int
	Dropped int
}

// Scraper correlates calendar, detail and document pages into meetings
type Scraper struct {
	cfg        Config
	fetcher    fetch.Fetcher
	normalizer *meeting.Normalizer
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// Option configures a Scraper
type Option func(*Scraper)

// WithMetrics records crawl metrics on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Scraper) { s.log = l }
}

// WithClock sets the clock used to derive meeting status
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.normalizer.Now = now }
}

// New creates a Scraper
func New(cfg Config, fetcher fetch.Fetcher, opts ...Option) *Scraper {
	if cfg.TimeLocation == nil {
		cfg.TimeLocation = time.Local
	}
	cfg.Keyword = strings.ToLower(cfg.Keyword)

	s := &Scraper{
		cfg:        cfg,
		fetcher:    fetcher,
		normalizer: meeting.NewNormalizer(cfg.Spider, cfg.Location),
		metrics:    metrics.New(),
		log:        logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsRelevant reports whether a calendar title names a meeting this scraper records
func IsRelevant(title, keyword string) bool {
	return strings.Contains(strings.ToLower(title), strings.ToLower(keyword))
}

type runStats struct {
	skipped atomic.Int64
	dropped atomic.Int64
}

// Run crawls every calendar URL and emits one meeting per relevant event to out.
// Failed calendar branches are reported together under ErrBranchFailed after
// the other branches finish. A documents page failure or sink error aborts the run.
func (s *Scraper) Run(ctx context.Context, out sink.Sink) (Result, error) {
	var result Result

	index, err := s.FetchDocuments(ctx)
	if err != nil {
		return result, err
	}

	var stats runStats
	records := make(chan *meeting.Meeting)
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu         sync.Mutex
		branchErrs []error
		branches   sync.WaitGroup
	)
	for _, calendarURL := range s.cfg.CalendarURLs {
		branches.Add(1)
		go func(calendarURL string) {
			defer branches.Done()
			if err := s.crawlCalendar(gctx, calendarURL, index, records, &stats); err != nil {
				s.log.Error("Calendar crawl failed", logger.Fields{"calendar_url": calendarURL}, err)
				mu.Lock()
				branchErrs = append(branchErrs, fmt.Errorf("calendar %s: %w", calendarURL, err))
				mu.Unlock()
			}
		}(calendarURL)
	}

	g.Go(func() error {
		branches.Wait()
		close(records)
		return nil
	})

	g.Go(func() error {
		for m := range records {
			if err := out.Emit(m); err != nil {
				return fmt.Errorf("emitting meeting %s: %w", m.ID, err)
			}
			result.Emitted++
			s.metrics.MeetingsEmitted.Inc()
		}
		return nil
	})

	sinkErr := g.Wait()

	result.Skipped = int(stats.skipped.Load())
	result.Dropped = int(stats.dropped.Load())

	if sinkErr != nil {
		return result, sinkErr
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if len(branchErrs) > 0 {
		return result, fmt.Errorf("%w: %w", ErrBranchFailed, errors.Join(branchErrs...))
	}
	return result, nil
}

// FetchDocuments fetches the board documents page and builds the date index
func (s *Scraper) FetchDocuments(ctx context.Context) (documents.Index, error) {
	doc, err := s.fetcher.Fetch(ctx, s.cfg.DocumentsURL)
	if err != nil {
		s.metrics.FetchFailures.WithLabelValues(metrics.PageDocuments).Inc()
		return nil, fmt.Errorf("fetching documents page: %w", err)
	}
	s.metrics.PagesFetched.WithLabelValues(metrics.PageDocuments).Inc()

	index, orphans := documents.Build(doc.Selection)
	for _, heading := range orphans {
		s.log.Warn("Document heading has no links", logger.Fields{
			"documents_url": s.cfg.DocumentsURL,
			"heading":       heading,
		})
	}

	s.metrics.DocumentDates.Set(float64(index.Len()))
	s.metrics.DocumentOrphans.Set(float64(len(orphans)))
	s.log.Info("Document index built", logger.Fields{
		"documents_url": s.cfg.DocumentsURL,
		"dates":         index.Len(),
	})
	return index, nil
}

// crawlCalendar fetches one calendar listing and processes its relevant items concurrently
func (s *Scraper) crawlCalendar(ctx context.Context, calendarURL string, index documents.Index, out chan<- *meeting.Meeting, stats *runStats) error {
	log := s.log.With(logger.Fields{"calendar_url": calendarURL})

	doc, err := s.fetcher.Fetch(ctx, calendarURL)
	if err != nil {
		s.metrics.FetchFailures.WithLabelValues(metrics.PageCalendar).Inc()
		return fmt.Errorf("fetching calendar page: %w", err)
	}
	s.metrics.PagesFetched.WithLabelValues(metrics.PageCalendar).Inc()

	base := doc.Url
	if base == nil {
		if base, err = url.Parse(calendarURL); err != nil {
			return fmt.Errorf("parsing calendar url: %w", err)
		}
	}

	items := doc.Find(EventListSelector)
	log.Info("Calendar fetched", logger.Fields{"items": items.Length()})

	var wg sync.WaitGroup
	items.Each(func(_ int, item *goquery.Selection) {
		title := extract.Title(item)
		if title == "" {
			s.skip(stats, reasonNoTitle)
			log.Warn("Calendar item has no title", nil)
			return
		}
		if !IsRelevant(title, s.cfg.Keyword) {
			s.skip(stats, reasonNotRelevant)
			log.Debug("Skipping calendar item", logger.Fields{"title": title})
			return
		}

		href, ok := extract.DetailURL(item)
		if !ok {
			s.skip(stats, reasonNoDetailURL)
			log.Warn("Calendar item has no detail link", logger.Fields{"title": title})
			return
		}
		detailURL, err := base.Parse(href)
		if err != nil {
			s.skip(stats, reasonNoDetailURL)
			log.Warn("Calendar item has an invalid detail link", logger.Fields{"title": title, "href": href})
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			m, reason, err := s.processItem(ctx, item, title, detailURL.String(), calendarURL, index)
			if err != nil {
				s.drop(stats, reason)
				log.Warn("Dropping calendar item", logger.Fields{
					"title":      title,
					"detail_url": detailURL.String(),
					"reason":     reason,
					"error":      err.Error(),
				})
				return
			}
			select {
			case out <- m:
			case <-ctx.Done():
			}
		}()
	})
	wg.Wait()

	return nil
}

// processItem fetches an item's detail page and builds its meeting
func (s *Scraper) processItem(ctx context.Context, item *goquery.Selection, title, detailURL, source string, index documents.Index) (*meeting.Meeting, string, error) {
	detail, err := s.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		s.metrics.FetchFailures.WithLabelValues(metrics.PageDetail).Inc()
		return nil, reasonFetch, fmt.Errorf("fetching detail page: %w", err)
	}
	s.metrics.PagesFetched.WithLabelValues(metrics.PageDetail).Inc()

	m, err := s.BuildMeeting(item, detail.Selection, title, source, index)
	if err != nil {
		return nil, reasonDate, err
	}
	return m, "", nil
}

// BuildMeeting joins a calendar item, its detail page and the document index into a meeting.
// Start and end come from the list item; description and location from the detail page.
func (s *Scraper) BuildMeeting(item, detail *goquery.Selection, title, source string, index documents.Index) (*meeting.Meeting, error) {
	start, end, err := extract.StartEnd(item, s.cfg.TimeLocation)
	if err != nil {
		return nil, err
	}

	location, address := extract.Location(detail, s.cfg.Location)
	if address != "" {
		s.log.Debug("Ignoring detail page address", logger.Fields{"title": title, "address": address})
	}

	m := s.normalizer.Normalize(meeting.Fields{
		Title:       title,
		Description: extract.Description(detail),
		Start:       start,
		End:         end,
		Links:       index.Lookup(documents.DateKey(start)),
		Source:      source,
	})
	m.Location = location

	return m, nil
}

func (s *Scraper) skip(stats *runStats, reason string) {
	stats.skipped.Add(1)
	s.metrics.ItemsSkipped.WithLabelValues(reason).Inc()
}

func (s *Scraper) drop(stats *runStats, reason string) {
	stats.dropped.Add(1)
	s.metrics.ItemsDropped.WithLabelValues(reason).Inc()
}
