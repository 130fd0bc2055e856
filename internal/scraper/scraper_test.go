package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/cuya-elections/internal/documents"
	"github.com/pfrederiksen/cuya-elections/internal/fetch"
	"github.com/pfrederiksen/cuya-elections/internal/logger"
	"github.com/pfrederiksen/cuya-elections/internal/meeting"
	"github.com/pfrederiksen/cuya-elections/internal/metrics"
	"github.com/pfrederiksen/cuya-elections/internal/sink"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHost         = "https://boe.example.gov"
	testDocumentsURL = testHost + "/about-us/board-meeting-documents"
	testPastURL      = testHost + "/calendar?it=Past%20Events"
	testCurrentURL   = testHost + "/calendar?it=Current%20Events"

	detailJan22   = "/calendar/event-details/2019/01/22/board-meeting"
	detailSpecial = "/calendar/event-details/2019/02/05/special-board-meeting"
	detailNov19   = "/calendar/event-details/2030/11/19/board-meeting"
)

var fixedLocation = meeting.Location{
	Name:    "Board of Elections",
	Address: "2925 Euclid Ave, Cleveland, OH 44115",
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

// fakeFetcher serves canned pages keyed by absolute URL
type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func newFakeFetcher(t *testing.T) *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]string{
			testDocumentsURL:         fixture(t, "documents.html"),
			testPastURL:              fixture(t, "calendar_past.html"),
			testCurrentURL:           fixture(t, "calendar_current.html"),
			testHost + detailJan22:   fixture(t, "board_meeting_2019_01_22.html"),
			testHost + detailSpecial: fixture(t, "special_board_meeting.html"),
			testHost + detailNov19:   fixture(t, "board_meeting_2030_11_19.html"),
		},
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	f.mu.Lock()
	f.calls[rawURL]++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, fmt.Errorf("%w: 404 for %s", fetch.ErrStatus, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc.Url, _ = url.Parse(rawURL)
	return doc, nil
}

func (f *fakeFetcher) callCount(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func detroit(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Detroit")
	require.NoError(t, err)
	return loc
}

func testConfig(t *testing.T, calendarURLs ...string) Config {
	if len(calendarURLs) == 0 {
		calendarURLs = []string{testPastURL, testCurrentURL}
	}
	return Config{
		Spider:       "cuya_elections",
		Keyword:      "board",
		CalendarURLs: calendarURLs,
		DocumentsURL: testDocumentsURL,
		Location:     fixedLocation,
		TimeLocation: detroit(t),
	}
}

func testClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestScraper(t *testing.T, cfg Config, f fetch.Fetcher, m *metrics.Metrics) *Scraper {
	return New(cfg, f,
		WithMetrics(m),
		WithLogger(logger.New(logger.LevelDebug, io.Discard)),
		WithClock(testClock),
	)
}

func byID(meetings []*meeting.Meeting) map[string]*meeting.Meeting {
	out := make(map[string]*meeting.Meeting, len(meetings))
	for _, m := range meetings {
		out[m.ID] = m
	}
	return out
}

func TestIsRelevant(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"Board Meeting", true},
		{"Special BOARD Meeting - Cancelled", true},
		{"Poll Worker Training", false},
		{"Public Test of Voting Equipment", false},
		{"Onboarding Session", true},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRelevant(tt.title, "board"))
		})
	}
}

func TestScraper_Run(t *testing.T) {
	m := metrics.New()
	f := newFakeFetcher(t)
	s := newTestScraper(t, testConfig(t), f, m)
	out := sink.NewCollector()

	result, err := s.Run(context.Background(), out)
	require.NoError(t, err)

	assert.Equal(t, Result{Emitted: 3, Skipped: 2, Dropped: 0}, result)
	require.Len(t, out.Meetings, 3)

	loc := detroit(t)
	meetings := byID(out.Meetings)

	jan := meetings["cuya_elections/201901221800/x/board_meeting"]
	require.NotNil(t, jan, "ids: %v", ids(out.Meetings))
	assert.Equal(t, "Board Meeting", jan.Title)
	assert.True(t, jan.Start.Equal(time.Date(2019, 1, 22, 18, 0, 0, 0, loc)))
	assert.Nil(t, jan.End)
	assert.Equal(t, meeting.StatusPassed, jan.Status)
	assert.Equal(t, meeting.ClassificationBoard, jan.Classification)
	assert.Equal(t, testPastURL, jan.Source)
	assert.Equal(t,
		"The Board of Elections will hold its regular monthly meeting. Certification of petitions Approval of minutes",
		jan.Description)
	assert.Equal(t, []meeting.Link{
		{Title: "Agenda", Href: "/docs/default-source/boe/2019/01-22-2019-agenda.pdf"},
		{Title: "Minutes", Href: "/docs/default-source/boe/2019/01-22-2019-minutes.pdf"},
	}, jan.Links)

	special := meetings["cuya_elections/201902050900/x/special_board_meeting_cancelled"]
	require.NotNil(t, special, "ids: %v", ids(out.Meetings))
	assert.Equal(t, meeting.StatusCancelled, special.Status)
	require.NotNil(t, special.End)
	assert.True(t, special.End.Equal(time.Date(2019, 2, 5, 10, 30, 0, 0, loc)))
	assert.NotNil(t, special.Links)
	assert.Empty(t, special.Links)

	nov := meetings["cuya_elections/203011190900/x/board_meeting"]
	require.NotNil(t, nov, "ids: %v", ids(out.Meetings))
	assert.Equal(t, meeting.StatusUpcoming, nov.Status)
	assert.Equal(t, testCurrentURL, nov.Source)
	assert.Equal(t, "Certification of the general election.", nov.Description)

	for _, mtg := range out.Meetings {
		assert.Equal(t, fixedLocation, mtg.Location, mtg.ID)
	}

	// irrelevant items never have their detail page requested
	assert.Zero(t, f.callCount(testHost+"/calendar/event-details/2019/01/10/public-test"))
	assert.Zero(t, f.callCount(testHost+"/calendar/event-details/2030/11/20/poll-worker-training"))
	assert.Equal(t, 1, f.callCount(testDocumentsURL))

	assert.Equal(t, float64(3), testutil.ToFloat64(m.MeetingsEmitted))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ItemsSkipped.WithLabelValues(reasonNotRelevant)))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.PagesFetched.WithLabelValues(metrics.PageDetail)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DocumentDates))
	assert.Zero(t, testutil.ToFloat64(m.DocumentOrphans))
}

func ids(meetings []*meeting.Meeting) []string {
	out := make([]string, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, m.ID)
	}
	sort.Strings(out)
	return out
}

func TestScraper_Run_DeterministicIDs(t *testing.T) {
	var runs [][]string
	for i := 0; i < 2; i++ {
		s := newTestScraper(t, testConfig(t), newFakeFetcher(t), metrics.New())
		out := sink.NewCollector()
		_, err := s.Run(context.Background(), out)
		require.NoError(t, err)
		runs = append(runs, ids(out.Meetings))
	}
	assert.Equal(t, runs[0], runs[1])
}

func TestScraper_Run_DetailFailureDropsItem(t *testing.T) {
	m := metrics.New()
	f := newFakeFetcher(t)
	f.errs[testHost+detailSpecial] = fmt.Errorf("%w: 500", fetch.ErrStatus)

	s := newTestScraper(t, testConfig(t), f, m)
	out := sink.NewCollector()

	result, err := s.Run(context.Background(), out)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Emitted)
	assert.Equal(t, 1, result.Dropped)
	for _, mtg := range out.Meetings {
		assert.NotContains(t, mtg.Title, "Special")
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ItemsDropped.WithLabelValues(reasonFetch)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FetchFailures.WithLabelValues(metrics.PageDetail)))
}

func TestScraper_Run_MalformedDateDropsItem(t *testing.T) {
	const calendarURL = testHost + "/calendar?it=Broken"
	f := newFakeFetcher(t)
	f.pages[calendarURL] = `<ul class="item-list">
  <li class="item">
    <div class="event"><span>Jan</span><span>22</span></div>
    <h3 class="title"><a href="` + detailJan22 + `">Board Meeting</a></h3>
    <div class="meta"><em>6:00 PM</em></div>
  </li>
</ul>`

	s := newTestScraper(t, testConfig(t, calendarURL), f, metrics.New())
	out := sink.NewCollector()

	result, err := s.Run(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, Result{Emitted: 0, Skipped: 0, Dropped: 1}, result)
	assert.Empty(t, out.Meetings)
}

func TestScraper_Run_BranchFailureKeepsOtherBranch(t *testing.T) {
	f := newFakeFetcher(t)
	f.errs[testCurrentURL] = fmt.Errorf("%w: 503", fetch.ErrStatus)

	s := newTestScraper(t, testConfig(t), f, metrics.New())
	out := sink.NewCollector()

	result, err := s.Run(context.Background(), out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBranchFailed)
	assert.ErrorIs(t, err, fetch.ErrStatus)
	assert.Contains(t, err.Error(), testCurrentURL)

	assert.Equal(t, 2, result.Emitted)
	for _, mtg := range out.Meetings {
		assert.Equal(t, testPastURL, mtg.Source)
	}
}

func TestScraper_Run_DocumentsFailureAborts(t *testing.T) {
	f := newFakeFetcher(t)
	f.errs[testDocumentsURL] = fmt.Errorf("%w: 500", fetch.ErrStatus)

	s := newTestScraper(t, testConfig(t), f, metrics.New())
	out := sink.NewCollector()

	result, err := s.Run(context.Background(), out)
	require.Error(t, err)
	assert.ErrorIs(t, err, fetch.ErrStatus)
	assert.NotErrorIs(t, err, ErrBranchFailed)
	assert.Equal(t, Result{}, result)
	assert.Empty(t, out.Meetings)
	assert.Zero(t, f.callCount(testPastURL))
}

func TestScraper_Run_OrphanDocumentHeading(t *testing.T) {
	m := metrics.New()
	f := newFakeFetcher(t)
	f.pages[testDocumentsURL] = `<section id="Contentplaceholder1_TAA75111F019_Col00">
  <h3 class="heading-s">01/22/2019</h3>
  <p><a href="/a.pdf">Agenda</a></p>
  <h3 class="heading-s">12/01/2020</h3>
  <div>Documents coming soon</div>
</section>`

	s := newTestScraper(t, testConfig(t), f, m)
	out := sink.NewCollector()

	result, err := s.Run(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Emitted)

	jan := byID(out.Meetings)["cuya_elections/201901221800/x/board_meeting"]
	require.NotNil(t, jan, "ids: %v", ids(out.Meetings))
	assert.Equal(t, []meeting.Link{{Title: "Agenda", Href: "/a.pdf"}}, jan.Links)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DocumentDates))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DocumentOrphans))
}

func TestScraper_Run_SinkErrorAborts(t *testing.T) {
	errFull := errors.New("sink full")
	out := sink.Func(func(*meeting.Meeting) error { return errFull })

	s := newTestScraper(t, testConfig(t), newFakeFetcher(t), metrics.New())
	result, err := s.Run(context.Background(), out)
	require.Error(t, err)
	assert.ErrorIs(t, err, errFull)
	assert.Zero(t, result.Emitted)
}

func TestScraper_Run_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestScraper(t, testConfig(t), newFakeFetcher(t), metrics.New())
	_, err := s.Run(ctx, sink.NewCollector())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildMeeting_IgnoresDetailAddress(t *testing.T) {
	f := newFakeFetcher(t)
	s := newTestScraper(t, testConfig(t), f, metrics.New())

	list, err := f.Fetch(context.Background(), testPastURL)
	require.NoError(t, err)
	detail, err := f.Fetch(context.Background(), testHost+detailJan22)
	require.NoError(t, err)
	require.Contains(t, detail.Find("address").Text(), "Lakeside")

	item := list.Find(EventListSelector).First()
	m, err := s.BuildMeeting(item, detail.Selection, "Board Meeting", testPastURL, documents.Index{})
	require.NoError(t, err)

	assert.Equal(t, fixedLocation, m.Location)
	assert.Equal(t, []meeting.Link{}, m.Links)
}

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/about-us/board-meeting-documents": fixture(t, "documents.html"),
		detailJan22:                         fixture(t, "board_meeting_2019_01_22.html"),
		detailSpecial:                       fixture(t, "special_board_meeting.html"),
		detailNov19:                         fixture(t, "board_meeting_2030_11_19.html"),
	}
	calendars := map[string]string{
		"Past Events":    fixture(t, "calendar_past.html"),
		"Current Events": fixture(t, "calendar_current.html"),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if r.URL.Path == "/calendar" {
			body, ok = calendars[r.URL.Query().Get("it")]
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestScraper_Run_EndToEnd(t *testing.T) {
	server := newFixtureServer(t)

	colly, err := fetch.NewColly(fetch.Options{Parallelism: 2, Retries: 1})
	require.NoError(t, err)

	backends := map[string]fetch.Fetcher{
		"colly": colly,
		"http":  fetch.NewHTTP(fetch.Options{Parallelism: 2}),
	}

	for name, f := range backends {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t,
				server.URL+"/calendar?it=Past%20Events",
				server.URL+"/calendar?it=Current%20Events",
			)
			cfg.DocumentsURL = server.URL + "/about-us/board-meeting-documents"

			s := newTestScraper(t, cfg, f, metrics.New())
			out := sink.NewCollector()

			result, err := s.Run(context.Background(), out)
			require.NoError(t, err)
			assert.Equal(t, 3, result.Emitted)
			assert.Equal(t, 2, result.Skipped)

			assert.Equal(t, []string{
				"cuya_elections/201901221800/x/board_meeting",
				"cuya_elections/201902050900/x/special_board_meeting_cancelled",
				"cuya_elections/203011190900/x/board_meeting",
			}, ids(out.Meetings))

			jan := byID(out.Meetings)["cuya_elections/201901221800/x/board_meeting"]
			assert.Len(t, jan.Links, 2)
		})
	}
}
