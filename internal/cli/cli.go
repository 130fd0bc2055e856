package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pfrederiksen/cuya-elections/internal/config"
	"github.com/pfrederiksen/cuya-elections/internal/fetch"
	"github.com/pfrederiksen/cuya-elections/internal/logger"
	"github.com/pfrederiksen/cuya-elections/internal/metrics"
	"github.com/pfrederiksen/cuya-elections/internal/scraper"
	"github.com/pfrederiksen/cuya-elections/internal/sink"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitPartial = 2
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "dev"

// options holds the root command flags
type options struct {
	configPath  string
	format      string
	output      string
	sort        string
	fetcher     string
	logLevel    string
	metricsFile string
	verbose     bool
}

// exitError carries a process exit code alongside the error
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode maps a command error to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitError
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "cuya-elections",
		Short: "Scrape Cuyahoga County Board of Elections meetings",
		Long: `A CLI tool that crawls the Cuyahoga County Board of Elections calendar,
joins each board meeting with its published agenda and minutes, and writes
one normalized meeting record per event.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to config file (default ./config.yaml if present)")
	cmd.Flags().StringVar(&opts.format, "format", string(FormatJSONL), "Output format: jsonl, json, text or ics")
	cmd.Flags().StringVar(&opts.output, "output", "", "Write output to file instead of stdout")
	cmd.Flags().StringVar(&opts.sort, "sort", string(SortByStart), "Sort order for json, text and ics: start, title or status")
	cmd.Flags().StringVar(&opts.fetcher, "fetcher", config.BackendColly, "Fetch backend: colly or http")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write prometheus metrics to this file after the run")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Enable debug logging and extra output columns")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cuya-elections %s\n", Version)
		},
	}
}

// loadConfig reads configuration with flags bound over file and environment values
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	v := config.NewViper(opts.configPath)
	if err := v.BindPFlag("fetch.backend", cmd.Flags().Lookup("fetcher")); err != nil {
		return nil, fmt.Errorf("binding --fetcher: %w", err)
	}
	if err := v.BindPFlag("log.level", cmd.Flags().Lookup("log-level")); err != nil {
		return nil, fmt.Errorf("binding --log-level: %w", err)
	}

	return config.LoadFrom(v, opts.configPath != "")
}

// newFetcher builds the configured fetch backend
func newFetcher(cfg config.FetchConfig) (fetch.Fetcher, error) {
	opts := fetch.Options{
		UserAgent:   cfg.UserAgent,
		Timeout:     cfg.Timeout,
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		Retries:     cfg.Retries,
	}

	switch cfg.Backend {
	case config.BackendColly:
		return fetch.NewColly(opts)
	case config.BackendHTTP:
		return fetch.NewHTTP(opts), nil
	default:
		return nil, fmt.Errorf("unknown fetch backend: %s", cfg.Backend)
	}
}

// runScrape is the main command logic
func runScrape(cmd *cobra.Command, opts *options) error {
	format, err := ParseFormat(opts.format)
	if err != nil {
		return err
	}
	order, err := ParseSortOrder(opts.sort)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	level := logger.ParseLevel(cfg.Log.Level)
	if opts.verbose {
		level = logger.LevelDebug
	}
	runID := uuid.NewString()
	log := logger.New(level, cmd.ErrOrStderr()).With(logger.Fields{
		"run_id": runID,
		"spider": cfg.Spider.Name,
	})
	logger.SetDefault(log)
	defer log.Sync()

	fetcher, err := newFetcher(cfg.Fetch)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	m := metrics.New()
	s := scraper.New(scraper.Config{
		Spider:       cfg.Spider.Name,
		Keyword:      cfg.Spider.Keyword,
		CalendarURLs: cfg.Spider.CalendarURLs,
		DocumentsURL: cfg.Spider.DocumentsURL,
		Location:     cfg.Spider.Location,
		TimeLocation: cfg.TimeLocation(),
	}, fetcher, scraper.WithMetrics(m), scraper.WithLogger(log))

	log.Info("Starting crawl", logger.Fields{
		"fetcher":       cfg.Fetch.Backend,
		"calendar_urls": strings.Join(cfg.Spider.CalendarURLs, " "),
		"format":        string(format),
	})

	started := time.Now()
	var (
		result   scraper.Result
		runErr   error
		gathered *sink.Collector
	)
	if format == FormatJSONL {
		result, runErr = s.Run(cmd.Context(), sink.NewJSONLines(out))
	} else {
		gathered = sink.NewCollector()
		result, runErr = s.Run(cmd.Context(), gathered)
	}

	m.MarkFinished(time.Now())
	if opts.metricsFile != "" {
		if err := m.WriteTextfile(opts.metricsFile); err != nil {
			log.Error("Failed to write metrics", logger.Fields{"path": opts.metricsFile}, err)
		}
	}

	partial := runErr != nil && errors.Is(runErr, scraper.ErrBranchFailed)
	if runErr != nil && !partial {
		return fmt.Errorf("crawl failed: %w", runErr)
	}

	if gathered != nil {
		meetings := orderedMeetings(gathered, order)
		if err := WriteOutput(out, &OutputResult{
			RunID:        runID,
			Agency:       cfg.Spider.Agency,
			ScrapedAt:    started.UTC(),
			Meetings:     meetings,
			MeetingCount: len(meetings),
			Skipped:      result.Skipped,
			Dropped:      result.Dropped,
		}, format, opts.verbose); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}

	log.Info("Crawl finished", logger.Fields{
		"emitted":  result.Emitted,
		"skipped":  result.Skipped,
		"dropped":  result.Dropped,
		"duration": time.Since(started).String(),
	})

	if partial {
		return &exitError{code: ExitPartial, err: runErr}
	}
	return nil
}

// Execute runs the CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(ExitCode(err))
}
