// Package config loads scraper configuration from defaults, an optional YAML
// file and CUYA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // timezone database for minimal images

	"github.com/joho/godotenv"
	"github.com/pfrederiksen/cuya-elections/internal/meeting"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable names, e.g. CUYA_FETCH_BACKEND
const EnvPrefix = "CUYA"

// Fetch backends
const (
	BackendColly = "colly"
	BackendHTTP  = "http"
)

// Defaults for the Cuyahoga County Board of Elections site
const (
	DefaultSpiderName      = "cuya_elections"
	DefaultAgency          = "Cuyahoga County Board of Elections"
	DefaultTimezone        = "America/Detroit"
	DefaultKeyword         = "board"
	DefaultDocumentsURL    = "https://boe.cuyahogacounty.gov/about-us/board-meeting-documents"
	DefaultPastURL         = "https://boe.cuyahogacounty.gov/calendar?sort=datedesc&it=Past%20Events&mpp=96"
	DefaultCurrentURL      = "https://boe.cuyahogacounty.gov/calendar?it=Current%20Events&mpp=96"
	DefaultLocationName    = "Board of Elections"
	DefaultLocationAddress = "2925 Euclid Ave, Cleveland, OH 44115"
	DefaultUserAgent       = "cuya-elections/1.0 (github.com/pfrederiksen/cuya-elections)"
	DefaultTimeout         = 30 * time.Second
	DefaultParallelism     = 4
	DefaultDelay           = 250 * time.Millisecond
	DefaultRetries         = 2
	DefaultLogLevel        = "info"
)

const (
	defaultConfigName = "config"
	defaultConfigType = "yaml"
)

// Config is the complete scraper configuration
type Config struct {
	Spider SpiderConfig `mapstructure:"spider"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
	Log    LogConfig    `mapstructure:"log"`
}

// SpiderConfig describes the site being scraped
type SpiderConfig struct {
	Name         string           `mapstructure:"name"`
	Agency       string           `mapstructure:"agency"`
	Timezone     string           `mapstructure:"timezone"`
	Keyword      string           `mapstructure:"keyword"`
	CalendarURLs []string         `mapstructure:"calendar_urls"`
	DocumentsURL string           `mapstructure:"documents_url"`
	Location     meeting.Location `mapstructure:"location"`
}

// FetchConfig configures the page fetcher
type FetchConfig struct {
	Backend     string        `mapstructure:"backend"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Parallelism int           `mapstructure:"parallelism"`
	Delay       time.Duration `mapstructure:"delay"`
	Retries     int           `mapstructure:"retries"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// NewViper returns a viper instance with defaults and environment binding.
// If path is empty, ./config.yaml and ./config/config.yaml are tried.
func NewViper(path string) *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType(defaultConfigType)
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)
	return v
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("spider.name", DefaultSpiderName)
	v.SetDefault("spider.agency", DefaultAgency)
	v.SetDefault("spider.timezone", DefaultTimezone)
	v.SetDefault("spider.keyword", DefaultKeyword)
	v.SetDefault("spider.calendar_urls", []string{DefaultPastURL, DefaultCurrentURL})
	v.SetDefault("spider.documents_url", DefaultDocumentsURL)
	v.SetDefault("spider.location.name", DefaultLocationName)
	v.SetDefault("spider.location.address", DefaultLocationAddress)

	v.SetDefault("fetch.backend", BackendColly)
	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("fetch.timeout", DefaultTimeout)
	v.SetDefault("fetch.parallelism", DefaultParallelism)
	v.SetDefault("fetch.delay", DefaultDelay)
	v.SetDefault("fetch.retries", DefaultRetries)

	v.SetDefault("log.level", DefaultLogLevel)
}

// Load reads .env, the config file (optional unless path is set) and the
// environment, and returns a validated Config.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	return LoadFrom(NewViper(path), path != "")
}

// LoadDotEnv exports variables from ./.env if the file exists.
// Variables already set in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// LoadFrom unmarshals and validates configuration from a prepared viper instance.
// A missing config file is an error only when requireFile is set.
func LoadFrom(v *viper.Viper, requireFile bool) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if requireFile || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required values
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Spider.Name) == "" {
		errs = append(errs, errors.New("spider.name is required"))
	}
	if len(c.Spider.CalendarURLs) == 0 {
		errs = append(errs, errors.New("spider.calendar_urls must list at least one URL"))
	}
	if strings.TrimSpace(c.Spider.DocumentsURL) == "" {
		errs = append(errs, errors.New("spider.documents_url is required"))
	}
	if strings.TrimSpace(c.Spider.Keyword) == "" {
		errs = append(errs, errors.New("spider.keyword is required"))
	}
	if _, err := time.LoadLocation(c.Spider.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("spider.timezone: %w", err))
	}

	switch c.Fetch.Backend {
	case BackendColly, BackendHTTP:
	default:
		errs = append(errs, fmt.Errorf("fetch.backend %q must be %q or %q", c.Fetch.Backend, BackendColly, BackendHTTP))
	}
	if c.Fetch.Parallelism < 1 {
		errs = append(errs, errors.New("fetch.parallelism must be at least 1"))
	}
	if c.Fetch.Retries < 0 {
		errs = append(errs, errors.New("fetch.retries must not be negative"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// TimeLocation returns the spider's timezone
func (c *Config) TimeLocation() *time.Location {
	loc, err := time.LoadLocation(c.Spider.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
