// Package config loads pagewatch configuration from an optional YAML file,
// .env files and environment variables, in that order of increasing
// precedence. The legacy environment names
// (WEBSITE_URL, TARGET_EMAILS, EMAIL_ADDRESS, EMAIL_PASSWORD, SMTP_SERVER,
// SMTP_PORT) are honoured.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the top-level pagewatch configuration.
type Config struct {
	URL      string        `yaml:"url" env:"WEBSITE_URL"`
	Interval time.Duration `yaml:"interval" env:"PAGEWATCH_INTERVAL"`
	LogLevel string        `yaml:"log_level" env:"PAGEWATCH_LOG_LEVEL"`

	Fetch   FetchConfig   `yaml:"fetch"`
	Render  RenderConfig  `yaml:"render"`
	Store   StoreConfig   `yaml:"store"`
	Extract ExtractConfig `yaml:"extract"`
	Report  ReportConfig  `yaml:"report"`
	Notify  NotifyConfig  `yaml:"notify"`
	Server  ServerConfig  `yaml:"server"`
}

// FetchConfig controls the plain GET used for change detection.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout" env:"PAGEWATCH_FETCH_TIMEOUT"`
	MaxBytes     int64         `yaml:"max_bytes"`
	UserAgent    string        `yaml:"user_agent" env:"PAGEWATCH_USER_AGENT"`
	BlockPrivate bool          `yaml:"block_private"`
}

// RenderConfig controls the browser used once a change is detected.
type RenderConfig struct {
	Backend          string        `yaml:"backend" env:"PAGEWATCH_RENDER_BACKEND"` // rod | chromedp | http
	Remote           string        `yaml:"remote" env:"PAGEWATCH_CHROME_URL"`
	Timeout          time.Duration `yaml:"timeout"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	DisableStealth   bool          `yaml:"disable_stealth"`
}

// StoreConfig selects where the last-seen fingerprint lives.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"PAGEWATCH_STORE_DRIVER"` // file | sqlite
	Path   string `yaml:"path" env:"PAGEWATCH_STORE_PATH"`
}

// ExtractConfig tunes record extraction.
type ExtractConfig struct {
	ImagePlaceholder string `yaml:"image_placeholder"`
	// TextTags replaces the built-in tag allow-list when non-empty.
	TextTags []string `yaml:"text_tags"`
}

// ReportConfig controls the generated report.
type ReportConfig struct {
	Path         string       `yaml:"path" env:"PAGEWATCH_REPORT_PATH"`
	MarkdownPath string       `yaml:"markdown_path"`
	Title        string       `yaml:"title"`
	Labels       LabelsConfig `yaml:"labels"`
}

// LabelsConfig names the three record kinds in the report's first column.
type LabelsConfig struct {
	Text  string `yaml:"text"`
	Link  string `yaml:"link"`
	Image string `yaml:"image"`
}

// NotifyConfig controls change alerts. Nothing is sent unless SMTP.Host or
// Webhooks is set.
type NotifyConfig struct {
	Recipients []string      `yaml:"recipients" env:"TARGET_EMAILS"`
	Subject    string        `yaml:"subject"`
	Body       string        `yaml:"body"`
	Timeout    time.Duration `yaml:"timeout"`
	SMTP       SMTPConfig    `yaml:"smtp"`
	Webhooks   []string      `yaml:"webhooks" env:"PAGEWATCH_WEBHOOKS"`
}

// SMTPConfig holds mail relay settings.
type SMTPConfig struct {
	Host     string `yaml:"host" env:"SMTP_SERVER"`
	Port     int    `yaml:"port" env:"SMTP_PORT"`
	Username string `yaml:"username" env:"EMAIL_ADDRESS"`
	Password string `yaml:"password" env:"EMAIL_PASSWORD"`
	From     string `yaml:"from"`
	Insecure bool   `yaml:"insecure"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"PAGEWATCH_ADDR"`
}

// Enabled reports whether any notifier is configured.
func (n NotifyConfig) Enabled() bool {
	return n.SMTP.Host != "" || len(n.Webhooks) > 0
}

// Load builds a Config. path may be empty, in which case only .env files
// and the environment are consulted. Defaults are applied; call Validate
// once command-line overrides are in.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Render.Backend == "" {
		c.Render.Backend = "rod"
	}
	if c.Render.Timeout <= 0 {
		c.Render.Timeout = 60 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "file"
	}
	if c.Store.Path == "" {
		if c.Store.Driver == "sqlite" {
			c.Store.Path = "pagewatch.db"
		} else {
			c.Store.Path = "website_hash.txt"
		}
	}
	if c.Report.Path == "" {
		c.Report.Path = "index.html"
	}
	if c.Notify.Timeout <= 0 {
		c.Notify.Timeout = 30 * time.Second
	}
	if c.Notify.SMTP.Port == 0 {
		c.Notify.SMTP.Port = 587
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url is required (set url or WEBSITE_URL)", ErrInvalid)
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url %q must be an absolute http(s) URL", ErrInvalid, c.URL)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalid)
	}
	switch c.Render.Backend {
	case "rod", "chromedp", "http":
	default:
		return fmt.Errorf("%w: unknown render backend %q", ErrInvalid, c.Render.Backend)
	}
	switch c.Store.Driver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalid, c.Store.Driver)
	}
	if c.Notify.SMTP.Host != "" {
		if c.Notify.SMTP.Port < 1 || c.Notify.SMTP.Port > 65535 {
			return fmt.Errorf("%w: smtp port %d out of range", ErrInvalid, c.Notify.SMTP.Port)
		}
		if len(c.Notify.Recipients) == 0 {
			return fmt.Errorf("%w: smtp configured but no recipients (TARGET_EMAILS)", ErrInvalid)
		}
		if c.Notify.SMTP.Username == "" && c.Notify.SMTP.From == "" {
			return fmt.Errorf("%w: smtp needs a sender (EMAIL_ADDRESS or notify.smtp.from)", ErrInvalid)
		}
	}
	for _, w := range c.Notify.Webhooks {
		if wu, err := url.Parse(w); err != nil || wu.Host == "" {
			return fmt.Errorf("%w: webhook %q is not a URL", ErrInvalid, w)
		}
	}
	return nil
}
