package tracker

import (
	"github.com/hazyhaar/pagewatch/tracker/internal/config"
)

// Config is the top-level pagewatch configuration. Re-exported from internal.
type Config = config.Config

// FetchConfig controls the plain GET used for change detection.
type FetchConfig = config.FetchConfig

// RenderConfig controls the browser used once a change is detected.
type RenderConfig = config.RenderConfig

// StoreConfig selects where the last-seen fingerprint lives.
type StoreConfig = config.StoreConfig

// ExtractConfig tunes record extraction.
type ExtractConfig = config.ExtractConfig

// ReportConfig controls the generated report.
type ReportConfig = config.ReportConfig

// NotifyConfig controls change alerts.
type NotifyConfig = config.NotifyConfig

// SMTPConfig holds mail relay settings.
type SMTPConfig = config.SMTPConfig

// ServerConfig controls the optional status server.
type ServerConfig = config.ServerConfig

// LoadConfig reads the optional YAML file at path, then .env files and the
// environment. The result has defaults applied but is not validated.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
