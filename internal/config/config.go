// Package config holds refresh options and the optional settings file.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Refresh configures one refresh run of an archive.
type Refresh struct {
	// Comments enables archiving the comment section of every video (slow).
	Comments bool

	// MaxVideos, MaxLivestreams and MaxShorts bound how many recent items
	// of each bucket are considered for download. nil means no maximum.
	MaxVideos      *int
	MaxLivestreams *int
	MaxShorts      *int

	// SkipMetadata skips the metadata download entirely.
	SkipMetadata bool
	// SkipDownload skips the content download entirely.
	SkipDownload bool

	// Format is a custom transport format selector.
	Format string
	// Proxy is a proxy URL for the transport.
	Proxy string
}

// Validate checks that the refresh options are consistent.
func (r *Refresh) Validate() error {
	for name, maximum := range map[string]*int{
		"videos":      r.MaxVideos,
		"livestreams": r.MaxLivestreams,
		"shorts":      r.MaxShorts,
	} {
		if maximum != nil && *maximum < 0 {
			return fmt.Errorf("config: %s maximum must be non-negative", name)
		}
	}
	return nil
}

// Settings is the optional on-disk configuration file (yark.toml) for
// machine-level options that don't vary per refresh.
type Settings struct {
	// YtdlpPath is the path to the yt-dlp executable.
	YtdlpPath string `toml:"ytdlp_path"`
	// YtdlpTimeoutMinutes bounds one yt-dlp invocation. 0 uses the default.
	YtdlpTimeoutMinutes int `toml:"ytdlp_timeout_minutes"`
	// Proxy is the default proxy URL for all refreshes.
	Proxy string `toml:"proxy"`
	// Format is the default transport format selector.
	Format string `toml:"format"`
	// APIKey enables the Data API fallback metadata fetcher when set.
	APIKey string `toml:"api_key"`
}

// DefaultSettings returns settings with safe defaults.
func DefaultSettings() *Settings {
	return &Settings{YtdlpPath: "yt-dlp"}
}

// YtdlpTimeout returns the configured invocation timeout as a duration.
func (s *Settings) YtdlpTimeout() time.Duration {
	return time.Duration(s.YtdlpTimeoutMinutes) * time.Minute
}

// LoadSettings reads yark.toml from the working directory or the user
// config directory, applies env overrides, and falls back to defaults when
// no file exists.
func LoadSettings() (*Settings, error) {
	settings := DefaultSettings()

	paths := []string{
		"yark.toml",
		filepath.Join(os.Getenv("HOME"), ".config", "yark", "yark.toml"),
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("open settings file: %w", err)
		}
		err = readSettings(f, settings)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading settings from %s: %w", path, err)
		}
		break
	}

	settings.loadFromEnv()
	return settings, nil
}

func readSettings(r io.Reader, settings *Settings) error {
	if _, err := toml.NewDecoder(r).Decode(settings); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	return nil
}

// loadFromEnv overrides settings with YARK_* environment variables.
func (s *Settings) loadFromEnv() {
	if v := os.Getenv("YARK_YTDLP_PATH"); v != "" {
		s.YtdlpPath = v
	}
	if v := os.Getenv("YARK_PROXY"); v != "" {
		s.Proxy = v
	}
	if v := os.Getenv("YARK_FORMAT"); v != "" {
		s.Format = v
	}
	if v := os.Getenv("YARK_API_KEY"); v != "" {
		s.APIKey = v
	}
}
