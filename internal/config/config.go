package config

import (
	"errors"
	"fmt"
	"time"
)

// Configuration validation errors.
var (
	ErrMissingSiteURL    = errors.New("siteURL is required to build absolute permalinks")
	ErrMissingCacheDir   = errors.New("paths.cacheDir is required")
	ErrInvalidThrottle   = errors.New("archive.throttle must be at least 4s")
	ErrInvalidTimeout    = errors.New("archive.timeout must not be negative")
	ErrMissingEndpoint   = errors.New("archive.endpoint is required")
	ErrInvalidLogFormat  = errors.New("logFormat must be one of: text, json")
	ErrNoContentPatterns = errors.New("content.patterns must list at least one glob")
)

// Config holds the resolved configuration of a site.
type Config struct {
	Global   Global
	Paths    PathsConfig
	Content  ContentConfig
	Archive  ArchiveConfig
	Schedule ScheduleConfig

	// Warnings collected while loading, logged once a logger exists.
	Warnings []string
}

// Global contains settings shared by every command.
type Global struct {
	Debug      bool
	LogFormat  string
	SiteURL    string
	TZ         string
	ConfigPath string

	// Location is nil when no timezone is configured.
	Location *time.Location
}

// PathsConfig contains the file system locations used by the tool.
type PathsConfig struct {
	CacheDir   string
	ContentDir string
	LogDir     string
}

// ContentConfig controls how source files are turned into timeline posts.
type ContentConfig struct {
	Patterns   []string
	ShowDrafts bool
	PrettyURLs bool
}

// ArchiveConfig controls submissions to the web archive.
type ArchiveConfig struct {
	Endpoint    string
	Throttle    time.Duration
	Timeout     time.Duration
	UserAgent   string
	MetricsFile string
}

// ScheduleConfig controls the long-running scheduler.
type ScheduleConfig struct {
	Cron string
}

// Validate checks the configuration for values the tool cannot work with.
func (c *Config) Validate() error {
	if c.Global.SiteURL == "" {
		return ErrMissingSiteURL
	}
	if c.Paths.CacheDir == "" {
		return ErrMissingCacheDir
	}
	if len(c.Content.Patterns) == 0 {
		return ErrNoContentPatterns
	}
	if c.Archive.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if c.Archive.Throttle < DefaultThrottle {
		return fmt.Errorf("%w: %s", ErrInvalidThrottle, c.Archive.Throttle)
	}
	if c.Archive.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Archive.Timeout)
	}
	switch c.Global.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Global.LogFormat)
	}
	return nil
}

// SiteLocation returns the configured timezone, or UTC when none is set.
func (g *Global) SiteLocation() *time.Location {
	if g.Location == nil {
		return time.UTC
	}
	return g.Location
}
