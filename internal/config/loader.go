package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/sitekit/sitekit/internal/build"
	"github.com/sitekit/sitekit/internal/fileutil"
	"github.com/spf13/viper"
)

const (
	configName = "site"

	// DefaultArchiveEndpoint is the Wayback Machine "save page now" prefix.
	DefaultArchiveEndpoint = "http://web.archive.org/save/"
	// DefaultThrottle is the pause after every archival request and the
	// shortest one accepted.
	DefaultThrottle = 4 * time.Second
)

// Load creates a new configuration by instantiating a ConfigLoader with the provided options
// and then invoking its Load method.
func Load(opts ...ConfigLoaderOption) (*Config, error) {
	cfg, err := NewConfigLoader(viper.New(), opts...).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// ConfigLoader reads and merges configuration from the site file, dotenv
// files and the environment.
type ConfigLoader struct {
	v          *viper.Viper
	configFile string
	workDir    string
	warnings   []string
}

// ConfigLoaderOption defines a functional option for configuring a ConfigLoader.
type ConfigLoaderOption func(*ConfigLoader)

// WithConfigFile returns a ConfigLoaderOption that sets the configuration file path.
func WithConfigFile(configFile string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.configFile = configFile
	}
}

// WithWorkDir sets the directory searched first for site.yaml. Relative
// paths fall back to it when no config file is found.
func WithWorkDir(dir string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.workDir = dir
	}
}

// NewConfigLoader creates a ConfigLoader with the given viper instance and options.
func NewConfigLoader(v *viper.Viper, options ...ConfigLoaderOption) *ConfigLoader {
	loader := &ConfigLoader{v: v}
	for _, opt := range options {
		opt(loader)
	}
	return loader
}

// Load reads configuration files, applies defaults and environment overrides,
// and returns a validated Config instance.
func (l *ConfigLoader) Load() (*Config, error) {
	if l.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not determine working directory: %w", err)
		}
		l.workDir = wd
	}

	l.configureViper()
	l.bindEnvironmentVariables()
	l.setDefaultValues()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		l.warnings = append(l.warnings, "No site.yaml found; using defaults and environment")
	}

	configPath := l.v.ConfigFileUsed()
	siteRoot := l.workDir
	if configPath != "" {
		siteRoot = filepath.Dir(configPath)
	}

	// Env files are named by the config itself, so they are loaded after
	// the file is read but before values are unmarshalled.
	if err := l.loadEnvFiles(siteRoot, l.v.GetStringSlice("envFiles")); err != nil {
		return nil, err
	}

	var def Definition
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := l.v.Unmarshal(&def, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def, siteRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}
	cfg.Global.ConfigPath = configPath
	cfg.Warnings = l.warnings

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildConfig transforms the raw Definition into a Config, resolving
// paths against the site root and parsing durations.
func (l *ConfigLoader) buildConfig(def Definition, siteRoot string) (*Config, error) {
	cfg := &Config{
		Global: Global{
			Debug:     def.Debug,
			LogFormat: def.LogFormat,
			SiteURL:   strings.TrimSpace(def.SiteURL),
			TZ:        strings.TrimSpace(def.TZ),
		},
		Content: ContentConfig{
			Patterns:   def.Content.Patterns,
			ShowDrafts: def.Content.ShowDrafts,
			PrettyURLs: def.Content.PrettyURLs,
		},
		Archive: ArchiveConfig{
			Endpoint:  def.Archive.Endpoint,
			UserAgent: def.Archive.UserAgent,
		},
		Schedule: ScheduleConfig{
			Cron: def.Schedule.Cron,
		},
	}

	if err := setTimezone(&cfg.Global); err != nil {
		return nil, err
	}

	var err error
	if cfg.Paths.CacheDir, err = resolveSitePath(siteRoot, def.Paths.CacheDir); err != nil {
		return nil, fmt.Errorf("failed to resolve paths.cacheDir: %w", err)
	}
	if cfg.Paths.ContentDir, err = resolveSitePath(siteRoot, def.Paths.ContentDir); err != nil {
		return nil, fmt.Errorf("failed to resolve paths.contentDir: %w", err)
	}
	if cfg.Paths.LogDir, err = resolveSitePath(siteRoot, def.Paths.LogDir); err != nil {
		return nil, fmt.Errorf("failed to resolve paths.logDir: %w", err)
	}
	if cfg.Archive.MetricsFile, err = resolveSitePath(siteRoot, def.Archive.MetricsFile); err != nil {
		return nil, fmt.Errorf("failed to resolve archive.metricsFile: %w", err)
	}

	if cfg.Archive.Throttle, err = parseDuration("archive.throttle", def.Archive.Throttle); err != nil {
		return nil, err
	}
	if cfg.Archive.Timeout, err = parseDuration("archive.timeout", def.Archive.Timeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

// configureViper sets up the config file location, type, and environment variable handling.
func (l *ConfigLoader) configureViper() {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.AddConfigPath(l.workDir)
		l.v.AddConfigPath(filepath.Join(xdg.ConfigHome, build.Slug))
		l.v.SetConfigName(configName)
	}
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(strings.ToUpper(build.Slug))
	l.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	l.v.AutomaticEnv()
}

// setDefaultValues establishes the default configuration values for various keys.
func (l *ConfigLoader) setDefaultValues() {
	l.v.SetDefault("debug", false)
	l.v.SetDefault("logFormat", "text")
	l.v.SetDefault("tz", "")
	l.v.SetDefault("envFiles", []string{".env"})

	l.v.SetDefault("paths.cacheDir", "cache")
	l.v.SetDefault("paths.contentDir", ".")
	l.v.SetDefault("paths.logDir", "")

	l.v.SetDefault("content.patterns", []string{"posts/**/*.md", "pages/**/*.md"})
	l.v.SetDefault("content.showDrafts", false)
	l.v.SetDefault("content.prettyURLs", true)

	l.v.SetDefault("archive.endpoint", DefaultArchiveEndpoint)
	l.v.SetDefault("archive.throttle", DefaultThrottle.String())
	l.v.SetDefault("archive.timeout", "0s")
	l.v.SetDefault("archive.userAgent", build.AppName+"/"+build.Version)
	l.v.SetDefault("archive.metricsFile", "")

	l.v.SetDefault("schedule.cron", "@daily")
}

// bindEnvironmentVariables binds configuration keys to environment variables.
func (l *ConfigLoader) bindEnvironmentVariables() {
	l.bindEnv("debug", "DEBUG")
	l.bindEnv("logFormat", "LOG_FORMAT")
	l.bindEnv("siteURL", "SITE_URL")
	l.bindEnv("tz", "TZ")

	l.bindEnv("paths.cacheDir", "CACHE_DIR")
	l.bindEnv("paths.contentDir", "CONTENT_DIR")
	l.bindEnv("paths.logDir", "LOG_DIR")

	l.bindEnv("content.patterns", "CONTENT_PATTERNS")
	l.bindEnv("content.showDrafts", "SHOW_DRAFTS")

	l.bindEnv("archive.endpoint", "ARCHIVE_ENDPOINT")
	l.bindEnv("archive.throttle", "ARCHIVE_THROTTLE")
	l.bindEnv("archive.timeout", "ARCHIVE_TIMEOUT")
	l.bindEnv("archive.userAgent", "ARCHIVE_USER_AGENT")
	l.bindEnv("archive.metricsFile", "ARCHIVE_METRICS_FILE")

	l.bindEnv("schedule.cron", "SCHEDULE")
}

// bindEnv constructs the full environment variable name using the app prefix and binds it to the given key.
func (l *ConfigLoader) bindEnv(key, env string) {
	prefix := strings.ToUpper(build.Slug) + "_"
	_ = l.v.BindEnv(key, prefix+env)
}

// loadEnvFiles loads dotenv files relative to the site root. Missing files
// are skipped; variables already present in the environment win.
func (l *ConfigLoader) loadEnvFiles(siteRoot string, files []string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		path, err := resolveSitePath(siteRoot, f)
		if err != nil {
			return fmt.Errorf("failed to resolve env file %q: %w", f, err)
		}
		if !fileutil.FileExists(path) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// resolveSitePath resolves p to an absolute path. Relative paths are taken
// relative to the site root rather than the process working directory.
func resolveSitePath(siteRoot, p string) (string, error) {
	p = strings.TrimSpace(os.ExpandEnv(p))
	if p == "" {
		return "", nil
	}
	if !strings.HasPrefix(p, "~") && !filepath.IsAbs(p) {
		p = filepath.Join(siteRoot, p)
	}
	return fileutil.ResolvePath(p)
}

func parseDuration(field, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", field, value, err)
	}
	return d, nil
}
