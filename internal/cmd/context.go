package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sitekit/sitekit/internal/build"
	"github.com/sitekit/sitekit/internal/config"
	"github.com/sitekit/sitekit/internal/content"
	"github.com/sitekit/sitekit/internal/fileutil"
	"github.com/sitekit/sitekit/internal/iarchiver"
	"github.com/sitekit/sitekit/internal/logger"
	"github.com/sitekit/sitekit/internal/logger/tag"
	"github.com/sitekit/sitekit/internal/metrics"
	"github.com/sitekit/sitekit/internal/watermark"
	"github.com/sitekit/sitekit/internal/wayback"
	"github.com/spf13/cobra"
)

// Context holds the configuration for a command.
type Context struct {
	context.Context

	Command *cobra.Command
	Flags   []commandLineFlag
	Config  *config.Config
	Quiet   bool

	logFile *os.File
}

// NewContext loads the site configuration, sets up the logger and logs any
// warnings collected while loading.
func NewContext(cmd *cobra.Command, flags []commandLineFlag) (*Context, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	quiet := boolFlag(cmd, quietFlag.name)

	var configLoaderOpts []config.ConfigLoaderOption
	if cfgPath := stringFlag(cmd, configFlag.name); cfgPath != "" {
		configLoaderOpts = append(configLoaderOpts, config.WithConfigFile(cfgPath))
	}

	cfg, err := config.Load(configLoaderOpts...)
	if err != nil {
		return nil, err
	}
	if boolFlag(cmd, debugFlag.name) {
		cfg.Global.Debug = true
	}

	c := &Context{
		Context: ctx,
		Command: cmd,
		Flags:   flags,
		Config:  cfg,
		Quiet:   quiet,
	}

	var logFile *os.File
	if cfg.Paths.LogDir != "" {
		logFile, err = fileutil.OpenOrCreateFile(filepath.Join(cfg.Paths.LogDir, logFileName(cmd.Name(), time.Now())))
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	}
	c.LogToFile(logFile)

	for _, w := range cfg.Warnings {
		logger.Warn(c.Context, w)
	}
	if cfg.Global.ConfigPath != "" {
		logger.Debug(c.Context, "Loaded site config", tag.File(cfg.Global.ConfigPath))
	}
	return c, nil
}

// LogToFile replaces the context logger with one that also writes to f.
func (c *Context) LogToFile(f *os.File) {
	var opts []logger.Option
	if c.Config.Global.Debug {
		opts = append(opts, logger.WithDebug())
	}
	if c.Quiet {
		opts = append(opts, logger.WithQuiet())
	}
	if c.Config.Global.LogFormat != "" {
		opts = append(opts, logger.WithFormat(c.Config.Global.LogFormat))
	}
	if f != nil {
		opts = append(opts, logger.WithWriter(f))
		c.logFile = f
	}
	c.Context = logger.WithLogger(c.Context, logger.NewLogger(opts...))
}

// Close releases the log file, if any.
func (c *Context) Close() error {
	if c.logFile == nil {
		return nil
	}
	err := c.logFile.Close()
	c.logFile = nil
	return err
}

// NewScanner creates a content scanner for the configured site.
func (c *Context) NewScanner() *content.Scanner {
	cfg := c.Config
	return content.NewScanner(cfg.Paths.ContentDir, cfg.Global.SiteURL,
		content.WithPatterns(cfg.Content.Patterns...),
		content.WithLocation(cfg.Global.SiteLocation()),
		content.WithDrafts(cfg.Content.ShowDrafts),
		content.WithPrettyURLs(cfg.Content.PrettyURLs),
	)
}

// archiveTaskOptions are applied after the configured ones on every
// archive task.
var archiveTaskOptions []iarchiver.Option

// NewArchiveTask wires the archive submission task and its metrics
// collector from the configuration.
func (c *Context) NewArchiveTask() (*iarchiver.Task, *metrics.Collector) {
	cfg := c.Config
	collector := metrics.NewCollector(build.Version)

	client := wayback.New(cfg.Archive.Endpoint,
		wayback.WithTimeout(cfg.Archive.Timeout),
		wayback.WithUserAgent(cfg.Archive.UserAgent),
	)

	opts := []iarchiver.Option{
		iarchiver.WithLocation(cfg.Global.SiteLocation()),
		iarchiver.WithThrottle(cfg.Archive.Throttle),
		iarchiver.WithRecorder(collector),
	}
	task := iarchiver.New(
		watermark.New(cfg.Paths.CacheDir),
		c.NewScanner(),
		client,
		append(opts, archiveTaskOptions...)...,
	)
	return task, collector
}

// WriteMetrics exports collector to the configured textfile. Failures are
// logged and otherwise ignored.
func (c *Context) WriteMetrics(ctx context.Context, collector *metrics.Collector) {
	path := c.Config.Archive.MetricsFile
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path, metrics.NewRegistry(collector)); err != nil {
		logger.Warn(ctx, "Failed to write metrics", tag.File(path), tag.Error(err))
	}
}

// NewCommand creates a new command instance with the given cobra command and run function.
func NewCommand(cmd *cobra.Command, flags []commandLineFlag, runFunc func(cmd *Context, args []string) error) *cobra.Command {
	initFlags(cmd, flags...)

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext(cmd, flags)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Initialization error: %v\n", err)
			return err
		}
		defer func() { _ = ctx.Close() }()

		if err := runFunc(ctx, args); err != nil {
			if errors.Is(err, watermark.ErrLocked) {
				logger.Warn(ctx.Context, "Another run is in progress", tag.Error(err))
			} else {
				logger.Error(ctx.Context, "Command failed", tag.Error(err))
			}
			return err
		}
		return nil
	}

	return cmd
}

// logFileName builds a per-invocation log file name.
func logFileName(command string, t time.Time) string {
	return fmt.Sprintf("%s_%s.log", command, t.UTC().Format("20060102_150405Z"))
}
