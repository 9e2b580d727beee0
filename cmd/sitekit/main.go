package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sitekit/sitekit/internal/build"
	"github.com/sitekit/sitekit/internal/cmd"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   build.Slug,
	Short: "Sitekit maintains a static site",
	Long: `Sitekit maintains a static site.

It scans the site's Markdown content and runs maintenance tasks against it,
such as submitting newly published posts to the Internet Archive.
`,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cmd.RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(cmd.IArchiver())
	rootCmd.AddCommand(cmd.Scan())
	rootCmd.AddCommand(cmd.Schedule())
	rootCmd.AddCommand(cmd.Version())

	build.Version = version
}

var version = "0.0.0"
