package cmd

import (
	"github.com/sitekit/sitekit/internal/iarchiver"
	"github.com/spf13/cobra"
)

// IArchiver returns the sub-command that submits new timeline items to the
// Internet Archive. It takes no arguments and no flags of its own.
func IArchiver() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   iarchiver.Name,
			Short: "Submit new posts to the Internet Archive",
			Long: `Request a Wayback Machine capture for every post published since the
previous run.

The start time of each run is stored in <cacheDir>/lastiarchive. Items dated
at or after that time are submitted, one request at a time with a pause
between requests. When the file is missing or unreadable every item is
submitted.
`,
			Args: cobra.NoArgs,
		}, nil, runIArchiver,
	)
}

func runIArchiver(ctx *Context, _ []string) error {
	task, collector := ctx.NewArchiveTask()
	err := task.Run(ctx.Context)
	ctx.WriteMetrics(ctx.Context, collector)
	return err
}
