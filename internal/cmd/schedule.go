package cmd

import (
	"context"

	"github.com/sitekit/sitekit/internal/iarchiver"
	"github.com/sitekit/sitekit/internal/scheduler"
	"github.com/spf13/cobra"
)

// Schedule returns the sub-command that runs the archiver on a cron schedule.
func Schedule() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "schedule",
			Short: "Run the archiver periodically",
			Long: `Run the archiver in the foreground on the schedule.cron expression,
evaluated in the site timezone. A run that would overlap a previous one is
skipped. Stop with SIGINT or SIGTERM.

Example:
  sitekit schedule --cron "0 4 * * *"
`,
			Args: cobra.NoArgs,
		}, []commandLineFlag{cronFlag}, runSchedule,
	)
}

func runSchedule(ctx *Context, _ []string) error {
	expr := ctx.Config.Schedule.Cron
	if v := stringFlag(ctx.Command, cronFlag.name); v != "" {
		expr = v
	}

	job := scheduler.JobFunc(func(runCtx context.Context) error {
		task, collector := ctx.NewArchiveTask()
		err := task.Run(runCtx)
		ctx.WriteMetrics(runCtx, collector)
		return err
	})

	s, err := scheduler.New(iarchiver.Name, expr, ctx.Config.Global.SiteLocation(), job)
	if err != nil {
		return err
	}
	return s.Start(ctx.Context)
}
