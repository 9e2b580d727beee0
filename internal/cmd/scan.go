package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/sitekit/sitekit/internal/output"
	"github.com/spf13/cobra"
)

// Scan returns the sub-command that previews the next archival run.
func Scan() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "scan",
			Short: "List timeline items and whether the next run would archive them",
			Long: `Scan the content directory and show each published item with its
permalink and archival status. Nothing is submitted and the watermark file is
left untouched.
`,
			Args: cobra.NoArgs,
		}, []commandLineFlag{pendingFlag}, runScan,
	)
}

func runScan(ctx *Context, _ []string) error {
	task, _ := ctx.NewArchiveTask()
	plan, err := task.Plan(ctx.Context)
	if err != nil {
		return err
	}

	config := output.DefaultConfig()
	config.ColorEnabled = !color.NoColor
	config.PendingOnly = boolFlag(ctx.Command, pendingFlag.name)

	_, err = fmt.Fprint(ctx.Command.OutOrStdout(), output.NewRenderer(config).RenderPlan(plan))
	return err
}
