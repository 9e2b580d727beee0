package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

type commandLineFlag struct {
	name, shorthand, defaultValue, usage string
	required                             bool
	isBool                               bool
}

var (
	configFlag = commandLineFlag{
		name:      "config",
		shorthand: "c",
		usage:     "site config file (default is ./site.yaml or $XDG_CONFIG_HOME/sitekit/site.yaml)",
	}
	quietFlag = commandLineFlag{
		name:      "quiet",
		shorthand: "q",
		usage:     "suppress log output on stderr",
		isBool:    true,
	}
	debugFlag = commandLineFlag{
		name:   "debug",
		usage:  "enable debug logging",
		isBool: true,
	}
	pendingFlag = commandLineFlag{
		name:      "pending",
		shorthand: "p",
		usage:     "only list items the next run would submit",
		isBool:    true,
	}
	cronFlag = commandLineFlag{
		name:  "cron",
		usage: "cron expression overriding schedule.cron",
	}
)

// globalFlags are registered once on the root command and inherited by
// every sub-command.
var globalFlags = []commandLineFlag{configFlag, quietFlag, debugFlag}

// RegisterGlobalFlags adds the host-wide persistent flags to root.
func RegisterGlobalFlags(root *cobra.Command) {
	for _, flag := range globalFlags {
		addFlag(root, flag, true)
	}
}

func initFlags(cmd *cobra.Command, flags ...commandLineFlag) {
	for _, flag := range flags {
		addFlag(cmd, flag, false)
	}
}

func addFlag(cmd *cobra.Command, flag commandLineFlag, persistent bool) {
	fs := cmd.Flags()
	if persistent {
		fs = cmd.PersistentFlags()
	}
	if flag.isBool {
		fs.BoolP(flag.name, flag.shorthand, flag.defaultValue == "true", flag.usage)
	} else {
		fs.StringP(flag.name, flag.shorthand, flag.defaultValue, flag.usage)
	}
	if flag.required {
		if err := cmd.MarkFlagRequired(flag.name); err != nil {
			fmt.Printf("failed to mark flag %s as required: %v\n", flag.name, err)
		}
	}
}

// boolFlag returns the value of a bool flag, or false when the command does
// not define it.
func boolFlag(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Lookup(name) == nil {
		return false
	}
	v, _ := cmd.Flags().GetBool(name)
	return v
}

// stringFlag returns the value of a string flag, or "" when the command
// does not define it.
func stringFlag(cmd *cobra.Command, name string) string {
	if cmd.Flags().Lookup(name) == nil {
		return ""
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}
