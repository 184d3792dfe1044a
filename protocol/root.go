// Package protocol is the sounddb command line: it loads a dataset
// definition, runs accessor queries against it and writes the results.
package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundscape-lab/sounddb/accessors"
	"github.com/soundscape-lab/sounddb/constants"
	"github.com/soundscape-lab/sounddb/utils"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

var (
	datasetPath     string
	destinationPath string
	logLevel        string
	logFolder       string
	filterArgs      []string
	paramArgs       []string
	sortFields      []string
	groupFields     []string
	limit           int
	stat            string
	timeout         int64 // timeout in seconds

	registry = accessors.Default()
)

// CreateRootCommand builds a fresh command tree; flags start at their
// defaults on every call.
func CreateRootCommand() *cobra.Command {
	var commands []*cobra.Command
	rootCmd := &cobra.Command{
		Use:   "sounddb",
		Short: "query acoustic monitoring datasets",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			viper.SetEnvPrefix(constants.EnvPrefix)
			viper.AutomaticEnv()
			if logLevel != "" {
				viper.Set(constants.LogLevel, logLevel)
			}
			if logFolder != "" {
				viper.Set(constants.LogFolder, logFolder)
			}
			if datasetPath == "" {
				datasetPath = viper.GetString(constants.DatasetConfig)
			}
			logger.Init()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			if ok := utils.IsValidSubcommand(commands, args[0]); !ok {
				return fmt.Errorf("'%s' is an invalid command. Use 'sounddb --help' to display usage guide", args[0])
			}
			return nil
		},
	}

	commands = append(commands, newAccessorsCmd(), newEntriesCmd(), newSummarizeCmd(), newExportCmd())
	rootCmd.AddCommand(commands...)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&datasetPath, "dataset", "d", "", "Dataset definition file (or SOUNDDB_DATASET)")
	flags.StringVarP(&logLevel, "log-level", "", "", "(Optional) Log level: debug, info, warn, error")
	flags.StringVarP(&logFolder, "log-folder", "", "", "(Optional) Folder for rotating log files")
	flags.Int64VarP(&timeout, "timeout", "", -1, "(Optional) Timeout for the whole command (in seconds)")

	// Disable Cobra CLI's built-in usage and error handling
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	return rootCmd
}

// Execute runs the command line against ctx.
func Execute(ctx context.Context, args ...string) error {
	rootCmd := CreateRootCommand()
	if args != nil {
		rootCmd.SetArgs(args)
	}
	return rootCmd.ExecuteContext(ctx)
}

// withTimeout applies --timeout to a command's context.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
}

// queryFlags registers the flags shared by commands that read entries.
func queryFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&filterArgs, "filter", "f", nil, "Field filter field=value; a comma-separated list matches any of the values")
	cmd.Flags().StringArrayVarP(&paramArgs, "param", "p", nil, "Accessor parameter name=v1,v2")
	cmd.Flags().StringSliceVarP(&sortFields, "sort", "s", nil, "Fields to sort entries by")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "(Optional) Maximum number of entries")
}
