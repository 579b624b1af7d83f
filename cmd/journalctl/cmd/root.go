// Package cmd holds the journalctl commands.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/output"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	Format   string
	LogLevel string
	Verbose  bool
}

// NewRootCommand builds the journalctl command tree.
func NewRootCommand(version string) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "journalctl",
		Short: "Decode and watch game journal files",
		Long: `journalctl decodes journal files into typed events, lists the known
event tags, totals material counts and follows a live journal folder
together with its status file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadEnvFiles(cmd.ErrOrStderr(), flags.Verbose)

			level := flags.LogLevel
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			if level == "" {
				level = "warn"
				if flags.Verbose {
					level = "debug"
				}
			}
			cfg := logging.DefaultConfig()
			cfg.Level = level
			logging.Configure(cfg)

			_, err := output.ParseFormat(flags.Format)
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.Format, "output", "o", "", "output format: table, wide, json, yaml (default: table on a terminal, json otherwise)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newDecodeCommand(flags),
		newTagsCommand(flags),
		newMaterialsCommand(flags),
		newFlagsCommand(flags),
		newWatchCommand(flags),
	)
	return root
}

// loadEnvFiles loads .env.local and .env. Variables already set are kept,
// so .env.local overrides .env.
func loadEnvFiles(w io.Writer, verbose bool) {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err == nil && verbose {
			fmt.Fprintf(w, "Loaded %s\n", name)
		}
	}
}

// render writes data to the command's output in the selected format.
func render(cmd *cobra.Command, flags *globalFlags, data any) error {
	format := output.DetectFormat(flags.Format)
	return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
}
