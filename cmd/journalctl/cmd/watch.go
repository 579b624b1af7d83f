package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/output"
	"github.com/journal-monitor/backend/internal/session"
	"github.com/journal-monitor/backend/internal/status"
)

type watchOptions struct {
	Interval    time.Duration
	TempDir     string
	FuelEpsilon float64
	Once        bool
}

func newWatchCommand(flags *globalFlags) *cobra.Command {
	opts := &watchOptions{}
	c := &cobra.Command{
		Use:   "watch <folder>",
		Short: "Follow the journal and status file of a folder",
		Long: `Watch monitors the newest journal of a folder together with its
Status.json and prints the merged timeline as it grows. A newer journal
appearing in the folder is followed automatically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, flags, opts, args[0])
		},
	}
	c.Flags().DurationVar(&opts.Interval, "interval", time.Second, "poll interval")
	c.Flags().StringVar(&opts.TempDir, "temp-dir", os.TempDir(), "directory for the session database")
	c.Flags().Float64Var(&opts.FuelEpsilon, "fuel-epsilon", status.DefaultThresholds().Fuel, "smallest main tank change reported")
	c.Flags().BoolVar(&opts.Once, "once", false, "poll once and exit")
	return c
}

func runWatch(cmd *cobra.Command, flags *globalFlags, opts *watchOptions, folder string) error {
	ctx := cmd.Context()
	log := logging.Component("watch")

	mopts := session.DefaultOptions()
	mopts.TempDir = opts.TempDir
	mopts.MaxSessions = 1
	mopts.Thresholds.Fuel = opts.FuelEpsilon

	mgr := session.NewManager(mopts)
	defer mgr.Close()

	sess, err := mgr.Start(ctx, folder)
	if err != nil {
		return err
	}
	log.Info().Str("folder", sess.Folder).Str("journal", sess.JournalPath).Msg("Watching")

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		tl, err := mgr.Poll(ctx, sess.ID)
		if err != nil {
			log.Warn().Err(err).Msg("Poll failed")
		} else if tl.Len() > 0 || opts.Once {
			if err := render(cmd, flags, output.Timeline{Timeline: tl}); err != nil {
				return err
			}
		}
		if opts.Once {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
