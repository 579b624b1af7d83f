package cmd

import (
	"github.com/spf13/cobra"

	"github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/output"
	"github.com/journal-monitor/backend/internal/parser"
)

func newTagsCommand(flags *globalFlags) *cobra.Command {
	var capability string
	c := &cobra.Command{
		Use:   "tags",
		Short: "List the registered event tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter parser.Filter
			switch capability {
			case "":
			case "materials":
				filter = parser.Implementing[parser.MaterialJournalEntry]()
			default:
				return errors.NewValidationError("capability", capability, "must be materials")
			}
			return render(cmd, flags, output.Tags(parser.GetGlobalRegistry().Enumerate(filter)))
		},
	}
	c.Flags().StringVar(&capability, "capability", "", "only list tags with this capability (materials)")
	return c
}
