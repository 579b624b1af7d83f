package cmd

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/output"
	"github.com/journal-monitor/backend/internal/parser"
	"github.com/journal-monitor/backend/internal/session"
)

func newMaterialsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "materials <folder|file...>",
		Short: "Total material counts from journals",
		Long: `Materials replays the material events of the given journal files, or of
every journal in a folder in name order, and prints the resulting counts.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := journalFiles(args)
			if err != nil {
				return err
			}

			dec := parser.NewDecoder(nil)
			ledger := parser.NewMaterialLedger()
			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					return errors.WrapIO("read", path, err)
				}
				lines := parser.SplitLines(string(data))
				entries := make([]*models.Entry, 0, len(lines))
				for _, line := range lines {
					entries = append(entries, dec.Decode(line))
				}
				parser.ApplyMaterials(ledger, entries)
			}
			return render(cmd, flags, output.Materials(ledger.Snapshot()))
		},
	}
}

// journalFiles expands folder arguments to their journals, sorted by name.
func journalFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errors.WrapIO("stat", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, session.JournalPattern))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}
