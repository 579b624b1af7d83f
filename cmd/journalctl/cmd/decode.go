package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/output"
	"github.com/journal-monitor/backend/internal/parser"
)

type decodeOptions struct {
	Events  []string
	Unknown bool
	Limit   int
}

func newDecodeCommand(flags *globalFlags) *cobra.Command {
	opts := &decodeOptions{}
	c := &cobra.Command{
		Use:   "decode [file...]",
		Short: "Decode journal lines into typed events",
		Long: `Decode reads journal files, or standard input when no file is given,
and prints one row per record. Records with an unregistered tag are kept
under their written tag.`,
		Example: `  journalctl decode Journal.2024-03-01T100000.01.log
  journalctl decode -e Docked,Undocked -o json Journal.*.log
  tail -n 20 Journal.log | journalctl decode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, flags, opts, args)
		},
	}
	c.Flags().StringSliceVarP(&opts.Events, "event", "e", nil, "only show these event tags")
	c.Flags().BoolVar(&opts.Unknown, "unknown", false, "only show records with an unregistered tag")
	c.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "stop after this many records")
	return c
}

func runDecode(cmd *cobra.Command, flags *globalFlags, opts *decodeOptions, args []string) error {
	types := make(map[models.EventType]bool, len(opts.Events))
	for _, tag := range opts.Events {
		t, ok := models.ParseEventType(strings.TrimSpace(tag))
		if !ok {
			return errors.NewValidationError("event", tag, "unknown event tag")
		}
		types[t] = true
	}

	var texts []string
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return errors.WrapIO("read", "stdin", err)
		}
		texts = append(texts, string(data))
	}
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.WrapIO("read", path, err)
		}
		texts = append(texts, string(data))
	}

	dec := parser.NewDecoder(nil)
	var entries output.Entries
	for _, text := range texts {
		for _, line := range parser.SplitLines(text) {
			e := dec.Decode(line)
			if opts.Unknown && e.Type != models.EventTypeUnknown {
				continue
			}
			if len(types) > 0 && !types[e.Type] {
				continue
			}
			entries = append(entries, e)
			if opts.Limit > 0 && len(entries) >= opts.Limit {
				return render(cmd, flags, entries)
			}
		}
	}
	return render(cmd, flags, entries)
}
