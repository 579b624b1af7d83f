package parser

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/jsonc"

	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/models"
)

// AssociatedFileOptions tunes ReadAssociatedFile. The defaults were found
// empirically against the game client.
type AssociatedFileOptions struct {
	RetryWait  time.Duration
	RetryCount int
	Logger     *zerolog.Logger
}

// DefaultAssociatedFileOptions returns 25ms x 100 retries.
func DefaultAssociatedFileOptions() AssociatedFileOptions {
	return AssociatedFileOptions{
		RetryWait:  25 * time.Millisecond,
		RetryCount: 100,
	}
}

// ReadAssociatedFile reads a side file (Market.json, Cargo.json, ...) that
// holds the full version of entry. The file is accepted when its event
// matches the entry and its timestamp is not later than the entry's; with
// checkTimestamp the timestamps must be equal. A file with the wrong event
// or no valid timestamp is deleted. When wait is set, an unreadable or not
// yet rewritten file is retried. Returns nil when no file was accepted.
func ReadAssociatedFile(ctx context.Context, path string, entry *models.Entry, wait, checkTimestamp bool, opts AssociatedFileOptions) Fields {
	if opts.RetryCount <= 0 {
		opts.RetryCount = 1
	}
	log := logging.Component("associated")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	log = log.With().Str("file", path).Logger()

	for retry := 0; retry < opts.RetryCount; retry++ {
		obj := readLenientObject(path)
		if obj != nil {
			fileUTC := obj.TimeUTC("timestamp")
			switch {
			case obj.Str("event") != EventTag(entry) || fileUTC.IsZero():
				log.Debug().Msg("Rejected associated file due to type/bad date, deleting")
				_ = os.Remove(path)
				return nil
			case fileUTC.After(entry.EventTimeUTC):
				return nil
			case !checkTimestamp || fileUTC.Equal(entry.EventTimeUTC):
				log.Debug().Time("at", fileUTC).Int("retries", retry).Msg("Read associated file")
				return obj
			default:
				log.Debug().Time("at", fileUTC).Int("retries", retry).Msg("Associated file not written yet, waiting")
			}
		} else {
			log.Debug().Int("retries", retry).Msg("Cannot read associated file, waiting")
		}

		if !wait {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(opts.RetryWait):
		}
	}
	return nil
}

// readLenientObject returns nil when the file is missing, locked or not a JSON object.
// Comments and trailing commas are tolerated.
func readLenientObject(path string) Fields {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return nil
	}
	obj, err := ParseObject(jsonc.ToJSON(data))
	if err != nil {
		return nil
	}
	return obj
}
