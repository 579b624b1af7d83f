package parser

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	pkgerrors "github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/models"
)

// EntryStore persists decoded entries. DuckStore implements it.
type EntryStore interface {
	RawSource
	// Add stores e and records its id on it.
	Add(ctx context.Context, e *models.Entry) error
	// EntriesAt returns the stored entries of a unit with the given time.
	EntriesAt(ctx context.Context, tluID int64, t time.Time) ([]*models.Entry, error)
}

// ScannerOption is a functional option for configuring Scanner
type ScannerOption func(*Scanner)

// WithEntryStore makes the scanner persist entries and deduplicate against the store.
func WithEntryStore(store EntryStore) ScannerOption {
	return func(s *Scanner) { s.store = store }
}

// WithUnit sets the travel log unit and commander stamped on every entry.
// The first unit.Size bytes count as already consumed: they are read again
// and deduplicated, so a resumed unit does not store its entries twice.
func WithUnit(unit models.TravelLogUnit) ScannerOption {
	return func(s *Scanner) {
		s.unit = unit
		s.commanderID = unit.CommanderID
		s.highWater = unit.Size
	}
}

// WithRecentLimit bounds the in-memory dedupe window used without a store.
func WithRecentLimit(n int) ScannerOption {
	return func(s *Scanner) { s.maxRecent = n }
}

// WithScannerLogger sets the scanner's logger.
func WithScannerLogger(l zerolog.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = l }
}

// Scanner tails one journal file. Only complete lines are consumed. When the
// file shrinks or Rewind is called, the already consumed region is read again
// and entries equivalent to ones seen before are dropped.
type Scanner struct {
	path        string
	decoder     *Decoder
	equiv       *Equivalence
	store       EntryStore
	unit        models.TravelLogUnit
	commanderID int
	logger      zerolog.Logger

	offset    int64
	highWater int64

	recent    []*models.Entry
	maxRecent int
}

// NewScanner creates a scanner for path starting at offset 0.
func NewScanner(path string, dec *Decoder, opts ...ScannerOption) *Scanner {
	if dec == nil {
		dec = NewDecoder(nil)
	}
	s := &Scanner{
		path:      path,
		decoder:   dec,
		maxRecent: 1000,
		logger:    logging.Component("scanner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	var eqOpts []EquivalenceOption
	if s.store != nil {
		eqOpts = append(eqOpts, WithRawSource(s.store))
	}
	s.equiv = NewEquivalence(eqOpts...)
	return s
}

// Path returns the scanned file.
func (s *Scanner) Path() string { return s.path }

// Offset returns the byte offset of the next unread line.
func (s *Scanner) Offset() int64 { return s.offset }

// Unit returns the travel log unit, with Beta set once a Fileheader was read.
func (s *Scanner) Unit() models.TravelLogUnit { return s.unit }

// Rewind makes the next ReadNew start from the beginning of the file.
func (s *Scanner) Rewind() {
	s.offset = 0
}

// ReadNew decodes the complete lines appended since the last call. A missing
// file yields no entries and no error.
func (s *Scanner) ReadNew(ctx context.Context) ([]*models.Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pkgerrors.WrapIO("open", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, pkgerrors.WrapIO("stat", s.path, err)
	}
	if info.Size() < s.offset {
		s.logger.Info().Str("file", s.path).Int64("size", info.Size()).Int64("offset", s.offset).Msg("Journal shrank, rescanning")
		s.offset = 0
	}
	if info.Size() == s.offset {
		return nil, nil
	}

	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return nil, pkgerrors.WrapIO("seek", s.path, err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, pkgerrors.WrapIO("read", s.path, err)
	}

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, nil
	}

	var out []*models.Entry
	pos := s.offset
	for _, line := range bytes.SplitAfter(data[:end+1], []byte{'\n'}) {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		lineStart := pos
		pos += int64(len(line))
		s.offset = pos

		text := bytes.TrimSpace(line)
		if len(text) == 0 {
			continue
		}

		entry := s.decoder.DecodeText(string(text), true)
		entry.SetUnitCommander(s.unit.ID, s.commanderID)
		if h, ok := entry.Payload.(*Fileheader); ok {
			s.unit.Beta = h.Beta()
		}

		if lineStart < s.highWater && s.seenBefore(ctx, entry) {
			continue
		}

		if s.store != nil {
			if err := s.store.Add(ctx, entry); err != nil {
				return out, err
			}
		}
		s.remember(entry)
		out = append(out, entry)
	}

	if s.offset > s.highWater {
		s.highWater = s.offset
	}
	s.unit.Size = s.highWater
	return out, nil
}

func (s *Scanner) seenBefore(ctx context.Context, entry *models.Entry) bool {
	if s.store != nil {
		stored, err := s.store.EntriesAt(ctx, s.unit.ID, entry.EventTimeUTC)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Dedupe lookup failed")
		}
		for _, prev := range stored {
			if s.equiv.Same(ctx, entry, prev) {
				return true
			}
		}
		return false
	}

	for i := len(s.recent) - 1; i >= 0; i-- {
		prev := s.recent[i]
		if prev.Type == entry.Type && prev.EventTimeUTC.Equal(entry.EventTimeUTC) && s.equiv.Same(ctx, entry, prev) {
			return true
		}
	}
	return false
}

func (s *Scanner) remember(entry *models.Entry) {
	if s.store != nil || s.maxRecent <= 0 {
		return
	}
	s.recent = append(s.recent, entry)
	if len(s.recent) > s.maxRecent {
		s.recent = s.recent[len(s.recent)-s.maxRecent:]
	}
}
