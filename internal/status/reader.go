package status

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/parser"
)

// FileName is the status file written next to the journals.
const FileName = "Status.json"

// Option configures a Reader.
type Option func(*Reader)

// WithThresholds overrides the fuel thresholds.
func WithThresholds(th Thresholds) Option {
	return func(r *Reader) {
		r.shadow.thresholds = th
	}
}

// WithLogger sets the logger for read and parse diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reader) {
		r.logger = l
	}
}

// Reader polls one status file. Poll must not be called concurrently.
type Reader struct {
	path     string
	prevText string
	hasPrev  bool
	shadow   *Shadow
	logger   zerolog.Logger
}

// NewReader creates a reader for the status file at path.
func NewReader(path string, opts ...Option) *Reader {
	r := &Reader{
		path:   path,
		shadow: NewShadow(DefaultThresholds()),
		logger: logging.Component("status"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFolderReader creates a reader for the status file in folder.
func NewFolderReader(folder string, opts ...Option) *Reader {
	return NewReader(filepath.Join(folder, FileName), opts...)
}

// Path returns the monitored file.
func (r *Reader) Path() string {
	return r.path
}

// Current returns the summary of the last accepted snapshot.
func (r *Reader) Current() models.OverallStatus {
	return r.shadow.Overall()
}

// Poll reads the status file and returns the changes since the last
// successful poll. Missing, locked, unchanged or malformed files yield no
// events; the next poll tries again.
func (r *Reader) Poll() []models.UIEvent {
	if _, err := os.Stat(r.path); err != nil {
		return nil
	}

	text, err := r.readFirstLine()
	if err != nil {
		r.logger.Debug().Err(err).Str("path", r.path).Msg("Status read failed")
		return nil
	}
	if text == "" || (r.hasPrev && text == r.prevText) {
		return nil
	}

	obj, err := parser.ParseObject([]byte(text))
	if err != nil {
		r.logger.Debug().Err(err).Str("path", r.path).Msg("Status parse failed")
		return nil
	}
	r.prevText = text
	r.hasPrev = true

	return r.shadow.Apply(obj)
}

// readFirstLine opens the file read-only, so a writer holding it open is
// not blocked.
func (r *Reader) readFirstLine() (string, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
