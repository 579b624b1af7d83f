package parser

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	pkgerrors "github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/models"
)

// Unknown is the fallback variant. Name holds the record's tag when it had
// one; Raw holds the record when its tag had no registered constructor.
type Unknown struct {
	Name string `json:"name,omitempty"`
	Raw  Fields `json:"raw,omitempty"`
}

func (Unknown) EventType() models.EventType { return models.EventTypeUnknown }

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithDecoderLogger sets the logger receiving parse diagnostics.
func WithDecoderLogger(l zerolog.Logger) DecoderOption {
	return func(d *Decoder) { d.logger = l }
}

// Decoder turns journal records into typed entries. It is safe for
// concurrent use.
type Decoder struct {
	registry *Registry
	logger   zerolog.Logger
	tags     *tagIntern
}

// NewDecoder creates a decoder over r, or over the global registry when r is nil.
func NewDecoder(r *Registry, opts ...DecoderOption) *Decoder {
	if r == nil {
		r = GetGlobalRegistry()
	}
	d := &Decoder{
		registry: r,
		logger:   logging.Component("decoder"),
		tags:     newTagIntern(maxInternedTags),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the decoder resolves tags through.
func (d *Decoder) Registry() *Registry {
	return d.registry
}

// ParseObject parses text as a single JSON object. Numbers are kept as
// json.Number so integer fields survive intact.
func ParseObject(text []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, pkgerrors.WrapParse("json", "", err)
	}
	if obj == nil {
		return nil, pkgerrors.WrapParse("json", "", pkgerrors.New("not a JSON object"))
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, pkgerrors.WrapParse("json", "", pkgerrors.New("trailing data after object"))
	}
	return Fields(obj), nil
}

// Decode decodes one journal line. It never fails: malformed text yields an
// Unknown entry with an empty payload and a warning on the decoder's logger.
func (d *Decoder) Decode(text string) *models.Entry {
	return d.DecodeText(text, false)
}

// DecodeText is Decode with the option of keeping the parsed record on the entry.
func (d *Decoder) DecodeText(text string, keepRaw bool) *models.Entry {
	obj, err := ParseObject([]byte(text))
	if err != nil {
		d.logger.Warn().Str("text", text).Err(err).Msg("Error parsing journal entry")
		return &models.Entry{Type: models.EventTypeUnknown, Payload: Unknown{}}
	}
	return d.DecodeObject(obj, keepRaw)
}

// DecodeObject builds the entry for an already parsed record. The record is
// not modified; with keepRaw it is retained on the entry for later comparison.
func (d *Decoder) DecodeObject(obj Fields, keepRaw bool) *models.Entry {
	entry := &models.Entry{
		Type:         models.EventTypeUnknown,
		EventTimeUTC: obj.TimeUTC("timestamp"),
	}

	tag := obj.Str("event")
	switch def, ok := d.resolve(tag); {
	case tag == "":
		entry.Payload = Unknown{}
	case !ok || def.New == nil:
		entry.Payload = Unknown{Name: d.tags.Intern(tag), Raw: obj}
	default:
		entry.Type = def.Type
		entry.Payload = def.New(obj)
	}

	if keepRaw {
		entry.Raw = obj
	}
	return entry
}

func (d *Decoder) resolve(tag string) (Definition, bool) {
	if tag == "" {
		return Definition{}, false
	}
	if t, ok := models.ParseEventType(tag); ok {
		return d.registry.ResolveByEnum(t)
	}
	return d.registry.ResolveByTag(tag)
}

// Synthesize builds an entry from a tag and a time alone, through the same
// decode path as records read from the journal.
func (d *Decoder) Synthesize(tag string, t time.Time) *models.Entry {
	obj := Fields{
		"event":     tag,
		"timestamp": t.UTC().Format(time.RFC3339Nano),
	}
	return d.DecodeObject(obj, false)
}

// SplitLines splits journal text into its non-blank lines.
func SplitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
