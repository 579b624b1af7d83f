package parser

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/journal-monitor/backend/internal/models"
)

// Keys added to stored records by this application rather than by the game.
const (
	DefaultGeneratedPrefix = "EDD"
	LegacyGeneratedKey     = "StarPosFromEDSM"
)

// RawSource fetches the stored record of an entry by id.
type RawSource interface {
	EntryJSON(ctx context.Context, id int64) (Fields, error)
}

// EquivalenceOption is a functional option for configuring Equivalence
type EquivalenceOption func(*Equivalence)

// WithGeneratedPrefix replaces the prefixes marking generated keys.
func WithGeneratedPrefix(prefixes ...string) EquivalenceOption {
	return func(q *Equivalence) {
		q.prefixes = append([]string(nil), prefixes...)
	}
}

// WithGeneratedKeys adds exact key names to strip.
func WithGeneratedKeys(keys ...string) EquivalenceOption {
	return func(q *Equivalence) {
		for _, k := range keys {
			q.keys[k] = true
		}
	}
}

// WithRawSource sets where records missing from an entry are fetched from.
func WithRawSource(src RawSource) EquivalenceOption {
	return func(q *Equivalence) {
		q.source = src
	}
}

// Equivalence decides whether two decoded entries are the same logical
// record, ignoring generated keys. It never modifies its inputs.
type Equivalence struct {
	source   RawSource
	prefixes []string
	keys     map[string]bool
}

// NewEquivalence creates a checker stripping the EDD prefix and the legacy
// StarPosFromEDSM key unless options say otherwise.
func NewEquivalence(opts ...EquivalenceOption) *Equivalence {
	q := &Equivalence{
		prefixes: []string{DefaultGeneratedPrefix},
		keys:     map[string]bool{LegacyGeneratedKey: true},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Same compares a and b using their retained records, fetching missing ones
// from the raw source. Entries with no record available are never equal.
func (q *Equivalence) Same(ctx context.Context, a, b *models.Entry) bool {
	return q.SameWith(ctx, a, rawOf(a), b, rawOf(b))
}

// SameWith is Same with the records supplied by the caller. A nil record is
// looked up by the entry's id.
func (q *Equivalence) SameWith(ctx context.Context, a *models.Entry, aRaw Fields, b *models.Entry, bRaw Fields) bool {
	if aRaw == nil {
		aRaw = q.fetch(ctx, a)
	}
	if bRaw == nil {
		bRaw = q.fetch(ctx, b)
	}
	if aRaw == nil || bRaw == nil {
		return false
	}
	return q.SameRaw(aRaw, bRaw)
}

// SameRaw compares two records after stripping generated keys from copies.
func (q *Equivalence) SameRaw(a, b Fields) bool {
	if a == nil || b == nil {
		return false
	}
	return cmp.Equal(map[string]any(q.StripGenerated(a)), map[string]any(q.StripGenerated(b)), numberComparer)
}

// StripGenerated returns obj without generated top-level keys. obj itself is
// returned when it has none; otherwise the result is a copy.
func (q *Equivalence) StripGenerated(obj Fields) Fields {
	var out Fields
	for k := range obj {
		if !q.generated(k) {
			continue
		}
		if out == nil {
			out = make(Fields, len(obj))
			for ck, cv := range obj {
				out[ck] = cv
			}
		}
		delete(out, k)
	}
	if out == nil {
		return obj
	}
	return out
}

func (q *Equivalence) generated(key string) bool {
	if q.keys[key] {
		return true
	}
	for _, p := range q.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func (q *Equivalence) fetch(ctx context.Context, e *models.Entry) Fields {
	if e == nil || q.source == nil || e.ID <= 0 {
		return nil
	}
	obj, err := q.source.EntryJSON(ctx, e.ID)
	if err != nil {
		return nil
	}
	return obj
}

func rawOf(e *models.Entry) Fields {
	if e == nil {
		return nil
	}
	return Fields(e.Raw)
}

// numberComparer treats 5, 5.0 and 5e0 as equal.
var numberComparer = cmp.Comparer(func(x, y json.Number) bool {
	if x == y {
		return true
	}
	fx, errX := x.Float64()
	fy, errY := y.Float64()
	return errX == nil && errY == nil && fx == fy
})
