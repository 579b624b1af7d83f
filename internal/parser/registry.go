package parser

import (
	"strings"

	pkgerrors "github.com/journal-monitor/backend/internal/errors"
	"github.com/journal-monitor/backend/internal/models"
)

// Constructor builds a variant payload from a decoded journal record.
// Constructors must not fail on missing optional fields.
type Constructor func(f Fields) models.Payload

// Definition binds a wire tag to its variant constructor. Tag defaults to
// Type.String(); a definition with Type == EventTypeUnknown is reachable by
// tag only.
type Definition struct {
	Tag  string
	Type models.EventType
	New  Constructor
}

func (d Definition) tag() string {
	if d.Tag != "" {
		return d.Tag
	}
	return d.Type.String()
}

// Filter selects variants by capability. It is given a payload built from
// an empty record.
type Filter func(p models.Payload) bool

// Implementing returns a Filter matching variants whose payload implements T.
func Implementing[T any]() Filter {
	return func(p models.Payload) bool {
		_, ok := p.(T)
		return ok
	}
}

// Registry maps wire tags to variant constructors. It is built once and is
// read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	byEnum map[models.EventType]Definition
	byTag  map[string]Definition
}

// Global registry instance
var globalRegistry = MustNewRegistry(BuiltinDefinitions())

// GetGlobalRegistry returns the registry of built-in journal variants.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// NewRegistry builds a registry from defs. Two definitions sharing a tag
// (compared case-insensitively) or an enum value yield *errors.DuplicateTagError.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{
		byEnum: make(map[models.EventType]Definition, len(defs)),
		byTag:  make(map[string]Definition, len(defs)),
	}
	for _, d := range defs {
		key := strings.ToLower(d.tag())
		if _, dup := r.byTag[key]; dup {
			return nil, &pkgerrors.DuplicateTagError{Tag: d.tag()}
		}
		r.byTag[key] = d
		if d.Type == models.EventTypeUnknown {
			continue
		}
		if _, dup := r.byEnum[d.Type]; dup {
			return nil, &pkgerrors.DuplicateTagError{Tag: d.Type.String()}
		}
		r.byEnum[d.Type] = d
	}
	return r, nil
}

// MustNewRegistry is NewRegistry for package initialisation; it panics on a duplicate.
func MustNewRegistry(defs []Definition) *Registry {
	r, err := NewRegistry(defs)
	if err != nil {
		panic(err)
	}
	return r
}

// ResolveByTag finds the definition for tag, ignoring case.
func (r *Registry) ResolveByTag(tag string) (Definition, bool) {
	if tag == "" {
		return Definition{}, false
	}
	d, ok := r.byTag[strings.ToLower(tag)]
	return d, ok
}

// ResolveByEnum finds the definition for t, falling back to its canonical tag.
func (r *Registry) ResolveByEnum(t models.EventType) (Definition, bool) {
	if d, ok := r.byEnum[t]; ok {
		return d, true
	}
	return r.ResolveByTag(t.String())
}

// Enumerate lists the real event types in ascending order. Icon-only values
// are never listed. With a filter, only types with a constructor whose
// payload passes the filter are listed.
func (r *Registry) Enumerate(filter Filter) []models.EventType {
	out := make([]models.EventType, 0, len(r.byEnum))
	for _, t := range models.AllEventTypes() {
		if t.IsIconOnly() {
			continue
		}
		if filter != nil {
			d, ok := r.ResolveByEnum(t)
			if !ok || !filter(d.New(nil)) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// Names returns the tags of Enumerate(filter).
func (r *Registry) Names(filter Filter) []string {
	types := r.Enumerate(filter)
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.byTag)
}
