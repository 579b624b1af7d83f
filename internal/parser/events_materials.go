package parser

import (
	"sort"
	"strings"

	"github.com/journal-monitor/backend/internal/models"
)

// MaterialJournalEntry is implemented by variants that change material counts.
type MaterialJournalEntry interface {
	UpdateMaterials(l *MaterialLedger)
}

// MaterialLedger holds material counts keyed by normalised name.
type MaterialLedger struct {
	counts     map[string]int
	categories map[string]string
}

func NewMaterialLedger() *MaterialLedger {
	return &MaterialLedger{
		counts:     make(map[string]int),
		categories: make(map[string]string),
	}
}

// Clear drops every count.
func (l *MaterialLedger) Clear() {
	l.counts = make(map[string]int)
	l.categories = make(map[string]string)
}

// Set replaces the count of name.
func (l *MaterialLedger) Set(category, name string, count int) {
	name = normaliseMaterialName(name)
	l.counts[name] = count
	if category != "" {
		l.categories[name] = category
	}
}

// Change adds delta to the count of name, never going below zero.
func (l *MaterialLedger) Change(category, name string, delta int) {
	name = normaliseMaterialName(name)
	n := l.counts[name] + delta
	if n < 0 {
		n = 0
	}
	l.counts[name] = n
	if category != "" {
		l.categories[name] = category
	}
}

// Craft consumes used units of name.
func (l *MaterialLedger) Craft(name string, used int) {
	l.Change("", name, -used)
}

// Count returns the current count of name.
func (l *MaterialLedger) Count(name string) int {
	return l.counts[normaliseMaterialName(name)]
}

// MaterialCount is one row of a ledger snapshot.
type MaterialCount struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Count    int    `json:"count"`
}

// Snapshot lists the non-zero counts sorted by name.
func (l *MaterialLedger) Snapshot() []MaterialCount {
	out := make([]MaterialCount, 0, len(l.counts))
	for name, n := range l.counts {
		if n == 0 {
			continue
		}
		out = append(out, MaterialCount{Name: name, Category: l.categories[name], Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normaliseMaterialName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// normaliseMaterialCategory turns "$MICRORESOURCE_CATEGORY_Manufactured;" into "Manufactured".
func normaliseMaterialCategory(cat string) string {
	cat = strings.TrimPrefix(cat, "$MICRORESOURCE_CATEGORY_")
	cat = strings.TrimSuffix(cat, ";")
	switch strings.ToLower(cat) {
	case "raw", "elements", "minerals":
		return "Raw"
	case "manufactured":
		return "Manufactured"
	case "encoded":
		return "Encoded"
	}
	return cat
}

// Material is one element of a Materials inventory list.
type Material struct {
	Name          string `json:"name"`
	NameLocalised string `json:"nameLocalised,omitempty"`
	Count         int    `json:"count"`
}

func materialList(f Fields, key string) []Material {
	objs := f.Objects(key)
	if objs == nil {
		return nil
	}
	out := make([]Material, 0, len(objs))
	for _, o := range objs {
		out = append(out, Material{
			Name:          normaliseMaterialName(o.Str("Name")),
			NameLocalised: o.Str("Name_Localised"),
			Count:         o.Int("Count", 0),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Materials is the full inventory written at login.
type Materials struct {
	Raw          []Material `json:"raw,omitempty"`
	Manufactured []Material `json:"manufactured,omitempty"`
	Encoded      []Material `json:"encoded,omitempty"`
}

func (*Materials) EventType() models.EventType { return models.EventTypeMaterials }

func (m *Materials) UpdateMaterials(l *MaterialLedger) {
	l.Clear()
	for _, mat := range m.Raw {
		l.Set("Raw", mat.Name, mat.Count)
	}
	for _, mat := range m.Manufactured {
		l.Set("Manufactured", mat.Name, mat.Count)
	}
	for _, mat := range m.Encoded {
		l.Set("Encoded", mat.Name, mat.Count)
	}
}

func newMaterials(f Fields) models.Payload {
	return &Materials{
		Raw:          materialList(f, "Raw"),
		Manufactured: materialList(f, "Manufactured"),
		Encoded:      materialList(f, "Encoded"),
	}
}

// MaterialCollected adds Count units. Total is filled in by UpdateMaterials.
type MaterialCollected struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Total    int    `json:"total"`
}

func (*MaterialCollected) EventType() models.EventType { return models.EventTypeMaterialCollected }

func (m *MaterialCollected) UpdateMaterials(l *MaterialLedger) {
	l.Change(m.Category, m.Name, m.Count)
	m.Total = l.Count(m.Name)
}

func newMaterialCollected(f Fields) models.Payload {
	return &MaterialCollected{
		Category: normaliseMaterialCategory(f.Str("Category")),
		Name:     normaliseMaterialName(f.Str("Name")),
		Count:    f.Int("Count", 1),
	}
}

// MaterialDiscarded removes Count units. Total is filled in by UpdateMaterials.
type MaterialDiscarded struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Total    int    `json:"total"`
}

func (*MaterialDiscarded) EventType() models.EventType { return models.EventTypeMaterialDiscarded }

func (m *MaterialDiscarded) UpdateMaterials(l *MaterialLedger) {
	l.Change(m.Category, m.Name, -m.Count)
	m.Total = l.Count(m.Name)
}

func newMaterialDiscarded(f Fields) models.Payload {
	return &MaterialDiscarded{
		Category: normaliseMaterialCategory(f.Str("Category")),
		Name:     normaliseMaterialName(f.Str("Name")),
		Count:    f.Int("Count", 0),
	}
}

// MaterialDiscovered does not change counts.
type MaterialDiscovered struct {
	Category        string `json:"category"`
	Name            string `json:"name"`
	DiscoveryNumber int    `json:"discoveryNumber"`
}

func (*MaterialDiscovered) EventType() models.EventType { return models.EventTypeMaterialDiscovered }

func newMaterialDiscovered(f Fields) models.Payload {
	return &MaterialDiscovered{
		Category:        normaliseMaterialCategory(f.Str("Category")),
		Name:            normaliseMaterialName(f.Str("Name")),
		DiscoveryNumber: f.Int("DiscoveryNumber", 0),
	}
}

// Traded is one side of a material trader exchange.
type Traded struct {
	Material          string `json:"material"`
	MaterialLocalised string `json:"materialLocalised,omitempty"`
	Category          string `json:"category,omitempty"`
	Quantity          int    `json:"quantity"`
}

func newTraded(f Fields) *Traded {
	if f == nil {
		return nil
	}
	t := &Traded{
		Material:          normaliseMaterialName(f.Str("Material")),
		MaterialLocalised: f.Str("Material_Localised"),
		Quantity:          f.Int("Quantity", 0),
	}
	if f.Has("Category") {
		t.Category = normaliseMaterialCategory(f.Str("Category"))
	}
	return t
}

type MaterialTrade struct {
	MarketID   *int64  `json:"marketId,omitempty"`
	TraderType string  `json:"traderType"`
	Paid       *Traded `json:"paid,omitempty"`
	Received   *Traded `json:"received,omitempty"`
}

func (*MaterialTrade) EventType() models.EventType { return models.EventTypeMaterialTrade }

// UpdateMaterials applies the trade. A side without a category is booked
// under the trader type.
func (m *MaterialTrade) UpdateMaterials(l *MaterialLedger) {
	if m.Paid == nil || m.Received == nil {
		return
	}
	l.Change(orDefault(m.Paid.Category, m.TraderType), m.Paid.Material, -m.Paid.Quantity)
	l.Change(orDefault(m.Received.Category, m.TraderType), m.Received.Material, m.Received.Quantity)
}

func newMaterialTrade(f Fields) models.Payload {
	return &MaterialTrade{
		MarketID:   f.LongNull("MarketID"),
		TraderType: f.Str("TraderType"),
		Paid:       newTraded(f.Object("Paid")),
		Received:   newTraded(f.Object("Received")),
	}
}

// Synthesis consumes materials. Materials arrives either as a name->count
// object or as an array of {Name, Count}.
type Synthesis struct {
	Name      string         `json:"name"`
	Materials map[string]int `json:"materials,omitempty"`
}

func (*Synthesis) EventType() models.EventType { return models.EventTypeSynthesis }

func (s *Synthesis) UpdateMaterials(l *MaterialLedger) {
	for name, n := range s.Materials {
		l.Craft(name, n)
	}
	if strings.Contains(strings.ToLower(s.Name), "limpet") {
		l.Change("Commodity", "drones", 1)
	}
}

func newSynthesis(f Fields) models.Payload {
	s := &Synthesis{Name: models.SplitCaps(f.Str("Name"))}
	if obj := f.Object("Materials"); obj != nil {
		s.Materials = make(map[string]int, len(obj))
		for k := range obj {
			s.Materials[normaliseMaterialName(k)] = obj.Int(k, 0)
		}
	} else if objs := f.Objects("Materials"); objs != nil {
		s.Materials = make(map[string]int, len(objs))
		for _, o := range objs {
			s.Materials[normaliseMaterialName(o.StrDefault("Name", "Default"))] = o.Int("Count", 0)
		}
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
