package parser

import "github.com/journal-monitor/backend/internal/models"

// BuiltinDefinitions lists every journal variant this package can decode.
// Types declared in models without an entry here decode to Unknown.
func BuiltinDefinitions() []Definition {
	return []Definition{
		{Type: models.EventTypeFileheader, New: newFileheader},
		{Type: models.EventTypeCommander, New: newCommander},
		{Type: models.EventTypeLoadGame, New: newLoadGame},
		{Type: models.EventTypeDocked, New: newDocked},
		{Type: models.EventTypeUndocked, New: newUndocked},
		{Type: models.EventTypeTouchdown, New: newTouchdown},
		{Type: models.EventTypeLiftoff, New: newLiftoff},
		{Type: models.EventTypeShipTargeted, New: newShipTargeted},
		{Type: models.EventTypeMaterials, New: newMaterials},
		{Type: models.EventTypeMaterialCollected, New: newMaterialCollected},
		{Type: models.EventTypeMaterialDiscarded, New: newMaterialDiscarded},
		{Type: models.EventTypeMaterialDiscovered, New: newMaterialDiscovered},
		{Type: models.EventTypeMaterialTrade, New: newMaterialTrade},
		{Type: models.EventTypeSynthesis, New: newSynthesis},
	}
}

// ApplyMaterials feeds entries with a material capability into l, in order.
func ApplyMaterials(l *MaterialLedger, entries []*models.Entry) {
	for _, e := range entries {
		if m, ok := e.Payload.(MaterialJournalEntry); ok {
			m.UpdateMaterials(l)
		}
	}
}
