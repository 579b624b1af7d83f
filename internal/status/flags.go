// Package status turns the single-line status file into a stream of UI
// change events. It remembers the previous snapshot and reports deltas only.
package status

import "github.com/journal-monitor/backend/internal/models"

// Group is a partition of the status flag bits. Bit meaning depends on which
// vehicle is active, so each group is reported only in its own context.
type Group int

const (
	GroupShip Group = iota
	GroupSRV
	GroupUniversal
)

// String returns the group name.
func (g Group) String() string {
	switch g {
	case GroupShip:
		return "ship"
	case GroupSRV:
		return "srv"
	case GroupUniversal:
		return "universal"
	default:
		return "unknown"
	}
}

// flagBit is one reportable bit.
type flagBit struct {
	Bit  uint
	Kind models.UIKind
}

// Bit tables, ascending by bit. Emission order follows these tables.
var (
	shipFlags = []flagBit{
		{0, models.UIDocked},
		{1, models.UILanded},
		{2, models.UILandingGear},
		{4, models.UISupercruise},
		{5, models.UIFlightAssist},
		{6, models.UIHardpointsDeployed},
		{7, models.UIInWing},
		{9, models.UICargoScoopDeployed},
		{10, models.UISilentRunning},
		{11, models.UIScoopingFuel},
		{16, models.UIFsdMassLocked},
		{17, models.UIFsdCharging},
		{18, models.UIFsdCooldown},
		{20, models.UIOverHeating},
		{23, models.UIBeingInterdicted},
		{27, models.UIHUDInAnalysisMode},
	}

	srvFlags = []flagBit{
		{12, models.UISrvHandbrake},
		{13, models.UISrvTurret},
		{14, models.UISrvUnderShip},
		{15, models.UISrvDriveAssist},
	}

	universalFlags = []flagBit{
		{3, models.UIShieldsUp},
		{8, models.UILights},
		{19, models.UILowFuel},
		{21, models.UIHasLatLong},
		{22, models.UIIsInDanger},
		{28, models.UINightVision},
	}
)

// Vehicle context bits.
const (
	bitInMainShip = 24
	bitInFighter  = 25
	bitInSRV      = 26

	// ShipMask isolates the vehicle context bits. As a previous mask it
	// decodes to no vehicle, so it seeds the first poll.
	ShipMask int64 = 1<<bitInMainShip | 1<<bitInFighter | 1<<bitInSRV

	// bitAltitudeFromAverageRadius is reported on the position event.
	bitAltitudeFromAverageRadius = 29
)

func (g Group) bits() []flagBit {
	switch g {
	case GroupShip:
		return shipFlags
	case GroupSRV:
		return srvFlags
	case GroupUniversal:
		return universalFlags
	default:
		return nil
	}
}

// FlagChange is a flag whose bit differs between two masks.
type FlagChange struct {
	Kind  models.UIKind
	State bool
}

// FlagsSet returns the kinds in group whose bit is set in mask.
func FlagsSet(mask int64, group Group) []models.UIKind {
	var out []models.UIKind
	for _, f := range group.bits() {
		if mask>>f.Bit&1 != 0 {
			out = append(out, f.Kind)
		}
	}
	return out
}

// AllFlagsSet returns the set flags of every group, ship first.
func AllFlagsSet(mask int64) []models.UIKind {
	out := FlagsSet(mask, GroupShip)
	out = append(out, FlagsSet(mask, GroupSRV)...)
	return append(out, FlagsSet(mask, GroupUniversal)...)
}

// FlagsChanged returns the kinds in group whose bit differs between current
// and previous, with their new state.
func FlagsChanged(current, previous int64, group Group) []FlagChange {
	delta := current ^ previous
	var out []FlagChange
	for _, f := range group.bits() {
		if delta>>f.Bit&1 != 0 {
			out = append(out, FlagChange{Kind: f.Kind, State: current>>f.Bit&1 != 0})
		}
	}
	return out
}

// ShipTypeOf decodes the vehicle context. Anything other than exactly one
// context bit is no vehicle.
func ShipTypeOf(mask int64) models.ShipType {
	switch mask & ShipMask {
	case 1 << bitInMainShip:
		return models.ShipTypeMainShip
	case 1 << bitInSRV:
		return models.ShipTypeSRV
	case 1 << bitInFighter:
		return models.ShipTypeFighter
	default:
		return models.ShipTypeNone
	}
}

// GroupsFor returns the flag groups reported in a vehicle context.
func GroupsFor(st models.ShipType) []Group {
	switch st {
	case models.ShipTypeMainShip:
		return []Group{GroupShip, GroupUniversal}
	case models.ShipTypeSRV:
		return []Group{GroupSRV, GroupUniversal}
	case models.ShipTypeFighter:
		return []Group{GroupUniversal}
	default:
		return nil
	}
}

// AltitudeFromAverageRadius reports bit 29 of mask.
func AltitudeFromAverageRadius(mask int64) bool {
	return mask>>bitAltitudeFromAverageRadius&1 != 0
}
