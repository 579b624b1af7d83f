package status

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/parser"
)

const (
	inMainShip int64 = 1 << 24
	inSRV      int64 = 1 << 26
)

// snapshot builds a status record with the given flags and extra members.
func snapshot(t *testing.T, flags int64, extra string) parser.Fields {
	t.Helper()
	text := fmt.Sprintf(`{"timestamp":"2024-03-01T10:00:00Z","event":"Status","Flags":%d,"GuiFocus":0%s}`, flags, extra)
	obj, err := parser.ParseObject([]byte(text))
	require.NoError(t, err)
	return obj
}

func kinds(events []models.UIEvent) []models.UIKind {
	out := make([]models.UIKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestShadowInitialRefresh(t *testing.T) {
	s := NewShadow(DefaultThresholds())
	flags := inMainShip | 1<<0 | 1<<2 | 1<<3 | 1<<12

	events := s.Apply(snapshot(t, flags, ""))
	assert.Equal(t, []models.UIKind{
		models.UIShipType,
		models.UIDocked,
		models.UILandingGear,
		models.UIShieldsUp,
		models.UIGUIFocus,
		models.UIOverallStatus,
	}, kinds(events))

	for _, e := range events {
		assert.True(t, e.Refresh, "%s should be a refresh", e.Kind)
		if state, ok := e.FlagValue(); ok {
			assert.True(t, state, "%s reported but not set", e.Kind)
		}
	}
	assert.Equal(t, models.ShipTypeState{ShipType: models.ShipTypeMainShip}, events[0].Payload)

	overall := events[len(events)-1].Payload.(models.OverallStatus)
	assert.Equal(t, models.ShipTypeMainShip, overall.ShipType)
	assert.Equal(t, []models.UIKind{models.UIDocked, models.UILandingGear, models.UISrvHandbrake, models.UIShieldsUp}, overall.Flags)
	assert.Equal(t, 0, overall.Focus)
}

func TestShadowIdempotent(t *testing.T) {
	s := NewShadow(DefaultThresholds())
	extra := `,"Pips":[4,8,0],"FireGroup":0,"Fuel":{"FuelMain":10.0,"FuelReservoir":0.5},"Cargo":3,"LegalState":"Clean","Latitude":1,"Longitude":2,"Altitude":3,"Heading":4,"PlanetRadius":5`
	first := s.Apply(snapshot(t, inMainShip|1<<1, extra))
	require.NotEmpty(t, first)

	assert.Empty(t, s.Apply(snapshot(t, inMainShip|1<<1, extra)))
}

func TestShadowLandedTransition(t *testing.T) {
	s := NewShadow(DefaultThresholds())
	s.Apply(snapshot(t, inMainShip, ""))

	events := s.Apply(snapshot(t, inMainShip|1<<1, ""))
	require.Equal(t, []models.UIKind{models.UILanded, models.UIOverallStatus}, kinds(events))

	state, ok := events[0].FlagValue()
	assert.True(t, ok)
	assert.True(t, state)
	assert.False(t, events[0].Refresh)

	overall := events[1].Payload.(models.OverallStatus)
	assert.Equal(t, []models.UIKind{models.UILanded}, overall.Flags)
	assert.False(t, events[1].Refresh)
}

func TestShadowFuelThresholds(t *testing.T) {
	s := NewShadow(DefaultThresholds())
	fuel := func(main, res float64) string {
		return fmt.Sprintf(`,"Fuel":{"FuelMain":%g,"FuelReservoir":%g}`, main, res)
	}

	events := s.Apply(snapshot(t, inMainShip, fuel(10, 0.5)))
	require.Contains(t, kinds(events), models.UIFuel)

	assert.Empty(t, s.Apply(snapshot(t, inMainShip, fuel(9.95, 0.5))), "0.05 is below the threshold")
	assert.Empty(t, s.Apply(snapshot(t, inMainShip, fuel(10, 0.505))))

	events = s.Apply(snapshot(t, inMainShip, fuel(9.85, 0.5)))
	require.Equal(t, []models.UIKind{models.UIFuel, models.UIOverallStatus}, kinds(events))
	assert.Equal(t, models.FuelState{Fuel: 9.85, Reservoir: 0.5, ShipType: models.ShipTypeMainShip}, events[0].Payload)
	assert.False(t, events[0].Refresh)

	events = s.Apply(snapshot(t, inMainShip, fuel(9.85, 0.52)))
	assert.Equal(t, []models.UIKind{models.UIFuel, models.UIOverallStatus}, kinds(events))
}

func TestShadowCustomThresholds(t *testing.T) {
	s := NewShadow(Thresholds{Fuel: 1, Reservoir: 1})
	s.Apply(snapshot(t, inMainShip, `,"Fuel":{"FuelMain":10,"FuelReservoir":0.5}`))
	assert.Empty(t, s.Apply(snapshot(t, inMainShip, `,"Fuel":{"FuelMain":9.5,"FuelReservoir":0.1}`)))
}

func TestShadowLegacyFuelIgnored(t *testing.T) {
	s := NewShadow(DefaultThresholds())
	events := s.Apply(snapshot(t, inMainShip, `,"Fuel":12.5`))
	assert.NotContains(t, kinds(events), models.UIFuel)
}

func TestShadowContextGating(t *testing.T) {
	s := NewShadow(DefaultThresholds())
	s.Apply(snapshot(t, inSRV, ""))

	// ship-only bit while in the SRV
	events := s.Apply(snapshot(t, inSRV|1<<0, ""))
	assert.Equal(t, []models.UIKind{models.UIOverallStatus}, kinds(events))
	events = s.Apply(snapshot(t, inSRV, ""))
	assert.Equal(t, []models.UIKind{models.UIOverallStatus}, kinds(events))

	// the same toggle together with the switch to the main ship
	events = s.Apply(snapshot(t, inMainShip|1<<0, ""))
	require.Equal(t, []models.UIKind{models.UIShipType, models.UIDocked}, kinds(events)[:2])
	assert.Equal(t, models.ShipTypeState{ShipType: models.ShipTypeMainShip}, events[0].Payload)
	assert.False(t, events[0].Refresh)
	assert.True(t, events[1].Refresh, "flags after a context switch are a refresh")
	assert.Equal(t, models.UIOverallStatus, events[len(events)-1].Kind)

	flagEvents := 0
	for _, e := range events {
		if _, ok := e.FlagValue(); ok {
			flagEvents++
			assert.True(t, e.Refresh)
		}
	}
	assert.Equal(t, len(GroupShip.bits())+len(GroupUniversal.bits()), flagEvents)
}

func TestShadowSwitchReportsWholeFlagSet(t *testing.T) {
	s := NewShadow(DefaultThresholds())
	s.Apply(snapshot(t, inSRV|1<<8, ""))

	// lights stay on across the switch and must still be reported
	events := s.Apply(snapshot(t, inMainShip|1<<8|1<<5, ""))
	require.Equal(t, models.UIShipType, events[0].Kind)

	states := map[models.UIKind]bool{}
	for _, e := range events {
		if v, ok := e.FlagValue(); ok {
			states[e.Kind] = v
			assert.True(t, e.Refresh, e.Kind)
		}
	}
	assert.Len(t, states, len(GroupShip.bits())+len(GroupUniversal.bits()))
	assert.True(t, states[models.UILights])
	assert.True(t, states[models.UIFlightAssist])
	assert.False(t, states[models.UIDocked])
	assert.NotContains(t, states, models.UISrvHandbrake)

	// back to plain deltas on the next poll
	events = s.Apply(snapshot(t, inMainShip|1<<5, ""))
	assert.Equal(t, []models.UIKind{models.UILights, models.UIOverallStatus}, kinds(events))
	assert.False(t, events[0].Refresh)
}

func TestShadowSRVFlags(t *testing.T) {
	s := NewShadow(DefaultThresholds())
	s.Apply(snapshot(t, inSRV, ""))

	events := s.Apply(snapshot(t, inSRV|1<<12|1<<8, ""))
	assert.Equal(t, []models.UIKind{models.UISrvHandbrake, models.UILights, models.UIOverallStatus}, kinds(events))
}

func TestShadowNoVehicleReportsNoFlags(t *testing.T) {
	s := NewShadow(DefaultThresholds())
	// the sentinel already decodes to no vehicle, so there is no switch to report
	events := s.Apply(snapshot(t, 1<<3, ""))
	require.Equal(t, []models.UIKind{models.UIGUIFocus, models.UIOverallStatus}, kinds(events))
	overall := events[1].Payload.(models.OverallStatus)
	assert.Equal(t, models.ShipTypeNone, overall.ShipType)
	assert.Equal(t, []models.UIKind{models.UIShieldsUp}, overall.Flags)
}

func TestShadowPips(t *testing.T) {
	s := NewShadow(DefaultThresholds())

	events := s.Apply(snapshot(t, inMainShip, `,"Pips":[4,8,0]`))
	require.Contains(t, kinds(events), models.UIPips)
	pips := events[2]
	require.Equal(t, models.UIPips, pips.Kind)
	assert.Equal(t, models.PipsState{Pips: models.Pips{Systems: 2, Engines: 4, Weapons: 0}}, pips.Payload)
	assert.True(t, pips.Refresh)

	events = s.Apply(snapshot(t, inMainShip, `,"Pips":[4,6,2]`))
	assert.Equal(t, []models.UIKind{models.UIPips, models.UIOverallStatus}, kinds(events))
	assert.False(t, events[0].Refresh)

	events = s.Apply(snapshot(t, inMainShip, ""))
	require.Equal(t, []models.UIKind{models.UIPips, models.UIOverallStatus}, kinds(events))
	assert.Equal(t, models.PipsState{Pips: models.InvalidPips()}, events[0].Payload)
	assert.False(t, events[0].Payload.(models.PipsState).Pips.Valid())

	assert.Empty(t, s.Apply(snapshot(t, inMainShip, `,"Pips":"bad"`)))
}

func TestShadowOptionalScalars(t *testing.T) {
	s := NewShadow(DefaultThresholds())

	events := s.Apply(snapshot(t, inMainShip, `,"FireGroup":0,"Cargo":4`))
	require.Equal(t, []models.UIKind{models.UIShipType, models.UIGUIFocus, models.UIFireGroup, models.UICargo, models.UIOverallStatus}, kinds(events))
	assert.Equal(t, models.FireGroupState{FireGroup: 1}, events[2].Payload)
	assert.Equal(t, models.CargoState{Count: 4, ShipType: models.ShipTypeMainShip}, events[3].Payload)
	assert.True(t, events[2].Refresh)
	assert.True(t, events[3].Refresh)

	// fields disappearing is not a change
	assert.Empty(t, s.Apply(snapshot(t, inMainShip, "")))

	events = s.Apply(snapshot(t, inMainShip, `,"FireGroup":2,"Cargo":4`))
	require.Equal(t, []models.UIKind{models.UIFireGroup, models.UIOverallStatus}, kinds(events))
	assert.Equal(t, models.FireGroupState{FireGroup: 3}, events[0].Payload)
	assert.False(t, events[0].Refresh)
	assert.Equal(t, 4, events[1].Payload.(models.OverallStatus).Cargo)
}

func TestShadowPosition(t *testing.T) {
	s := NewShadow(DefaultThresholds())
	s.Apply(snapshot(t, inMainShip, ""))

	events := s.Apply(snapshot(t, inMainShip|1<<21|1<<29, `,"Latitude":10.5,"Longitude":-20.25,"Altitude":300,"Heading":90,"PlanetRadius":2000000`))
	require.Equal(t, []models.UIKind{models.UIHasLatLong, models.UIPosition, models.UIOverallStatus}, kinds(events))

	pos := events[1].Payload.(models.PositionState)
	assert.True(t, events[1].Refresh)
	assert.Equal(t, 10.5, pos.Position.Latitude)
	assert.Equal(t, -20.25, pos.Position.Longitude)
	assert.True(t, pos.Position.AltitudeFromAverageRadius)
	assert.Equal(t, 90.0, pos.Heading)
	assert.Equal(t, 2000000.0, pos.PlanetRadius)

	// leaving the planet invalidates the position
	events = s.Apply(snapshot(t, inMainShip, ""))
	require.Equal(t, []models.UIKind{models.UIHasLatLong, models.UIPosition, models.UIOverallStatus}, kinds(events))
	pos = events[1].Payload.(models.PositionState)
	assert.False(t, pos.Position.ValidPosition())
	assert.False(t, pos.Position.ValidAltitude())
	assert.Equal(t, models.InvalidValue, pos.Heading)
	assert.False(t, events[1].Refresh)
}

func TestShadowLegalStatus(t *testing.T) {
	s := NewShadow(DefaultThresholds())

	events := s.Apply(snapshot(t, inMainShip, `,"LegalState":"Clean"`))
	require.Contains(t, kinds(events), models.UILegalStatus)

	events = s.Apply(snapshot(t, inMainShip, `,"LegalState":"Wanted"`))
	require.Equal(t, []models.UIKind{models.UILegalStatus, models.UIOverallStatus}, kinds(events))
	assert.Equal(t, models.LegalStatusState{Status: "Wanted"}, events[0].Payload)
	assert.False(t, events[0].Refresh)
	assert.Equal(t, "Wanted", events[1].Payload.(models.OverallStatus).LegalStatus)

	events = s.Apply(snapshot(t, inMainShip, ""))
	require.Equal(t, []models.UIKind{models.UILegalStatus, models.UIOverallStatus}, kinds(events))
	assert.Equal(t, models.LegalStatusState{Status: ""}, events[0].Payload)
}

func TestShadowOverallCarriesAllFlags(t *testing.T) {
	s := NewShadow(DefaultThresholds())
	// SRV with a stale ship bit still lists it in the overall state
	events := s.Apply(snapshot(t, inSRV|1<<0|1<<14, ""))
	overall := events[len(events)-1].Payload.(models.OverallStatus)
	assert.Equal(t, models.ShipTypeSRV, overall.ShipType)
	assert.True(t, overall.HasFlag(models.UIDocked))
	assert.True(t, overall.HasFlag(models.UISrvUnderShip))
	assert.NotContains(t, kinds(events), models.UIDocked)
}
