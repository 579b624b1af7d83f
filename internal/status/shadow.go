package status

import (
	"math"
	"time"

	"github.com/journal-monitor/backend/internal/models"
	"github.com/journal-monitor/backend/internal/parser"
)

// Thresholds are the minimum fuel changes that produce a fuel event.
type Thresholds struct {
	Fuel      float64
	Reservoir float64
}

// DefaultThresholds returns 0.1 main fuel and 0.01 reservoir.
func DefaultThresholds() Thresholds {
	return Thresholds{Fuel: 0.1, Reservoir: 0.01}
}

// Shadow is the previous status snapshot. The zero value is not ready for
// use; create one with NewShadow. A Shadow is owned by a single poller.
type Shadow struct {
	thresholds Thresholds

	flagsKnown   bool
	flags        int64
	focus        int
	fireGroup    int
	fuel         float64
	reservoir    float64
	cargo        int
	legalStatus  *string
	pips         models.Pips
	position     models.Position
	heading      float64
	planetRadius float64
}

// NewShadow returns a shadow holding the "never observed" sentinels, so
// the first snapshot is reported in full.
func NewShadow(th Thresholds) *Shadow {
	return &Shadow{
		thresholds:   th,
		flags:        ShipMask,
		focus:        -1,
		fireGroup:    -1,
		fuel:         -1,
		reservoir:    -1,
		cargo:        -1,
		pips:         models.InvalidPips(),
		position:     models.InvalidPosition(),
		heading:      models.InvalidValue,
		planetRadius: models.InvalidValue,
	}
}

// Apply compares a parsed snapshot with the shadow, updates the shadow
// field by field and returns the resulting events in report order.
func (s *Shadow) Apply(obj parser.Fields) []models.UIEvent {
	t := obj.TimeUTC("timestamp")
	var events []models.UIEvent
	changed := false
	overallRefresh := s.focus == -1

	curFlags := obj.Long("Flags", 0)
	if !s.flagsKnown || curFlags != s.flags {
		events = append(events, s.applyFlags(curFlags, t)...)
		changed = true
	}

	focus := obj.Int("GuiFocus", 0)
	if focus != s.focus {
		events = append(events, models.NewUIEvent(models.UIGUIFocus, models.GUIFocusState{Focus: focus}, t, s.focus == -1))
		s.focus = focus
		changed = true
	}

	if ev, ok := s.applyPips(obj, t); ok {
		events = append(events, ev)
		changed = true
	}

	if fg := obj.IntNull("FireGroup"); fg != nil && *fg != s.fireGroup {
		events = append(events, models.NewUIEvent(models.UIFireGroup, models.FireGroupState{FireGroup: *fg + 1}, t, s.fireGroup == -1))
		s.fireGroup = *fg
		changed = true
	}

	if ev, ok := s.applyFuel(obj, t); ok {
		events = append(events, ev)
		changed = true
	}

	if cargo := obj.IntNull("Cargo"); cargo != nil && *cargo != s.cargo {
		events = append(events, models.NewUIEvent(models.UICargo,
			models.CargoState{Count: *cargo, ShipType: ShipTypeOf(s.flags)}, t, s.cargo == -1))
		s.cargo = *cargo
		changed = true
	}

	if ev, ok := s.applyPosition(obj, curFlags, t); ok {
		events = append(events, ev)
		changed = true
	}

	if legal := obj.StrNull("LegalState"); !sameString(legal, s.legalStatus) {
		status := ""
		if legal != nil {
			status = *legal
		}
		events = append(events, models.NewUIEvent(models.UILegalStatus, models.LegalStatusState{Status: status}, t, s.legalStatus == nil))
		s.legalStatus = legal
		changed = true
	}

	if changed {
		events = append(events, models.NewUIEvent(models.UIOverallStatus, s.Overall(), t, overallRefresh))
	}
	return events
}

func (s *Shadow) applyFlags(cur int64, t time.Time) []models.UIEvent {
	var events []models.UIEvent
	prevType := ShipTypeOf(s.flags)
	curType := ShipTypeOf(cur)

	refresh := prevType == models.ShipTypeNone
	prev := s.flags
	if prevType != curType {
		events = append(events, models.NewUIEvent(models.UIShipType, models.ShipTypeState{ShipType: curType}, t, refresh))
		refresh = true
		if s.flagsKnown {
			// new context: every flag of its groups is reported
			prev = ^cur
		}
	}

	for _, g := range GroupsFor(curType) {
		for _, c := range FlagsChanged(cur, prev, g) {
			events = append(events, models.NewFlagEvent(c.Kind, c.State, t, refresh))
		}
	}

	s.flags = cur
	s.flagsKnown = true
	return events
}

func (s *Shadow) applyPips(obj parser.Fields, t time.Time) (models.UIEvent, bool) {
	raw := obj.Doubles("Pips")
	if len(raw) < 3 {
		if !s.pips.Valid() {
			return models.UIEvent{}, false
		}
		// pips vanished: report them cleared
		refresh := s.pips.Engines < 0
		s.pips = models.InvalidPips()
		return models.NewUIEvent(models.UIPips, models.PipsState{Pips: s.pips}, t, refresh), true
	}

	cur := models.Pips{Systems: raw[0] / 2, Engines: raw[1] / 2, Weapons: raw[2] / 2}
	if cur == s.pips {
		return models.UIEvent{}, false
	}
	refresh := s.pips.Engines < 0
	s.pips = cur
	return models.NewUIEvent(models.UIPips, models.PipsState{Pips: cur}, t, refresh), true
}

// applyFuel only understands the object form of Fuel. Older files carry a
// bare number, which is ignored.
func (s *Shadow) applyFuel(obj parser.Fields, t time.Time) (models.UIEvent, bool) {
	fuel := obj.Object("Fuel")
	if fuel == nil {
		return models.UIEvent{}, false
	}
	main := fuel.DoubleNull("FuelMain")
	res := fuel.DoubleNull("FuelReservoir")
	if main == nil || res == nil {
		return models.UIEvent{}, false
	}
	if math.Abs(*main-s.fuel) < s.thresholds.Fuel && math.Abs(*res-s.reservoir) < s.thresholds.Reservoir {
		return models.UIEvent{}, false
	}
	refresh := s.fuel < 0
	s.fuel = *main
	s.reservoir = *res
	return models.NewUIEvent(models.UIFuel,
		models.FuelState{Fuel: *main, Reservoir: *res, ShipType: ShipTypeOf(s.flags)}, t, refresh), true
}

func (s *Shadow) applyPosition(obj parser.Fields, flags int64, t time.Time) (models.UIEvent, bool) {
	lat := obj.Double("Latitude", models.InvalidValue)
	lon := obj.Double("Longitude", models.InvalidValue)
	alt := obj.Double("Altitude", models.InvalidValue)
	heading := obj.Double("Heading", models.InvalidValue)
	radius := obj.Double("PlanetRadius", models.InvalidValue)

	if lat == s.position.Latitude && lon == s.position.Longitude && alt == s.position.Altitude &&
		heading == s.heading && radius == s.planetRadius {
		return models.UIEvent{}, false
	}

	refresh := !s.position.ValidPosition()
	s.position = models.Position{
		Latitude:                  lat,
		Longitude:                 lon,
		Altitude:                  alt,
		AltitudeFromAverageRadius: AltitudeFromAverageRadius(flags),
	}
	s.heading = heading
	s.planetRadius = radius
	return models.NewUIEvent(models.UIPosition, models.PositionState{
		Position:     s.position,
		Heading:      heading,
		PlanetRadius: radius,
	}, t, refresh), true
}

// Overall summarises the shadow. Flags lists every set flag regardless of
// the vehicle context.
func (s *Shadow) Overall() models.OverallStatus {
	legal := ""
	if s.legalStatus != nil {
		legal = *s.legalStatus
	}
	return models.OverallStatus{
		ShipType:     ShipTypeOf(s.flags),
		Flags:        AllFlagsSet(s.flags),
		Focus:        s.focus,
		Pips:         s.pips,
		FireGroup:    s.fireGroup,
		Fuel:         s.fuel,
		Reservoir:    s.reservoir,
		Cargo:        s.cargo,
		Position:     s.position,
		Heading:      s.heading,
		PlanetRadius: s.planetRadius,
		LegalStatus:  legal,
	}
}

// Flags returns the last observed flag mask.
func (s *Shadow) Flags() int64 {
	return s.flags
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
