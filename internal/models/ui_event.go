package models

import "time"

// UIKind identifies a UI change event. One kind per flag, plus the scalar
// and aggregate kinds.
type UIKind string

// Flag kinds. Their names match the status flag names.
const (
	UIDocked             UIKind = "Docked"
	UILanded             UIKind = "Landed"
	UILandingGear        UIKind = "LandingGear"
	UIShieldsUp          UIKind = "ShieldsUp"
	UISupercruise        UIKind = "Supercruise"
	UIFlightAssist       UIKind = "FlightAssist"
	UIHardpointsDeployed UIKind = "HardpointsDeployed"
	UIInWing             UIKind = "InWing"
	UILights             UIKind = "Lights"
	UICargoScoopDeployed UIKind = "CargoScoopDeployed"
	UISilentRunning      UIKind = "SilentRunning"
	UIScoopingFuel       UIKind = "ScoopingFuel"
	UISrvHandbrake       UIKind = "SrvHandbrake"
	UISrvTurret          UIKind = "SrvTurret"
	UISrvUnderShip       UIKind = "SrvUnderShip"
	UISrvDriveAssist     UIKind = "SrvDriveAssist"
	UIFsdMassLocked      UIKind = "FsdMassLocked"
	UIFsdCharging        UIKind = "FsdCharging"
	UIFsdCooldown        UIKind = "FsdCooldown"
	UILowFuel            UIKind = "LowFuel"
	UIOverHeating        UIKind = "OverHeating"
	UIHasLatLong         UIKind = "HasLatLong"
	UIIsInDanger         UIKind = "IsInDanger"
	UIBeingInterdicted   UIKind = "BeingInterdicted"
	UIHUDInAnalysisMode  UIKind = "HUDInAnalysisMode"
	UINightVision        UIKind = "NightVision"
)

// Scalar and aggregate kinds.
const (
	UIShipType      UIKind = "ShipType"
	UIGUIFocus      UIKind = "GUIFocus"
	UIPips          UIKind = "Pips"
	UIFireGroup     UIKind = "FireGroup"
	UIFuel          UIKind = "Fuel"
	UICargo         UIKind = "Cargo"
	UIPosition      UIKind = "Position"
	UILegalStatus   UIKind = "LegalStatus"
	UIOverallStatus UIKind = "OverallStatus"
	UIShipTargeted  UIKind = "ShipTargeted"
)

// UIPayload is the kind-specific part of a UI event. The set of
// implementations is closed to this package.
type UIPayload interface {
	uiPayload()
}

// UIEvent is one change notification produced from the status file.
// Refresh is true when the event re-establishes state rather than reporting a transition.
type UIEvent struct {
	Kind         UIKind    `json:"kind"`
	EventTimeUTC time.Time `json:"timestamp"`
	Refresh      bool      `json:"refresh"`
	Payload      UIPayload `json:"payload"`
}

// FlagState carries the new value of a boolean flag.
type FlagState struct {
	State bool `json:"state"`
}

type ShipTypeState struct {
	ShipType ShipType `json:"shipType"`
}

type GUIFocusState struct {
	Focus int `json:"focus"`
}

type PipsState struct {
	Pips Pips `json:"pips"`
}

// FireGroupState holds the 1-based fire group.
type FireGroupState struct {
	FireGroup int `json:"fireGroup"`
}

type FuelState struct {
	Fuel      float64  `json:"fuel"`
	Reservoir float64  `json:"reservoir"`
	ShipType  ShipType `json:"shipType"`
}

type CargoState struct {
	Count    int      `json:"count"`
	ShipType ShipType `json:"shipType"`
}

type PositionState struct {
	Position     Position `json:"position"`
	Heading      float64  `json:"heading"`
	PlanetRadius float64  `json:"planetRadius"`
}

// LegalStatusState has an empty Status when the field is absent.
type LegalStatusState struct {
	Status string `json:"status"`
}

// OverallStatus is the full state summary emitted after any change.
type OverallStatus struct {
	ShipType     ShipType `json:"shipType"`
	Flags        []UIKind `json:"flags"`
	Focus        int      `json:"focus"`
	Pips         Pips     `json:"pips"`
	FireGroup    int      `json:"fireGroup"`
	Fuel         float64  `json:"fuel"`
	Reservoir    float64  `json:"reservoir"`
	Cargo        int      `json:"cargo"`
	Position     Position `json:"position"`
	Heading      float64  `json:"heading"`
	PlanetRadius float64  `json:"planetRadius"`
	LegalStatus  string   `json:"legalStatus"`
}

// HasFlag reports whether kind is in the set flags.
func (o OverallStatus) HasFlag(kind UIKind) bool {
	for _, f := range o.Flags {
		if f == kind {
			return true
		}
	}
	return false
}

// ShipTargetedState wraps a journal ShipTargeted entry for the UI stream.
type ShipTargetedState struct {
	Entry *Entry `json:"entry"`
}

func (FlagState) uiPayload()         {}
func (ShipTypeState) uiPayload()     {}
func (GUIFocusState) uiPayload()     {}
func (PipsState) uiPayload()         {}
func (FireGroupState) uiPayload()    {}
func (FuelState) uiPayload()         {}
func (CargoState) uiPayload()        {}
func (PositionState) uiPayload()     {}
func (LegalStatusState) uiPayload()  {}
func (OverallStatus) uiPayload()     {}
func (ShipTargetedState) uiPayload() {}

// NewFlagEvent builds a flag change event.
func NewFlagEvent(kind UIKind, state bool, t time.Time, refresh bool) UIEvent {
	return UIEvent{Kind: kind, EventTimeUTC: t, Refresh: refresh, Payload: FlagState{State: state}}
}

// NewUIEvent builds a non-flag event.
func NewUIEvent(kind UIKind, payload UIPayload, t time.Time, refresh bool) UIEvent {
	return UIEvent{Kind: kind, EventTimeUTC: t, Refresh: refresh, Payload: payload}
}

// NewShipTargetedEvent injects a decoded ShipTargeted journal entry into the UI stream.
func NewShipTargetedEvent(entry *Entry, refresh bool) UIEvent {
	return UIEvent{Kind: UIShipTargeted, EventTimeUTC: entry.EventTimeUTC, Refresh: refresh, Payload: ShipTargetedState{Entry: entry}}
}

// FlagValue returns the flag state and true when the payload is a FlagState.
func (e UIEvent) FlagValue() (bool, bool) {
	if f, ok := e.Payload.(FlagState); ok {
		return f.State, true
	}
	return false, false
}
