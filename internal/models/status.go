package models

import "math"

// ShipType is the vehicle context decoded from the status flags.
type ShipType string

const (
	ShipTypeNone     ShipType = "None"
	ShipTypeMainShip ShipType = "MainShip"
	ShipTypeFighter  ShipType = "Fighter"
	ShipTypeSRV      ShipType = "SRV"
)

// InvalidValue marks an absent position component.
const InvalidValue = -math.MaxFloat64

// Pips is the power distributor allocation in whole pips.
type Pips struct {
	Systems float64 `json:"systems"`
	Engines float64 `json:"engines"`
	Weapons float64 `json:"weapons"`
}

// InvalidPips is the state before any pips were reported.
func InvalidPips() Pips {
	return Pips{Systems: -1, Engines: -1, Weapons: -1}
}

// Valid reports whether the pips were ever populated.
func (p Pips) Valid() bool {
	return p.Systems >= 0
}

// Position is the planetary position block of the status file.
type Position struct {
	Latitude                  float64 `json:"latitude"`
	Longitude                 float64 `json:"longitude"`
	Altitude                  float64 `json:"altitude"`
	AltitudeFromAverageRadius bool    `json:"altitudeFromAverageRadius"`
}

// InvalidPosition is the state before any position was reported.
func InvalidPosition() Position {
	return Position{Latitude: InvalidValue, Longitude: InvalidValue, Altitude: InvalidValue}
}

// ValidPosition reports whether latitude and longitude are present.
func (p Position) ValidPosition() bool {
	return p.Latitude != InvalidValue && p.Longitude != InvalidValue
}

// ValidAltitude reports whether altitude is present.
func (p Position) ValidAltitude() bool {
	return p.Altitude != InvalidValue
}
