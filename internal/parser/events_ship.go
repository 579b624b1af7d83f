package parser

import (
	"github.com/journal-monitor/backend/internal/models"
)

type Docked struct {
	StationName    string  `json:"stationName"`
	StationType    string  `json:"stationType,omitempty"`
	StarSystem     string  `json:"starSystem"`
	SystemAddress  *int64  `json:"systemAddress,omitempty"`
	MarketID       *int64  `json:"marketId,omitempty"`
	DistFromStarLS float64 `json:"distFromStarLS"`
	Wanted         bool    `json:"wanted"`
	ActiveFine     bool    `json:"activeFine"`
	Taxi           bool    `json:"taxi"`
}

func (*Docked) EventType() models.EventType { return models.EventTypeDocked }

func newDocked(f Fields) models.Payload {
	return &Docked{
		StationName:    f.Str("StationName"),
		StationType:    f.Str("StationType"),
		StarSystem:     f.Str("StarSystem"),
		SystemAddress:  f.LongNull("SystemAddress"),
		MarketID:       f.LongNull("MarketID"),
		DistFromStarLS: f.Double("DistFromStarLS", 0),
		Wanted:         f.Bool("Wanted", false),
		ActiveFine:     f.Bool("ActiveFine", false),
		Taxi:           f.Bool("Taxi", false),
	}
}

type Undocked struct {
	StationName string `json:"stationName"`
	StationType string `json:"stationType,omitempty"`
	MarketID    *int64 `json:"marketId,omitempty"`
	Taxi        bool   `json:"taxi"`
}

func (*Undocked) EventType() models.EventType { return models.EventTypeUndocked }

func newUndocked(f Fields) models.Payload {
	return &Undocked{
		StationName: f.Str("StationName"),
		StationType: f.Str("StationType"),
		MarketID:    f.LongNull("MarketID"),
		Taxi:        f.Bool("Taxi", false),
	}
}

// SurfaceContact is shared by Touchdown and Liftoff.
type SurfaceContact struct {
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	PlayerControlled   bool     `json:"playerControlled"`
	NearestDestination string   `json:"nearestDestination,omitempty"`
	StarSystem         string   `json:"starSystem,omitempty"`
	Body               string   `json:"body,omitempty"`
	BodyID             *int     `json:"bodyId,omitempty"`
	OnStation          bool     `json:"onStation"`
	OnPlanet           bool     `json:"onPlanet"`
}

// HasLatLong reports whether the record carried a position.
func (s SurfaceContact) HasLatLong() bool {
	return s.Latitude != nil && s.Longitude != nil
}

func newSurfaceContact(f Fields) SurfaceContact {
	return SurfaceContact{
		Latitude:           f.DoubleNull("Latitude"),
		Longitude:          f.DoubleNull("Longitude"),
		PlayerControlled:   f.Bool("PlayerControlled", true),
		NearestDestination: f.Str("NearestDestination"),
		StarSystem:         f.Str("StarSystem"),
		Body:               f.Str("Body"),
		BodyID:             f.IntNull("BodyID"),
		OnStation:          f.Bool("OnStation", false),
		OnPlanet:           f.Bool("OnPlanet", false),
	}
}

type Touchdown struct {
	SurfaceContact
}

func (*Touchdown) EventType() models.EventType { return models.EventTypeTouchdown }

func newTouchdown(f Fields) models.Payload {
	return &Touchdown{SurfaceContact: newSurfaceContact(f)}
}

type Liftoff struct {
	SurfaceContact
}

func (*Liftoff) EventType() models.EventType { return models.EventTypeLiftoff }

func newLiftoff(f Fields) models.Payload {
	return &Liftoff{SurfaceContact: newSurfaceContact(f)}
}

// ShipTargeted reports the current target; detail grows with ScanStage.
type ShipTargeted struct {
	TargetLocked    bool     `json:"targetLocked"`
	Ship            string   `json:"ship,omitempty"`
	ShipLocalised   string   `json:"shipLocalised,omitempty"`
	ScanStage       *int     `json:"scanStage,omitempty"`
	PilotName       string   `json:"pilotName,omitempty"`
	PilotRank       string   `json:"pilotRank,omitempty"`
	ShieldHealth    *float64 `json:"shieldHealth,omitempty"`
	HullHealth      *float64 `json:"hullHealth,omitempty"`
	Faction         string   `json:"faction,omitempty"`
	LegalStatus     string   `json:"legalStatus,omitempty"`
	Bounty          int      `json:"bounty"`
	Subsystem       string   `json:"subsystem,omitempty"`
	SubsystemHealth *float64 `json:"subsystemHealth,omitempty"`
}

func (*ShipTargeted) EventType() models.EventType { return models.EventTypeShipTargeted }

func newShipTargeted(f Fields) models.Payload {
	return &ShipTargeted{
		TargetLocked:    f.Bool("TargetLocked", false),
		Ship:            f.Str("Ship"),
		ShipLocalised:   f.Str("Ship_Localised"),
		ScanStage:       f.IntNull("ScanStage"),
		PilotName:       f.StrDefault("PilotName_Localised", f.Str("PilotName")),
		PilotRank:       f.Str("PilotRank"),
		ShieldHealth:    f.DoubleNull("ShieldHealth"),
		HullHealth:      f.DoubleNull("HullHealth"),
		Faction:         f.Str("Faction"),
		LegalStatus:     f.Str("LegalStatus"),
		Bounty:          f.Int("Bounty", 0),
		Subsystem:       f.StrDefault("Subsystem_Localised", f.Str("Subsystem")),
		SubsystemHealth: f.DoubleNull("SubsystemHealth"),
	}
}
