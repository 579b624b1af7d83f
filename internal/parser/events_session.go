package parser

import (
	"strings"

	"github.com/journal-monitor/backend/internal/models"
)

// Fileheader opens every journal file.
type Fileheader struct {
	Part        int    `json:"part"`
	Language    string `json:"language"`
	GameVersion string `json:"gameVersion"`
	Build       string `json:"build"`
	Odyssey     bool   `json:"odyssey"`
}

func (*Fileheader) EventType() models.EventType { return models.EventTypeFileheader }

// Beta reports whether the file was written by a beta client.
func (h *Fileheader) Beta() bool {
	v := strings.ToLower(h.GameVersion)
	return strings.Contains(v, "beta") || strings.Contains(strings.ToLower(h.Build), "beta")
}

func newFileheader(f Fields) models.Payload {
	return &Fileheader{
		Part:        f.Int("part", 0),
		Language:    f.Str("language"),
		GameVersion: f.Str("gameversion"),
		Build:       f.Str("build"),
		Odyssey:     f.Bool("Odyssey", false),
	}
}

type Commander struct {
	Name string `json:"name"`
	FID  string `json:"fid,omitempty"`
}

func (*Commander) EventType() models.EventType { return models.EventTypeCommander }

func newCommander(f Fields) models.Payload {
	return &Commander{Name: f.Str("Name"), FID: f.Str("FID")}
}

// LoadGame is written once the commander is in game.
type LoadGame struct {
	Commander    string  `json:"commander"`
	FID          string  `json:"fid,omitempty"`
	Horizons     bool    `json:"horizons"`
	Odyssey      bool    `json:"odyssey"`
	Ship         string  `json:"ship"`
	ShipID       int     `json:"shipId"`
	ShipName     string  `json:"shipName,omitempty"`
	ShipIdent    string  `json:"shipIdent,omitempty"`
	FuelLevel    float64 `json:"fuelLevel"`
	FuelCapacity float64 `json:"fuelCapacity"`
	GameMode     string  `json:"gameMode"`
	Group        string  `json:"group,omitempty"`
	Credits      int64   `json:"credits"`
	Loan         int64   `json:"loan"`
}

func (*LoadGame) EventType() models.EventType { return models.EventTypeLoadGame }

func newLoadGame(f Fields) models.Payload {
	return &LoadGame{
		Commander:    f.Str("Commander"),
		FID:          f.Str("FID"),
		Horizons:     f.Bool("Horizons", false),
		Odyssey:      f.Bool("Odyssey", false),
		Ship:         strings.ToLower(f.Str("Ship")),
		ShipID:       f.Int("ShipID", 0),
		ShipName:     f.Str("ShipName"),
		ShipIdent:    f.Str("ShipIdent"),
		FuelLevel:    f.Double("FuelLevel", 0),
		FuelCapacity: f.Double("FuelCapacity", 0),
		GameMode:     f.Str("GameMode"),
		Group:        f.Str("Group"),
		Credits:      f.Long("Credits", 0),
		Loan:         f.Long("Loan", 0),
	}
}
