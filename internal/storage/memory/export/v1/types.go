// Package v1 contains the v1 export format for recorded firearm sessions.
package v1

import "github.com/fpsframework/firearm/pkg/core"

// FormatVersion is written to every export.
const FormatVersion = "1"

// Export is the root JSON structure for v1 format
type Export struct {
	Version     string       `json:"version"`
	SessionName string       `json:"sessionName"`
	Tags        string       `json:"tags"`
	StartTime   string       `json:"startTime"` // RFC3339 UTC
	TickRate    float64      `json:"tickRate"`
	Seed        int64        `json:"seed"`
	Duration    float64      `json:"duration"` // simulation seconds
	Summary     Summary      `json:"summary"`
	Firearms    []Firearm    `json:"firearms"`
	Events      [][]any      `json:"events"`
	Projectiles []Projectile `json:"projectiles"`
}

// Summary aggregates the whole session.
type Summary struct {
	Shots       int     `json:"shots"`
	Hits        int     `json:"hits"`
	Kills       int     `json:"kills"`
	DamageDealt float64 `json:"damageDealt"`
	Accuracy    float64 `json:"accuracy"` // hits per shot, 0 without shots
}

// Firearm groups the shots and reloads of one firearm instance.
type Firearm struct {
	ID        string  `json:"id"`
	ShooterID string  `json:"shooterId"`
	Preset    string  `json:"preset"`
	Shots     [][]any `json:"shots"`
	Reloads   [][]any `json:"reloads"`
}

// Projectile is one projectile flight.
type Projectile struct {
	ID              uint        `json:"id"`
	FirearmID       string      `json:"firearmId"`
	SpawnSimTime    float64     `json:"spawnSimTime"`
	Outcome         string      `json:"outcome"`
	InitialVelocity []float64   `json:"initialVelocity"`
	Positions       [][]float64 `json:"positions"` // [x, y, z, simTime]
	Hit             []any       `json:"hit,omitempty"`
}

// FirearmRecord groups a firearm's time-series data.
type FirearmRecord struct {
	FirearmID string
	ShooterID string
	Preset    string
	Shots     []core.ShotEvent
	Reloads   []core.ReloadEvent
}
