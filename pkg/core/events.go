// pkg/core/events.go
package core

import (
	"time"
)

// ShotEvent represents a single round leaving a firearm.
// One trigger pull of a multi-shot firearm produces ShotCount events.
type ShotEvent struct {
	SessionID     uint
	FirearmID     string // instance ID of the firearm
	ShooterID     string // identity of the entity holding the firearm
	Time          time.Time
	SimTime       float64
	Tick          uint64
	Preset        string
	FireMode      string
	Mechanism     string
	ShotIndex     int // index within the trigger pull
	Origin        Vec3
	Direction     Vec3
	AmmoRemaining int
	Attachments   []string // active "Type/Name" pairs at fire time
}

// HitEvent represents a resolved hit, from hitscan or projectile.
type HitEvent struct {
	ID           uint
	SessionID    uint
	Time         time.Time
	SimTime      float64
	Tick         uint64
	FirearmID    string
	ShooterID    string
	VictimID     string // collider owner; empty for world geometry
	ColliderID   string
	Mechanism    string
	Position     Vec3
	Distance     float64
	Damage       float64
	HealthBefore float64
	HealthAfter  float64
	Killed       bool
	EventText    string
	ExtraData    map[string]any
}

// ReloadPhase identifies the stage of a reload being recorded.
type ReloadPhase string

const (
	ReloadStarted   ReloadPhase = "started"
	ReloadCompleted ReloadPhase = "completed"
	ReloadCancelled ReloadPhase = "cancelled"
)

// ReloadEvent represents a reload state change.
type ReloadEvent struct {
	ID           uint
	SessionID    uint
	Time         time.Time
	SimTime      float64
	Tick         uint64
	FirearmID    string
	ShooterID    string
	Phase        ReloadPhase
	Method       string
	AmmoBefore   int
	AmmoAfter    int
	ReserveAfter int
}

// TrajectoryPoint represents a single position sample in a projectile trajectory.
type TrajectoryPoint struct {
	Position Vec3
	SimTime  float64
}

// ProjectileHit represents the impact that ended a projectile flight.
type ProjectileHit struct {
	SimTime    float64
	Position   Vec3
	VictimID   string
	ColliderID string
	Damage     float64
	Travelled  float64
}

// ProjectileEvent represents one projectile flight from spawn to removal.
type ProjectileEvent struct {
	ID              uint
	SessionID       uint
	FirearmID       string
	ShooterID       string
	SpawnTime       time.Time
	SpawnSimTime    float64
	InitialVelocity Vec3
	Outcome         string // hit, detonated, expired, out_of_range
	Trajectory      []TrajectoryPoint
	Hit             *ProjectileHit
}

// Session represents one recorded simulation run.
type Session struct {
	ID        uint
	Name      string
	StartTime time.Time
	TickRate  float64
	Seed      int64
	Tag       string
}

// UploadMetadata holds session summary data for exported recordings.
type UploadMetadata struct {
	SessionName string
	Duration    float64
	Shots       int
	Hits        int
	Tag         string
}
