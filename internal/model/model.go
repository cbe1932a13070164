package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Shot{},
	&Hit{},
	&Reload{},
	&ProjectileFlight{},
}

// Session is one recorded simulation run. Every event row references it.
type Session struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Name      string    `json:"name" gorm:"size:127"`
	StartTime time.Time `json:"startTime"`
	EndTime   sql.NullTime
	TickRate  float64 `json:"tickRate"`
	Seed      int64   `json:"seed"`
	Tag       string  `json:"tag" gorm:"size:127"`

	// Filled when the session ends
	Duration float64 `json:"duration"` // simulation seconds
	Shots    int     `json:"shots"`
	Hits     int     `json:"hits"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Shot is one round leaving a firearm.
type Shot struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_shot_session_id"`
	Session   Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	SimTime   float64   `json:"simTime"`
	Tick      uint64    `json:"tick" gorm:"index:idx_shot_tick"`
	FirearmID string    `json:"firearmId" gorm:"size:64;index:idx_shot_firearm_id"`
	ShooterID string    `json:"shooterId" gorm:"size:64"`
	Preset    string    `json:"preset" gorm:"size:64"`
	FireMode  string    `json:"fireMode" gorm:"size:16"`
	Mechanism string    `json:"mechanism" gorm:"size:16"`
	ShotIndex int       `json:"shotIndex"` // index within the trigger pull

	Origin    geom.Point `json:"origin"`
	Direction string     `json:"direction" gorm:"size:96"` // "x,y,z"

	AmmoRemaining int            `json:"ammoRemaining"`
	Attachments   datatypes.JSON `json:"attachments"` // active "Type/Name" keys
}

func (*Shot) TableName() string {
	return "shots"
}

// Hit is a resolved hit from a hitscan round or a projectile.
type Hit struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time `json:"time"`
	SessionID  uint      `json:"sessionId" gorm:"index:idx_hit_session_id"`
	Session    Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	SimTime    float64   `json:"simTime"`
	Tick       uint64    `json:"tick" gorm:"index:idx_hit_tick"`
	FirearmID  string    `json:"firearmId" gorm:"size:64;index:idx_hit_firearm_id"`
	ShooterID  string    `json:"shooterId" gorm:"size:64"`
	VictimID   string    `json:"victimId" gorm:"size:64;index:idx_hit_victim_id"` // empty for world geometry
	ColliderID string    `json:"colliderId" gorm:"size:64"`
	Mechanism  string    `json:"mechanism" gorm:"size:16"`

	Position geom.Point `json:"position"`
	Distance float64    `json:"distance"`

	Damage       float64        `json:"damage"`
	HealthBefore float64        `json:"healthBefore"`
	HealthAfter  float64        `json:"healthAfter"`
	Killed       bool           `json:"killed"`
	EventText    string         `json:"eventText" gorm:"size:80"`
	ExtraData    datatypes.JSON `json:"extraData"`
}

func (*Hit) TableName() string {
	return "hits"
}

// Reload is one reload state change.
type Reload struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_reload_session_id"`
	Session      Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	SimTime      float64   `json:"simTime"`
	Tick         uint64    `json:"tick"`
	FirearmID    string    `json:"firearmId" gorm:"size:64;index:idx_reload_firearm_id"`
	ShooterID    string    `json:"shooterId" gorm:"size:64"`
	Phase        string    `json:"phase" gorm:"size:16"` // started, completed, cancelled
	Method       string    `json:"method" gorm:"size:16"`
	AmmoBefore   int       `json:"ammoBefore"`
	AmmoAfter    int       `json:"ammoAfter"`
	ReserveAfter int       `json:"reserveAfter"`
}

func (*Reload) TableName() string {
	return "reloads"
}

// ProjectileFlight is one projectile from spawn to removal, with its sampled
// trajectory and the impact that ended it, if any.
type ProjectileFlight struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"spawnTime"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_projectile_session_id"`
	Session      Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	SpawnSimTime float64   `json:"spawnSimTime"`
	FirearmID    string    `json:"firearmId" gorm:"size:64;index:idx_projectile_firearm_id"`
	ShooterID    string    `json:"shooterId" gorm:"size:64"`

	InitialVelocity string `json:"initialVelocity" gorm:"size:96"` // "vx,vy,vz"
	Outcome         string `json:"outcome" gorm:"size:16"`         // hit, detonated, expired, out_of_range

	Positions geom.Geometry `json:"-"` // LineStringZM of positions over time [x,y,z,simTime]

	// Impact, valid when HitSimTime is set
	HitSimTime  sql.NullFloat64 `json:"hitSimTime"`
	HitPosition geom.Point      `json:"hitPosition"`
	VictimID    string          `json:"victimId" gorm:"size:64"`
	ColliderID  string          `json:"colliderId" gorm:"size:64"`
	Damage      float64         `json:"damage"`
	Travelled   float64         `json:"travelled"`
}

func (*ProjectileFlight) TableName() string {
	return "projectile_flights"
}
