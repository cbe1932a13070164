package firearm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fpsframework/firearm/internal/projectile"
	"github.com/fpsframework/firearm/internal/spray"
	"github.com/fpsframework/firearm/pkg/core"
)

// FireMode selects how trigger input maps to shots.
type FireMode int

const (
	Auto FireMode = iota
	SemiAuto
	// Selective presets can switch between Auto and SemiAuto at runtime.
	Selective
)

func (m FireMode) String() string {
	switch m {
	case SemiAuto:
		return "semiAuto"
	case Selective:
		return "selective"
	default:
		return "auto"
	}
}

func (m *FireMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "auto":
		*m = Auto
	case "semiauto", "semi":
		*m = SemiAuto
	case "selective":
		*m = Selective
	default:
		return fmt.Errorf("unknown fire mode: %q", text)
	}
	return nil
}

// Mechanism selects hit resolution.
type Mechanism int

const (
	Hitscan Mechanism = iota
	Projectile
)

func (m Mechanism) String() string {
	if m == Projectile {
		return "projectile"
	}
	return "hitscan"
}

func (m *Mechanism) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "hitscan":
		*m = Hitscan
	case "projectile":
		*m = Projectile
	default:
		return fmt.Errorf("unknown shooting mechanism: %q", text)
	}
	return nil
}

// DirectionPolicy selects where shots originate and which way they point.
type DirectionPolicy int

const (
	// FromMuzzleToCamera fires from the muzzle toward the point the camera looks at.
	FromMuzzleToCamera DirectionPolicy = iota
	FromCamera
	FromMuzzle
)

func (d DirectionPolicy) String() string {
	switch d {
	case FromCamera:
		return "camera"
	case FromMuzzle:
		return "muzzle"
	default:
		return "muzzleToCamera"
	}
}

func (d *DirectionPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "muzzletocamera":
		*d = FromMuzzleToCamera
	case "camera":
		*d = FromCamera
	case "muzzle":
		*d = FromMuzzle
	default:
		return fmt.Errorf("unknown shooting direction: %q", text)
	}
	return nil
}

// ReloadMethod selects who drives ammo transfer during a reload.
type ReloadMethod int

const (
	// DefaultReload transfers ammo when the reload timer elapses.
	DefaultReload ReloadMethod = iota
	// ScriptedReload waits for ApplyReload or InsertRounds from an animation event.
	ScriptedReload
)

func (r ReloadMethod) String() string {
	if r == ScriptedReload {
		return "scripted"
	}
	return "default"
}

func (r *ReloadMethod) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "default":
		*r = DefaultReload
	case "scripted":
		*r = ScriptedReload
	default:
		return fmt.Errorf("unknown reload method: %q", text)
	}
	return nil
}

// FireRatePolicy selects how the fire timer advances on an accepted shot.
// Only PolicyAbsolute guarantees that accepted shots are at least one fire
// interval apart.
type FireRatePolicy int

const (
	// PolicyAbsolute schedules the next shot one interval after now.
	PolicyAbsolute FireRatePolicy = iota
	// PolicyCatchUp schedules the next shot one interval after the previous
	// scheduled time, so frame jitter does not lower the sustained rate.
	// Two accepted shots may then be less than one interval apart, down to
	// a single tick, while the average rate stays at FireRate.
	PolicyCatchUp
)

func (p FireRatePolicy) String() string {
	if p == PolicyCatchUp {
		return "catchup"
	}
	return "absolute"
}

func (p *FireRatePolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "absolute":
		*p = PolicyAbsolute
	case "catchup":
		*p = PolicyCatchUp
	default:
		return fmt.Errorf("unknown fire rate policy: %q", text)
	}
	return nil
}

// RecoilConfig holds camera and visual recoil magnitudes in degrees.
type RecoilConfig struct {
	CameraVertical   float64 `yaml:"cameraVertical"`
	CameraHorizontal float64 `yaml:"cameraHorizontal"`
	Visual           float64 `yaml:"visual"`
}

// SpreadConfig holds the visible spread baselines.
type SpreadConfig struct {
	Stationary float64 `yaml:"stationary"`
	Moving     float64 `yaml:"moving"`
	Airborne   float64 `yaml:"airborne"`
	Aiming     float64 `yaml:"aiming"`
}

// PrefabConfig holds opaque handles of spawned visuals.
type PrefabConfig struct {
	Casing      string  `yaml:"casing"`
	Projectile  string  `yaml:"projectile"`
	MuzzleFlash string  `yaml:"muzzleFlash"`
	Tracer      string  `yaml:"tracer"`
	Decal       string  `yaml:"decal"`
	DecalSize   float64 `yaml:"decalSize"`
}

// ProjectileConfig configures spawned projectiles.
type ProjectileConfig struct {
	Radius      float64          `yaml:"radius"`
	LifeTime    float64          `yaml:"lifeTime"`
	Gravity     core.Vec3        `yaml:"gravity"`
	DamageCurve projectile.Curve `yaml:"damageCurve"`
}

// MovementConfig holds speed multipliers pushed to the character.
type MovementConfig struct {
	HipSpeed float64 `yaml:"hipSpeed"`
	AimSpeed float64 `yaml:"aimSpeed"`
	// AimTransition is the aim-down-sights transition speed before the
	// aim-speed attachment modifier.
	AimTransition float64 `yaml:"aimTransition"`
}

// Preset is the immutable configuration of a firearm model.
type Preset struct {
	Name      string          `yaml:"name"`
	FireMode  FireMode        `yaml:"fireMode"`
	Mechanism Mechanism       `yaml:"mechanism"`
	Direction DirectionPolicy `yaml:"direction"`

	// FireRate is in rounds per minute.
	FireRate       float64 `yaml:"fireRate"`
	MuzzleVelocity float64 `yaml:"muzzleVelocity"`
	Damage         float64 `yaml:"damage"`
	Range          float64 `yaml:"range"`
	ImpactForce    float64 `yaml:"impactForce"`
	ShotCount      int     `yaml:"shotCount"`
	ShotDelay      float64 `yaml:"shotDelay"`

	MagazineCapacity int    `yaml:"magazineCapacity"`
	AmmoType         string `yaml:"ammoType"`

	ReloadMethod    ReloadMethod `yaml:"reloadMethod"`
	ReloadTime      float64      `yaml:"reloadTime"`
	EmptyReloadTime float64      `yaml:"emptyReloadTime"`
	AutomaticReload bool         `yaml:"automaticReload"`
	CanCancelReload bool         `yaml:"canCancelReload"`
	ReloadAnimation string       `yaml:"reloadAnimation"`

	Recoil RecoilConfig `yaml:"recoil"`
	Spread SpreadConfig `yaml:"spread"`

	HipSpray   string         `yaml:"hipSpray"`
	AimSpray   string         `yaml:"aimSpray"`
	HipPattern *spray.Pattern `yaml:"-"`
	AimPattern *spray.Pattern `yaml:"-"`

	CasingSpeed float64          `yaml:"casingSpeed"`
	Prefabs     PrefabConfig     `yaml:"prefabs"`
	Projectile  ProjectileConfig `yaml:"projectile"`
	Movement    MovementConfig   `yaml:"movement"`

	RestrictedAnimations []string `yaml:"restrictedAnimations"`
}

// DefaultPreset returns the preset substituted when none is configured.
func DefaultPreset() *Preset {
	return &Preset{
		Name:             "Default",
		FireMode:         Auto,
		Mechanism:        Hitscan,
		FireRate:         600,
		MuzzleVelocity:   250,
		Damage:           20,
		Range:            300,
		ImpactForce:      10,
		ShotCount:        1,
		MagazineCapacity: 30,
		AmmoType:         "Default",
		ReloadTime:       1.6,
		EmptyReloadTime:  2.1,
		AutomaticReload:  true,
		CasingSpeed:      3,
		Spread:           SpreadConfig{Stationary: 1, Moving: 2, Airborne: 4, Aiming: 0.25},
		Movement:         MovementConfig{HipSpeed: 1, AimSpeed: 0.6, AimTransition: 1},
	}
}

// Validate reports configuration values that cannot be simulated.
func (p *Preset) Validate() error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if p.FireRate <= 0 {
		errs = append(errs, fmt.Errorf("fireRate must be positive, got %v", p.FireRate))
	}
	if p.MagazineCapacity <= 0 {
		errs = append(errs, fmt.Errorf("magazineCapacity must be positive, got %d", p.MagazineCapacity))
	}
	if p.ShotCount < 0 {
		errs = append(errs, fmt.Errorf("shotCount must not be negative, got %d", p.ShotCount))
	}
	if p.ReloadTime < 0 || p.EmptyReloadTime < 0 || p.ShotDelay < 0 {
		errs = append(errs, errors.New("reloadTime, emptyReloadTime and shotDelay must not be negative"))
	}
	if p.Mechanism == Projectile && p.MuzzleVelocity <= 0 {
		errs = append(errs, fmt.Errorf("muzzleVelocity must be positive for projectile firearms, got %v", p.MuzzleVelocity))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("preset %q: %w", p.Name, err)
	}
	return nil
}

func (p *Preset) shotCount() int {
	if p.ShotCount < 1 {
		return 1
	}
	return p.ShotCount
}
