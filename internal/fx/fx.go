// Package fx defines the fire-and-forget visual effect contract used by the
// simulation core.
package fx

import (
	"sync"

	"github.com/fpsframework/firearm/pkg/core"
)

// Decal describes a surface mark left by a hit.
type Decal struct {
	Prefab   string
	Position core.Vec3
	Normal   core.Vec3
	Size     float64
	// ParentID is the collider the decal is attached to.
	ParentID string
}

// Sink receives visual effect requests. Calls carry no return value.
type Sink interface {
	PlayMuzzleFlash(firearmID string, at core.Transform)
	SpawnTracer(firearmID string, from, to core.Vec3)
	SpawnDecal(d Decal)
	EjectCasing(firearmID, prefab string, at core.Vec3, velocity core.Vec3)
}

// Nop discards every effect.
type Nop struct{}

func (Nop) PlayMuzzleFlash(string, core.Transform) {}

func (Nop) SpawnTracer(string, core.Vec3, core.Vec3) {}

func (Nop) SpawnDecal(Decal) {}

func (Nop) EjectCasing(string, string, core.Vec3, core.Vec3) {}

// Kind names a recorded effect.
type Kind string

const (
	KindMuzzleFlash Kind = "muzzleFlash"
	KindTracer      Kind = "tracer"
	KindDecal       Kind = "decal"
	KindCasing      Kind = "casing"
)

// Effect is one recorded effect request.
type Effect struct {
	Kind      Kind
	FirearmID string
	Prefab    string
	Position  core.Vec3
	Target    core.Vec3
	Velocity  core.Vec3
	Decal     *Decal
}

// Recorder keeps every effect in order. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	effects []Effect
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) PlayMuzzleFlash(firearmID string, at core.Transform) {
	r.add(Effect{Kind: KindMuzzleFlash, FirearmID: firearmID, Position: at.Position, Target: at.Forward})
}

func (r *Recorder) SpawnTracer(firearmID string, from, to core.Vec3) {
	r.add(Effect{Kind: KindTracer, FirearmID: firearmID, Position: from, Target: to})
}

func (r *Recorder) SpawnDecal(d Decal) {
	r.add(Effect{Kind: KindDecal, Prefab: d.Prefab, Position: d.Position, Target: d.Normal, Decal: &d})
}

func (r *Recorder) EjectCasing(firearmID, prefab string, at, velocity core.Vec3) {
	r.add(Effect{Kind: KindCasing, FirearmID: firearmID, Prefab: prefab, Position: at, Velocity: velocity})
}

func (r *Recorder) add(e Effect) {
	r.mu.Lock()
	r.effects = append(r.effects, e)
	r.mu.Unlock()
}

// Effects returns a copy of all recorded effects.
func (r *Recorder) Effects() []Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Effect, len(r.effects))
	copy(out, r.effects)
	return out
}

// Count returns how many effects of the given kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.effects {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Reset drops all recorded effects.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.effects = nil
	r.mu.Unlock()
}
