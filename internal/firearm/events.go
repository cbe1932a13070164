package firearm

import "github.com/fpsframework/firearm/pkg/core"

// EventKind identifies a firearm notification.
type EventKind int

const (
	// EventFire is emitted before a round mutates any local state.
	EventFire EventKind = iota
	// EventFireDone is emitted after a round's effects and hit resolution.
	EventFireDone
	EventHit
	EventReloadStarting
	EventReloadComplete
	EventReloadCancelled
	EventFireModeChanged
	EventDropRequested
)

func (k EventKind) String() string {
	switch k {
	case EventFire:
		return "fire"
	case EventFireDone:
		return "fireDone"
	case EventHit:
		return "hit"
	case EventReloadStarting:
		return "reloadStarting"
	case EventReloadComplete:
		return "reloadComplete"
	case EventReloadCancelled:
		return "reloadCancelled"
	case EventFireModeChanged:
		return "fireModeChanged"
	case EventDropRequested:
		return "dropRequested"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners in registration order.
type Event struct {
	Kind    EventKind
	Firearm *Firearm
	SimTime float64
	Tick    uint64

	Shot     *core.ShotEvent
	Hit      *core.HitEvent
	Reload   *core.ReloadEvent
	FireMode FireMode
}

// Listener receives firearm events.
type Listener interface {
	OnFirearmEvent(e Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(e Event)

func (f ListenerFunc) OnFirearmEvent(e Event) { f(e) }

// Authority decides whether a shot mutates local state. It is consulted
// after EventFire, so a network host can apply ammo and damage itself.
type Authority interface {
	AllowLocalEffects(shot core.ShotEvent) bool
}

// AuthorityFunc adapts a function to Authority.
type AuthorityFunc func(shot core.ShotEvent) bool

func (f AuthorityFunc) AllowLocalEffects(shot core.ShotEvent) bool { return f(shot) }
