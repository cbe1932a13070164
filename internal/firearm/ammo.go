package firearm

import "sync"

// AmmoProfile is a named reserve pool shared by every firearm using that ammo type.
type AmmoProfile struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

// AmmoInventory looks up reserve pools by ammo type.
type AmmoInventory interface {
	Profile(name string) (*AmmoProfile, bool)
}

// Inventory is a map-backed AmmoInventory.
type Inventory struct {
	mu       sync.RWMutex
	profiles map[string]*AmmoProfile
}

func NewInventory(profiles ...*AmmoProfile) *Inventory {
	inv := &Inventory{profiles: make(map[string]*AmmoProfile, len(profiles))}
	for _, p := range profiles {
		inv.profiles[p.Name] = p
	}
	return inv
}

func (inv *Inventory) Profile(name string) (*AmmoProfile, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	p, ok := inv.profiles[name]
	return p, ok
}

// Add registers a profile, or tops up an existing one.
func (inv *Inventory) Add(name string, count int) *AmmoProfile {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	p, ok := inv.profiles[name]
	if !ok {
		p = &AmmoProfile{Name: name}
		inv.profiles[name] = p
	}
	p.Count += count
	if p.Count < 0 {
		p.Count = 0
	}
	return p
}
