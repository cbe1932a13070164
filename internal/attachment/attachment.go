// Package attachment aggregates multiplicative modifiers from firearm attachments.
package attachment

import (
	"fmt"
	"strings"
)

// Category is one of the independent modifier channels an attachment contributes to.
type Category int

const (
	Damage Category = iota
	Spread
	FireRate
	Range
	MuzzleVelocity
	Recoil
	VisualRecoil
	AimSpeed

	categoryCount
)

// Categories lists every category in declaration order.
var Categories = []Category{Damage, Spread, FireRate, Range, MuzzleVelocity, Recoil, VisualRecoil, AimSpeed}

var categoryNames = [categoryCount]string{
	"damage", "spread", "fireRate", "range", "muzzleVelocity", "recoil", "visualRecoil", "aimSpeed",
}

func (c Category) String() string {
	if c < 0 || c >= categoryCount {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// ParseCategory resolves a category from its name, case-insensitively.
func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if strings.EqualFold(n, name) {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown attachment category: %q", name)
}

// Percentage bounds for stored modifier values.
const (
	MinPercent     = 1
	MaxPercent     = 500
	NeutralPercent = 100
)

// Attachment is one variant of an accessory slot, e.g. Muzzle/Suppressor.
// Modifiers are stored as percentages in [1,500].
type Attachment struct {
	Type string
	Name string

	percents [categoryCount]int
}

// New creates an attachment with every modifier at 100%.
func New(attachmentType, name string) *Attachment {
	a := &Attachment{Type: attachmentType, Name: name}
	for i := range a.percents {
		a.percents[i] = NeutralPercent
	}
	return a
}

// SetPercent stores a category value, clamped to [1,500].
func (a *Attachment) SetPercent(c Category, percent int) *Attachment {
	if c < 0 || c >= categoryCount {
		return a
	}
	if percent < MinPercent {
		percent = MinPercent
	}
	if percent > MaxPercent {
		percent = MaxPercent
	}
	a.percents[c] = percent
	return a
}

// Percent returns the stored percentage for a category.
func (a *Attachment) Percent(c Category) int {
	if c < 0 || c >= categoryCount {
		return NeutralPercent
	}
	return a.percents[c]
}

// Modifier returns the normalized multiplier in [0.01,5.0].
func (a *Attachment) Modifier(c Category) float64 {
	return float64(a.Percent(c)) / 100
}

// Key returns the "Type/Name" identifier.
func (a *Attachment) Key() string {
	return a.Type + "/" + a.Name
}
