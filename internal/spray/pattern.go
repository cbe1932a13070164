// Package spray computes per-shot directional offsets from spray pattern assets.
package spray

import (
	"fmt"
	"strings"
)

// Source selects where a fixed pattern reads its points from.
type Source int

const (
	SourceLocal Source = iota
	SourceExternal
)

func (s Source) String() string {
	switch s {
	case SourceExternal:
		return "external"
	default:
		return "local"
	}
}

// UnmarshalText parses "local" or "external".
func (s *Source) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "local":
		*s = SourceLocal
	case "external":
		*s = SourceExternal
	default:
		return fmt.Errorf("unknown spray pattern source: %q", text)
	}
	return nil
}

// Point is one fixed offset. Both axes are expected in [-1,1].
type Point struct {
	UpDown    float64 `yaml:"upDown"`
	RightLeft float64 `yaml:"rightLeft"`
}

func midpoint(a, b Point) Point {
	return Point{
		UpDown:    (a.UpDown + b.UpDown) / 2,
		RightLeft: (a.RightLeft + b.RightLeft) / 2,
	}
}

// Pattern is an immutable, shareable spray pattern asset.
type Pattern struct {
	Name                 string  `yaml:"name"`
	MaxAmount            float64 `yaml:"maxAmount"`
	VerticalMultiplier   float64 `yaml:"verticalMultiplier"`
	HorizontalMultiplier float64 `yaml:"horizontalMultiplier"`
	PassiveMultiplier    float64 `yaml:"passiveMultiplier"`
	RampUpTime           float64 `yaml:"rampUpTime"`
	RecoveryTime         float64 `yaml:"recoveryTime"`
	IsRandomized         bool    `yaml:"randomized"`
	Points               []Point `yaml:"points"`
	AutoFill             bool    `yaml:"autoFill"`
	Loop                 bool    `yaml:"loop"`
	Source               Source  `yaml:"source"`
	ExternalName         string  `yaml:"external"`

	// External is resolved from ExternalName by the preset loader.
	External *Pattern `yaml:"-"`
}

// NewPattern returns a pattern with unit axis multipliers.
func NewPattern(name string) *Pattern {
	return &Pattern{
		Name:                 name,
		MaxAmount:            1,
		VerticalMultiplier:   1,
		HorizontalMultiplier: 1,
		RampUpTime:           1,
		RecoveryTime:         1,
	}
}

// State is the mutable per-firearm spray state driven by a pattern.
type State struct {
	Multiplier float64
	PointIndex int
}

// Reset returns the state to the pattern's idle values.
func (s *State) Reset(p *Pattern) {
	s.PointIndex = 0
	s.Multiplier = 0
	if p != nil {
		s.Multiplier = p.PassiveMultiplier
	}
}
