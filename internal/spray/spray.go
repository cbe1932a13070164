package spray

import (
	"log/slog"
	"math/rand"

	"github.com/fpsframework/firearm/pkg/core"
)

// RampUp moves the multiplier toward 1 at 1/RampUpTime per second.
func (p *Pattern) RampUp(s *State, dt float64) {
	if p.RampUpTime <= 0 {
		s.Multiplier = 1
		return
	}
	s.Multiplier = core.Clamp01(core.MoveTowards(s.Multiplier, 1, dt/p.RampUpTime))
}

// Recover moves the multiplier toward PassiveMultiplier at 1/RecoveryTime per
// second. For fixed patterns the cursor follows the multiplier down so that
// the next burst resumes from a point matching the remaining intensity.
func (p *Pattern) Recover(s *State, dt float64, logger *slog.Logger) {
	target := core.Clamp01(p.PassiveMultiplier)
	if p.RecoveryTime <= 0 {
		s.Multiplier = target
	} else {
		s.Multiplier = core.Clamp01(core.MoveTowards(s.Multiplier, target, dt/p.RecoveryTime))
	}

	if p.IsRandomized {
		return
	}
	count := p.sequenceLength(p.resolvePoints(logger))
	if count == 0 {
		s.PointIndex = 0
		return
	}
	limit := int(s.Multiplier * float64(count))
	if s.PointIndex > limit {
		s.PointIndex = limit
	}
	s.PointIndex = clampIndex(s.PointIndex, count)
}

// Request carries the per-shot inputs to Calculate.
type Request struct {
	Forward, Right, Up core.Vec3

	// Multiplier is the current ramp state in [0,1].
	Multiplier float64

	// AmountOverride replaces MaxAmount when >= 0.
	AmountOverride float64

	// SpreadModifier is the aggregated attachment spread modifier; 0 means 1.
	SpreadModifier float64
}

// Calculate returns the spray-adjusted direction for one shot and advances
// the point cursor of fixed patterns.
func (p *Pattern) Calculate(req Request, index *int, rng *rand.Rand, logger *slog.Logger) core.Vec3 {
	var upDown, rightLeft float64

	if p.IsRandomized {
		if rng == nil {
			rng = rand.New(rand.NewSource(1))
		}
		v := core.RandomInUnitSphere(rng)
		upDown, rightLeft = v.Y, v.X
	} else {
		points := p.resolvePoints(logger)
		count := p.sequenceLength(points)
		if count == 0 {
			return req.Forward
		}

		i := clampIndex(*index, count)
		pt := p.pointAt(points, i)
		upDown, rightLeft = pt.UpDown, pt.RightLeft

		next := i + 1
		if next >= count {
			if p.Loop {
				next = 0
			} else {
				next = count - 1
			}
		}
		*index = next
	}

	amount := p.MaxAmount
	if req.AmountOverride >= 0 {
		amount = req.AmountOverride
	}
	spread := req.SpreadModifier
	if spread == 0 {
		spread = 1
	}

	offset := req.Up.Scale(upDown * p.VerticalMultiplier).
		Add(req.Right.Scale(rightLeft * p.HorizontalMultiplier)).
		Scale(amount * spread * req.Multiplier / 180)

	return req.Forward.Add(offset.Scale(2))
}

// resolvePoints returns the point list in effect, following an external reference.
func (p *Pattern) resolvePoints(logger *slog.Logger) []Point {
	if p.Source != SourceExternal {
		return p.Points
	}
	if p.External == nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("External spray pattern is not assigned, using local points",
			"pattern", p.Name, "external", p.ExternalName)
		return p.Points
	}
	return p.External.Points
}

// SequenceLength returns the number of cursor positions of the pattern.
func (p *Pattern) SequenceLength(logger *slog.Logger) int {
	return p.sequenceLength(p.resolvePoints(logger))
}

func (p *Pattern) sequenceLength(points []Point) int {
	n := len(points)
	if !p.AutoFill || n < 2 {
		return n
	}
	if p.Loop {
		return n * 2
	}
	return n*2 - 1
}

// pointAt maps a cursor position onto the (possibly midpoint-filled) sequence.
func (p *Pattern) pointAt(points []Point, i int) Point {
	n := len(points)
	if !p.AutoFill || n < 2 {
		return points[i]
	}
	base := i / 2
	if i%2 == 0 {
		return points[base]
	}
	return midpoint(points[base], points[(base+1)%n])
}

func clampIndex(i, count int) int {
	if i < 0 {
		return 0
	}
	if i > count-1 {
		return count - 1
	}
	return i
}
