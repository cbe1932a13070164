package geo

import (
	"fmt"

	"github.com/fpsframework/firearm/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// TrajectoryToLineString builds a LineStringZM from trajectory samples. M
// holds the sample's simulation time. Consecutive duplicate samples are
// dropped; fewer than two distinct samples is an error.
func TrajectoryToLineString(points []core.TrajectoryPoint) (geom.LineString, error) {
	coords := make([]float64, 0, len(points)*4)
	var last core.TrajectoryPoint
	n := 0
	for i, tp := range points {
		if i > 0 && tp.Position == last.Position {
			continue
		}
		coords = append(coords, tp.Position.X, tp.Position.Y, tp.Position.Z, tp.SimTime)
		last = tp
		n++
	}
	if n < 2 {
		return geom.LineString{}, fmt.Errorf("trajectory must have at least 2 distinct points, got %d", n)
	}

	seq := geom.NewSequence(coords, geom.DimXYZM)
	return geom.NewLineString(seq), nil
}

// LineStringToTrajectory is the inverse of TrajectoryToLineString. Lines
// without M values yield zero sample times.
func LineStringToTrajectory(ls geom.LineString) []core.TrajectoryPoint {
	seq := ls.Coordinates()
	if seq.Length() == 0 {
		return nil
	}
	out := make([]core.TrajectoryPoint, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		c := seq.Get(i)
		out[i] = core.TrajectoryPoint{
			Position: core.Vec3{X: c.XY.X, Y: c.XY.Y, Z: c.Z},
			SimTime:  c.M,
		}
	}
	return out
}
