// Package geo converts simulation vectors and trajectories to and from the
// geometry types stored by the gorm backends.
package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/fpsframework/firearm/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Geometry is stored as WKB in a local Cartesian frame. No SRID is attached;
// the simulation space is not geodetic.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PointFromVec3 returns an XYZ point.
func PointFromVec3(v core.Vec3) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: v.X, Y: v.Y},
		Z:    v.Z,
		Type: geom.DimXYZ,
	})
}

// Vec3FromPoint returns the point's coordinates. An empty point yields the
// zero vector.
func Vec3FromPoint(p geom.Point) core.Vec3 {
	c, ok := p.Coordinates()
	if !ok {
		return core.Vec3{}
	}
	return core.Vec3{X: c.XY.X, Y: c.XY.Y, Z: c.Z}
}

// Vec3FromString parses "x,y" or "x,y,z". Whitespace around components is
// ignored.
func Vec3FromString(coords string) (core.Vec3, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Vec3{}, ErrInvalidCoordinates
	}
	var vals [3]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return core.Vec3{}, ErrInvalidCoordinates
		}
		vals[i] = f
	}
	return core.Vec3{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// Vec3String formats v as "x,y,z" with the shortest exact representation.
func Vec3String(v core.Vec3) string {
	return strconv.FormatFloat(v.X, 'f', -1, 64) + "," +
		strconv.FormatFloat(v.Y, 'f', -1, 64) + "," +
		strconv.FormatFloat(v.Z, 'f', -1, 64)
}
