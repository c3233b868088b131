// Package frame implements conversions between the world frame and the
// local frame of a robot. A local frame is anchored at some pose of the
// robot: its origin is the robot's (x, y) position and its x-axis points
// along the robot's heading.
package frame

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Pose is a planar position with a heading, in radians, measured
// counter-clockwise from the world x-axis
type Pose struct {
	X, Y    float64
	Heading float64
}

// Point is a planar point
type Point struct {
	X, Y float64
}

// Norm returns the Euclidean norm of the point
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Scale returns the point scaled by f
func (p Point) Scale(f float64) Point {
	return Point{p.X * f, p.Y * f}
}

// rotation returns the matrix which rotates row vectors into the frame
// of a pose with the given heading:
//
//	[x y] * R = [x cos(h) + y sin(h), -x sin(h) + y cos(h)]
func rotation(heading float64) *mat.Dense {
	cos, sin := math.Cos(heading), math.Sin(heading)
	return mat.NewDense(2, 2, []float64{
		cos, -sin,
		sin, cos,
	})
}

// WorldToLocal converts a world-frame point into the local frame
// anchored at origin. The point is first translated by -origin.xy and
// then rotated by -origin.Heading.
func WorldToLocal(origin Pose, p Point) Point {
	dx, dy := p.X-origin.X, p.Y-origin.Y
	cos, sin := math.Cos(origin.Heading), math.Sin(origin.Heading)
	return Point{
		X: dx*cos + dy*sin,
		Y: -dx*sin + dy*cos,
	}
}

// LocalToWorld converts a point in the local frame anchored at origin
// into the world frame. It is the inverse of WorldToLocal.
func LocalToWorld(origin Pose, p Point) Point {
	cos, sin := math.Cos(origin.Heading), math.Sin(origin.Heading)
	return Point{
		X: p.X*cos - p.Y*sin + origin.X,
		Y: p.X*sin + p.Y*cos + origin.Y,
	}
}

// WorldToLocalBatch converts each row (x, y) of points into the local
// frame of the corresponding origin. If a single origin is given, it is
// broadcast to every row. The returned matrix has the same shape as
// points.
func WorldToLocalBatch(origins []Pose, points *mat.Dense) *mat.Dense {
	return transformBatch(origins, points, false)
}

// LocalToWorldBatch converts each row (x, y) of points from the local
// frame of the corresponding origin into the world frame. If a single
// origin is given, it is broadcast to every row.
func LocalToWorldBatch(origins []Pose, points *mat.Dense) *mat.Dense {
	return transformBatch(origins, points, true)
}

func transformBatch(origins []Pose, points *mat.Dense, inverse bool) *mat.Dense {
	rows, cols := points.Dims()
	if cols != 2 {
		panic(fmt.Sprintf("transformbatch: points must have 2 columns, "+
			"have %v", cols))
	}
	if len(origins) != 1 && len(origins) != rows {
		panic(fmt.Sprintf("transformbatch: need 1 or %v origins, have %v",
			rows, len(origins)))
	}

	out := mat.NewDense(rows, 2, nil)
	shifted := mat.NewDense(1, 2, nil)
	rotated := mat.NewDense(1, 2, nil)
	for i := 0; i < rows; i++ {
		origin := origins[0]
		if len(origins) > 1 {
			origin = origins[i]
		}
		r := rotation(origin.Heading)

		if inverse {
			rotated.Mul(points.Slice(i, i+1, 0, 2), r.T())
			out.Set(i, 0, rotated.At(0, 0)+origin.X)
			out.Set(i, 1, rotated.At(0, 1)+origin.Y)
		} else {
			shifted.Set(0, 0, points.At(i, 0)-origin.X)
			shifted.Set(0, 1, points.At(i, 1)-origin.Y)
			rotated.Mul(shifted, r)
			out.SetRow(i, rotated.RawRowView(0))
		}
	}
	return out
}

// ClampNorm scales p so that its norm is at most threshold while
// keeping its direction. The scale factor is min(1, threshold / |p|),
// and a zero vector is returned unchanged.
func ClampNorm(p Point, threshold float64) Point {
	norm := p.Norm()
	if norm == 0 {
		return p
	}
	return p.Scale(math.Min(1.0, threshold/norm))
}

// GoalFeatures returns an N x 2 matrix whose rows are the goals
// expressed in the local frame of the corresponding origin, clamped to
// the given distance threshold.
func GoalFeatures(origins []Pose, goals []Point, threshold float64) *mat.Dense {
	if len(origins) != len(goals) {
		panic(fmt.Sprintf("goalfeatures: %v origins for %v goals",
			len(origins), len(goals)))
	}

	world := mat.NewDense(len(goals), 2, nil)
	for i, g := range goals {
		world.Set(i, 0, g.X)
		world.Set(i, 1, g.Y)
	}

	out := WorldToLocalBatch(origins, world)
	for i := range goals {
		local := ClampNorm(Point{out.At(i, 0), out.At(i, 1)}, threshold)
		out.Set(i, 0, local.X)
		out.Set(i, 1, local.Y)
	}
	return out
}

// WrapAngle wraps an angle in radians to (-π, π]
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
