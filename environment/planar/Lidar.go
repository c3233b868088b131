package planar

import "math"

// scan writes the lidar ranges of environment i into dst. Rays are
// evenly spaced over a full turn, starting at the robot's heading and
// proceeding counter-clockwise.
func (e *Env) scan(i int, dst []float64) {
	r := e.robots[i].pose
	step := 2 * math.Pi / float64(len(dst))

	for k := range dst {
		angle := r.Heading + float64(k)*step
		dst[k] = castRay(r.X, r.Y, math.Cos(angle), math.Sin(angle),
			e.obstacles[i], e.cfg.ArenaSize, e.cfg.LidarRange)
	}
}

// castRay returns the distance along the unit direction (dx, dy) from
// (ox, oy) to the first obstacle or wall of a square arena [0, size]²,
// up to maxRange
func castRay(ox, oy, dx, dy float64, obstacles []circle, size,
	maxRange float64) float64 {
	d := maxRange

	if dx > 0 {
		d = math.Min(d, (size-ox)/dx)
	} else if dx < 0 {
		d = math.Min(d, -ox/dx)
	}
	if dy > 0 {
		d = math.Min(d, (size-oy)/dy)
	} else if dy < 0 {
		d = math.Min(d, -oy/dy)
	}

	for _, c := range obstacles {
		fx, fy := ox-c.x, oy-c.y
		b := fx*dx + fy*dy
		disc := b*b - (fx*fx + fy*fy - c.r*c.r)
		if disc < 0 {
			continue
		}

		// The far intersection is only hit from inside the circle
		t := -b - math.Sqrt(disc)
		if t < 0 {
			t = -b + math.Sqrt(disc)
		}
		if t >= 0 && t < d {
			d = t
		}
	}
	return math.Max(d, 0)
}
