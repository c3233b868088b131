// Package plot draws the trajectories of evaluation rollouts
package plot

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"github.com/fogleman/gg"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/lidarnav/experiment"
)

const (
	// ViewportSize is the side length of a plot in pixels
	ViewportSize = 600

	// jump is the distance between consecutive poses beyond which the
	// robot is considered to have been reset
	jump = 1.0
)

var (
	background    = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	wallColour    = color.RGBA{R: 255, G: 166, B: 0, A: 255}
	obstacleShade = color.RGBA{R: 128, G: 102, B: 230, A: 255}
	pathColour    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	goalColour    = color.RGBA{R: 76, G: 230, B: 115, A: 255}
	startColour   = color.RGBA{R: 255, G: 115, B: 76, A: 255}
)

// Arena describes the square arena that a trajectory was driven in.
// Obstacles holds one (x, y, radius) row per obstacle and may be nil.
type Arena struct {
	Size      float64
	Obstacles *mat.Dense
}

// worldToPixel converts world coordinates to pixel coordinates
func (a Arena) worldToPixel(x, y float64) (float64, float64) {
	scale := ViewportSize / a.Size
	return scale * x, ViewportSize - scale*y
}

// Trajectory draws a single trajectory over its arena and saves the
// image as a PNG
func Trajectory(filename string, traj experiment.Trajectory,
	arena Arena) error {
	if arena.Size <= 0 {
		return fmt.Errorf("trajectory: arena size must be positive, have %v",
			arena.Size)
	}
	scale := ViewportSize / arena.Size

	dc := gg.NewContext(ViewportSize, ViewportSize)
	dc.SetColor(background)
	dc.Clear()

	// Walls
	dc.SetColor(wallColour)
	dc.SetLineWidth(5.0)
	dc.DrawRectangle(0, 0, ViewportSize, ViewportSize)
	dc.Stroke()

	if arena.Obstacles != nil {
		rows, _ := arena.Obstacles.Dims()
		for i := 0; i < rows; i++ {
			x, y := arena.worldToPixel(arena.Obstacles.At(i, 0),
				arena.Obstacles.At(i, 1))
			dc.DrawCircle(x, y, scale*arena.Obstacles.At(i, 2))
		}
		dc.SetColor(obstacleShade)
		dc.Fill()
	}

	// Path, broken wherever the robot was reset
	dc.SetColor(pathColour)
	dc.SetLineWidth(2.0)
	for i, pose := range traj.Poses {
		x, y := arena.worldToPixel(pose.X, pose.Y)
		if i == 0 || math.Hypot(pose.X-traj.Poses[i-1].X,
			pose.Y-traj.Poses[i-1].Y) > jump {
			dc.Stroke()
			dc.MoveTo(x, y)
			continue
		}
		dc.LineTo(x, y)
	}
	dc.Stroke()

	// Starts of each episode and each distinct goal
	for i, pose := range traj.Poses {
		if i == 0 || math.Hypot(pose.X-traj.Poses[i-1].X,
			pose.Y-traj.Poses[i-1].Y) > jump {
			x, y := arena.worldToPixel(pose.X, pose.Y)
			dc.DrawCircle(x, y, 4)
		}
	}
	dc.SetColor(startColour)
	dc.Fill()

	for i, goal := range traj.Goals {
		if i > 0 && goal == traj.Goals[i-1] {
			continue
		}
		x, y := arena.worldToPixel(goal.X, goal.Y)
		dc.DrawCircle(x, y, 6)
	}
	dc.SetColor(goalColour)
	dc.Fill()

	if err := dc.SavePNG(filename); err != nil {
		return fmt.Errorf("trajectory: %w", err)
	}
	return nil
}

// Filename returns the name of the plot of environment env's trajectory
// during the evaluation at some iteration
func Filename(dir string, iteration, env int) string {
	return filepath.Join(dir, fmt.Sprintf("traj_%v_%v.png", iteration, env))
}

// Trajectories draws each trajectory of an evaluation rollout into dir
// and returns the names of the saved files. The arena function returns
// the arena of an environment.
func Trajectories(dir string, iteration int, s *experiment.RolloutStats,
	arena func(env int) Arena) ([]string, error) {
	filenames := make([]string, 0, len(s.Trajectories))
	for _, traj := range s.Trajectories {
		filename := Filename(dir, iteration, traj.Env)
		if err := Trajectory(filename, traj, arena(traj.Env)); err != nil {
			return filenames, fmt.Errorf("trajectories: env %v: %w", traj.Env,
				err)
		}
		filenames = append(filenames, filename)
	}
	return filenames, nil
}
