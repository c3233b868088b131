package plot

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/lidarnav/experiment"
	"github.com/samuelfneumann/lidarnav/frame"
)

func TestTrajectories(t *testing.T) {
	dir := t.TempDir()

	traj := experiment.Trajectory{Env: 1}
	for i := 0; i < 20; i++ {
		x := 1 + 0.1*float64(i)
		if i >= 10 {
			x += 5 // reset
		}
		traj.Poses = append(traj.Poses, frame.Pose{X: x, Y: 5})
		traj.Goals = append(traj.Goals, frame.Point{X: 9, Y: 5})
	}
	stats := &experiment.RolloutStats{
		Mode:         experiment.Evaluate,
		Trajectories: []experiment.Trajectory{traj},
	}

	arena := func(int) Arena {
		return Arena{Size: 10, Obstacles: mat.NewDense(1, 3, []float64{5, 2, 1})}
	}
	files, err := Trajectories(dir, 30, stats, arena)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != filepath.Join(dir, "traj_30_1.png") {
		t.Fatalf("unexpected files %v", files)
	}

	f, err := os.Open(files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != ViewportSize || b.Dy() != ViewportSize {
		t.Errorf("image size: want %v, have %v", ViewportSize, b)
	}

	// The obstacle centre is filled
	r, g, b, _ := img.At(300, 480).RGBA()
	if r>>8 != 128 || g>>8 != 102 || b>>8 != 230 {
		t.Errorf("obstacle pixel: have (%v, %v, %v)", r>>8, g>>8, b>>8)
	}
}

func TestTrajectoryArenaSize(t *testing.T) {
	err := Trajectory(filepath.Join(t.TempDir(), "x.png"),
		experiment.Trajectory{}, Arena{})
	if err == nil {
		t.Error("a zero size arena should fail")
	}
}
