package environment

import (
	"testing"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/spatial/r1"
)

func TestLayout(t *testing.T) {
	l := NewLayout(21, 36)
	if l.Width() != 57 {
		t.Errorf("width: want 57, have %v", l.Width())
	}
	if p := l.ProprioColumns(); p.Start != 0 || p.End != 21 {
		t.Errorf("proprio columns: have %v", p)
	}
	if p := l.LidarColumns(); p.Start != 21 || p.End != 57 {
		t.Errorf("lidar columns: have %v", p)
	}
}

func TestUniformStarterWithinBounds(t *testing.T) {
	bounds := []r1.Interval{{Min: -2, Max: 2}, {Min: 5, Max: 6}}
	s := NewUniformStarter(bounds, rand.NewSource(9))

	dst := make([]float64, 2)
	for i := 0; i < 200; i++ {
		v := s.Start(dst)
		for j, b := range bounds {
			if v[j] < b.Min || v[j] > b.Max {
				t.Fatalf("dimension %v: %v outside [%v, %v]", j, v[j], b.Min,
					b.Max)
			}
		}
	}
}

func TestStepLimit(t *testing.T) {
	s := NewStepLimit(3)
	if s.End(2) || !s.End(3) {
		t.Error("step limit of 3 should end at the third tick")
	}
	if NewStepLimit(0).End(1000) {
		t.Error("a zero step limit should never end an episode")
	}
}
