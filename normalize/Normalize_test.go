package normalize

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func randomObs(rng *rand.Rand, rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, rng.NormFloat64()*float64(j+1)+float64(3*j))
		}
	}
	return m
}

func TestUpdateMatchesBatchStatistics(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	obs := randomObs(rng, 300, 3)

	// Statistics must not depend on how observations are batched
	split := New(Planning, 3)
	split.Update(obs.Slice(0, 100, 0, 3))
	split.Update(obs.Slice(100, 300, 0, 3))

	col := make([]float64, 300)
	for j := 0; j < 3; j++ {
		mat.Col(col, j, obs)
		mean, variance := stat.PopMeanVariance(col, nil)

		if math.Abs(split.Mean()[j]-mean) > 1e-4 {
			t.Errorf("feature %v mean: want %v, have %v", j, mean,
				split.Mean()[j])
		}
		if math.Abs(split.Var()[j]-variance) > 1e-3*variance {
			t.Errorf("feature %v var: want %v, have %v", j, variance,
				split.Var()[j])
		}
	}
}

func TestNormalizeClips(t *testing.T) {
	r := New(Tracking, 2)
	r.Update(mat.NewDense(4, 2, []float64{
		1, 0,
		-1, 0,
		1, 0,
		-1, 0,
	}))

	got := r.Normalize(mat.NewDense(1, 2, []float64{100, 0}))
	if got.At(0, 0) != DefaultClip {
		t.Errorf("clip: want %v, have %v", DefaultClip, got.At(0, 0))
	}
	if got.At(0, 1) != 0 {
		t.Errorf("constant feature: want 0, have %v", got.At(0, 1))
	}

	r.SetClip(0)
	if got := r.Normalize(mat.NewDense(1, 2, []float64{100, 0})); got.At(0, 0) <= DefaultClip {
		t.Errorf("clipping disabled: want > %v, have %v", DefaultClip,
			got.At(0, 0))
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(3))

	r := New(Planning, 4)
	r.Update(randomObs(rng, 50, 4))
	if err := r.Save(dir, 20); err != nil {
		t.Fatal(err)
	}

	loaded := New(Planning, 4)
	if err := loaded.Load(dir, 20); err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(loaded.Mean(), r.Mean()) ||
		!floats.Equal(loaded.Var(), r.Var()) ||
		loaded.Count() != r.Count() {
		t.Error("loaded statistics differ from saved statistics")
	}

	// Statistics are keyed by type
	if err := New(Tracking, 4).Load(dir, 20); err == nil {
		t.Error("load: expected an error for a missing tracking file")
	}
	if err := New(Planning, 3).Load(dir, 20); err == nil {
		t.Error("load: expected an error for mismatched features")
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(Tracking, 500); got != "mean2_500.gob" {
		t.Errorf("want mean2_500.gob, have %v", got)
	}
}
