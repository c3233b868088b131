package gae

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func store(t *testing.T, b *Buffer, rew, val []float64, dones []bool) {
	t.Helper()
	n := len(rew)
	err := b.Store(mat.NewDense(n, 1, nil), mat.NewDense(n, 1, nil), rew, val,
		make([]float64, n), dones)
	if err != nil {
		t.Fatal(err)
	}
}

func TestMonteCarloReturns(t *testing.T) {
	// With λ = 1 and zero values, returns are discounted rewards-to-go
	const gamma = 0.9
	b := New(1, 1, 1, 3, 1, gamma)
	for _, r := range []float64{1, 2, 3} {
		store(t, b, []float64{r}, []float64{0}, []bool{false})
	}
	if err := b.FinishPath([]float64{10}); err != nil {
		t.Fatal(err)
	}

	batch, err := b.Get()
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{
		1 + gamma*2 + gamma*gamma*3 + gamma*gamma*gamma*10,
		2 + gamma*3 + gamma*gamma*10,
		3 + gamma*10,
	}
	if !floats.EqualApprox(batch.Returns, want, 1e-12) {
		t.Errorf("returns: want %v, have %v", want, batch.Returns)
	}
}

func TestDoneCutsBootstrapPerEnv(t *testing.T) {
	const gamma, lambda = 0.99, 0.95
	b := New(2, 1, 1, 2, lambda, gamma)

	// Environment 0 terminates on the first step, environment 1 never
	store(t, b, []float64{1, 1}, []float64{0.5, 0.5}, []bool{true, false})
	store(t, b, []float64{2, 2}, []float64{0.7, 0.7}, []bool{false, false})
	if err := b.FinishPath([]float64{3, 3}); err != nil {
		t.Fatal(err)
	}
	batch, err := b.Get()
	if err != nil {
		t.Fatal(err)
	}

	// Step-major layout: index t*nEnv + env
	d1 := 2 + gamma*3 - 0.7
	adv := map[int]float64{
		2: d1,      // (t=1, env 0)
		3: d1,      // (t=1, env 1)
		0: 1 - 0.5, // (t=0, env 0) bootstrap cut
		1: 1 + gamma*0.7 - 0.5 + gamma*lambda*d1,
	}
	for i, want := range adv {
		if math.Abs(batch.RawAdvantages[i]-want) > 1e-12 {
			t.Errorf("advantage %v: want %v, have %v", i, want,
				batch.RawAdvantages[i])
		}
		if math.Abs(batch.Returns[i]-(want+batch.Values[i])) > 1e-12 {
			t.Errorf("return %v: want advantage + value", i)
		}
	}

	mean, std := stat.MeanStdDev(batch.Advantages, nil)
	if math.Abs(mean) > 1e-9 || math.Abs(std-1) > 1e-6 {
		t.Errorf("standardized advantages: mean %v std %v", mean, std)
	}
}

func TestBufferLifecycle(t *testing.T) {
	b := New(1, 2, 1, 1, 0.95, 0.99)
	if _, err := b.Get(); err == nil {
		t.Error("get before finishpath should fail")
	}

	err := b.Store(mat.NewDense(1, 3, nil), mat.NewDense(1, 1, nil),
		[]float64{0}, []float64{0}, []float64{0}, []bool{false})
	if err == nil {
		t.Error("store with the wrong observation width should fail")
	}

	store2 := func() error {
		return b.Store(mat.NewDense(1, 2, nil), mat.NewDense(1, 1, nil),
			[]float64{0}, []float64{0}, []float64{0}, []bool{false})
	}
	if err := store2(); err != nil {
		t.Fatal(err)
	}
	if err := store2(); err == nil {
		t.Error("store past capacity should fail")
	}

	if err := b.FinishPath([]float64{0}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Get(); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 0 {
		t.Errorf("get should clear the buffer, have %v steps", b.Len())
	}
}
