package history

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

// features returns a distinct (nEnv x featureDim) matrix for push k
func features(nEnv, featureDim, k int) *mat.Dense {
	m := mat.NewDense(nEnv, featureDim, nil)
	for e := 0; e < nEnv; e++ {
		for f := 0; f < featureDim; f++ {
			m.Set(e, f, float64(1000*k+100*e+f+1))
		}
	}
	return m
}

func TestPushOrdering(t *testing.T) {
	const nEnv, featureDim, windowLen = 4, 3, 5
	b := New(nEnv, featureDim, windowLen)

	// Push more than a full window so that the ring wraps around
	pushes := windowLen + 2
	for k := 0; k < pushes; k++ {
		b.Push(features(nEnv, featureDim, k))
	}

	newest := features(nEnv, featureDim, pushes-1)
	oldest := features(nEnv, featureDim, pushes-windowLen)
	for e := 0; e < nEnv; e++ {
		for f := 0; f < featureDim; f++ {
			if got := b.At(e, f, windowLen-1); got != newest.At(e, f) {
				t.Errorf("newest (%v, %v): want %v, have %v", e, f,
					newest.At(e, f), got)
			}
			if got := b.At(e, f, 0); got != oldest.At(e, f) {
				t.Errorf("oldest (%v, %v): want %v, have %v", e, f,
					oldest.At(e, f), got)
			}
		}
	}

	if b.Len() != windowLen {
		t.Errorf("len: want %v, have %v", windowLen, b.Len())
	}
}

func TestPartialWindowIsZeroPadded(t *testing.T) {
	b := New(2, 2, 4)
	b.Push(features(2, 2, 0))
	b.Push(features(2, 2, 1))

	want := features(2, 2, 1)
	for e := 0; e < 2; e++ {
		for f := 0; f < 2; f++ {
			if b.At(e, f, 0) != 0 || b.At(e, f, 1) != 0 {
				t.Errorf("env %v: expected zero padding in the oldest slots", e)
			}
			if b.At(e, f, 3) != want.At(e, f) {
				t.Errorf("env %v: newest want %v, have %v", e, want.At(e, f),
					b.At(e, f, 3))
			}
		}
	}
}

func TestReadLayouts(t *testing.T) {
	const nEnv, featureDim, windowLen = 2, 3, 4
	b := New(nEnv, featureDim, windowLen)
	for k := 0; k < windowLen+1; k++ {
		b.Push(features(nEnv, featureDim, k))
	}

	flat := b.Read(true)
	unflat := b.Read(false)
	if r, c := flat.Dims(); r != nEnv || c != featureDim*windowLen {
		t.Fatalf("flat dims: want (%v, %v), have (%v, %v)", nEnv,
			featureDim*windowLen, r, c)
	}

	for e := 0; e < nEnv; e++ {
		for step := 0; step < windowLen; step++ {
			// Time index t holds push number t+1 after windowLen+1 pushes
			want := features(nEnv, featureDim, step+1)
			for f := 0; f < featureDim; f++ {
				if got := flat.At(e, step*featureDim+f); got != want.At(e, f) {
					t.Errorf("flatten (%v, t=%v, f=%v): want %v, have %v", e,
						step, f, want.At(e, f), got)
				}
				if got := unflat.At(e, f*windowLen+step); got != want.At(e, f) {
					t.Errorf("unflattened (%v, f=%v, t=%v): want %v, have %v",
						e, f, step, want.At(e, f), got)
				}
			}
		}
	}

	// Read returns a copy
	flat.Set(0, 0, -1)
	if b.At(0, 0, 0) == -1 {
		t.Error("read: returned matrix aliases the buffer")
	}
}

func TestResetSubset(t *testing.T) {
	const nEnv, featureDim, windowLen = 5, 2, 3
	b := New(nEnv, featureDim, windowLen)
	for k := 0; k < 4; k++ {
		b.Push(features(nEnv, featureDim, k))
	}
	before := b.Read(false)

	b.ResetSubset([]int{2})
	after := b.Read(false)

	for e := 0; e < nEnv; e++ {
		for c := 0; c < featureDim*windowLen; c++ {
			if e == 2 {
				if after.At(e, c) != 0 {
					t.Errorf("reset env: column %v not zeroed", c)
				}
			} else if after.At(e, c) != before.At(e, c) {
				t.Errorf("env %v column %v changed: want %v, have %v", e, c,
					before.At(e, c), after.At(e, c))
			}
		}
	}

	// The reset environment refills from the newest slot
	b.Push(features(nEnv, featureDim, 9))
	if got, want := b.At(2, 1, windowLen-1), features(nEnv, featureDim, 9).At(2, 1); got != want {
		t.Errorf("refill newest: want %v, have %v", want, got)
	}
	if b.At(2, 1, windowLen-2) != 0 {
		t.Error("refill: history from before the reset leaked")
	}
}

func TestReset(t *testing.T) {
	b := New(3, 2, 2)
	b.Push(features(3, 2, 0))
	b.Reset()

	if b.Len() != 0 {
		t.Errorf("len after reset: want 0, have %v", b.Len())
	}
	if !mat.Equal(b.Read(true), mat.NewDense(3, 4, nil)) {
		t.Error("reset: buffer not zeroed")
	}
}

func TestPushShapePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("push with the wrong shape should panic")
		}
	}()
	New(2, 3, 4).Push(mat.NewDense(2, 2, nil))
}

func BenchmarkPush(b *testing.B) {
	buf := New(4096, 9, 10)
	f := features(4096, 9, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Push(f)
	}
}
