package nn

import (
	"math"
	"testing"
)

func TestReluZeroesNegatives(t *testing.T) {
	in := []float64{-2, -0.5, 0, 0.5, 3}
	got := Relu(in)
	want := []float64{0, 0, 0, 0.5, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected relu at %d: got=%f want=%f", i, got[i], want[i])
		}
	}
	if in[0] != -2 {
		t.Fatalf("relu must not modify its input, got %f", in[0])
	}
}

func TestSoftmaxNormalizes(t *testing.T) {
	out, err := Softmax([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("softmax: %v", err)
	}
	sum := 0.0
	for i, p := range out {
		if p <= 0 || p >= 1 {
			t.Fatalf("expected probability in (0,1) at %d, got %f", i, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("expected softmax sum 1, got %f", sum)
	}
	if !(out[2] > out[1] && out[1] > out[0]) {
		t.Fatalf("expected monotone probabilities, got %v", out)
	}
}

func TestSoftmaxShiftInvariant(t *testing.T) {
	base, err := Softmax([]float64{0.1, 0.9, -0.4})
	if err != nil {
		t.Fatalf("softmax base: %v", err)
	}
	shifted, err := Softmax([]float64{1000.1, 1000.9, 999.6})
	if err != nil {
		t.Fatalf("softmax shifted: %v", err)
	}
	for i := range base {
		if math.Abs(base[i]-shifted[i]) > 1e-9 {
			t.Fatalf("expected shift invariance at %d: got=%f want=%f", i, shifted[i], base[i])
		}
	}
}

func TestSoftmaxFloorsUnderflow(t *testing.T) {
	// exp(-2000) underflows to zero; the floor keeps every entry positive.
	out, err := Softmax([]float64{0, -2000})
	if err != nil {
		t.Fatalf("softmax: %v", err)
	}
	if out[1] <= 0 {
		t.Fatalf("expected floored positive probability, got %g", out[1])
	}
	if out[0] <= out[1] {
		t.Fatalf("expected dominant first entry, got %v", out)
	}
}

func TestSoftmaxEmptyInput(t *testing.T) {
	if _, err := Softmax(nil); err == nil {
		t.Fatal("expected empty input error")
	}
}

func TestArgMax(t *testing.T) {
	idx, err := ArgMax([]float64{0.2, 0.5, 0.3})
	if err != nil {
		t.Fatalf("argmax: %v", err)
	}
	if idx != 1 {
		t.Fatalf("unexpected argmax: got=%d want=1", idx)
	}

	idx, err = ArgMax([]float64{0.5, 0.5, 0.1})
	if err != nil {
		t.Fatalf("argmax tie: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected tie broken toward lowest index, got %d", idx)
	}

	if _, err := ArgMax(nil); err == nil {
		t.Fatal("expected empty input error")
	}
}
