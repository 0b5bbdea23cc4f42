package nn

import (
	"fmt"
	"math"
)

// softmaxFloor replaces exponentials that underflow to zero so the
// normalized output never contains an exact zero probability.
const softmaxFloor = 1e-15

// Relu returns a new vector with negative entries zeroed.
func Relu(values []float64) []float64 {
	return applyVector(builtinRelu, values)
}

// Softmax returns the normalized exponentials of values. The max element is
// subtracted before exponentiating, which makes the result invariant under
// uniform shifts and keeps large inputs from overflowing.
func Softmax(values []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("softmax input must not be empty")
	}

	maxValue := values[0]
	for _, value := range values[1:] {
		if value > maxValue {
			maxValue = value
		}
	}

	out := make([]float64, len(values))
	sum := 0.0
	for i, value := range values {
		e := math.Exp(value - maxValue)
		if e == 0 {
			e = softmaxFloor
		}
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out, nil
}

// ArgMax returns the index of the largest entry, breaking ties toward the
// lowest index.
func ArgMax(values []float64) (int, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("argmax input must not be empty")
	}
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best, nil
}

func applyVector(fn ActivationFunc, values []float64) []float64 {
	out := make([]float64, len(values))
	for i, value := range values {
		out[i] = fn(value)
	}
	return out
}
