package facerec

import (
	"fmt"
	"math"
)

// Dimension is the length of a face embedding vector produced by the
// external encoder.
const Dimension = 128

// Embedding is a fixed-length face embedding in a space where Euclidean
// distance is a valid similarity proxy.
type Embedding []float64

// EuclideanDistance returns the Euclidean distance between two embeddings.
func EuclideanDistance(a, b Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimension mismatch: %d != %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Average returns the component-wise mean of the given sample embeddings.
// A single sample is returned unchanged (as a copy). All samples must share
// the same dimension.
func Average(samples []Embedding) (Embedding, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	dim := len(samples[0])
	avg := make(Embedding, dim)
	for _, s := range samples {
		if len(s) != dim {
			return nil, fmt.Errorf("embedding dimension mismatch: %d != %d", len(s), dim)
		}
		for i, v := range s {
			avg[i] += v
		}
	}
	n := float64(len(samples))
	for i := range avg {
		avg[i] /= n
	}
	return avg, nil
}
