// Package embed runs the face embedding model over a normalized tensor and
// produces unit-length descriptor vectors.
package embed

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrNoOutput is returned when the inference engine yields no output vector.
// The attempt is fatal; the caller should ask the operator to try again.
var ErrNoOutput = errors.New("inference produced no output")

// Engine abstracts the neural network backend. Implementations must be safe
// to reuse across captures and must not mutate the input tensor.
type Engine interface {
	// Infer runs the model over a channel-interleaved row-major tensor
	// and returns the raw (un-normalized) feature vector.
	Infer(ctx context.Context, tensor []float32) ([]float32, error)
}

// Extractor turns tensors into unit-length embeddings.
type Extractor struct {
	engine Engine
}

// NewExtractor creates an extractor backed by the given engine.
func NewExtractor(engine Engine) *Extractor {
	return &Extractor{engine: engine}
}

// Extract runs inference and L2-normalizes the result. The returned vector
// has Euclidean length 1, so downstream comparison can use a plain dot
// product without re-normalizing.
func (e *Extractor) Extract(ctx context.Context, tensor []float32) ([]float32, error) {
	raw, err := e.engine.Infer(ctx, tensor)
	if err != nil {
		return nil, fmt.Errorf("running inference: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoOutput
	}
	return Normalize(raw), nil
}

// Normalize scales a vector to unit L2 length. A zero vector would divide
// by zero, so the norm is substituted with 1 and the vector returned as-is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Norm returns the Euclidean length of a vector.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Dot returns the dot product of two equal-length vectors. For unit vectors
// this equals their cosine similarity.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
