package embed

import (
	"context"
	"errors"
	"math"
	"testing"
)

// fakeEngine returns a deterministic vector derived from the tensor so
// determinism and normalization can be tested without a real model.
type fakeEngine struct {
	dim  int
	fail error
}

func (f *fakeEngine) Infer(_ context.Context, tensor []float32) ([]float32, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if f.dim == 0 {
		return nil, nil
	}
	out := make([]float32, f.dim)
	for i, v := range tensor {
		out[i%f.dim] += v * float32(i%7+1)
	}
	return out, nil
}

func testTensor(n int) []float32 {
	tensor := make([]float32, n)
	for i := range tensor {
		tensor[i] = float32(math.Sin(float64(i) * 0.13))
	}
	return tensor
}

func TestExtractUnitNorm(t *testing.T) {
	extractor := NewExtractor(&fakeEngine{dim: 128})

	vec, err := extractor.Extract(context.Background(), testTensor(3*112*112))
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if len(vec) != 128 {
		t.Fatalf("embedding length = %d, want 128", len(vec))
	}
	if norm := Norm(vec); math.Abs(norm-1.0) > 1e-4 {
		t.Errorf("embedding norm = %v, want 1.0 within 1e-4", norm)
	}
}

func TestExtractDeterministic(t *testing.T) {
	extractor := NewExtractor(&fakeEngine{dim: 64})
	tensor := testTensor(3 * 112 * 112)

	first, err := extractor.Extract(context.Background(), tensor)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	second, err := extractor.Extract(context.Background(), tensor)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("embedding[%d] differs between runs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestExtractNoOutput(t *testing.T) {
	extractor := NewExtractor(&fakeEngine{dim: 0})
	if _, err := extractor.Extract(context.Background(), testTensor(12)); !errors.Is(err, ErrNoOutput) {
		t.Fatalf("Extract() error = %v, want ErrNoOutput", err)
	}
}

func TestExtractEngineError(t *testing.T) {
	boom := errors.New("backend down")
	extractor := NewExtractor(&fakeEngine{dim: 8, fail: boom})
	if _, err := extractor.Extract(context.Background(), testTensor(12)); !errors.Is(err, boom) {
		t.Fatalf("Extract() error = %v, want wrapped %v", err, boom)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	// Zero norm substitutes 1, so the vector passes through unchanged
	// instead of dividing by zero.
	out := Normalize(make([]float32, 16))
	for i, v := range out {
		if v != 0 {
			t.Fatalf("normalized zero vector has non-zero component at %d: %v", i, v)
		}
	}
}

func TestNormalizeKnownVector(t *testing.T) {
	out := Normalize([]float32{3, 4})
	if math.Abs(float64(out[0])-0.6) > 1e-6 || math.Abs(float64(out[1])-0.8) > 1e-6 {
		t.Errorf("Normalize([3,4]) = %v, want [0.6, 0.8]", out)
	}
}

func TestDot(t *testing.T) {
	a := Normalize([]float32{1, 2, 3})
	if sim := Dot(a, a); math.Abs(sim-1.0) > 1e-6 {
		t.Errorf("Dot(a, a) = %v, want 1.0", sim)
	}
	if sim := Dot(a, []float32{1, 2}); sim != 0 {
		t.Errorf("Dot with mismatched lengths = %v, want 0", sim)
	}
}

func TestInterleavedToPlanar(t *testing.T) {
	// 2x2 image, channels interleaved: pixel i has values (i, i+0.1, i+0.2).
	tensor := []float32{
		0, 0.1, 0.2,
		1, 1.1, 1.2,
		2, 2.1, 2.2,
		3, 3.1, 3.2,
	}
	planar := interleavedToPlanar(tensor, 2)
	wantR := []float32{0, 1, 2, 3}
	for i, v := range wantR {
		if planar[i] != v {
			t.Fatalf("planar R[%d] = %v, want %v", i, planar[i], v)
		}
	}
	if planar[4] != 0.1 || planar[8] != 0.2 {
		t.Errorf("channel planes misordered: G starts with %v, B starts with %v", planar[4], planar[8])
	}
}
