package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/kozaktomas/face-clock/internal/geometry"
	"github.com/kozaktomas/face-clock/internal/identitystore"
	"github.com/kozaktomas/face-clock/internal/preprocess"
)

// fakeEngine derives a deterministic embedding from the tensor sum.
type fakeEngine struct {
	dim int
	err error
}

func (f *fakeEngine) Infer(_ context.Context, tensor []float32) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	var sum float32
	for _, v := range tensor {
		sum += v
	}
	out := make([]float32, f.dim)
	for i := range out {
		out[i] = sum + float32(i)
	}
	return out, nil
}

type fakeStore struct {
	registeredID string
	verifiedMode identitystore.Mode
	embedding    []float32
}

func (f *fakeStore) Register(_ context.Context, employeeID string, face identitystore.FacePayload) (*identitystore.RegistrationResult, error) {
	f.registeredID = employeeID
	return &identitystore.RegistrationResult{Success: true, EmployeeID: employeeID}, nil
}

func (f *fakeStore) Verify(_ context.Context, mode identitystore.Mode, face identitystore.FacePayload) (*identitystore.VerificationOutcome, error) {
	f.verifiedMode = mode
	return &identitystore.VerificationOutcome{Recognized: true, Mode: mode}, nil
}

func testPhoto(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test photo: %v", err)
	}
	return buf.Bytes()
}

func TestExtractPrimaryBranch(t *testing.T) {
	p := New(&fakeEngine{dim: 8}, 112)
	capture := Capture{
		Photo: testPhoto(t, 320, 240),
		Frame: geometry.FaceFrame{X: 100, Y: 80, Width: 60, Height: 60},
	}

	result, err := p.Extract(context.Background(), capture)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Branch != preprocess.BranchPrimary {
		t.Errorf("expected primary branch, got %v", result.Branch)
	}
	if len(result.Embedding) != 8 {
		t.Fatalf("expected 8-dimensional embedding, got %d", len(result.Embedding))
	}

	var norm float64
	for _, v := range result.Embedding {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-4 {
		t.Errorf("embedding not unit length: %f", math.Sqrt(norm))
	}
}

func TestExtractFallbackBranch(t *testing.T) {
	p := New(&fakeEngine{dim: 8}, 112)
	capture := Capture{
		Photo: testPhoto(t, 320, 240),
		Frame: geometry.FaceFrame{}, // no detector box
	}

	result, err := p.Extract(context.Background(), capture)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Branch != preprocess.BranchFallback {
		t.Errorf("expected fallback branch, got %v", result.Branch)
	}
	want := geometry.CropArea{X: 40, Y: 0, Width: 240, Height: 240}
	if result.Crop != want {
		t.Errorf("expected center crop %+v, got %+v", want, result.Crop)
	}
}

func TestExtractErrors(t *testing.T) {
	t.Run("undecodable photo", func(t *testing.T) {
		p := New(&fakeEngine{dim: 8}, 112)
		_, err := p.Extract(context.Background(), Capture{Photo: []byte("not an image")})
		if !errors.Is(err, preprocess.ErrImageDecode) {
			t.Errorf("expected decode error, got %v", err)
		}
	})

	t.Run("engine failure", func(t *testing.T) {
		p := New(&fakeEngine{err: errors.New("model crashed")}, 112)
		_, err := p.Extract(context.Background(), Capture{Photo: testPhoto(t, 128, 128)})
		if err == nil {
			t.Fatal("expected error from engine")
		}
	})
}

func TestEnrollAndClock(t *testing.T) {
	p := New(&fakeEngine{dim: 8}, 112)
	store := &fakeStore{}
	capture := Capture{Photo: testPhoto(t, 128, 128)}
	ctx := context.Background()

	reg, err := p.Enroll(ctx, store, "emp-001", capture)
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if !reg.Success || store.registeredID != "emp-001" {
		t.Errorf("enrollment not forwarded: %+v, store=%+v", reg, store)
	}

	outcome, err := p.Clock(ctx, store, identitystore.ModeClockIn, capture)
	if err != nil {
		t.Fatalf("Clock failed: %v", err)
	}
	if !outcome.Recognized || store.verifiedMode != identitystore.ModeClockIn {
		t.Errorf("verification not forwarded: %+v, store=%+v", outcome, store)
	}
}
