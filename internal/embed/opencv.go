package embed

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-clock/internal/preprocess"
)

// OpenCVEngine runs an ONNX face embedding model through the OpenCV DNN
// module. The network is loaded once and reused; Forward is serialized
// because gocv.Net is not safe for concurrent calls.
type OpenCVEngine struct {
	mu   sync.Mutex
	net  gocv.Net
	side int
}

// NewOpenCVEngine loads the ONNX model from disk. side is the model input
// resolution (112 for the default MobileFaceNet/ArcFace family).
func NewOpenCVEngine(modelPath string, side int) (*OpenCVEngine, error) {
	if side < 1 {
		return nil, fmt.Errorf("invalid model input side %d", side)
	}
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("could not load ONNX model from %s", modelPath)
	}
	return &OpenCVEngine{net: net, side: side}, nil
}

// Infer converts the channel-interleaved tensor into an NCHW blob, runs a
// forward pass and returns a copy of the first output vector.
func (e *OpenCVEngine) Infer(ctx context.Context, tensor []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	expected := preprocess.Channels * e.side * e.side
	if len(tensor) != expected {
		return nil, fmt.Errorf("tensor length %d, model expects %d", len(tensor), expected)
	}

	blobData := interleavedToPlanar(tensor, e.side)

	blob, err := gocv.NewMatWithSizesFromBytes(
		[]int{1, preprocess.Channels, e.side, e.side},
		gocv.MatTypeCV32F,
		float32sToBytes(blobData),
	)
	if err != nil {
		return nil, fmt.Errorf("building input blob: %w", err)
	}
	defer blob.Close()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	if out.Empty() {
		return nil, ErrNoOutput
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("reading network output: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoOutput
	}

	// The Mat memory is released on Close; copy the vector out.
	vec := make([]float32, len(data))
	copy(vec, data)
	return vec, nil
}

// Close releases the underlying network.
func (e *OpenCVEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}

// interleavedToPlanar reorders an HWC tensor into the CHW layout OpenCV
// blobs use.
func interleavedToPlanar(tensor []float32, side int) []float32 {
	area := side * side
	out := make([]float32, len(tensor))
	for i := 0; i < area; i++ {
		for c := 0; c < preprocess.Channels; c++ {
			out[c*area+i] = tensor[i*preprocess.Channels+c]
		}
	}
	return out
}

// float32sToBytes serializes a float32 slice in the native little-endian
// layout gocv expects for raw Mat data.
func float32sToBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

var (
	defaultEngine *OpenCVEngine
	defaultOnce   sync.Once
	defaultErr    error
)

// LoadDefaultEngine loads the process-wide embedding model exactly once.
// Subsequent calls return the same engine regardless of arguments; the model
// is read-only shared state, never reloaded.
func LoadDefaultEngine(modelPath string, side int) (*OpenCVEngine, error) {
	defaultOnce.Do(func() {
		if modelPath == "" {
			defaultErr = errors.New("model path is required")
			return
		}
		defaultEngine, defaultErr = NewOpenCVEngine(modelPath, side)
	})
	return defaultEngine, defaultErr
}
