// Package pipeline wires one capture through crop, preprocessing, inference
// and transmission. Stages run strictly sequentially per attempt; the
// subsystem performs no deduplication across attempts, so callers must keep
// repeated submissions disabled while one is in flight.
package pipeline

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-clock/internal/embed"
	"github.com/kozaktomas/face-clock/internal/geometry"
	"github.com/kozaktomas/face-clock/internal/identitystore"
	"github.com/kozaktomas/face-clock/internal/preprocess"
)

// Capture is one photo plus the detector box that located the face in it.
type Capture struct {
	Photo []byte
	Frame geometry.FaceFrame
}

// ExtractResult is a unit-length embedding plus the crop branch that
// produced it, so callers can tell a clean detector crop from a fallback.
type ExtractResult struct {
	Embedding []float32
	Branch    preprocess.Branch
	Crop      geometry.CropArea
}

// Registrar enrolls an embedding with the identity store.
type Registrar interface {
	Register(ctx context.Context, employeeID string, face identitystore.FacePayload) (*identitystore.RegistrationResult, error)
}

// Verifier submits an embedding for a recognition decision.
type Verifier interface {
	Verify(ctx context.Context, mode identitystore.Mode, face identitystore.FacePayload) (*identitystore.VerificationOutcome, error)
}

// Pipeline turns captures into embeddings using a shared read-only engine.
type Pipeline struct {
	extractor *embed.Extractor
	side      int
}

// New creates a pipeline over the given inference engine. side is the model
// input resolution.
func New(engine embed.Engine, side int) *Pipeline {
	return &Pipeline{
		extractor: embed.NewExtractor(engine),
		side:      side,
	}
}

// Extract produces a unit-length embedding from a capture. Geometry failures
// are recovered via the center-crop fallback inside preprocessing; decode
// and inference failures propagate untouched so the UI can distinguish
// "retake photo" from "try again".
func (p *Pipeline) Extract(ctx context.Context, capture Capture) (*ExtractResult, error) {
	prep, err := preprocess.Prepare(capture.Photo, capture.Frame, p.side)
	if err != nil {
		return nil, fmt.Errorf("preprocessing capture: %w", err)
	}

	vec, err := p.extractor.Extract(ctx, prep.Tensor)
	if err != nil {
		return nil, err
	}

	return &ExtractResult{
		Embedding: vec,
		Branch:    prep.Branch,
		Crop:      prep.Crop,
	}, nil
}

// Enroll extracts an embedding from the capture and registers it for the
// given worker.
func (p *Pipeline) Enroll(ctx context.Context, store Registrar, employeeID string, capture Capture) (*identitystore.RegistrationResult, error) {
	result, err := p.Extract(ctx, capture)
	if err != nil {
		return nil, err
	}
	return store.Register(ctx, employeeID, identitystore.EmbeddingPayload(result.Embedding))
}

// Clock extracts an embedding from the capture and submits it for the given
// attendance transition.
func (p *Pipeline) Clock(ctx context.Context, store Verifier, mode identitystore.Mode, capture Capture) (*identitystore.VerificationOutcome, error) {
	result, err := p.Extract(ctx, capture)
	if err != nil {
		return nil, err
	}
	return store.Verify(ctx, mode, identitystore.EmbeddingPayload(result.Embedding))
}
