package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-clock/internal/config"
	"github.com/kozaktomas/face-clock/internal/embed"
	"github.com/kozaktomas/face-clock/internal/geometry"
	"github.com/kozaktomas/face-clock/internal/identitystore"
	"github.com/kozaktomas/face-clock/internal/pipeline"
)

// newStoreClient builds the identity store client from the environment.
func newStoreClient(cfg *config.Config) (*identitystore.Client, error) {
	if cfg.Store.URL == "" {
		return nil, errors.New("STORE_URL environment variable is required")
	}
	return identitystore.New(cfg.Store.URL, cfg.Store.Token, cfg.Store.Tenant)
}

// newPipeline loads the embedding model for the configured profile and wraps
// it in a capture pipeline.
func newPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	if cfg.Model.Path == "" {
		return nil, errors.New("MODEL_PATH environment variable is required")
	}
	profile := cfg.Profile()
	engine, err := embed.LoadDefaultEngine(cfg.Model.Path, profile.InputSide)
	if err != nil {
		return nil, fmt.Errorf("loading embedding model: %w", err)
	}
	return pipeline.New(engine, profile.InputSide), nil
}

// parseBox parses a detector box flag of the form "x,y,w,h". An empty string
// yields the zero frame, which routes preprocessing through the center-crop
// fallback.
func parseBox(s string) (geometry.FaceFrame, error) {
	if s == "" {
		return geometry.FaceFrame{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.FaceFrame{}, fmt.Errorf("box must be x,y,w,h, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.FaceFrame{}, fmt.Errorf("box component %q is not a number", p)
		}
		vals[i] = v
	}
	return geometry.FaceFrame{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

// readPhoto loads a capture from disk.
func readPhoto(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator's command line
	if err != nil {
		return nil, fmt.Errorf("reading photo %s: %w", path, err)
	}
	return data, nil
}

// outputJSON writes a value as indented JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
