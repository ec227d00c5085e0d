package identitystore

import (
	"context"
	"errors"
	"fmt"
)

// verificationRequest is the embedding-path verification request body.
type verificationRequest struct {
	Mode      Mode      `json:"mode"`
	Embedding []float32 `json:"embedding"`
}

// Verify attempts to recognize a live capture as an enrolled worker and
// authorize the given attendance transition. The store appends exactly one
// log entry per call, recognized or not. A "not recognized" or "wrong mode
// for current state" decision comes back as a normal outcome with
// Recognized=false; only transport and auth failures return an error.
func (c *Client) Verify(ctx context.Context, mode Mode, face FacePayload) (*VerificationOutcome, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid attendance mode %q", mode)
	}
	if face.Empty() {
		return nil, errors.New("face payload is empty")
	}

	if face.IsImage() {
		outcome, err := doPostMultipartImage[VerificationOutcome](ctx, c, "verify/image",
			map[string]string{"mode": string(mode)}, face.image)
		if err != nil {
			return nil, fmt.Errorf("verifying via image upload: %w", err)
		}
		return outcome, nil
	}

	outcome, err := doPostJSON[VerificationOutcome](ctx, c, "verify", verificationRequest{
		Mode:      mode,
		Embedding: face.embedding,
	})
	if err != nil {
		return nil, fmt.Errorf("verifying %s: %w", mode, err)
	}
	return outcome, nil
}
