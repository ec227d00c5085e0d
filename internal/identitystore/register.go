package identitystore

import (
	"context"
	"errors"
	"fmt"
)

// registrationRequest is the embedding-path enrollment request body.
type registrationRequest struct {
	EmployeeID string    `json:"employee_id"`
	Embedding  []float32 `json:"embedding"`
}

// Register enrolls or refreshes a worker's stored descriptor. Re-registering
// an already enrolled worker overwrites the previous template; later
// verifications compare against the new one. No retry is performed here.
func (c *Client) Register(ctx context.Context, employeeID string, face FacePayload) (*RegistrationResult, error) {
	if employeeID == "" {
		return nil, errors.New("employee ID is required")
	}
	if face.Empty() {
		return nil, errors.New("face payload is empty")
	}

	if face.IsImage() {
		result, err := doPostMultipartImage[RegistrationResult](ctx, c, "register/image",
			map[string]string{"employee_id": employeeID}, face.image)
		if err != nil {
			return nil, fmt.Errorf("registering %s via image upload: %w", employeeID, err)
		}
		return result, nil
	}

	result, err := doPostJSON[RegistrationResult](ctx, c, "register", registrationRequest{
		EmployeeID: employeeID,
		Embedding:  face.embedding,
	})
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", employeeID, err)
	}
	return result, nil
}
