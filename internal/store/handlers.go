package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/kozaktomas/face-clock/internal/geometry"
	"github.com/kozaktomas/face-clock/internal/identitystore"
	"github.com/kozaktomas/face-clock/internal/pipeline"
)

// maxUploadBytes caps image uploads on the multipart endpoints.
const maxUploadBytes = 10 << 20

// Extractor produces an embedding from an uploaded photo for the
// server-side extraction endpoints. Satisfied by *pipeline.Pipeline.
type Extractor interface {
	Extract(ctx context.Context, capture pipeline.Capture) (*pipeline.ExtractResult, error)
}

// Handler serves the identity store HTTP API.
type Handler struct {
	service   *Service
	extractor Extractor // nil disables the image-upload endpoints
}

// NewHandler creates the API handler. Pass a nil extractor when the
// deployment only accepts precomputed embeddings.
func NewHandler(service *Service, extractor Extractor) *Handler {
	return &Handler{service: service, extractor: extractor}
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service failures: caller mistakes become 4xx with
// the reason, everything else is a 500.
func respondServiceError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		respondError(w, http.StatusBadRequest, reqErr.Reason)
		return
	}
	respondError(w, http.StatusInternalServerError, "internal error")
}

// HealthCheck handles the health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	EmployeeID   string    `json:"employee_id"`
	EmployeeName string    `json:"employee_name,omitempty"`
	Embedding    []float32 `json:"embedding"`
}

// Register handles embedding-path enrollment.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Register(r.Context(), req.EmployeeID, req.EmployeeName, req.Embedding, "terminal")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type verifyRequest struct {
	Mode      identitystore.Mode `json:"mode"`
	Embedding []float32          `json:"embedding"`
}

// Verify handles embedding-path verification. Rejections and mode
// mismatches are 200 responses with recognized=false.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.service.Verify(r.Context(), req.Mode, req.Embedding, "terminal")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

// RegisterImage handles the multipart enrollment variant: the embedding is
// extracted server-side from the uploaded photo.
func (h *Handler) RegisterImage(w http.ResponseWriter, r *http.Request) {
	photo, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	embedding, ok := h.extractUpload(w, r, photo)
	if !ok {
		return
	}

	result, err := h.service.Register(r.Context(), r.FormValue("employee_id"), r.FormValue("employee_name"), embedding, "upload")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// VerifyImage handles the multipart verification variant.
func (h *Handler) VerifyImage(w http.ResponseWriter, r *http.Request) {
	photo, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	embedding, ok := h.extractUpload(w, r, photo)
	if !ok {
		return
	}

	outcome, err := h.service.Verify(r.Context(), identitystore.Mode(r.FormValue("mode")), embedding, "upload")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

// Events handles the attendance log read endpoint.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := EventFilter{
		Date:   query.Get("date"),
		Search: query.Get("q"),
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil {
		filter.Offset = offset
	}

	page, err := h.service.Events(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// readUpload pulls the image file out of a multipart request.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if h.extractor == nil {
		respondError(w, http.StatusNotImplemented, "server-side extraction is not configured")
		return nil, false
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart request")
		return nil, false
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file upload")
		return nil, false
	}
	defer file.Close()

	photo, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read file upload")
		return nil, false
	}
	return photo, true
}

// extractUpload runs the embedding pipeline over an uploaded photo. There is
// no detector on the server, so the zero frame routes every upload through
// the center-crop fallback.
func (h *Handler) extractUpload(w http.ResponseWriter, r *http.Request, photo []byte) ([]float32, bool) {
	result, err := h.extractor.Extract(r.Context(), pipeline.Capture{
		Photo: photo,
		Frame: geometry.FaceFrame{},
	})
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "could not extract embedding from upload")
		return nil, false
	}
	return result.Embedding, true
}
