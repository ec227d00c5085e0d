package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-clock/internal/identitystore"
	"github.com/kozaktomas/face-clock/internal/pipeline"
)

// fakeExtractor returns a fixed embedding for every upload.
type fakeExtractor struct {
	embedding []float32
	err       error
}

func (f *fakeExtractor) Extract(_ context.Context, _ pipeline.Capture) (*pipeline.ExtractResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.ExtractResult{Embedding: f.embedding}, nil
}

func newTestServer(t *testing.T, extractor Extractor, opts ServerOptions) *Server {
	t.Helper()
	svc := NewService(NewMemoryTemplateRepository(), NewMemoryEventRepository(), 4, 0)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 9, 8, 30, 0, 0, time.UTC)
	}
	return NewServer(svc, extractor, opts)
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, nil, ServerOptions{Token: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("health check should not require auth, got %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	server := newTestServer(t, nil, ServerOptions{Token: "secret", Tenant: "acme"})

	cases := []struct {
		name   string
		auth   string
		tenant string
		want   int
	}{
		{"missing token", "", "acme", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", "acme", http.StatusUnauthorized},
		{"not bearer", "Basic secret", "acme", http.StatusUnauthorized},
		{"wrong tenant", "Bearer secret", "evil", http.StatusForbidden},
		{"missing tenant", "Bearer secret", "", http.StatusForbidden},
		{"valid", "Bearer secret", "acme", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			if tc.tenant != "" {
				req.Header.Set("X-Tenant-ID", tc.tenant)
			}
			rec := httptest.NewRecorder()
			server.Router().ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("got status %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestRegisterAndVerifyEndpoints(t *testing.T) {
	server := newTestServer(t, nil, ServerOptions{})

	rec := postJSON(t, server, "/api/v1/register", map[string]any{
		"employee_id":   "emp-001",
		"employee_name": "Jana Novotná",
		"embedding":     []float32{1, 0, 0, 0},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}
	var reg identitystore.RegistrationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatalf("decode registration: %v", err)
	}
	if !reg.Success || reg.EmployeeID != "emp-001" {
		t.Errorf("unexpected registration result: %+v", reg)
	}

	rec = postJSON(t, server, "/api/v1/verify", map[string]any{
		"mode":      "clock_in",
		"embedding": []float32{1, 0, 0, 0},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify returned %d: %s", rec.Code, rec.Body.String())
	}
	var outcome identitystore.VerificationOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if !outcome.Recognized || outcome.EmployeeID != "emp-001" {
		t.Errorf("unexpected outcome: %+v", outcome)
	}

	// Mode mismatch stays a 200 with recognized=false.
	rec = postJSON(t, server, "/api/v1/verify", map[string]any{
		"mode":      "clock_in",
		"embedding": []float32{1, 0, 0, 0},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate clock-in returned %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Recognized || outcome.Message != "already clocked in today" {
		t.Errorf("unexpected outcome for duplicate clock-in: %+v", outcome)
	}
}

func TestEndpointValidation(t *testing.T) {
	server := newTestServer(t, nil, ServerOptions{})

	cases := []struct {
		name string
		path string
		body map[string]any
	}{
		{"register without id", "/api/v1/register", map[string]any{"embedding": []float32{1, 0, 0, 0}}},
		{"register wrong dim", "/api/v1/register", map[string]any{"employee_id": "e", "embedding": []float32{1, 0}}},
		{"verify invalid mode", "/api/v1/verify", map[string]any{"mode": "nap", "embedding": []float32{1, 0, 0, 0}}},
		{"verify empty embedding", "/api/v1/verify", map[string]any{"mode": "clock_in"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, server, tc.path, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("got status %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/register", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("got status %d, want 400", rec.Code)
		}
	})
}

func multipartUpload(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := writer.CreateFormFile("file", "face.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(file); err != nil {
		t.Fatalf("write file: %v", err)
	}
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func TestImageEndpoints(t *testing.T) {
	extractor := &fakeExtractor{embedding: []float32{1, 0, 0, 0}}
	server := newTestServer(t, extractor, ServerOptions{})

	body, contentType := multipartUpload(t, map[string]string{
		"employee_id":   "emp-007",
		"employee_name": "Karel Dvořák",
	}, []byte("fake image bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/register/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("register/image returned %d: %s", rec.Code, rec.Body.String())
	}

	body, contentType = multipartUpload(t, map[string]string{"mode": "clock_in"}, []byte("fake image bytes"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/verify/image", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify/image returned %d: %s", rec.Code, rec.Body.String())
	}
	var outcome identitystore.VerificationOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if !outcome.Recognized || outcome.EmployeeID != "emp-007" {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
}

func TestImageEndpointFailures(t *testing.T) {
	t.Run("no extractor configured", func(t *testing.T) {
		server := newTestServer(t, nil, ServerOptions{})
		body, contentType := multipartUpload(t, map[string]string{"mode": "clock_in"}, []byte("img"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/verify/image", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("got status %d, want 501", rec.Code)
		}
	})

	t.Run("extraction failure", func(t *testing.T) {
		server := newTestServer(t, &fakeExtractor{err: errors.New("no face")}, ServerOptions{})
		body, contentType := multipartUpload(t, map[string]string{"mode": "clock_in"}, []byte("img"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/verify/image", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("got status %d, want 422", rec.Code)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		server := newTestServer(t, &fakeExtractor{embedding: []float32{1, 0, 0, 0}}, ServerOptions{})
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		writer.WriteField("mode", "clock_in")
		writer.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/verify/image", &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("got status %d, want 400", rec.Code)
		}
	})
}

func TestEventsEndpoint(t *testing.T) {
	server := newTestServer(t, nil, ServerOptions{})

	postJSON(t, server, "/api/v1/register", map[string]any{
		"employee_id":   "emp-001",
		"employee_name": "Jana Novotná",
		"embedding":     []float32{1, 0, 0, 0},
	})
	for i := 0; i < 3; i++ {
		mode := "clock_in"
		if i == 1 {
			mode = "clock_out"
		}
		postJSON(t, server, "/api/v1/verify", map[string]any{
			"mode":      mode,
			"embedding": []float32{1, 0, 0, 0},
		})
	}

	get := func(query string) *identitystore.EventPage {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/events"+query, nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("events returned %d: %s", rec.Code, rec.Body.String())
		}
		var page identitystore.EventPage
		if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
			t.Fatalf("decode page: %v", err)
		}
		return &page
	}

	page := get("")
	if page.Total != 4 {
		t.Errorf("expected total 4, got %d", page.Total)
	}
	if page.Limit != 50 {
		t.Errorf("expected default limit, got %d", page.Limit)
	}

	page = get("?limit=2&offset=1")
	if page.Count != 2 || page.Offset != 1 {
		t.Errorf("paging not honored: %+v", page)
	}

	page = get("?q=novotna")
	if page.Total == 0 {
		t.Error("diacritic-insensitive search returned nothing")
	}

	page = get(fmt.Sprintf("?date=%s", "2020-01-01"))
	if page.Total != 0 {
		t.Errorf("expected no events on 2020-01-01, got %d", page.Total)
	}
}
