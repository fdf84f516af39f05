package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/1").
		JSON(map[string]string{"id": "1"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if loc := w.Header().Get("Location"); loc != "/api/transactions/1" {
		t.Errorf("Location = %q", loc)
	}
	if w.Body.String() != `{"id":"1"}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_Raw(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().Raw("text/csv; charset=utf-8", []byte("a,b\n")).Write(w)

	if ct := w.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.String() != "a,b\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().Status(http.StatusNoContent).Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		builder    *JSONResponseBuilder
		wantStatus int
	}{
		{"BadRequest", BadRequestError("bad"), http.StatusBadRequest},
		{"Unprocessable", UnprocessableEntityError("bad"), http.StatusUnprocessableEntity},
		{"Internal", InternalServerError("bad"), http.StatusInternalServerError},
		{"NotFound", NotFoundError("bad"), http.StatusNotFound},
		{"Unavailable", ServiceUnavailableError("bad"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if body["error"] != "bad" {
				t.Errorf("error = %v", body["error"])
			}
		})
	}
}

func TestErrorResponse_ExtraFields(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(http.StatusConflict, "dup", errorBody{"month": "2025-01"}).Write(w)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["month"] != "2025-01" || body["error"] != "dup" {
		t.Errorf("unexpected body %v", body)
	}
}
