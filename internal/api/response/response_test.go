package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CaioWing/clientforge/internal/domain"
)

func TestFromError(t *testing.T) {
	verr := domain.NewValidationError()
	verr.Add("platform", "unsupported platform")

	tests := []struct {
		err  error
		code int
	}{
		{verr, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", domain.ErrInvalidInput), http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrJobSettled, http.StatusConflict},
		{fmt.Errorf("dispatch: %w", domain.ErrUpstream), http.StatusBadGateway},
		{fmt.Errorf("%w: disk full at /data/exe", domain.ErrStorage), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		FromError(rec, tt.err, "request failed")
		if rec.Code != tt.code {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.code, rec.Code)
		}
	}
}

func TestFromError_FieldsAndNoLeaks(t *testing.T) {
	verr := domain.NewValidationError()
	verr.Add("iconfile", "must be a valid image")

	rec := httptest.NewRecorder()
	FromError(rec, verr, "request failed")
	var body ErrorBody
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Fields["iconfile"] != "must be a valid image" {
		t.Fatalf("expected field error, got %+v", body)
	}

	rec = httptest.NewRecorder()
	FromError(rec, fmt.Errorf("%w: open /data/exe/secret: permission denied", domain.ErrStorage), "failed to read file")
	json.NewDecoder(rec.Body).Decode(&body)
	if body.Error != "failed to read file" {
		t.Fatalf("expected generic message, got %q", body.Error)
	}
}
