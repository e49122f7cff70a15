package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/signbridge/internal/model"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"InvalidInput", model.NewInvalidInputError("Missing file name"), http.StatusBadRequest, "Missing file name"},
		{"Unauthenticated", model.NewUnauthenticatedError(), http.StatusUnauthorized, "User not found in Redis"},
		{"NotFound", model.NewNotFoundError("User profile not found"), http.StatusNotFound, "User profile not found"},
		{"UpstreamUnavailable", model.NewUpstreamUnavailableError("gemini", errors.New("timeout")), http.StatusBadGateway, "Failed to reach gemini"},
		{"UpstreamError", model.NewUpstreamError("AI did not return any content"), http.StatusBadGateway, "AI did not return any content"},
		{"ラップされたAPIError", fmt.Errorf("wrap: %w", model.NewInvalidInputError("bad")), http.StatusBadRequest, "bad"},
		{"APIError以外は500", errors.New("boom"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/x", nil)

			handleServiceError(w, r, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeBody(t, w); body["error"] != tt.wantMessage {
				t.Errorf("error = %v, want %q", body["error"], tt.wantMessage)
			}
		})
	}
}
