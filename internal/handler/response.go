// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/signbridge/internal/middleware"
	"github.com/hitoshi/signbridge/internal/model"
)

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	middleware.WriteJSON(w, statusCode, body)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIError以外は500とし、詳細はログにのみ残す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		status := mapAPIErrorToHTTPStatus(apiErr)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "upstream request failed",
				slog.String("path", r.URL.Path),
				slog.String("error", apiErr.Error()),
			)
		}
		middleware.WriteError(w, status, apiErr.Message)
		return
	}

	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorの分類からHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Kind {
	case model.ErrKindInvalidInput:
		return http.StatusBadRequest
	case model.ErrKindUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrKindNotFound:
		return http.StatusNotFound
	case model.ErrKindUpstreamUnavailable, model.ErrKindUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// identityOrUnauthorized はセッションのIdentityを返す。ない場合は401を書き込みfalseを返す。
func identityOrUnauthorized(w http.ResponseWriter, r *http.Request) (*model.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, model.NewUnauthenticatedError().Message)
		return nil, false
	}
	return identity, true
}
