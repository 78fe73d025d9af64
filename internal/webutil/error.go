package webutil

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/madhur53/library-management-system/internal/domain"
)

// ErrorResponse is the error envelope every service returns. Only a short
// human-readable message crosses the wire, never internals.
type ErrorResponse struct {
	Error string           `json:"error"`
	Code  domain.ErrorCode `json:"code"`
}

// WriteError writes an explicit error response.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code domain.ErrorCode, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, ErrorResponse{Error: message, Code: code})
}

// HandleError maps a domain error onto an HTTP response.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeFor(err)

	var status int
	switch code {
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeConflict:
		status = http.StatusConflict
	case domain.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case domain.CodeRateLimited:
		status = http.StatusTooManyRequests
	case domain.CodeBadRequest:
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	WriteError(w, r, status, code, message)
}
