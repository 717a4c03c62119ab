package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/service"
	"github.com/element-skin/yggdrasil/pkg/httpx"
	"github.com/element-skin/yggdrasil/pkg/slogx"
)

// The protocol knows exactly two client-facing error kinds.
const (
	kindForbidden       = "ForbiddenOperationException"
	kindIllegalArgument = "IllegalArgumentException"
)

type wireError struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"errorMessage"`
}

func writeForbidden(w http.ResponseWriter, message string) {
	httpx.WriteJSON(w, http.StatusForbidden, wireError{
		Error:        kindForbidden,
		ErrorMessage: message,
	})
}

func writeIllegalArgument(w http.ResponseWriter, message string) {
	httpx.WriteJSON(w, http.StatusBadRequest, wireError{
		Error:        kindIllegalArgument,
		ErrorMessage: message,
	})
}

// writeError maps service errors onto the wire error shapes. Anything not
// recognized is an internal failure and carries no detail to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeForbidden(w, "Invalid credentials. Invalid username or password.")
	case errors.Is(err, service.ErrInvalidToken):
		writeForbidden(w, "Invalid token.")
	case errors.Is(err, service.ErrBanned):
		writeForbidden(w, "Invalid credentials. Account access is restricted.")
	case errors.Is(err, service.ErrNotOwned):
		writeForbidden(w, "Access denied.")
	case errors.Is(err, service.ErrProfileAssigned):
		writeIllegalArgument(w, "Access token already has a profile assigned.")
	case errors.Is(err, service.ErrTextureTooLarge):
		writeIllegalArgument(w, "The uploaded texture exceeds the size limit.")
	case errors.Is(err, service.ErrInvalidImage):
		writeIllegalArgument(w, "The uploaded image is not a valid texture.")
	case errors.Is(err, service.ErrTextureProcessing):
		writeIllegalArgument(w, "Failed to process texture.")
	default:
		slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
		httpx.WriteJSON(w, http.StatusInternalServerError, wireError{
			Error:        "InternalServerError",
			ErrorMessage: "An unexpected error occurred.",
		})
	}
}
