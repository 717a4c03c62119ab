package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/blob"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/service"
	"github.com/element-skin/yggdrasil/pkg/httpx"
)

// maxUploadBytes is a hard transport cap; the configurable texture size
// limit is enforced again in the service.
const maxUploadBytes = 16 << 20

// TexturesHandler serves texture bytes and manages uploads.
type TexturesHandler struct {
	Textures *service.TextureService
}

// bearerToken pulls the access token out of the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}

func (h *TexturesHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	hash, ok := strings.CutSuffix(file, ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := h.Textures.Read(r.Context(), hash)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	_, _ = w.Write(data)
}

func (h *TexturesHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeForbidden(w, "Invalid token.")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		writeIllegalArgument(w, "Malformed request body.")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, r, service.ErrTextureTooLarge)
		return
	}

	err = h.Textures.Upload(r.Context(),
		token,
		r.PathValue("uuid"),
		r.PathValue("type"),
		r.URL.Query().Get("model"),
		data,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *TexturesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeForbidden(w, "Invalid token.")
		return
	}

	if err := h.Textures.Delete(r.Context(), token, r.PathValue("uuid"), r.PathValue("type")); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.NoContent(w)
}
