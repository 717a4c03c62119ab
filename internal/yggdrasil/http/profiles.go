package http

import (
	"net/http"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/service"
	"github.com/element-skin/yggdrasil/pkg/httpx"
)

// ProfilesHandler serves the account-API name lookups.
type ProfilesHandler struct {
	Engine *service.Engine
}

func (h *ProfilesHandler) HandleByName(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		httpx.NoContent(w)
		return
	}

	stub, raw, err := h.Engine.ProfileByName(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if stub != nil {
		httpx.WriteJSON(w, http.StatusOK, stub)
		return
	}
	writeRawOrNoContent(w, raw)
}

// HandleLookup serves the services-API name lookup shape.
func (h *ProfilesHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		httpx.NoContent(w)
		return
	}

	stub, raw, err := h.Engine.ProfileLookup(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if stub != nil {
		httpx.WriteJSON(w, http.StatusOK, stub)
		return
	}
	writeRawOrNoContent(w, raw)
}

// maxBulkBody bounds the bulk lookup request body. A full batch of 100
// names fits with plenty of headroom.
const maxBulkBody = 64 << 10

func (h *ProfilesHandler) HandleBulk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBulkBody)

	var names []string
	if !decodeJSON(w, r, &names) {
		return
	}

	stubs, err := h.Engine.ProfilesByNames(r.Context(), names)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stubs)
}
