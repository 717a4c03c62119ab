package http

import (
	"net/http"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/store"
	"github.com/element-skin/yggdrasil/pkg/httpx"
)

// SystemHandler serves liveness and readiness probes.
type SystemHandler struct {
	Store store.Store
}

func (h *SystemHandler) HandleLivez(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SystemHandler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
