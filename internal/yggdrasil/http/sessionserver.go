package http

import (
	"net/http"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/service"
	"github.com/element-skin/yggdrasil/pkg/httpx"
)

// SessionHandler serves the sessionserver half of the protocol: the join
// handshake and profile documents.
type SessionHandler struct {
	Engine *service.Engine
}

type joinRequest struct {
	AccessToken     string `json:"accessToken"`
	SelectedProfile string `json:"selectedProfile"`
	ServerID        string `json:"serverId"`
}

func (h *SessionHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ServerID == "" {
		writeIllegalArgument(w, "Missing serverId.")
		return
	}

	if err := h.Engine.Join(r.Context(), req.AccessToken, req.SelectedProfile, req.ServerID, httpx.IPKeyExtractor(r)); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

// writeRawOrNoContent passes a remote payload through unmodified, or
// answers an empty 204 when there is nothing to say.
func writeRawOrNoContent(w http.ResponseWriter, raw []byte) {
	if raw != nil {
		httpx.NoCache(w)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
		return
	}
	httpx.NoContent(w)
}

func (h *SessionHandler) HandleHasJoined(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	username := q.Get("username")
	serverID := q.Get("serverId")
	if username == "" || serverID == "" {
		httpx.NoContent(w)
		return
	}

	doc, raw, err := h.Engine.HasJoined(r.Context(), username, serverID, q.Get("ip"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if doc != nil {
		httpx.WriteJSON(w, http.StatusOK, doc)
		return
	}
	writeRawOrNoContent(w, raw)
}

func (h *SessionHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("uuid")
	unsigned := r.URL.Query().Get("unsigned") != "false"

	doc, raw, err := h.Engine.ProfileByID(r.Context(), id, unsigned)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if doc != nil {
		httpx.WriteJSON(w, http.StatusOK, doc)
		return
	}
	writeRawOrNoContent(w, raw)
}
