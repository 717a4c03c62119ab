package http

import (
	"encoding/json"
	"net/http"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/service"
	"github.com/element-skin/yggdrasil/pkg/httpx"
)

// AuthHandler serves the authserver half of the protocol: authenticate,
// refresh, validate, invalidate and signout.
type AuthHandler struct {
	Engine *service.Engine
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeIllegalArgument(w, "Malformed request body.")
		return false
	}
	return true
}

type authenticateRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	ClientToken string `json:"clientToken"`
	RequestUser bool   `json:"requestUser"`
}

func (h *AuthHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeForbidden(w, "Invalid credentials. Invalid username or password.")
		return
	}

	res, err := h.Engine.Authenticate(r.Context(), req.Username, req.Password, req.ClientToken, req.RequestUser)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

type refreshRequest struct {
	AccessToken     string `json:"accessToken"`
	ClientToken     string `json:"clientToken"`
	RequestUser     bool   `json:"requestUser"`
	SelectedProfile *struct {
		ID string `json:"id"`
	} `json:"selectedProfile"`
}

func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var profileID *string
	if req.SelectedProfile != nil {
		profileID = &req.SelectedProfile.ID
	}

	res, err := h.Engine.Refresh(r.Context(), req.AccessToken, req.ClientToken, profileID, req.RequestUser)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

type tokenRequest struct {
	AccessToken string `json:"accessToken"`
	ClientToken string `json:"clientToken"`
}

func (h *AuthHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Engine.Validate(r.Context(), req.AccessToken, req.ClientToken); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *AuthHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Engine.Invalidate(r.Context(), req.AccessToken); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

type signoutRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) HandleSignout(w http.ResponseWriter, r *http.Request) {
	var req signoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Engine.Signout(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.NoContent(w)
}
