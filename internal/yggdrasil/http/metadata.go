package http

import (
	"net/http"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/fallback"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/service"
	"github.com/element-skin/yggdrasil/pkg/cryptox"
	"github.com/element-skin/yggdrasil/pkg/httpx"
)

// Meta is the service identity advertised on the index route.
type Meta struct {
	ServerName   string
	Version      string
	HomepageLink string
	RegisterLink string
	SkinDomains  []string // own domains, advertised ahead of fallback ones
}

// MetadataHandler serves the index document clients use to discover the
// service and its signature key. The stored site_name/site_url settings
// override the configured meta when present.
type MetadataHandler struct {
	Meta     Meta
	Signer   *cryptox.Signer
	Fallback *fallback.Service
	Settings *service.SettingsService
}

func (h *MetadataHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	publicKey, err := h.Signer.PublicKeyPEM()
	if err != nil {
		writeError(w, r, err)
		return
	}

	serverName := h.Meta.ServerName
	homepage := h.Meta.HomepageLink
	if h.Settings != nil {
		if v, err := h.Settings.SiteName(r.Context(), serverName); err == nil {
			serverName = v
		}
		if v, err := h.Settings.SiteURL(r.Context(), homepage); err == nil {
			homepage = v
		}
	}

	links := map[string]string{}
	if homepage != "" {
		links["homepage"] = homepage
	}
	if h.Meta.RegisterLink != "" {
		links["register"] = h.Meta.RegisterLink
	}

	domains := fallback.UnionDomains(h.Meta.SkinDomains, h.Fallback.SkinDomains())

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"meta": map[string]any{
			"serverName":              serverName,
			"implementationName":      "element-skin",
			"implementationVersion":   h.Meta.Version,
			"links":                   links,
			"feature.non_email_login": true,
		},
		"skinDomains":        domains,
		"signaturePublickey": publicKey,
	})
}
