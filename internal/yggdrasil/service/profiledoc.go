package service

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
	"github.com/element-skin/yggdrasil/pkg/cryptox"
)

// ProfileProperty is one entry of a profile document's properties list.
type ProfileProperty struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// ProfileDocument is the wire shape clients expect from hasJoined and the
// profile lookup endpoints. Field names are fixed by the protocol.
type ProfileDocument struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Properties []ProfileProperty `json:"properties"`
}

type textureRef struct {
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type texturesPayload struct {
	Timestamp   int64                 `json:"timestamp"`
	ProfileID   string                `json:"profileId"`
	ProfileName string                `json:"profileName"`
	Textures    map[string]textureRef `json:"textures"`
}

// ProfileDocBuilder assembles signed profile documents. It has no side
// effects; the only nondeterminism is the embedded timestamp.
type ProfileDocBuilder struct {
	Signer  *cryptox.Signer
	BaseURL string // public base URL textures are served under

	now func() time.Time
}

func NewProfileDocBuilder(signer *cryptox.Signer, baseURL string) *ProfileDocBuilder {
	return &ProfileDocBuilder{
		Signer:  signer,
		BaseURL: baseURL,
		now:     time.Now,
	}
}

func (b *ProfileDocBuilder) textureURL(hash string) string {
	return fmt.Sprintf("%s/static/textures/%s.png", b.BaseURL, hash)
}

// Build produces the profile document for a profile record. When sign is
// set, the textures property carries a detached signature over its base64
// value.
func (b *ProfileDocBuilder) Build(p domain.PlayerProfile, sign bool) (ProfileDocument, error) {
	payload := texturesPayload{
		Timestamp:   b.now().UnixMilli(),
		ProfileID:   p.ID,
		ProfileName: p.Name,
		Textures:    map[string]textureRef{},
	}

	if p.SkinHash != nil {
		skin := textureRef{URL: b.textureURL(*p.SkinHash)}
		if p.Model == domain.ModelSlim {
			skin.Metadata = map[string]string{"model": "slim"}
		}
		payload.Textures["SKIN"] = skin
	}
	if p.CapeHash != nil {
		payload.Textures["CAPE"] = textureRef{URL: b.textureURL(*p.CapeHash)}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return ProfileDocument{}, err
	}
	value := base64.StdEncoding.EncodeToString(raw)

	textures := ProfileProperty{Name: "textures", Value: value}
	if sign {
		sig, err := b.Signer.Sign(value)
		if err != nil {
			return ProfileDocument{}, err
		}
		textures.Signature = sig
	}

	return ProfileDocument{
		ID:   p.ID,
		Name: p.Name,
		Properties: []ProfileProperty{
			textures,
			{Name: "uploadableTextures", Value: "skin,cape"},
		},
	}, nil
}
