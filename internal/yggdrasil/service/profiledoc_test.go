package service

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
	"github.com/stretchr/testify/require"
)

func decodeTextures(t *testing.T, doc ProfileDocument) texturesPayload {
	t.Helper()
	require.NotEmpty(t, doc.Properties)
	require.Equal(t, "textures", doc.Properties[0].Name)

	raw, err := base64.StdEncoding.DecodeString(doc.Properties[0].Value)
	require.NoError(t, err)

	var payload texturesPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	return payload
}

func TestBuildWithSkinAndCape(t *testing.T) {
	b := testBuilder(t)
	skin := "aaaa"
	cape := "bbbb"
	p := domain.PlayerProfile{
		ID:       "deadbeefdeadbeefdeadbeefdeadbeef",
		Name:     "alice_mc",
		Model:    domain.ModelDefault,
		SkinHash: &skin,
		CapeHash: &cape,
	}

	doc, err := b.Build(p, false)
	require.NoError(t, err)
	require.Equal(t, p.ID, doc.ID)
	require.Equal(t, p.Name, doc.Name)

	payload := decodeTextures(t, doc)
	require.Equal(t, p.ID, payload.ProfileID)
	require.Equal(t, p.Name, payload.ProfileName)
	require.True(t, strings.HasSuffix(payload.Textures["SKIN"].URL, "/static/textures/aaaa.png"))
	require.True(t, strings.HasSuffix(payload.Textures["CAPE"].URL, "/static/textures/bbbb.png"))
	require.Nil(t, payload.Textures["SKIN"].Metadata)

	// Unsigned build carries no signature.
	require.Empty(t, doc.Properties[0].Signature)

	require.Equal(t, "uploadableTextures", doc.Properties[1].Name)
	require.Equal(t, "skin,cape", doc.Properties[1].Value)
}

func TestBuildSlimModelMetadata(t *testing.T) {
	b := testBuilder(t)
	skin := "cccc"
	p := domain.PlayerProfile{
		ID:       "deadbeefdeadbeefdeadbeefdeadbeef",
		Name:     "alice_mc",
		Model:    domain.ModelSlim,
		SkinHash: &skin,
	}

	doc, err := b.Build(p, false)
	require.NoError(t, err)

	payload := decodeTextures(t, doc)
	require.Equal(t, "slim", payload.Textures["SKIN"].Metadata["model"])
	_, hasCape := payload.Textures["CAPE"]
	require.False(t, hasCape)
}

func TestBuildNoTextures(t *testing.T) {
	b := testBuilder(t)
	p := domain.PlayerProfile{
		ID:    "deadbeefdeadbeefdeadbeefdeadbeef",
		Name:  "alice_mc",
		Model: domain.ModelDefault,
	}

	doc, err := b.Build(p, false)
	require.NoError(t, err)

	payload := decodeTextures(t, doc)
	require.Empty(t, payload.Textures)
}

func TestBuildSignatureVerifies(t *testing.T) {
	b := testBuilder(t)
	skin := "aaaa"
	p := domain.PlayerProfile{
		ID:       "deadbeefdeadbeefdeadbeefdeadbeef",
		Name:     "alice_mc",
		Model:    domain.ModelDefault,
		SkinHash: &skin,
	}

	doc, err := b.Build(p, true)
	require.NoError(t, err)
	require.NotEmpty(t, doc.Properties[0].Signature)

	sig, err := base64.StdEncoding.DecodeString(doc.Properties[0].Signature)
	require.NoError(t, err)

	// The signature covers the base64 textures value itself.
	sum := sha1.Sum([]byte(doc.Properties[0].Value))
	require.NoError(t, rsa.VerifyPKCS1v15(b.Signer.Public(), crypto.SHA1, sum[:], sig))
}
