package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/blob"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/fallback"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/observability"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/service"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/store"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/store/drivers/sqlite"
	"github.com/element-skin/yggdrasil/pkg/cryptox"
	"github.com/element-skin/yggdrasil/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "http-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper.txt"))
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type fixture struct {
	store  store.Store
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer := cryptox.NewSigner(key)

	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)

	fb := fallback.NewService(nil)
	settings := service.NewSettingsService(st)
	builder := service.NewProfileDocBuilder(signer, "https://skins.example.com")
	engine := service.NewEngine(st, service.NewTokenLedger(st), builder, fb, settings)

	router := NewRouter(st, slogx.New(slogx.Config{Level: "error"}), observability.NewMetrics())
	router.Engine = engine
	router.Textures = service.NewTextureService(st, blobs, settings)
	router.Fallback = fb
	router.Signer = signer
	router.Meta = Meta{
		ServerName:  "Test Skin Server",
		Version:     "0.0.1",
		SkinDomains: []string{"textures.test", ".mojang.com"},
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &fixture{store: st, server: srv}
}

func (f *fixture) seedAccount(t *testing.T, email, password, profileID, profileName string) {
	t.Helper()
	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, f.store.Users().CreateUser(context.Background(), domain.User{
		ID:                "user-" + email,
		Email:             email,
		PasswordHash:      hash,
		PreferredLanguage: "en",
	}))
	if profileID != "" {
		require.NoError(t, f.store.Profiles().CreateProfile(context.Background(), domain.PlayerProfile{
			ID:     profileID,
			UserID: "user-" + email,
			Name:   profileName,
			Model:  domain.ModelDefault,
		}))
	}
}

func (f *fixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestAuthenticateEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "alice@example.com", "pw", "deadbeefdeadbeefdeadbeefdeadbeef", "alice_mc")

	resp := f.postJSON(t, "/authserver/authenticate", map[string]any{
		"username":    "alice@example.com",
		"password":    "pw",
		"requestUser": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken     string `json:"accessToken"`
		ClientToken     string `json:"clientToken"`
		SelectedProfile *struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"selectedProfile"`
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.AccessToken)
	require.NotEmpty(t, body.ClientToken)
	require.NotNil(t, body.SelectedProfile)
	require.Equal(t, "alice_mc", body.SelectedProfile.Name)
	require.NotNil(t, body.User)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "alice@example.com", "pw", "", "")

	resp := f.postJSON(t, "/authserver/authenticate", map[string]any{
		"username": "alice@example.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	var body wireError
	decodeBody(t, resp, &body)
	require.Equal(t, "ForbiddenOperationException", body.Error)
	require.NotEmpty(t, body.ErrorMessage)
}

func TestValidateAndInvalidate(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "alice@example.com", "pw", "", "")

	resp := f.postJSON(t, "/authserver/authenticate", map[string]any{
		"username": "alice@example.com", "password": "pw",
	})
	var auth struct {
		AccessToken string `json:"accessToken"`
	}
	decodeBody(t, resp, &auth)

	resp = f.postJSON(t, "/authserver/validate", map[string]any{"accessToken": auth.AccessToken})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = f.postJSON(t, "/authserver/invalidate", map[string]any{"accessToken": auth.AccessToken})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Invalidate is idempotent, but the token no longer validates.
	resp = f.postJSON(t, "/authserver/invalidate", map[string]any{"accessToken": auth.AccessToken})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = f.postJSON(t, "/authserver/validate", map[string]any{"accessToken": auth.AccessToken})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestJoinAndHasJoinedFlow(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "alice@example.com", "pw", "deadbeefdeadbeefdeadbeefdeadbeef", "alice_mc")

	resp := f.postJSON(t, "/authserver/authenticate", map[string]any{
		"username": "alice@example.com", "password": "pw",
	})
	var auth struct {
		AccessToken string `json:"accessToken"`
	}
	decodeBody(t, resp, &auth)

	resp = f.postJSON(t, "/sessionserver/session/minecraft/join", map[string]any{
		"accessToken":     auth.AccessToken,
		"selectedProfile": "deadbeefdeadbeefdeadbeefdeadbeef",
		"serverId":        "server-hash-1",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(f.server.URL + "/sessionserver/session/minecraft/hasJoined?username=alice_mc&serverId=server-hash-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Properties []struct {
			Name      string `json:"name"`
			Signature string `json:"signature"`
		} `json:"properties"`
	}
	decodeBody(t, resp, &doc)
	require.Equal(t, "deadbeefdeadbeefdeadbeefdeadbeef", doc.ID)
	require.Equal(t, "alice_mc", doc.Name)
	require.Equal(t, "textures", doc.Properties[0].Name)
	require.NotEmpty(t, doc.Properties[0].Signature)

	// A different username is a 204, not an error.
	resp, err = http.Get(f.server.URL + "/sessionserver/session/minecraft/hasJoined?username=someone_else&serverId=server-hash-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

func TestProfileLookupRoutes(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "alice@example.com", "pw", "deadbeefdeadbeefdeadbeefdeadbeef", "alice_mc")

	resp, err := http.Get(f.server.URL + "/sessionserver/session/minecraft/profile/deadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Unknown profile with no fallback endpoints is a 204.
	resp, err = http.Get(f.server.URL + "/sessionserver/session/minecraft/profile/00000000000000000000000000000000")
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Name lookup across every alias, including the services API shape.
	for _, path := range []string{
		"/api/users/profiles/minecraft/alice_mc",
		"/users/profiles/minecraft/alice_mc",
		"/api/profiles/minecraft/alice_mc",
		"/minecraft/profile/lookup/name/alice_mc",
	} {
		resp, err = http.Get(f.server.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var stub struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		decodeBody(t, resp, &stub)
		require.Equal(t, "deadbeefdeadbeefdeadbeefdeadbeef", stub.ID)
	}

	resp = f.postJSON(t, "/api/profiles/minecraft", []string{"alice_mc", "ghost"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stubs []struct {
		Name string `json:"name"`
	}
	decodeBody(t, resp, &stubs)
	require.Len(t, stubs, 1)
	require.Equal(t, "alice_mc", stubs[0].Name)
}

func TestMetadataRoute(t *testing.T) {
	f := newFixture(t)
	// The stored site_name wins over the configured meta.
	require.NoError(t, f.store.Settings().Set(context.Background(), "site_name", "Test Skin Server"))

	resp, err := http.Get(f.server.URL + "/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Meta               map[string]any `json:"meta"`
		SkinDomains        []string       `json:"skinDomains"`
		SignaturePublickey string         `json:"signaturePublickey"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, "Test Skin Server", body.Meta["serverName"])
	require.Equal(t, "element-skin", body.Meta["implementationName"])
	require.Equal(t, true, body.Meta["feature.non_email_login"])
	// Own domains lead, overlap with the fallback union appears once.
	require.Equal(t, []string{"textures.test", ".mojang.com", ".minecraft.net"}, body.SkinDomains)
	require.Contains(t, body.SignaturePublickey, "BEGIN PUBLIC KEY")
}

func TestTextureUploadServeDelete(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "alice@example.com", "pw", "deadbeefdeadbeefdeadbeefdeadbeef", "alice_mc")

	resp := f.postJSON(t, "/authserver/authenticate", map[string]any{
		"username": "alice@example.com", "password": "pw",
	})
	var auth struct {
		AccessToken string `json:"accessToken"`
	}
	decodeBody(t, resp, &auth)

	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	img.SetNRGBA(1, 1, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	req, err := http.NewRequest(http.MethodPut,
		f.server.URL+"/api/user/profile/deadbeefdeadbeefdeadbeefdeadbeef/skin?model=slim",
		bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// The profile document now references the uploaded skin.
	p, err := f.store.Profiles().GetProfileByID(context.Background(), "deadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, err)
	require.NotNil(t, p.SkinHash)

	resp, err = http.Get(f.server.URL + "/static/textures/" + *p.SkinHash + ".png")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	served, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.NotEmpty(t, served)

	// Unauthorized upload is rejected.
	req, err = http.NewRequest(http.MethodPut,
		f.server.URL+"/api/user/profile/deadbeefdeadbeefdeadbeefdeadbeef/skin",
		bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	req, err = http.NewRequest(http.MethodDelete,
		f.server.URL+"/api/user/profile/deadbeefdeadbeefdeadbeefdeadbeef/skin", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	p, err = f.store.Profiles().GetProfileByID(context.Background(), "deadbeefdeadbeefdeadbeefdeadbeef")
	require.NoError(t, err)
	require.Nil(t, p.SkinHash)
}

func TestHealthRoutes(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := http.Get(f.server.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestBulkLookupBodyBounded(t *testing.T) {
	f := newFixture(t)

	big, err := json.Marshal([]string{string(bytes.Repeat([]byte("a"), maxBulkBody))})
	require.NoError(t, err)
	resp, err := http.Post(f.server.URL+"/api/profiles/minecraft", "application/json",
		bytes.NewReader(big))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body wireError
	decodeBody(t, resp, &body)
	require.Equal(t, "IllegalArgumentException", body.Error)
}

func TestMalformedBodyIsIllegalArgument(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/authserver/refresh", "application/json",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body wireError
	decodeBody(t, resp, &body)
	require.Equal(t, "IllegalArgumentException", body.Error)
}
