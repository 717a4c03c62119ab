package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"os"
	"path/filepath"
	"testing"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/fallback"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/store"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/store/drivers/sqlite"
	"github.com/element-skin/yggdrasil/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper.txt"))
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedUser(t *testing.T, st store.Store, id, email, password string) domain.User {
	t.Helper()
	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)
	u := domain.User{
		ID:                id,
		Email:             email,
		PasswordHash:      hash,
		PreferredLanguage: "en",
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func seedProfile(t *testing.T, st store.Store, profileID, userID, name string) domain.PlayerProfile {
	t.Helper()
	p := domain.PlayerProfile{
		ID:     profileID,
		UserID: userID,
		Name:   name,
		Model:  domain.ModelDefault,
	}
	require.NoError(t, st.Profiles().CreateProfile(context.Background(), p))
	return p
}

func testBuilder(t *testing.T) *ProfileDocBuilder {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewProfileDocBuilder(cryptox.NewSigner(key), "https://skins.example.com")
}

func testEngine(t *testing.T, st store.Store, endpoints []domain.FallbackEndpoint) *Engine {
	t.Helper()
	return NewEngine(
		st,
		NewTokenLedger(st),
		testBuilder(t),
		fallback.NewService(endpoints),
		NewSettingsService(st),
	)
}
