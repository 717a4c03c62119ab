package cryptox

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewSigner(key)
}

func TestSignVerifiesWithSHA1RSA(t *testing.T) {
	s := testSigner(t)

	payload := "eyJ0aW1lc3RhbXAiOjB9"
	sig, err := s.Sign(payload)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)

	sum := sha1.Sum([]byte(payload))
	require.NoError(t, rsa.VerifyPKCS1v15(s.Public(), crypto.SHA1, sum[:], raw))
}

func TestPublicKeyPEM(t *testing.T) {
	s := testSigner(t)

	pemStr, err := s.PublicKeyPEM()
	require.NoError(t, err)

	block, _ := pem.Decode([]byte(pemStr))
	require.NotNil(t, block)
	require.Equal(t, "PUBLIC KEY", block.Type)

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)
	require.IsType(t, &rsa.PublicKey{}, parsed)
}

func TestLoadSignerGeneratesAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "signing.pem")

	first, err := LoadSigner(path)
	require.NoError(t, err)

	// Key file must now exist and parse back to the same public key.
	_, err = os.Stat(path)
	require.NoError(t, err)

	second, err := LoadSigner(path)
	require.NoError(t, err)
	require.Equal(t, first.Public().N, second.Public().N)
}

func TestLoadSignerRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0600))

	_, err := LoadSigner(path)
	require.Error(t, err)
}
