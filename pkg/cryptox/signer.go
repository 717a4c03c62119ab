package cryptox

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" // #nosec G505 - SHA1withRSA is mandated by the Yggdrasil wire protocol
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Signer produces the detached SHA1withRSA signatures the legacy session
// protocol requires over base64 texture payloads. The key is loaded once at
// process start and is safe for unsynchronized concurrent reads.
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner wraps an already-parsed RSA private key.
func NewSigner(key *rsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// LoadSigner reads a PEM-encoded RSA private key (PKCS#1 or PKCS#8) from
// path. If the file does not exist a fresh 4096-bit key is generated and
// written there, so a first boot is self-provisioning.
func LoadSigner(path string) (*Signer, error) {
	path = filepath.Clean(path)

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return generateSigner(path)
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: read signing key: %w", err)
	}

	key, err := parsePrivateKey(raw)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key}, nil
}

func generateSigner(path string) (*Signer, error) {
	key, err := rsa.GenerateKey(rand.Reader, 4096)
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate signing key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal signing key: %w", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		return nil, fmt.Errorf("cryptox: write signing key: %w", err)
	}

	return &Signer{key: key}, nil
}

func parsePrivateKey(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("cryptox: signing key is not PEM encoded")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptox: parse signing key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("cryptox: signing key is not RSA")
	}
	return key, nil
}

// Sign returns the base64 SHA1withRSA PKCS#1 v1.5 signature over the UTF-8
// bytes of data. SHA-1 here is a protocol compatibility requirement, not a
// cryptographic choice.
func (s *Signer) Sign(data string) (string, error) {
	sum := sha1.Sum([]byte(data)) // #nosec G401
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA1, sum[:])
	if err != nil {
		return "", fmt.Errorf("cryptox: sign payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// PublicKeyPEM returns the PKIX PEM encoding of the signing key's public
// half, which service metadata advertises as signaturePublickey.
func (s *Signer) PublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("cryptox: marshal public key: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// Public exposes the verifying half for tests.
func (s *Signer) Public() *rsa.PublicKey {
	return &s.key.PublicKey
}
