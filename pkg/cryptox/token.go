package cryptox

import (
	"strings"

	"github.com/google/uuid"
)

// NewOpaqueToken creates an opaque bearer token in the undashed UUID hex form
// the legacy Yggdrasil clients expect (32 lowercase hex characters).
func NewOpaqueToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CanonicalUUID strips dashes and lowercases a client-supplied UUID so that
// "069a79f4-44e9-4726-a5be-fca90e38aaf5" and its undashed form address the
// same record. Inputs that are not UUID-shaped are returned unchanged apart
// from the dash stripping; lookups on them simply miss.
func CanonicalUUID(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
}
