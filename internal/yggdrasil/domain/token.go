package domain

import "time"

const (
	// TokenTTL is how long an access token stays valid after issue.
	TokenTTL = 15 * 24 * time.Hour

	// TokenRetention is the number of most recent tokens kept per user.
	TokenRetention = 5

	// JoinSessionTTL is the window between a join call and the matching
	// hasJoined check.
	JoinSessionTTL = 30 * time.Second
)

// AccessToken models a stored bearer token. Tokens are never mutated in
// place; a refresh retires the old row and inserts a new one carrying the
// same client token and user.
type AccessToken struct {
	Token       string // opaque random hex
	ClientToken string // client-supplied or generated
	UserID      string
	ProfileID   *string // bound at most once over the token's lineage
	CreatedAt   int64   // epoch millis
}

// Expired reports whether the token has outlived TokenTTL at the given time.
func (t AccessToken) Expired(now time.Time) bool {
	return now.UnixMilli()-t.CreatedAt > TokenTTL.Milliseconds()
}

// JoinSession bridges the two-step join/hasJoined handshake. At most one
// live session exists per server ID.
type JoinSession struct {
	ServerID    string
	AccessToken string
	IP          string
	CreatedAt   int64 // epoch millis
}

// Expired reports whether the session has outlived JoinSessionTTL.
func (s JoinSession) Expired(now time.Time) bool {
	return now.UnixMilli()-s.CreatedAt > JoinSessionTTL.Milliseconds()
}
