package store

import (
	"context"
	"errors"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	Profiles() Profiles
	Tokens() Tokens
	Sessions() Sessions
	Settings() Settings
	Whitelist() Whitelist

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by login email, case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// SetBannedUntil updates the ban expiry (nil lifts the ban).
	SetBannedUntil(ctx context.Context, userID string, until *int64) error
}

type Profiles interface {
	// GetProfileByID returns a profile by undashed uuid.
	GetProfileByID(ctx context.Context, id string) (domain.PlayerProfile, error)

	// GetProfileByName looks a profile up by player name, case-insensitively.
	GetProfileByName(ctx context.Context, name string) (domain.PlayerProfile, error)

	// ListProfilesByUser returns all profiles owned by a user, oldest first.
	ListProfilesByUser(ctx context.Context, userID string) ([]domain.PlayerProfile, error)

	// CreateProfile inserts a new profile.
	CreateProfile(ctx context.Context, p domain.PlayerProfile) error

	// SetSkin updates the skin reference and model (nil hash clears the skin).
	SetSkin(ctx context.Context, profileID string, hash *string, model domain.TextureModel) error

	// SetCape updates the cape reference (nil hash clears the cape).
	SetCape(ctx context.Context, profileID string, hash *string) error
}

type Tokens interface {
	// CreateToken stores a new access token record.
	CreateToken(ctx context.Context, t domain.AccessToken) error

	// GetToken returns the record for an access token value.
	GetToken(ctx context.Context, accessToken string) (domain.AccessToken, error)

	// DeleteToken removes a token. Deleting a missing token is not an error.
	DeleteToken(ctx context.Context, accessToken string) error

	// DeleteTokensByUser removes every token owned by the user.
	DeleteTokensByUser(ctx context.Context, userID string) error

	// DeleteExpiredTokens removes the user's tokens created before cutoff
	// (epoch millis).
	DeleteExpiredTokens(ctx context.Context, userID string, cutoff int64) error

	// DeleteAllExpiredTokens removes every token created before cutoff,
	// regardless of owner. Used by the background sweep.
	DeleteAllExpiredTokens(ctx context.Context, cutoff int64) error

	// DeleteSurplusTokens keeps only the `keep` most recently created tokens
	// for the user and removes the rest.
	DeleteSurplusTokens(ctx context.Context, userID string, keep int) error

	// CountTokensByUser returns how many tokens the user currently holds.
	CountTokensByUser(ctx context.Context, userID string) (int, error)
}

type Sessions interface {
	// PutSession stores a join session, replacing any existing session for
	// the same server id.
	PutSession(ctx context.Context, s domain.JoinSession) error

	// GetSession returns the live session for a server id.
	GetSession(ctx context.Context, serverID string) (domain.JoinSession, error)

	// DeleteSession removes a session. Missing sessions are not an error.
	DeleteSession(ctx context.Context, serverID string) error

	// DeleteExpiredSessions removes sessions created before cutoff (epoch
	// millis).
	DeleteExpiredSessions(ctx context.Context, cutoff int64) error
}

type Settings interface {
	// Get returns the value for a settings key.
	Get(ctx context.Context, key string) (string, error)

	// Set upserts a settings key.
	Set(ctx context.Context, key, value string) error
}

type Whitelist interface {
	// Contains reports whether a player name is on the allow-list,
	// case-insensitively.
	Contains(ctx context.Context, name string) (bool, error)

	// Add puts a player name on the allow-list.
	Add(ctx context.Context, name string) error

	// Remove takes a player name off the allow-list.
	Remove(ctx context.Context, name string) error
}
