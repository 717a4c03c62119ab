package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/fallback"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/store"
	"github.com/element-skin/yggdrasil/pkg/cryptox"
	"github.com/element-skin/yggdrasil/pkg/slogx"
)

// ProfileStub is the minimal {id,name} wire shape used in lookups and
// authenticate responses.
type ProfileStub struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserProperty mirrors the user properties list in authenticate responses.
type UserProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UserInfo is returned when the client sets requestUser.
type UserInfo struct {
	ID         string         `json:"id"`
	Properties []UserProperty `json:"properties"`
}

// AuthenticateResult is the authenticate response body.
type AuthenticateResult struct {
	AccessToken       string        `json:"accessToken"`
	ClientToken       string        `json:"clientToken"`
	AvailableProfiles []ProfileStub `json:"availableProfiles"`
	SelectedProfile   *ProfileStub  `json:"selectedProfile,omitempty"`
	User              *UserInfo     `json:"user,omitempty"`
}

// RefreshResult is the refresh response body.
type RefreshResult struct {
	AccessToken     string       `json:"accessToken"`
	ClientToken     string       `json:"clientToken"`
	SelectedProfile *ProfileStub `json:"selectedProfile,omitempty"`
	User            *UserInfo    `json:"user,omitempty"`
}

// Engine implements the protocol operations. Each one resolves locally
// first, then either falls back to remote endpoints or answers "no content".
type Engine struct {
	Store    store.Store
	Ledger   *TokenLedger
	Builder  *ProfileDocBuilder
	Fallback *fallback.Service
	Settings *SettingsService

	now func() time.Time
}

func NewEngine(st store.Store, ledger *TokenLedger, builder *ProfileDocBuilder, fb *fallback.Service, settings *SettingsService) *Engine {
	return &Engine{
		Store:    st,
		Ledger:   ledger,
		Builder:  builder,
		Fallback: fb,
		Settings: settings,
		now:      time.Now,
	}
}

// resolveAccount finds the account for a login identifier. Email is the
// primary form; a bare profile name is accepted too (non-email login).
func (e *Engine) resolveAccount(ctx context.Context, username string) (domain.User, error) {
	u, err := e.Store.Users().GetUserByEmail(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}

	p, err := e.Store.Profiles().GetProfileByName(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	return e.Store.Users().GetUserByID(ctx, p.UserID)
}

func (e *Engine) verifyCredentials(ctx context.Context, username, password string) (domain.User, error) {
	log := slogx.FromContext(ctx)

	u, err := e.resolveAccount(ctx, username)
	if err != nil {
		return domain.User{}, err
	}
	if cryptox.VerifyPassword(password, u.PasswordHash) != nil {
		log.Info("credential verification failed", slog.String("username", username))
		return domain.User{}, ErrInvalidCredentials
	}
	if u.Banned(e.now()) {
		return domain.User{}, ErrBanned
	}
	return u, nil
}

func stubOf(p domain.PlayerProfile) ProfileStub {
	return ProfileStub{ID: p.ID, Name: p.Name}
}

func userInfoOf(u domain.User) *UserInfo {
	info := &UserInfo{ID: u.ID, Properties: []UserProperty{}}
	if u.PreferredLanguage != "" {
		info.Properties = append(info.Properties, UserProperty{
			Name:  "preferredLanguage",
			Value: u.PreferredLanguage,
		})
	}
	return info
}

// Authenticate verifies credentials and issues a fresh token. When the
// account owns exactly one profile it is auto-selected and bound to the
// token at issue time.
func (e *Engine) Authenticate(ctx context.Context, username, password, clientToken string, requestUser bool) (AuthenticateResult, error) {
	u, err := e.verifyCredentials(ctx, username, password)
	if err != nil {
		return AuthenticateResult{}, err
	}

	profiles, err := e.Store.Profiles().ListProfilesByUser(ctx, u.ID)
	if err != nil {
		return AuthenticateResult{}, err
	}

	var boundProfile *string
	var selected *ProfileStub
	if len(profiles) == 1 {
		boundProfile = &profiles[0].ID
		s := stubOf(profiles[0])
		selected = &s
	}

	token, err := e.Ledger.Issue(ctx, u.ID, boundProfile, clientToken)
	if err != nil {
		return AuthenticateResult{}, err
	}

	result := AuthenticateResult{
		AccessToken:       token.Token,
		ClientToken:       token.ClientToken,
		AvailableProfiles: make([]ProfileStub, 0, len(profiles)),
		SelectedProfile:   selected,
	}
	for _, p := range profiles {
		result.AvailableProfiles = append(result.AvailableProfiles, stubOf(p))
	}
	if requestUser {
		result.User = userInfoOf(u)
	}
	return result, nil
}

// Refresh rotates a token, optionally binding a profile to its lineage.
func (e *Engine) Refresh(ctx context.Context, accessToken, clientToken string, selectedProfileID *string, requestUser bool) (RefreshResult, error) {
	if selectedProfileID != nil {
		canonical := cryptox.CanonicalUUID(*selectedProfileID)
		selectedProfileID = &canonical
	}

	token, err := e.Ledger.Refresh(ctx, accessToken, clientToken, selectedProfileID)
	if err != nil {
		return RefreshResult{}, err
	}

	result := RefreshResult{
		AccessToken: token.Token,
		ClientToken: token.ClientToken,
	}
	if token.ProfileID != nil {
		p, err := e.Store.Profiles().GetProfileByID(ctx, *token.ProfileID)
		if err == nil {
			s := stubOf(p)
			result.SelectedProfile = &s
		} else if !errors.Is(err, store.ErrNotFound) {
			return RefreshResult{}, err
		}
	}
	if requestUser {
		u, err := e.Store.Users().GetUserByID(ctx, token.UserID)
		if err != nil {
			return RefreshResult{}, err
		}
		result.User = userInfoOf(u)
	}
	return result, nil
}

// Validate checks a token. Success carries no payload.
func (e *Engine) Validate(ctx context.Context, accessToken, clientToken string) error {
	return e.Ledger.Validate(ctx, accessToken, clientToken)
}

// Invalidate revokes one token, idempotently.
func (e *Engine) Invalidate(ctx context.Context, accessToken string) error {
	return e.Ledger.Invalidate(ctx, accessToken)
}

// Signout re-verifies credentials and revokes every token the account owns.
func (e *Engine) Signout(ctx context.Context, username, password string) error {
	u, err := e.verifyCredentials(ctx, username, password)
	if err != nil {
		return err
	}
	return e.Ledger.RevokeAll(ctx, u.ID)
}

// Join records a client's intent to join a multiplayer server.
func (e *Engine) Join(ctx context.Context, accessToken, selectedProfile, serverID, clientIP string) error {
	return e.Ledger.OpenJoinSession(ctx, accessToken, cryptox.CanonicalUUID(selectedProfile), serverID, clientIP)
}

// HasJoined closes the join handshake. It returns a locally built document,
// a raw remote payload, or neither ("no content").
func (e *Engine) HasJoined(ctx context.Context, username, serverID, ip string) (*ProfileDocument, []byte, error) {
	profile, err := e.Ledger.ResolveJoinSession(ctx, serverID, username)
	if err != nil {
		return nil, nil, err
	}
	if profile != nil {
		doc, err := e.Builder.Build(*profile, true)
		if err != nil {
			return nil, nil, err
		}
		return &doc, nil, nil
	}

	enabled, err := e.Settings.FallbackHasJoinedEnabled(ctx)
	if err != nil || !enabled {
		return nil, nil, err
	}

	// The allow-list gate short-circuits before any outbound request. This
	// is an authorization boundary, not a lookup miss.
	gated, err := e.whitelistBlocks(ctx, username)
	if err != nil || gated {
		return nil, nil, err
	}

	strategy, err := e.Settings.FallbackStrategy(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, e.Fallback.HasJoined(ctx, strategy, username, serverID, ip), nil
}

func (e *Engine) whitelistBlocks(ctx context.Context, username string) (bool, error) {
	enabled, err := e.Settings.WhitelistEnabled(ctx)
	if err != nil {
		return false, err
	}
	if !enabled {
		return false, nil
	}
	listed, err := e.Store.Whitelist().Contains(ctx, username)
	if err != nil {
		return false, err
	}
	if !listed {
		slogx.FromContext(ctx).Info("allow-list blocked outbound lookup", slog.String("username", username))
	}
	return !listed, nil
}

// ProfileByID serves a profile document by undashed uuid, local first.
func (e *Engine) ProfileByID(ctx context.Context, id string, unsigned bool) (*ProfileDocument, []byte, error) {
	id = cryptox.CanonicalUUID(id)

	p, err := e.Store.Profiles().GetProfileByID(ctx, id)
	if err == nil {
		doc, err := e.Builder.Build(p, !unsigned)
		if err != nil {
			return nil, nil, err
		}
		return &doc, nil, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, err
	}

	enabled, err := e.Settings.FallbackProfileEnabled(ctx)
	if err != nil || !enabled {
		return nil, nil, err
	}
	strategy, err := e.Settings.FallbackStrategy(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, e.Fallback.ProfileByID(ctx, strategy, id, unsigned), nil
}

// ProfileByName resolves a player name to an {id,name} stub, local first.
func (e *Engine) ProfileByName(ctx context.Context, name string) (*ProfileStub, []byte, error) {
	p, err := e.Store.Profiles().GetProfileByName(ctx, name)
	if err == nil {
		s := stubOf(p)
		return &s, nil, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, err
	}

	enabled, err := e.Settings.FallbackProfileEnabled(ctx)
	if err != nil || !enabled {
		return nil, nil, err
	}
	strategy, err := e.Settings.FallbackStrategy(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, e.Fallback.ProfileByName(ctx, strategy, name), nil
}

// ProfileLookup resolves a player name through the services API shape,
// local first, then each endpoint's services URL.
func (e *Engine) ProfileLookup(ctx context.Context, name string) (*ProfileStub, []byte, error) {
	p, err := e.Store.Profiles().GetProfileByName(ctx, name)
	if err == nil {
		s := stubOf(p)
		return &s, nil, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, err
	}

	enabled, err := e.Settings.FallbackProfileEnabled(ctx)
	if err != nil || !enabled {
		return nil, nil, err
	}
	strategy, err := e.Settings.FallbackStrategy(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nil, e.Fallback.ProfileLookup(ctx, strategy, name), nil
}

// bulkLookupLimit caps how many names a single bulk request resolves.
const bulkLookupLimit = 100

// ProfilesByNames resolves a batch of names. Local matches come first;
// names unknown locally are resolved through the fallback endpoints when
// enabled. At most bulkLookupLimit distinct names are considered, the
// rest are dropped.
func (e *Engine) ProfilesByNames(ctx context.Context, names []string) ([]ProfileStub, error) {
	out := make([]ProfileStub, 0, len(names))
	var missing []string
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		if len(seen) == bulkLookupLimit {
			break
		}
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		p, err := e.Store.Profiles().GetProfileByName(ctx, name)
		if err == nil {
			out = append(out, stubOf(p))
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		missing = append(missing, name)
	}

	if len(missing) == 0 {
		return out, nil
	}
	enabled, err := e.Settings.FallbackProfileEnabled(ctx)
	if err != nil || !enabled {
		return out, err
	}
	strategy, err := e.Settings.FallbackStrategy(ctx)
	if err != nil {
		return nil, err
	}

	raw := e.Fallback.ProfilesByNames(ctx, strategy, missing)
	if raw == nil {
		return out, nil
	}
	var remote []ProfileStub
	if err := json.Unmarshal(raw, &remote); err != nil {
		slogx.FromContext(ctx).Warn("discarding malformed bulk lookup payload", slog.Any("error", err))
		return out, nil
	}
	return append(out, remote...), nil
}
