package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
	"github.com/element-skin/yggdrasil/internal/yggdrasil/store"
	"github.com/element-skin/yggdrasil/pkg/cryptox"
	"github.com/element-skin/yggdrasil/pkg/slogx"
)

// TokenLedger owns the access token and join session lifecycle: issuing,
// refreshing, validating, revoking and pruning tokens, plus the short-lived
// join sessions used by the hasJoined handshake.
type TokenLedger struct {
	Store store.Store

	now func() time.Time
}

func NewTokenLedger(st store.Store) *TokenLedger {
	return &TokenLedger{
		Store: st,
		now:   time.Now,
	}
}

// sweep enforces the retention rules for a user after any token mutation:
// drop tokens older than the TTL, then keep only the most recent few.
func (l *TokenLedger) sweep(ctx context.Context, tx store.Tx, userID string, now time.Time) error {
	cutoff := now.Add(-domain.TokenTTL).UnixMilli()
	if err := tx.Tokens().DeleteExpiredTokens(ctx, userID, cutoff); err != nil {
		return err
	}
	return tx.Tokens().DeleteSurplusTokens(ctx, userID, domain.TokenRetention)
}

// Issue creates and persists a fresh access token for the user. When
// clientToken is empty a new one is generated.
func (l *TokenLedger) Issue(ctx context.Context, userID string, profileID *string, clientToken string) (domain.AccessToken, error) {
	now := l.now()
	if clientToken == "" {
		clientToken = cryptox.NewOpaqueToken()
	}

	token := domain.AccessToken{
		Token:       cryptox.NewOpaqueToken(),
		ClientToken: clientToken,
		UserID:      userID,
		ProfileID:   profileID,
		CreatedAt:   now.UnixMilli(),
	}

	err := l.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tokens().CreateToken(ctx, token); err != nil {
			return err
		}
		return l.sweep(ctx, tx, userID, now)
	})
	if err != nil {
		return domain.AccessToken{}, err
	}
	return token, nil
}

// Refresh retires an existing token and issues a replacement carrying the
// same client token and user. A profile may be bound here, but only if the
// token's lineage has never had one, and only to a profile the user owns.
func (l *TokenLedger) Refresh(ctx context.Context, accessToken, clientToken string, requestedProfileID *string) (domain.AccessToken, error) {
	now := l.now()
	var issued domain.AccessToken

	err := l.Store.WithTx(ctx, func(tx store.Tx) error {
		old, err := tx.Tokens().GetToken(ctx, accessToken)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		if clientToken != "" && clientToken != old.ClientToken {
			return ErrInvalidToken
		}

		profileID := old.ProfileID
		if requestedProfileID != nil {
			if old.ProfileID != nil {
				return ErrProfileAssigned
			}
			p, err := tx.Profiles().GetProfileByID(ctx, *requestedProfileID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrNotOwned
				}
				return err
			}
			if p.UserID != old.UserID {
				return ErrNotOwned
			}
			profileID = &p.ID
		}

		if err := tx.Tokens().DeleteToken(ctx, old.Token); err != nil {
			return err
		}

		issued = domain.AccessToken{
			Token:       cryptox.NewOpaqueToken(),
			ClientToken: old.ClientToken,
			UserID:      old.UserID,
			ProfileID:   profileID,
			CreatedAt:   now.UnixMilli(),
		}
		if err := tx.Tokens().CreateToken(ctx, issued); err != nil {
			return err
		}
		return l.sweep(ctx, tx, old.UserID, now)
	})
	if err != nil {
		return domain.AccessToken{}, err
	}
	return issued, nil
}

// Validate checks that a token exists, matches the supplied client token if
// any, and has not expired. Success has no payload.
func (l *TokenLedger) Validate(ctx context.Context, accessToken, clientToken string) error {
	t, err := l.Store.Tokens().GetToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if clientToken != "" && clientToken != t.ClientToken {
		return ErrInvalidToken
	}
	if t.Expired(l.now()) {
		return ErrInvalidToken
	}
	return nil
}

// Invalidate deletes a token. It is idempotent and never fails on a missing
// token.
func (l *TokenLedger) Invalidate(ctx context.Context, accessToken string) error {
	now := l.now()
	return l.Store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.Tokens().GetToken(ctx, accessToken)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Tokens().DeleteToken(ctx, t.Token); err != nil {
			return err
		}
		return l.sweep(ctx, tx, t.UserID, now)
	})
}

// RevokeAll deletes every token the user owns. Used by signout after the
// credentials have been re-verified.
func (l *TokenLedger) RevokeAll(ctx context.Context, userID string) error {
	return l.Store.Tokens().DeleteTokensByUser(ctx, userID)
}

// OpenJoinSession records that the holder of accessToken intends to join
// serverID. The token must carry the claimed profile. Any prior session for
// the same server is superseded.
func (l *TokenLedger) OpenJoinSession(ctx context.Context, accessToken, claimedProfileID, serverID, clientIP string) error {
	t, err := l.Store.Tokens().GetToken(ctx, accessToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if t.ProfileID == nil || *t.ProfileID != claimedProfileID {
		return ErrInvalidToken
	}

	return l.Store.Sessions().PutSession(ctx, domain.JoinSession{
		ServerID:    serverID,
		AccessToken: accessToken,
		IP:          clientIP,
		CreatedAt:   l.now().UnixMilli(),
	})
}

// ResolveJoinSession closes the join/hasJoined handshake. A nil profile with
// nil error means "no content": no live session, expired session, stale
// token, or a name mismatch. A banned owning account is an explicit error,
// not a miss.
func (l *TokenLedger) ResolveJoinSession(ctx context.Context, serverID, expectedUsername string) (*domain.PlayerProfile, error) {
	now := l.now()
	log := slogx.FromContext(ctx)

	s, err := l.Store.Sessions().GetSession(ctx, serverID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if s.Expired(now) {
		return nil, nil
	}

	t, err := l.Store.Tokens().GetToken(ctx, s.AccessToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if t.ProfileID == nil {
		return nil, nil
	}

	p, err := l.Store.Profiles().GetProfileByID(ctx, *t.ProfileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// Username comparison is case-sensitive on purpose.
	if p.Name != expectedUsername {
		return nil, nil
	}

	// Ban check comes after the profile is resolved so a banned account is
	// reported as forbidden rather than unknown.
	u, err := l.Store.Users().GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if u.Banned(now) {
		log.Info("rejected join handshake for banned account", slog.String("profile", p.Name))
		return nil, ErrBanned
	}

	return &p, nil
}
