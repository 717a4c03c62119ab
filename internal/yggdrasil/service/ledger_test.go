package service

import (
	"context"
	"testing"
	"time"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
	"github.com/stretchr/testify/require"
)

func TestIssueGeneratesClientToken(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	l := NewTokenLedger(st)

	tok, err := l.Issue(ctx, "u1", nil, "")
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)
	require.NotEmpty(t, tok.ClientToken)

	tok2, err := l.Issue(ctx, "u1", nil, "my-client")
	require.NoError(t, err)
	require.Equal(t, "my-client", tok2.ClientToken)
}

func TestRefreshRetiresOldToken(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	l := NewTokenLedger(st)

	old, err := l.Issue(ctx, "u1", nil, "")
	require.NoError(t, err)

	fresh, err := l.Refresh(ctx, old.Token, old.ClientToken, nil)
	require.NoError(t, err)
	require.NotEqual(t, old.Token, fresh.Token)
	require.Equal(t, old.ClientToken, fresh.ClientToken)
	require.Equal(t, "u1", fresh.UserID)

	// The retired token no longer validates, the replacement does.
	require.ErrorIs(t, l.Validate(ctx, old.Token, ""), ErrInvalidToken)
	require.NoError(t, l.Validate(ctx, fresh.Token, ""))
}

func TestRefreshClientTokenMismatch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	l := NewTokenLedger(st)

	tok, err := l.Issue(ctx, "u1", nil, "")
	require.NoError(t, err)

	_, err = l.Refresh(ctx, tok.Token, "wrong", nil)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = l.Refresh(ctx, "no-such-token", "", nil)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshBindsProfileOnce(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	seedProfile(t, st, "p1", "u1", "alice_mc")
	l := NewTokenLedger(st)

	tok, err := l.Issue(ctx, "u1", nil, "")
	require.NoError(t, err)

	pid := "p1"
	bound, err := l.Refresh(ctx, tok.Token, "", &pid)
	require.NoError(t, err)
	require.NotNil(t, bound.ProfileID)
	require.Equal(t, "p1", *bound.ProfileID)

	// A second bind attempt on the lineage fails.
	_, err = l.Refresh(ctx, bound.Token, "", &pid)
	require.ErrorIs(t, err, ErrProfileAssigned)
}

func TestRefreshCarriesProfileForward(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	seedProfile(t, st, "p1", "u1", "alice_mc")
	l := NewTokenLedger(st)

	pid := "p1"
	tok, err := l.Issue(ctx, "u1", &pid, "")
	require.NoError(t, err)

	fresh, err := l.Refresh(ctx, tok.Token, "", nil)
	require.NoError(t, err)
	require.NotNil(t, fresh.ProfileID)
	require.Equal(t, "p1", *fresh.ProfileID)
}

func TestRefreshRejectsForeignProfile(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	seedUser(t, st, "u2", "bob@example.com", "pw")
	seedProfile(t, st, "p2", "u2", "bob_mc")
	l := NewTokenLedger(st)

	tok, err := l.Issue(ctx, "u1", nil, "")
	require.NoError(t, err)

	pid := "p2"
	_, err = l.Refresh(ctx, tok.Token, "", &pid)
	require.ErrorIs(t, err, ErrNotOwned)

	missing := "nope"
	_, err = l.Refresh(ctx, tok.Token, "", &missing)
	require.ErrorIs(t, err, ErrNotOwned)
}

func TestValidateExpiredToken(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	l := NewTokenLedger(st)

	base := time.Now()
	l.now = func() time.Time { return base }

	tok, err := l.Issue(ctx, "u1", nil, "")
	require.NoError(t, err)

	l.now = func() time.Time { return base.Add(domain.TokenTTL + time.Minute) }
	require.ErrorIs(t, l.Validate(ctx, tok.Token, ""), ErrInvalidToken)

	l.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, l.Validate(ctx, tok.Token, ""))
}

func TestInvalidateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	l := NewTokenLedger(st)

	tok, err := l.Issue(ctx, "u1", nil, "")
	require.NoError(t, err)

	require.NoError(t, l.Invalidate(ctx, tok.Token))
	require.ErrorIs(t, l.Validate(ctx, tok.Token, ""), ErrInvalidToken)

	// Unknown tokens never error.
	require.NoError(t, l.Invalidate(ctx, tok.Token))
	require.NoError(t, l.Invalidate(ctx, "never-existed"))
}

func TestTokenRetentionKeepsFive(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	l := NewTokenLedger(st)

	base := time.Now()
	var tokens []domain.AccessToken
	for i := 0; i < 6; i++ {
		offset := time.Duration(i) * time.Second
		l.now = func() time.Time { return base.Add(offset) }
		tok, err := l.Issue(ctx, "u1", nil, "")
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}

	n, err := st.Tokens().CountTokensByUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, domain.TokenRetention, n)

	// The oldest token fell off, the newest five remain.
	require.ErrorIs(t, l.Validate(ctx, tokens[0].Token, ""), ErrInvalidToken)
	for _, tok := range tokens[1:] {
		require.NoError(t, l.Validate(ctx, tok.Token, ""))
	}
}

func TestRevokeAll(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	seedUser(t, st, "u2", "bob@example.com", "pw")
	l := NewTokenLedger(st)

	t1, err := l.Issue(ctx, "u1", nil, "")
	require.NoError(t, err)
	t2, err := l.Issue(ctx, "u1", nil, "")
	require.NoError(t, err)
	other, err := l.Issue(ctx, "u2", nil, "")
	require.NoError(t, err)

	require.NoError(t, l.RevokeAll(ctx, "u1"))

	require.ErrorIs(t, l.Validate(ctx, t1.Token, ""), ErrInvalidToken)
	require.ErrorIs(t, l.Validate(ctx, t2.Token, ""), ErrInvalidToken)
	require.NoError(t, l.Validate(ctx, other.Token, ""))
}

func TestOpenJoinSessionRequiresBoundProfile(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	seedProfile(t, st, "p1", "u1", "alice_mc")
	l := NewTokenLedger(st)

	unbound, err := l.Issue(ctx, "u1", nil, "")
	require.NoError(t, err)
	require.ErrorIs(t, l.OpenJoinSession(ctx, unbound.Token, "p1", "srv", "1.2.3.4"), ErrInvalidToken)

	pid := "p1"
	bound, err := l.Issue(ctx, "u1", &pid, "")
	require.NoError(t, err)
	require.ErrorIs(t, l.OpenJoinSession(ctx, bound.Token, "p-other", "srv", "1.2.3.4"), ErrInvalidToken)
	require.NoError(t, l.OpenJoinSession(ctx, bound.Token, "p1", "srv", "1.2.3.4"))
}

func TestResolveJoinSession(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	seedProfile(t, st, "p1", "u1", "alice_mc")
	l := NewTokenLedger(st)

	base := time.Now()
	l.now = func() time.Time { return base }

	pid := "p1"
	tok, err := l.Issue(ctx, "u1", &pid, "")
	require.NoError(t, err)
	require.NoError(t, l.OpenJoinSession(ctx, tok.Token, "p1", "srv", "1.2.3.4"))

	got, err := l.ResolveJoinSession(ctx, "srv", "alice_mc")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "p1", got.ID)

	// Unknown server is a miss, not an error.
	got, err = l.ResolveJoinSession(ctx, "other-srv", "alice_mc")
	require.NoError(t, err)
	require.Nil(t, got)

	// Name comparison is case-sensitive.
	got, err = l.ResolveJoinSession(ctx, "srv", "Alice_MC")
	require.NoError(t, err)
	require.Nil(t, got)

	// The session expires after 30 seconds.
	l.now = func() time.Time { return base.Add(31 * time.Second) }
	got, err = l.ResolveJoinSession(ctx, "srv", "alice_mc")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestResolveJoinSessionSupersede(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	seedUser(t, st, "u2", "bob@example.com", "pw")
	seedProfile(t, st, "p1", "u1", "alice_mc")
	seedProfile(t, st, "p2", "u2", "bob_mc")
	l := NewTokenLedger(st)

	pa := "p1"
	ta, err := l.Issue(ctx, "u1", &pa, "")
	require.NoError(t, err)
	pb := "p2"
	tb, err := l.Issue(ctx, "u2", &pb, "")
	require.NoError(t, err)

	require.NoError(t, l.OpenJoinSession(ctx, ta.Token, "p1", "srv", ""))
	require.NoError(t, l.OpenJoinSession(ctx, tb.Token, "p2", "srv", ""))

	// The second join superseded the first.
	got, err := l.ResolveJoinSession(ctx, "srv", "alice_mc")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = l.ResolveJoinSession(ctx, "srv", "bob_mc")
	require.NoError(t, err)
	require.Equal(t, "p2", got.ID)
}

func TestResolveJoinSessionBannedAccount(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "u1", "alice@example.com", "pw")
	seedProfile(t, st, "p1", "u1", "alice_mc")
	l := NewTokenLedger(st)

	pid := "p1"
	tok, err := l.Issue(ctx, "u1", &pid, "")
	require.NoError(t, err)
	require.NoError(t, l.OpenJoinSession(ctx, tok.Token, "p1", "srv", ""))

	until := time.Now().Add(time.Hour).UnixMilli()
	require.NoError(t, st.Users().SetBannedUntil(ctx, "u1", &until))

	// Banned is an explicit rejection, not a miss.
	_, err = l.ResolveJoinSession(ctx, "srv", "alice_mc")
	require.ErrorIs(t, err, ErrBanned)

	// An expired ban no longer blocks.
	past := time.Now().Add(-time.Hour).UnixMilli()
	require.NoError(t, st.Users().SetBannedUntil(ctx, "u1", &past))
	got, err := l.ResolveJoinSession(ctx, "srv", "alice_mc")
	require.NoError(t, err)
	require.NotNil(t, got)
}
