package sqlite

import (
	"context"
	"database/sql"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
)

type tokensRepo struct {
	q querier
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.AccessToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO tokens (access_token, client_token, user_id, profile_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.Token, t.ClientToken, t.UserID, mapOptionalString(t.ProfileID), t.CreatedAt)
	return err
}

func (r *tokensRepo) GetToken(ctx context.Context, accessToken string) (domain.AccessToken, error) {
	var t domain.AccessToken
	var profile sql.NullString
	err := r.q.QueryRowContext(ctx, `
		SELECT access_token, client_token, user_id, profile_id, created_at
		FROM tokens WHERE access_token = ?`, accessToken).
		Scan(&t.Token, &t.ClientToken, &t.UserID, &profile, &t.CreatedAt)
	if err != nil {
		return domain.AccessToken{}, mapNotFound(err)
	}
	t.ProfileID = mapNullStringPtr(profile)
	return t, nil
}

func (r *tokensRepo) DeleteToken(ctx context.Context, accessToken string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM tokens WHERE access_token = ?`, accessToken)
	return err
}

func (r *tokensRepo) DeleteTokensByUser(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = ?`, userID)
	return err
}

func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context, userID string, cutoff int64) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM tokens WHERE user_id = ? AND created_at < ?`, userID, cutoff)
	return err
}

func (r *tokensRepo) DeleteAllExpiredTokens(ctx context.Context, cutoff int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM tokens WHERE created_at < ?`, cutoff)
	return err
}

func (r *tokensRepo) DeleteSurplusTokens(ctx context.Context, userID string, keep int) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM tokens
		WHERE user_id = ?
		  AND access_token NOT IN (
		    SELECT access_token FROM tokens
		    WHERE user_id = ?
		    ORDER BY created_at DESC, access_token DESC
		    LIMIT ?
		  )`, userID, userID, keep)
	return err
}

func (r *tokensRepo) CountTokensByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tokens WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}
