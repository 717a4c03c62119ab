package sqlite

import (
	"context"
	"database/sql"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
)

type usersRepo struct {
	q querier
}

func (r *usersRepo) scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var banned sql.NullInt64
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.PreferredLanguage, &banned, &u.CreatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.BannedUntil = mapNullInt64Ptr(banned)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.scanUser(r.q.QueryRowContext(ctx, `
		SELECT id, email, password_hash, preferred_language, banned_until, created_at
		FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanUser(r.q.QueryRowContext(ctx, `
		SELECT id, email, password_hash, preferred_language, banned_until, created_at
		FROM users WHERE email = ?`, email))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, preferred_language, banned_until)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.PreferredLanguage, mapOptionalInt64(u.BannedUntil))
	return err
}

func (r *usersRepo) SetBannedUntil(ctx context.Context, userID string, until *int64) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET banned_until = ? WHERE id = ?`,
		mapOptionalInt64(until), userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
