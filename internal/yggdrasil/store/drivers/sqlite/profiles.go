package sqlite

import (
	"context"
	"database/sql"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
)

type profilesRepo struct {
	q querier
}

const profileColumns = `id, user_id, name, model, skin_hash, cape_hash`

func scanProfile(scan func(dest ...any) error) (domain.PlayerProfile, error) {
	var p domain.PlayerProfile
	var skin, cape sql.NullString
	err := scan(&p.ID, &p.UserID, &p.Name, (*string)(&p.Model), &skin, &cape)
	if err != nil {
		return domain.PlayerProfile{}, mapNotFound(err)
	}
	p.SkinHash = mapNullStringPtr(skin)
	p.CapeHash = mapNullStringPtr(cape)
	return p, nil
}

func (r *profilesRepo) GetProfileByID(ctx context.Context, id string) (domain.PlayerProfile, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	return scanProfile(row.Scan)
}

func (r *profilesRepo) GetProfileByName(ctx context.Context, name string) (domain.PlayerProfile, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE name = ?`, name)
	return scanProfile(row.Scan)
}

func (r *profilesRepo) ListProfilesByUser(ctx context.Context, userID string) ([]domain.PlayerProfile, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM profiles WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PlayerProfile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *profilesRepo) CreateProfile(ctx context.Context, p domain.PlayerProfile) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO profiles (id, user_id, name, model, skin_hash, cape_hash)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, string(p.Model),
		mapOptionalString(p.SkinHash), mapOptionalString(p.CapeHash))
	return err
}

func (r *profilesRepo) SetSkin(ctx context.Context, profileID string, hash *string, model domain.TextureModel) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE profiles SET skin_hash = ?, model = ? WHERE id = ?`,
		mapOptionalString(hash), string(model), profileID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *profilesRepo) SetCape(ctx context.Context, profileID string, hash *string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE profiles SET cape_hash = ? WHERE id = ?`,
		mapOptionalString(hash), profileID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
