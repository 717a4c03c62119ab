package sqlite

import "context"

type whitelistRepo struct {
	q querier
}

func (r *whitelistRepo) Contains(ctx context.Context, name string) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM official_whitelist WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *whitelistRepo) Add(ctx context.Context, name string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO official_whitelist (name) VALUES (?)`, name)
	return err
}

func (r *whitelistRepo) Remove(ctx context.Context, name string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM official_whitelist WHERE name = ?`, name)
	return err
}
