package sqlite

import (
	"context"

	"github.com/element-skin/yggdrasil/internal/yggdrasil/domain"
)

type sessionsRepo struct {
	q querier
}

func (r *sessionsRepo) PutSession(ctx context.Context, s domain.JoinSession) error {
	// REPLACE supersedes any prior session for the same server id atomically.
	_, err := r.q.ExecContext(ctx, `
		INSERT OR REPLACE INTO join_sessions (server_id, access_token, ip, created_at)
		VALUES (?, ?, ?, ?)`,
		s.ServerID, s.AccessToken, s.IP, s.CreatedAt)
	return err
}

func (r *sessionsRepo) GetSession(ctx context.Context, serverID string) (domain.JoinSession, error) {
	var s domain.JoinSession
	err := r.q.QueryRowContext(ctx, `
		SELECT server_id, access_token, ip, created_at
		FROM join_sessions WHERE server_id = ?`, serverID).
		Scan(&s.ServerID, &s.AccessToken, &s.IP, &s.CreatedAt)
	if err != nil {
		return domain.JoinSession{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, serverID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM join_sessions WHERE server_id = ?`, serverID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, cutoff int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM join_sessions WHERE created_at < ?`, cutoff)
	return err
}
