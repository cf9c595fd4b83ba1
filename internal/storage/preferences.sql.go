package storage

import (
	"context"
)

const getPreference = `SELECT value FROM user_preferences WHERE user_id = ? AND key = ?`

func (q *Queries) GetPreference(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, getPreference, userID, key).Scan(&value)
	return value, err
}

const upsertPreference = `
INSERT INTO user_preferences (user_id, key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

type UpsertPreferenceParams struct {
	UserID    string
	Key       string
	Value     string
	UpdatedAt string
}

func (q *Queries) UpsertPreference(ctx context.Context, arg UpsertPreferenceParams) error {
	_, err := q.db.ExecContext(ctx, upsertPreference, arg.UserID, arg.Key, arg.Value, arg.UpdatedAt)
	return err
}
