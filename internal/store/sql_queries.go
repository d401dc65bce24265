package store

import (
	sq "github.com/Masterminds/squirrel"
)

const (
	lockCircleForAppend = `SELECT id FROM circles WHERE id = $1 FOR UPDATE;`

	selectLatestVersion = `SELECT COALESCE(MAX(version), 0) FROM sync_changes WHERE circle_id = $1;`

	insertChange = `INSERT INTO sync_changes (
			circle_id,
			version,
			change_id,
			entity_type,
			entity_id,
			action,
			data,
			client_ts,
			device_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (circle_id, change_id) DO NOTHING;`

	selectCircle = `SELECT id, display_name, settings, created_at
		FROM circles
		WHERE id = $1;`

	selectIsMember = `SELECT EXISTS (
			SELECT 1 FROM circle_members WHERE circle_id = $1 AND user_id = $2
		);`

	selectMembers = `SELECT circle_id, user_id, role, notification_prefs, joined_at
		FROM circle_members
		WHERE circle_id = $1
		ORDER BY joined_at;`

	selectInvitation = `SELECT token, circle_id, email, role, consumed, expires_at, created_at
		FROM invitations
		WHERE token = $1;`

	consumeInvitation = `UPDATE invitations
		SET consumed = TRUE
		WHERE token = $1
		  AND consumed = FALSE
		  AND (expires_at IS NULL OR expires_at > NOW())
		RETURNING token, circle_id, email, role, consumed, expires_at, created_at;`

	insertMember = `INSERT INTO circle_members (circle_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (circle_id, user_id) DO NOTHING;`

	createUser = `INSERT INTO users (email, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING user_id, email, name, password_hash, created_at;`

	findUserByEmail = `SELECT user_id, email, name, password_hash, created_at
		FROM users
		WHERE email = $1;`
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// buildListSinceQuery selects ledger entries newer than the watermark, in
// version order.
func buildListSinceQuery(circleID string, since int64) (string, []any, error) {
	return psql.
		Select("circle_id", "version", "change_id", "entity_type", "entity_id", "action", "data", "client_ts", "device_id").
		From("sync_changes").
		Where(sq.Eq{"circle_id": circleID}).
		Where(sq.Gt{"version": since}).
		OrderBy("version").
		ToSql()
}

// buildSnapshotQuery selects, for every entity the circle has ever synced,
// the single latest ledger entry. DISTINCT ON with a version-descending sort
// makes the last writer win; deletions are filtered by the caller.
func buildSnapshotQuery(circleID string) (string, []any, error) {
	return psql.
		Select("entity_type", "entity_id", "action", "data").
		Options("DISTINCT ON (entity_type, entity_id)").
		From("sync_changes").
		Where(sq.Eq{"circle_id": circleID}).
		OrderBy("entity_type", "entity_id", "version DESC").
		ToSql()
}
