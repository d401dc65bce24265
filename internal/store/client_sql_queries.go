package store

const (
	createDeviceStateSchema = `
		CREATE TABLE IF NOT EXISTS device_state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS pending_changes (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			change_id   TEXT NOT NULL UNIQUE,
			entity_type TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			action      TEXT NOT NULL,
			data        BLOB,
			client_ts   TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS records (
			entity_type TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			data        BLOB NOT NULL,
			version     INTEGER NOT NULL,
			PRIMARY KEY (entity_type, entity_id)
		);`

	selectStateValue = `SELECT value FROM device_state WHERE key = ?;`

	upsertStateValue = `INSERT INTO device_state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value;`

	deleteStateValue = `DELETE FROM device_state WHERE key = ?;`

	enqueuePendingChange = `INSERT INTO pending_changes (change_id, entity_type, entity_id, action, data, client_ts)
		VALUES (?, ?, ?, ?, ?, ?);`

	selectPendingChanges = `SELECT change_id, entity_type, entity_id, action, data, client_ts
		FROM pending_changes
		ORDER BY seq;`

	countPendingChanges = `SELECT COUNT(*) FROM pending_changes;`

	deletePendingChange = `DELETE FROM pending_changes WHERE change_id = ?;`

	clearPendingChanges = `DELETE FROM pending_changes;`

	upsertRecord = `INSERT INTO records (entity_type, entity_id, data, version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE
		SET data = excluded.data, version = excluded.version
		WHERE excluded.version > records.version;`

	deleteRecord = `DELETE FROM records WHERE entity_type = ? AND entity_id = ?;`

	selectRecords = `SELECT data FROM records WHERE entity_type = ? ORDER BY entity_id;`
)

// Keys of the device_state key/value table.
const (
	stateKeyDeviceID  = "device_id"
	stateKeyCircleID  = "circle_id"
	stateKeyToken     = "token"
	stateKeyWatermark = "watermark"
	stateKeyLastSync  = "last_sync"
)
