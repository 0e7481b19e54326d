package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		source TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		type TEXT,
		status TEXT,
		category TEXT,
		icon TEXT,
		capabilities TEXT,
		request_count INTEGER NOT NULL DEFAULT 0,
		rating REAL NOT NULL DEFAULT 0,
		downloads INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (source, id)
	);

	CREATE INDEX IF NOT EXISTS idx_agents_name ON agents(name);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
