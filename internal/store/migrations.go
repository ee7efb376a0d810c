package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per session file in the recordings directory
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			action_name TEXT NOT NULL,
			fps REAL NOT NULL CHECK(fps > 0),
			frame_count INTEGER NOT NULL DEFAULT 0,
			valid_frames INTEGER NOT NULL DEFAULT 0,
			path TEXT NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - small key-value state such as the last saved session
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_action_name ON sessions(action_name)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
