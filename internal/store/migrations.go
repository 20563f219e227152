package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Events table - one row per confirmed motion event
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			detected_at DATETIME NOT NULL,
			frame_index INTEGER NOT NULL,
			changed_percent REAL NOT NULL,
			region_count INTEGER NOT NULL DEFAULT 0,
			snapshot_path TEXT NOT NULL DEFAULT ''
		)`,

		// Event regions table - bounding rectangles per event
		`CREATE TABLE IF NOT EXISTS event_regions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_events_detected_at ON events(detected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_event_regions_event_id ON event_regions(event_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
