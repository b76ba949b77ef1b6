package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Detections table - one row per completed recognition cycle
		`CREATE TABLE IF NOT EXISTS detections (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			composition TEXT NOT NULL DEFAULT '',
			degradation_time TEXT NOT NULL DEFAULT '',
			recycling_value TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 0,
			image_path TEXT NOT NULL,
			detection_method TEXT NOT NULL,
			presence_state TEXT NOT NULL DEFAULT '',
			stability_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores station settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_detections_created_at ON detections(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_category ON detections(category)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
