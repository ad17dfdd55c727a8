package storage

import (
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 2

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createRenderCacheTable(tx); err != nil {
			return err
		}
		if err := createRenderRunsTables(tx); err != nil {
			return err
		}
		if err := createRunWarningsColumn(tx); err != nil {
			return err
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})
		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", map[string]interface{}{
			"version": version,
		})
		return nil
	}

	db.logger.Info("Running database migrations", map[string]interface{}{
		"from_version": version,
		"to_version":   currentSchemaVersion,
	})

	return db.WithTx(func(tx *sql.Tx) error {
		if version < 1 {
			if err := createSchemaVersionTable(tx); err != nil {
				return err
			}
			if err := createRenderCacheTable(tx); err != nil {
				return err
			}
			if err := createRenderRunsTables(tx); err != nil {
				return err
			}
		}
		if version < 2 {
			if err := createRunWarningsColumn(tx); err != nil {
				return err
			}
		}
		return setSchemaVersion(tx, currentSchemaVersion)
	})
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("DELETE FROM schema_version")
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// createSchemaVersionTable creates the schema_version tracking table
func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createRenderCacheTable creates the mesh cache keyed by render inputs
func createRenderCacheTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS render_cache (
			key TEXT PRIMARY KEY,
			mesh BLOB NOT NULL,
			size INTEGER NOT NULL,
			stored_size INTEGER NOT NULL,
			expires_at TEXT,
			created_at TEXT NOT NULL,
			hits INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		return fmt.Errorf("failed to create render_cache table: %w", err)
	}

	if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_render_cache_expires_at ON render_cache(expires_at)"); err != nil {
		return fmt.Errorf("failed to create cache index: %w", err)
	}
	return nil
}

// createRenderRunsTables creates the render history tables
func createRenderRunsTables(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS render_runs (
			id TEXT PRIMARY KEY,
			script TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('running', 'completed', 'partial', 'failed')),
			started_at TEXT NOT NULL,
			finished_at TEXT,
			error TEXT
		)
	`); err != nil {
		return fmt.Errorf("failed to create render_runs table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS render_parts (
			run_id TEXT NOT NULL,
			name TEXT NOT NULL,
			exported INTEGER NOT NULL,
			color TEXT,
			cached INTEGER NOT NULL,
			size INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			location TEXT,
			error_code TEXT,
			error_message TEXT,

			PRIMARY KEY (run_id, name),
			FOREIGN KEY (run_id) REFERENCES render_runs(id) ON DELETE CASCADE
		)
	`); err != nil {
		return fmt.Errorf("failed to create render_parts table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_render_runs_started_at ON render_runs(started_at)",
		"CREATE INDEX IF NOT EXISTS idx_render_runs_script ON render_runs(script)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// createRunWarningsColumn adds per-part engine warnings (schema v2)
func createRunWarningsColumn(tx *sql.Tx) error {
	var count int
	if err := tx.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info('render_parts') WHERE name = 'warnings_json'
	`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if _, err := tx.Exec("ALTER TABLE render_parts ADD COLUMN warnings_json TEXT"); err != nil {
		return fmt.Errorf("failed to add warnings_json column: %w", err)
	}
	return nil
}
