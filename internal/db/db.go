package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL; PRAGMA temp_store=MEMORY;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL DEFAULT 'GET',
			headers_json TEXT NOT NULL DEFAULT '{}',
			body TEXT NOT NULL DEFAULT '',
			expected_status_json TEXT NOT NULL DEFAULT '[200,201,204]',
			keyword TEXT NOT NULL DEFAULT '',
			verify_tls INTEGER NOT NULL DEFAULT 1,
			hostname TEXT NOT NULL DEFAULT '',
			port INTEGER NOT NULL DEFAULT 0,
			dns_record_type TEXT NOT NULL DEFAULT 'A',
			dns_server TEXT NOT NULL DEFAULT '',
			expected_value TEXT NOT NULL DEFAULT '',
			docker_host TEXT NOT NULL DEFAULT '',
			container_name TEXT NOT NULL DEFAULT '',
			ssl_warning_days INTEGER NOT NULL DEFAULT 30,
			interval_seconds INTEGER NOT NULL DEFAULT 60 CHECK (interval_seconds BETWEEN 10 AND 3600),
			timeout_seconds INTEGER NOT NULL DEFAULT 10 CHECK (timeout_seconds BETWEEN 1 AND 60),
			retries INTEGER NOT NULL DEFAULT 0 CHECK (retries BETWEEN 0 AND 5),
			is_active INTEGER NOT NULL DEFAULT 1,
			is_paused INTEGER NOT NULL DEFAULT 0,
			next_check DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS heartbeats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service_id TEXT NOT NULL,
			status TEXT NOT NULL,
			response_time_ms INTEGER NOT NULL,
			status_code INTEGER,
			message TEXT,
			details_json TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY(service_id) REFERENCES services(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			service_id TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			duration_seconds INTEGER,
			cause TEXT NOT NULL DEFAULT '',
			resolution TEXT NOT NULL DEFAULT '',
			acknowledged INTEGER NOT NULL DEFAULT 0,
			acknowledged_at DATETIME,
			acknowledged_by TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(service_id) REFERENCES services(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS maintenance_windows (
			id TEXT PRIMARY KEY,
			service_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			CHECK (end_time > start_time),
			FOREIGN KEY(service_id) REFERENCES services(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS alert_channels (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			config_json TEXT NOT NULL DEFAULT '{}',
			is_active INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS service_alert_channels (
			service_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			PRIMARY KEY(service_id, channel_id),
			FOREIGN KEY(service_id) REFERENCES services(id) ON DELETE CASCADE,
			FOREIGN KEY(channel_id) REFERENCES alert_channels(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS notification_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id TEXT NOT NULL,
			channel_type TEXT NOT NULL,
			service_id TEXT NOT NULL,
			incident_id TEXT,
			event TEXT NOT NULL,
			status TEXT NOT NULL,
			last_error TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_services_due ON services(is_active, is_paused, next_check);`,
		`CREATE INDEX IF NOT EXISTS idx_heartbeats_service_id ON heartbeats(service_id, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_heartbeats_created ON heartbeats(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_service_open ON incidents(service_id, ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_maintenance_service_time ON maintenance_windows(service_id, start_time, end_time);`,
		`CREATE INDEX IF NOT EXISTS idx_notification_events_created ON notification_events(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}
