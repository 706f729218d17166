package localdb

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

var DBClient *sql.DB

func SetupDB(dbPath string) (*sql.DB, error) {
	if DBClient != nil {
		return DBClient, nil
	}

	// WAL mode and busy timeout guard against writer contention
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// sqlite is single-writer, keep the pool at one connection
	db.SetMaxOpenConns(1)

	DBClient = db

	if err := SetupRecipientsTable(db); err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		setting_type TEXT NOT NULL DEFAULT 'normal',
		is_required BOOLEAN NOT NULL DEFAULT false,
		description TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// GetDB returns the current database connection
func GetDB() *sql.DB {
	return DBClient
}

// CloseDB closes the database connection on shutdown
func CloseDB() error {
	if DBClient == nil {
		return nil
	}
	err := DBClient.Close()
	DBClient = nil
	return err
}
