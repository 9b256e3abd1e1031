package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"shopassist/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database configured under dbType.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch Driver(dbType) {
	case "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if strings.Contains(dbCfg.DSN, ":memory:") {
			// every pooled connection would otherwise get its own empty database
			db.SetMaxOpenConns(1)
		}
	case "mysql":
		dsn := dbCfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
				dbCfg.Username,
				dbCfg.Password,
				dbCfg.Host,
				dbCfg.Port,
				dbCfg.DBName,
				dbCfg.Params,
			)
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	case "postgres":
		dsn := dbCfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s %s",
				dbCfg.Host,
				dbCfg.Port,
				dbCfg.Username,
				dbCfg.Password,
				dbCfg.DBName,
				dbCfg.Params,
			)
		}
		db, err = sql.Open("postgres", strings.TrimSpace(dsn))
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Driver normalises the configured database name to a driver name.
func Driver(dbType string) string {
	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "mysql":
		return "mysql"
	case "postgres", "postgresql", "pq":
		return "postgres"
	default:
		return strings.ToLower(dbType)
	}
}

// Rebind rewrites ? placeholders into $n for postgres.
func Rebind(driver, query string) string {
	if Driver(driver) != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch Driver(driver) {
	case "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS previews (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				file_name TEXT NOT NULL,
				stored_path TEXT NOT NULL,
				mime_type TEXT NOT NULL,
				size INTEGER NOT NULL,
				status TEXT NOT NULL DEFAULT 'active',
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_previews_session ON previews(session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_previews_expiry ON previews(expires_at)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS previews (
				id VARCHAR(64) NOT NULL,
				session_id VARCHAR(64) NOT NULL,
				file_name VARCHAR(255) NOT NULL,
				stored_path TEXT NOT NULL,
				mime_type VARCHAR(255) NOT NULL,
				size BIGINT NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'active',
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_previews_session (session_id),
				INDEX idx_previews_expiry (expires_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	case "postgres":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS previews (
				id VARCHAR(64) PRIMARY KEY,
				session_id VARCHAR(64) NOT NULL,
				file_name VARCHAR(255) NOT NULL,
				stored_path TEXT NOT NULL,
				mime_type VARCHAR(255) NOT NULL,
				size BIGINT NOT NULL,
				status VARCHAR(50) NOT NULL DEFAULT 'active',
				created_at TIMESTAMPTZ NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_previews_session ON previews(session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_previews_expiry ON previews(expires_at)`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
