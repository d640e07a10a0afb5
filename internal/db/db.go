package db

import (
	"database/sql"
	"embed"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/samber/oops"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// containsIgnoreCase returns true if s contains substr (case-insensitive)
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// DB wraps the database connection
type DB struct {
	*sql.DB
	driver string
}

// New opens a postgres or sqlite database. For sqlite the DSN is a file path.
func New(driver, dsn string) (*DB, error) {
	errb := oops.In("db").With("driver", driver)
	if dsn == "" {
		return nil, errb.Errorf("database connection string is required")
	}

	switch driver {
	case DriverPostgres:
		return openPostgres(dsn)
	case DriverSQLite:
		return openSQLite(dsn)
	default:
		return nil, errb.Errorf("unsupported database driver %q", driver)
	}
}

func openPostgres(connectionString string) (*DB, error) {
	errb := oops.In("db").With("driver", DriverPostgres)

	sqlDB, err := sql.Open(DriverPostgres, connectionString)
	if err != nil {
		return nil, errb.Wrapf(err, "failed to open database")
	}

	if err := sqlDB.Ping(); err != nil {
		// Try with SSL disabled if connection fails and SSL mode not specified
		if !containsIgnoreCase(connectionString, "sslmode") {
			slog.Warn("retrying database connection with SSL disabled", "error", err)
			sqlDB.Close()
			sslDisabledConnection := connectionString
			if strings.Contains(connectionString, "?") {
				sslDisabledConnection += "&sslmode=disable"
			} else {
				sslDisabledConnection += "?sslmode=disable"
			}
			var err2 error
			sqlDB, err2 = sql.Open(DriverPostgres, sslDisabledConnection)
			if err2 != nil {
				return nil, errb.Wrapf(err2, "failed to open database")
			}
		}
		if err := sqlDB.Ping(); err != nil {
			sqlDB.Close()
			return nil, errb.Wrapf(err, "failed to ping database")
		}
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return &DB{DB: sqlDB, driver: DriverPostgres}, nil
}

func openSQLite(file string) (*DB, error) {
	errb := oops.In("db").With("driver", DriverSQLite).With("path", file)

	if file != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, errb.Wrapf(err, "failed to create database directory")
		}
	}

	dsn := file + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, errb.Wrapf(err, "failed to open database")
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, errb.Wrapf(err, "failed to ping database")
	}

	// A single writer avoids SQLITE_BUSY under concurrent appends
	sqlDB.SetMaxOpenConns(1)

	return &DB{DB: sqlDB, driver: DriverSQLite}, nil
}

// Rebind rewrites ? placeholders into the driver's bind syntax.
func (db *DB) Rebind(query string) string {
	if db.driver != DriverPostgres {
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

// HealthCheck verifies the database connection is healthy
func (db *DB) HealthCheck() error {
	return db.Ping()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Migrate applies the migrations bundled with the binary.
func (db *DB) Migrate() error {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		return oops.In("db").Wrapf(err, "failed to open embedded migrations")
	}
	return db.RunMigrations(sub)
}

// RunMigrations executes every numbered .sql file in fsys that has not been
// recorded in schema_migrations yet.
func (db *DB) RunMigrations(fsys fs.FS) error {
	errb := oops.In("db").With("driver", db.driver)

	migrations, err := readMigrations(fsys)
	if err != nil {
		return errb.Wrapf(err, "failed to read migrations")
	}

	if len(migrations) == 0 {
		slog.Info("no migrations found")
		return nil
	}

	// Ensure migration tracking table exists
	if err := db.createMigrationTable(); err != nil {
		return errb.Wrapf(err, "failed to create migration table")
	}

	for _, migration := range migrations {
		applied, err := db.isMigrationApplied(migration.Number)
		if err != nil {
			return errb.Wrapf(err, "failed to check migration status")
		}

		if applied {
			slog.Debug("migration already applied, skipping", "version", migration.Number)
			continue
		}

		slog.Info("applying migration", "version", migration.Number, "name", migration.Name)

		tx, err := db.Begin()
		if err != nil {
			return errb.Wrapf(err, "failed to begin transaction")
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return errb.With("version", migration.Number).Wrapf(err, "failed to execute migration")
		}

		if _, err := tx.Exec(
			db.Rebind("INSERT INTO schema_migrations (version, name) VALUES (?, ?)"),
			migration.Number,
			migration.Name,
		); err != nil {
			tx.Rollback()
			return errb.Wrapf(err, "failed to record migration")
		}

		if err := tx.Commit(); err != nil {
			return errb.Wrapf(err, "failed to commit migration")
		}
	}

	return nil
}

// Migration represents a single migration file
type Migration struct {
	Number int
	Name   string
	SQL    string
}

// readMigrations parses files named like 001_initial_schema.sql, sorted by number.
func readMigrations(fsys fs.FS) ([]Migration, error) {
	var migrations []Migration

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || path.Ext(p) != ".sql" {
			return nil
		}

		filename := d.Name()
		parts := strings.Split(filename, "_")
		if len(parts) < 2 {
			return nil
		}

		number, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil
		}

		sqlBytes, err := fs.ReadFile(fsys, p)
		if err != nil {
			return oops.With("file", filename).Wrapf(err, "failed to read migration file")
		}

		migrations = append(migrations, Migration{
			Number: number,
			Name:   strings.TrimSuffix(strings.Join(parts[1:], "_"), ".sql"),
			SQL:    string(sqlBytes),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Number < migrations[j].Number
	})

	return migrations, nil
}

// createMigrationTable creates the table that tracks which migrations have been applied
func (db *DB) createMigrationTable() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (db *DB) isMigrationApplied(number int) (bool, error) {
	var count int
	err := db.QueryRow(
		db.Rebind("SELECT COUNT(*) FROM schema_migrations WHERE version = ?"),
		number,
	).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
