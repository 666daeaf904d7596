package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"carwash/internal/config"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// DB is the booking store backed by a SQL database.
type DB struct {
	*sql.DB
	driver string
	path   string
	logger *zerolog.Logger
}

var (
	ErrDuplicateID = errors.New("booking id already exists")
	ErrNotFound    = errors.New("not found")
	// ErrUnavailable wraps any failure of the backing database.
	ErrUnavailable = errors.New("store unavailable")
)

// Open picks the driver from config.
func Open(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	switch cfg.Driver {
	case DriverMySQL:
		return NewMySQL(cfg.DSN, logger)
	case DriverSQLite, "":
		return NewDB(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

// NewDB opens (and creates) a SQLite database file.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// every new connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(time.Hour)

	return initDB(db, DriverSQLite, path, logger)
}

// NewMySQL opens a MySQL database, the deployment used by the public site.
func NewMySQL(dsn string, logger *zerolog.Logger) (*DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	// RowsAffected must count matched rows for NotFound detection
	cfg.ClientFoundRows = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return initDB(db, DriverMySQL, "", logger)
}

func initDB(db *sql.DB, driver, path string, logger *zerolog.Logger) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := Wrap(db, driver, logger)
	instance.path = path

	if err := instance.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	instance.logger.Info().Str("driver", driver).Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Wrap adapts an already opened handle without touching the schema.
func Wrap(db *sql.DB, driver string, logger *zerolog.Logger) *DB {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &DB{DB: db, driver: driver, logger: logger}
}

func (db *DB) Driver() string { return db.driver }

// Path is the SQLite file path, empty for MySQL.
func (db *DB) Path() string { return db.path }

func (db *DB) createTables(ctx context.Context) error {
	queries := sqliteSchema
	if db.driver == DriverMySQL {
		queries = mysqlSchema
	}
	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// unavailable tags a driver failure so callers can fall back to the cache.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func isDuplicate(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
