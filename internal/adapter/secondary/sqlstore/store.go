package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store owns the connection pool for the institution database.
type Store struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// Open opens a pool for driver ("mysql" or "sqlite") and verifies it with a
// ping.
func Open(ctx context.Context, driver, dsn string, maxOpen int, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	if driver == "sqlite" {
		// A shared in-memory database only lives as long as its connection.
		db.SetMaxOpenConns(1)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	logger.Info("connected to institution database", zap.String("driver", driver))

	return &Store{db: db, driver: driver, logger: logger.Named("sqlstore")}, nil
}

// New wraps an existing pool.
func New(db *sql.DB, driver string, logger *zap.Logger) *Store {
	return &Store{db: db, driver: driver, logger: logger.Named("sqlstore")}
}

// Session is a unit of work holding one pooled connection. Callers must
// Close it.
type Session struct {
	conn *sql.Conn
}

// Session acquires a connection from the pool.
func (s *Store) Session(ctx context.Context) (*Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring database connection: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Close returns the connection to the pool.
func (s *Session) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates the institutions table when it does not exist. The
// production MySQL schema is owned elsewhere; this is for SQLite.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS institutions (
  id      INTEGER PRIMARY KEY,
  name    VARCHAR(255) NOT NULL,
  code    VARCHAR(20)  NOT NULL UNIQUE,
  api_key VARCHAR(255) NOT NULL UNIQUE
)`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create institutions table: %w", err)
	}
	return nil
}

// Name identifies the store in the health report.
func (s *Store) Name() string {
	return "database"
}

// Check pings the pool.
func (s *Store) Check(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}
