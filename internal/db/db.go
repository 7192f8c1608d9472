package db

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrStatusConflict is returned when a status update loses a race or
	// the stored status no longer matches the expected one.
	ErrStatusConflict = errors.New("quote status conflict")
	// ErrReceiptExists is returned when a file already has a receipt.
	ErrReceiptExists = errors.New("file receipt already set")
)

const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Open connects to the database described by dbType and dsn. For sqlite the
// dsn is a file path.
func Open(dbType, dsn string) (*Repo, error) {
	switch dbType {
	case TypeSQLite, "":
		return NewSQLite(dsn)
	case TypePostgres:
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown db_type %q. must be %q or %q", dbType, TypeSQLite, TypePostgres)
	}
}

func NewSQLite(dbFile string) (*Repo, error) {
	if dbFile == "" {
		return nil, fmt.Errorf("must set db_file")
	}

	db, err := sqlx.Connect("sqlite3", dbFile+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlx.Connect: %w", err)
	}

	// sqlite allows a single writer. Upload tasks record receipts concurrently.
	db.SetMaxOpenConns(1)

	return newRepo(db)
}

func NewPostgres(dbConnStr string) (*Repo, error) {
	if dbConnStr == "" {
		return nil, fmt.Errorf("must set database_url")
	}

	db, err := sqlx.Connect("postgres", dbConnStr)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Connect: %w", err)
	}

	// sqlx default is 0 (unlimited), while postgresql by default accepts up to 100 connections
	db.SetMaxOpenConns(80)

	return newRepo(db)
}

func newRepo(db *sqlx.DB) (*Repo, error) {
	r := Repo{db: db}
	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("db.Exec schema: %w", err)
	}
	return &r, nil
}

// Repo persists quotes, their files and per-user nonces.
type Repo struct {
	db *sqlx.DB
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) createSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS quote (
	id TEXT PRIMARY KEY,
	user_address TEXT NOT NULL,
	chain_id BIGINT NOT NULL,
	token_address TEXT NOT NULL,
	token_amount TEXT NOT NULL,
	approve_address TEXT NOT NULL,
	status INTEGER NOT NULL DEFAULT 0,
	created BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quote_user ON quote(user_address);
CREATE INDEX IF NOT EXISTS idx_quote_status ON quote(status);

CREATE TABLE IF NOT EXISTS quote_file (
	quote_id TEXT NOT NULL REFERENCES quote(id),
	idx INTEGER NOT NULL,
	length BIGINT NOT NULL,
	receipt_id TEXT,
	PRIMARY KEY (quote_id, idx)
);

CREATE TABLE IF NOT EXISTS nonce (
	user_address TEXT PRIMARY KEY,
	nonce TEXT NOT NULL
);
`

	_, err := r.db.Exec(schema)
	return err
}
