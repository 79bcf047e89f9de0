package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/inkwell/internal/apperr"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS namespaces (
	name       TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	body       BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (namespace, key)
);
`

// SQLite is a Backend storing documents as rows of a single table.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperr.Storage("docstore: sqlite: open", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, apperr.Storage("docstore: sqlite: ping", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, apperr.Storage("docstore: sqlite: apply schema", err)
	}
	return &SQLite{conn: conn}, nil
}

// EnsureNamespace registers ns in the namespaces table.
func (s *SQLite) EnsureNamespace(ctx context.Context, ns string) error {
	if err := ValidateName(ns); err != nil {
		return err
	}
	if _, err := s.conn.ExecContext(ctx, `INSERT OR IGNORE INTO namespaces (name) VALUES (?)`, ns); err != nil {
		return apperr.Storage("docstore: sqlite: ensure namespace", err)
	}
	return nil
}

// Get selects the document body.
func (s *SQLite) Get(ctx context.Context, ns, key string) ([]byte, error) {
	var body []byte
	err := s.conn.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE namespace = ? AND key = ?`, ns, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAbsent
	}
	if err != nil {
		return nil, apperr.Storage(fmt.Sprintf("docstore: sqlite: get %s/%s", ns, key), err)
	}
	return body, nil
}

// Put upserts the document in a single statement.
func (s *SQLite) Put(ctx context.Context, ns, key string, data []byte) error {
	if err := ValidateName(key); err != nil {
		return apperr.Validation(err)
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO documents (namespace, key, body, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(namespace, key) DO UPDATE SET
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, ns, key, data)
	if err != nil {
		return apperr.Storage(fmt.Sprintf("docstore: sqlite: put %s/%s", ns, key), err)
	}
	return nil
}

// Delete removes the row if present.
func (s *SQLite) Delete(ctx context.Context, ns, key string) error {
	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM documents WHERE namespace = ? AND key = ?`, ns, key); err != nil {
		return apperr.Storage(fmt.Sprintf("docstore: sqlite: delete %s/%s", ns, key), err)
	}
	return nil
}

// Keys lists the namespace's keys.
func (s *SQLite) Keys(ctx context.Context, ns string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT key FROM documents WHERE namespace = ?`, ns)
	if err != nil {
		return nil, apperr.Storage("docstore: sqlite: list "+ns, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, apperr.Storage("docstore: sqlite: scan key", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("docstore: sqlite: list "+ns, err)
	}
	return out, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
