package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gihan9a/positionmodeler/internal/document"
	"gihan9a/positionmodeler/internal/utils"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       TEXT NOT NULL,
	UNIQUE (collection, id)
)`

// SQLiteStore keeps every collection in one table of JSON bodies. Store order
// is insertion order (the autoincrement sequence).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database named by dsn
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection serialises writers so SQLITE_BUSY never reaches callers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) FindAll(ctx context.Context, collection string, match document.Predicate) ([]document.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM documents WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, document.Fault("find", err)
	}
	defer rows.Close()

	out := []document.Document{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, document.Fault("find", err)
		}
		doc, err := document.Unmarshal([]byte(body))
		if err != nil {
			return nil, document.Fault("find", err)
		}
		if match == nil || match(doc) {
			out = append(out, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, document.Fault("find", err)
	}
	return out, nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, collection, id string) (document.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, document.ErrNotFound
	}
	if err != nil {
		return nil, document.Fault("find", err)
	}
	doc, err := document.Unmarshal([]byte(body))
	if err != nil {
		return nil, document.Fault("find", err)
	}
	return doc, nil
}

func (s *SQLiteStore) InsertOne(ctx context.Context, collection string, doc document.Document) (document.Document, error) {
	stored, err := document.Normalize(doc)
	if err != nil {
		return nil, document.Fault("insert", err)
	}
	if stored.ID() == "" {
		stored.SetID(utils.NewID())
	}
	body, err := stored.Marshal()
	if err != nil {
		return nil, document.Fault("insert", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`, collection, stored.ID(), string(body))
	if err != nil {
		return nil, document.Fault("insert", err)
	}
	return stored, nil
}

func (s *SQLiteStore) ReplaceOne(ctx context.Context, collection string, doc document.Document) error {
	body, err := doc.Marshal()
	if err != nil {
		return document.Fault("replace", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET body = ? WHERE collection = ? AND id = ?`, string(body), collection, doc.ID())
	if err != nil {
		return document.Fault("replace", err)
	}
	return affected(res, "replace")
}

func (s *SQLiteStore) DeleteByID(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return document.Fault("delete", err)
	}
	return affected(res, "delete")
}

// DeleteMany evaluates match in Go, then removes the selected rows in one
// statement per id inside a single transaction.
func (s *SQLiteStore) DeleteMany(ctx context.Context, collection string, match document.Predicate) (int, error) {
	docs, err := s.FindAll(ctx, collection, match)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, document.Fault("delete", err)
	}
	defer tx.Rollback()

	removed := 0
	for _, doc := range docs {
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, doc.ID())
		if err != nil {
			return 0, document.Fault("delete", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, document.Fault("delete", err)
		}
		removed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, document.Fault("delete", err)
	}
	return removed, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func affected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return document.Fault(op, err)
	}
	if n == 0 {
		return document.ErrNotFound
	}
	return nil
}
