package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dshills/docrag-mcp/pkg/types"
)

const schema = `
CREATE TABLE documents (
	id       TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	text     TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	vector   BLOB NOT NULL
);
CREATE INDEX idx_documents_position ON documents(position);
`

// querier abstracts *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// openReadOnly opens an existing index database without write access
func openReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// openWritable creates or opens a database for Build
func openWritable(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	return db, nil
}

// readDocuments loads every row ordered by position
func readDocuments(ctx context.Context, q querier) ([]types.CandidateDocument, [][]float32, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, text, metadata, vector FROM documents ORDER BY position, id`)
	if err != nil {
		return nil, nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []types.CandidateDocument
	var vectors [][]float32
	for rows.Next() {
		var (
			doc      types.CandidateDocument
			metadata sql.NullString
			blob     []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &metadata, &blob); err != nil {
			return nil, nil, fmt.Errorf("scan document: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &doc.Metadata); err != nil {
				return nil, nil, fmt.Errorf("document %s: metadata: %w", doc.ID, err)
			}
		}
		vec, err := deserializeVector(blob)
		if err != nil {
			return nil, nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return docs, vectors, nil
}

// writeDocuments creates the schema and inserts docs in order
func writeDocuments(ctx context.Context, db *sql.DB, docs []types.CandidateDocument, vectors [][]float32) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (id, position, text, metadata, vector) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, doc := range docs {
		metadata := []byte("{}")
		if len(doc.Metadata) > 0 {
			if metadata, err = json.Marshal(doc.Metadata); err != nil {
				return fmt.Errorf("document %s: metadata: %w", doc.ID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, i, doc.Text, string(metadata), serializeVector(vectors[i])); err != nil {
			return fmt.Errorf("insert document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}
