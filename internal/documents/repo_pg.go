package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, user_id, file_url, file_name, size_bytes, status, parsed_data, error_message, created_at, updated_at`

// Create inserts a new document row.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (id, user_id, file_url, file_name, size_bytes, status, parsed_data, error_message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	payload, err := marshalJSONB(doc.ParsedData)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.UserID,
		doc.FileURL,
		doc.FileName,
		doc.SizeBytes,
		doc.Status,
		payload,
		doc.ErrorMessage,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return err
}

// GetByID returns the document only if it belongs to userID.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE id = $1 AND user_id = $2
LIMIT 1`
	return scanDocument(r.DB.QueryRowContext(ctx, query, documentID, userID))
}

// GetAny returns the document regardless of owner.
func (r *PGRepo) GetAny(ctx context.Context, documentID string) (Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE id = $1
LIMIT 1`
	return scanDocument(r.DB.QueryRowContext(ctx, query, documentID))
}

// ListByUser returns a user's documents ordered by creation time ascending.
func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE user_id = $1
ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// SetStatus updates the status and bumps updated_at.
func (r *PGRepo) SetStatus(ctx context.Context, documentID, status string) error {
	const query = `
UPDATE documents
SET status = $1, updated_at = now()
WHERE id = $2`
	return r.execExpectingRow(ctx, query, status, documentID)
}

// SetParsed stores parsed data, moves to PARSED and clears the error message.
func (r *PGRepo) SetParsed(ctx context.Context, documentID string, data map[string]any) error {
	const query = `
UPDATE documents
SET status = 'PARSED', parsed_data = $1::jsonb, error_message = NULL, updated_at = now()
WHERE id = $2`
	payload, err := marshalJSONB(data)
	if err != nil {
		return err
	}
	return r.execExpectingRow(ctx, query, payload, documentID)
}

// SetFailed records the failure, moves to FAILED and clears parsed data.
func (r *PGRepo) SetFailed(ctx context.Context, documentID, errorMessage string) error {
	const query = `
UPDATE documents
SET status = 'FAILED', error_message = $1, parsed_data = NULL, updated_at = now()
WHERE id = $2`
	return r.execExpectingRow(ctx, query, errorMessage, documentID)
}

// ListStuckParsing returns PARSING documents not updated since the cutoff.
func (r *PGRepo) ListStuckParsing(ctx context.Context, olderThan time.Time) ([]Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE status = 'PARSING' AND updated_at < $1
ORDER BY updated_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (r *PGRepo) execExpectingRow(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var parsedData sql.NullString
	var errorMessage sql.NullString
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.FileURL,
		&doc.FileName,
		&doc.SizeBytes,
		&doc.Status,
		&parsedData,
		&errorMessage,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	if parsedData.Valid {
		doc.ParsedData = map[string]any{}
		if err := json.Unmarshal([]byte(parsedData.String), &doc.ParsedData); err != nil {
			doc.ParsedData = nil
		}
	}
	if errorMessage.Valid {
		doc.ErrorMessage = &errorMessage.String
	}
	return doc, nil
}

func collectDocuments(rows *sql.Rows) ([]Document, error) {
	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func marshalJSONB(data map[string]any) (any, error) {
	if data == nil {
		return nil, nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

var _ Repo = (*PGRepo)(nil)
