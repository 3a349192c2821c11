package documents

import (
	"context"
	"time"
)

// Repo defines persistence operations for documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	// GetByID returns the document only if it belongs to userID.
	GetByID(ctx context.Context, userID, documentID string) (Document, error)
	// GetAny returns the document regardless of owner. Used by the
	// background pipeline, which has no request identity.
	GetAny(ctx context.Context, documentID string) (Document, error)
	// ListByUser returns a user's documents ordered by creation time ascending.
	ListByUser(ctx context.Context, userID string) ([]Document, error)
	SetStatus(ctx context.Context, documentID, status string) error
	// SetParsed stores the extraction result, moves the document to PARSED
	// and clears any prior error message.
	SetParsed(ctx context.Context, documentID string, data map[string]any) error
	// SetFailed records the failure message, moves the document to FAILED
	// and clears any prior parsed data.
	SetFailed(ctx context.Context, documentID, errorMessage string) error
	// ListStuckParsing returns documents left in PARSING whose last update
	// is older than the cutoff.
	ListStuckParsing(ctx context.Context, olderThan time.Time) ([]Document, error)
}
