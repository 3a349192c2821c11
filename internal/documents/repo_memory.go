package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores documents in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Document)}
}

// Create stores the document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[doc.ID] = doc
	return nil
}

// GetByID returns a document owned by userID.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byID[documentID]
	if !ok || doc.UserID != userID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// GetAny returns a document regardless of owner.
func (r *MemoryRepo) GetAny(ctx context.Context, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListByUser returns a user's documents ordered by creation time ascending.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := make([]Document, 0)
	for _, doc := range r.byID {
		if doc.UserID == userID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

// SetStatus updates the status and bumps updated_at.
func (r *MemoryRepo) SetStatus(ctx context.Context, documentID, status string) error {
	return r.mutate(ctx, documentID, func(doc *Document) {
		doc.Status = status
	})
}

// SetParsed stores parsed data, moves to PARSED and clears the error message.
func (r *MemoryRepo) SetParsed(ctx context.Context, documentID string, data map[string]any) error {
	return r.mutate(ctx, documentID, func(doc *Document) {
		doc.Status = StatusParsed
		doc.ParsedData = data
		doc.ErrorMessage = nil
	})
}

// SetFailed records the failure, moves to FAILED and clears parsed data.
func (r *MemoryRepo) SetFailed(ctx context.Context, documentID, errorMessage string) error {
	return r.mutate(ctx, documentID, func(doc *Document) {
		doc.Status = StatusFailed
		doc.ErrorMessage = &errorMessage
		doc.ParsedData = nil
	})
}

// ListStuckParsing returns PARSING documents not updated since the cutoff.
func (r *MemoryRepo) ListStuckParsing(ctx context.Context, olderThan time.Time) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	stuck := make([]Document, 0)
	for _, doc := range r.byID {
		if doc.Status == StatusParsing && doc.UpdatedAt.Before(olderThan) {
			stuck = append(stuck, doc)
		}
	}
	sort.Slice(stuck, func(i, j int) bool {
		return stuck[i].UpdatedAt.Before(stuck[j].UpdatedAt)
	})
	return stuck, nil
}

func (r *MemoryRepo) mutate(ctx context.Context, documentID string, apply func(*Document)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return ErrNotFound
	}
	apply(&doc)
	doc.UpdatedAt = time.Now().UTC()
	r.byID[documentID] = doc
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
