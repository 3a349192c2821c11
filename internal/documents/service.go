package documents

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"finparse-backend/internal/shared/storage/object"
)

// ParseTrigger starts the asynchronous parse run for a document. The call
// must return quickly; the run itself happens in the background.
type ParseTrigger interface {
	TriggerParse(ctx context.Context, documentID string)
}

// Service contains business logic for documents.
type Service struct {
	Store   object.ObjectStore
	Repo    Repo
	Trigger ParseTrigger
}

// Upload saves the file to object storage, records the document as UPLOADED
// and kicks off the parse pipeline.
func (s *Service) Upload(ctx context.Context, userID, fileName string, r io.Reader) (Document, error) {
	if fileName == "" {
		return Document{}, ErrInvalidInput
	}

	storageKey, size, _, err := s.Store.Save(ctx, userID, fileName, r)
	if err != nil {
		return Document{}, err
	}

	now := time.Now().UTC()
	doc := Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		FileURL:   s.Store.URL(storageKey),
		FileName:  fileName,
		SizeBytes: size,
		Status:    StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}

	s.Trigger.TriggerParse(ctx, doc.ID)
	return doc, nil
}

// Reparse re-enters the parse pipeline for a document already in a terminal
// state, reusing its stored file URL. A document still PARSING is rejected.
func (s *Service) Reparse(ctx context.Context, userID, documentID string) (Document, error) {
	doc, err := s.Repo.GetByID(ctx, userID, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.Status == StatusParsing {
		return Document{}, ErrParseInFlight
	}

	s.Trigger.TriggerParse(ctx, doc.ID)
	return doc, nil
}

// Get returns a document owned by userID.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	return s.Repo.GetByID(ctx, userID, documentID)
}

// List returns a user's documents ordered by creation time ascending.
func (s *Service) List(ctx context.Context, userID string) ([]Document, error) {
	return s.Repo.ListByUser(ctx, userID)
}
