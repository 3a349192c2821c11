package documents

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	doc := Document{
		ID:        "doc-1",
		UserID:    "user-1",
		FileURL:   "http://localhost:4000/files/abc/doc-1.pdf",
		FileName:  "invoice.pdf",
		SizeBytes: 2048,
		Status:    StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			doc.ID,
			doc.UserID,
			doc.FileURL,
			doc.FileName,
			doc.SizeBytes,
			doc.Status,
			nil,
			nil,
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSetParsedUpdatesStatusAndClearsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE documents").
		WithArgs(sqlmock.AnyArg(), "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetParsed(context.Background(), "doc-1", map[string]any{"document_type": "receipt"}); err != nil {
		t.Fatalf("SetParsed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSetFailedUnknownDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE documents").
		WithArgs("boom", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SetFailed(context.Background(), "missing", "boom"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDScansParsedData(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "file_url", "file_name", "size_bytes",
		"status", "parsed_data", "error_message", "created_at", "updated_at",
	}).AddRow(
		"doc-1", "user-1", "http://localhost:4000/files/abc/doc-1.pdf", "invoice.pdf", int64(2048),
		StatusParsed, `{"document_type":"invoice","total":110.5}`, nil, now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM documents").
		WithArgs("doc-1", "user-1").
		WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "user-1", "doc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Status != StatusParsed {
		t.Fatalf("expected PARSED, got %s", doc.Status)
	}
	if doc.ParsedData["document_type"] != "invoice" {
		t.Fatalf("expected parsed data, got %+v", doc.ParsedData)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
