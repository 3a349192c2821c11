package documents_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"finparse-backend/internal/bootstrap"
	"finparse-backend/internal/documents"
	"finparse-backend/internal/shared/config"
)

type recordingTrigger struct {
	documentIDs []string
}

func (r *recordingTrigger) TriggerParse(ctx context.Context, documentID string) {
	r.documentIDs = append(r.documentIDs, documentID)
}

func buildTestApp(t *testing.T) (*bootstrap.App, *recordingTrigger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:3000"},
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		PublicBaseURL:   "http://localhost:4000",
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}

	trigger := &recordingTrigger{}
	app.DocumentsService.Trigger = trigger
	return app, trigger
}

func uploadFile(t *testing.T, router *gin.Engine, fileName, contents string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write([]byte(contents)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Guest-Id", "test-guest")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestUploadCreatesDocumentAndTriggersParse(t *testing.T) {
	app, trigger := buildTestApp(t)

	resp := uploadFile(t, app.Router, "invoice.pdf", "%PDF-1.4 fake invoice")
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created documents.Document
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if created.Status != documents.StatusUploaded {
		t.Fatalf("expected UPLOADED, got %s", created.Status)
	}
	if created.FileURL == "" {
		t.Fatalf("expected a file URL")
	}
	if created.UserID != "guest:test-guest" {
		t.Fatalf("expected guest user id, got %s", created.UserID)
	}

	if len(trigger.documentIDs) != 1 || trigger.documentIDs[0] != created.ID {
		t.Fatalf("expected parse trigger for %s, got %v", created.ID, trigger.documentIDs)
	}
}

func TestUploadWithoutFileReturns400(t *testing.T) {
	app, _ := buildTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil)
	req.Header.Set("X-Guest-Id", "test-guest")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetDocumentEnforcesOwnership(t *testing.T) {
	app, _ := buildTestApp(t)

	resp := uploadFile(t, app.Router, "invoice.pdf", "contents")
	var created documents.Document
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+created.ID, nil)
	req.Header.Set("X-Guest-Id", "someone-else")
	recorder := httptest.NewRecorder()
	app.Router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another owner, got %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+created.ID, nil)
	req.Header.Set("X-Guest-Id", "test-guest")
	recorder = httptest.NewRecorder()
	app.Router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", recorder.Code)
	}
}

func TestListDocumentsScopedToIdentity(t *testing.T) {
	app, _ := buildTestApp(t)

	if resp := uploadFile(t, app.Router, "a.pdf", "first"); resp.Code != http.StatusCreated {
		t.Fatalf("upload a.pdf: %d", resp.Code)
	}
	if resp := uploadFile(t, app.Router, "b.pdf", "second"); resp.Code != http.StatusCreated {
		t.Fatalf("upload b.pdf: %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/guest:test-guest/documents", nil)
	req.Header.Set("X-Guest-Id", "test-guest")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var docs []documents.Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].FileName != "a.pdf" || docs[1].FileName != "b.pdf" {
		t.Fatalf("expected creation-order listing, got %s then %s", docs[0].FileName, docs[1].FileName)
	}

	// Another identity cannot read this user's listing.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/guest:test-guest/documents", nil)
	req.Header.Set("X-Guest-Id", "intruder")
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestReparseRequiresTerminalState(t *testing.T) {
	app, trigger := buildTestApp(t)

	resp := uploadFile(t, app.Router, "invoice.pdf", "contents")
	var created documents.Document
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// Simulate an in-flight parse.
	if err := app.DocumentsRepo.SetStatus(context.Background(), created.ID, documents.StatusParsing); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+created.ID+"/reparse", nil)
	req.Header.Set("X-Guest-Id", "test-guest")
	recorder := httptest.NewRecorder()
	app.Router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 while PARSING, got %d", recorder.Code)
	}

	if err := app.DocumentsRepo.SetFailed(context.Background(), created.ID, "ocr failed"); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}

	triggersBefore := len(trigger.documentIDs)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+created.ID+"/reparse", nil)
	req.Header.Set("X-Guest-Id", "test-guest")
	recorder = httptest.NewRecorder()
	app.Router.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202 from terminal state, got %d", recorder.Code)
	}
	if len(trigger.documentIDs) != triggersBefore+1 {
		t.Fatalf("expected reparse to trigger the pipeline")
	}
}

func TestRequestsWithoutIdentityAreRejected(t *testing.T) {
	app, _ := buildTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/some-id", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity headers, got %d", resp.Code)
	}
}
