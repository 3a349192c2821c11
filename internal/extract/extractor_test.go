package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stubRunner struct {
	stdout string
	err    error
	calls  int
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls++
	if s.err != nil {
		return nil, []byte("tesseract error"), s.err
	}
	return []byte(s.stdout), nil, nil
}

func newTestExtractor(pdfText func([]byte) (string, error), runner Runner) *Extractor {
	e := New(Config{})
	if pdfText != nil {
		e.pdfText = pdfText
	}
	if runner != nil {
		e.runner = runner
	}
	return e
}

func servePDF(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractPrefersEmbeddedPDFText(t *testing.T) {
	srv := servePDF(t, "%PDF-1.4 fake bytes")
	runner := &stubRunner{stdout: "ocr text"}
	e := newTestExtractor(func(data []byte) (string, error) {
		return "Invoice #42\nTotal: 110.50", nil
	}, runner)

	text, err := e.Extract(context.Background(), srv.URL+"/invoice.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "Invoice #42") {
		t.Fatalf("expected embedded text, got %q", text)
	}
	if runner.calls != 0 {
		t.Fatalf("expected no OCR call, got %d", runner.calls)
	}
}

func TestExtractFallsBackToOCRWhenNoEmbeddedText(t *testing.T) {
	srv := servePDF(t, "%PDF-1.4 scanned")
	runner := &stubRunner{stdout: "scanned receipt text"}
	e := newTestExtractor(func(data []byte) (string, error) {
		return "   \n\t", nil
	}, runner)

	text, err := e.Extract(context.Background(), srv.URL+"/scan.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "scanned receipt text" {
		t.Fatalf("expected OCR text, got %q", text)
	}
	if runner.calls != 1 {
		t.Fatalf("expected one OCR call, got %d", runner.calls)
	}
}

func TestExtractFallsBackToOCRWhenPDFReaderPanics(t *testing.T) {
	srv := servePDF(t, "not really a pdf")
	runner := &stubRunner{stdout: "recovered text"}
	e := newTestExtractor(func(data []byte) (string, error) {
		panic("malformed xref table")
	}, runner)

	text, err := e.Extract(context.Background(), srv.URL+"/broken.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "recovered text" {
		t.Fatalf("expected OCR text after panic, got %q", text)
	}
}

func TestExtractOCRFailureReturnsExtractionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png bytes"))
	}))
	t.Cleanup(srv.Close)

	runner := &stubRunner{err: errors.New("exit status 1")}
	e := newTestExtractor(nil, runner)

	_, err := e.Extract(context.Background(), srv.URL+"/receipt.png")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if extractionErr.Stage != "ocr" {
		t.Fatalf("expected ocr stage, got %s", extractionErr.Stage)
	}
}

func TestExtractRejectsOversizedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(make([]byte, 2048))
	}))
	t.Cleanup(srv.Close)

	e := newTestExtractor(nil, &stubRunner{})
	e.cfg.MaxFetchBytes = 1024

	_, err := e.Extract(context.Background(), srv.URL+"/big.pdf")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if extractionErr.Stage != "fetch" {
		t.Fatalf("expected fetch stage, got %s", extractionErr.Stage)
	}
}

func TestExtractFetchErrorReturnsExtractionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	e := newTestExtractor(nil, &stubRunner{})

	_, err := e.Extract(context.Background(), srv.URL+"/missing.pdf")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestExtractToleratesHeadProbeFailure(t *testing.T) {
	var headCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			headCalls++
			http.Error(w, "no head", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	t.Cleanup(srv.Close)

	e := newTestExtractor(func(data []byte) (string, error) {
		return "text despite failed probe", nil
	}, &stubRunner{})

	text, err := e.Extract(context.Background(), srv.URL+"/doc.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "text despite failed probe" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestIsPDFByContentTypeAndSuffix(t *testing.T) {
	cases := []struct {
		contentType string
		url         string
		want        bool
	}{
		{"application/pdf", "http://x/doc.bin", true},
		{"application/octet-stream", "http://x/doc.pdf", true},
		{"image/png", "http://x/scan.png", false},
		{"", "http://x/statement.PDF", true},
	}
	for _, tc := range cases {
		if got := isPDF(tc.contentType, tc.url); got != tc.want {
			t.Fatalf("isPDF(%q, %q) = %v, want %v", tc.contentType, tc.url, got, tc.want)
		}
	}
}
