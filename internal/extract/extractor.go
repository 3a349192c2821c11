package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"finparse-backend/internal/shared/telemetry"
)

const (
	defaultProbeTimeout = 10 * time.Second
	defaultFetchTimeout = 60 * time.Second
	defaultMaxBytes     = 50 << 20 // 50MB
)

// Config controls fetching and OCR behavior.
type Config struct {
	TesseractBin  string
	TesseractLang string
	ProbeTimeout  time.Duration
	FetchTimeout  time.Duration
	MaxFetchBytes int64
}

// Extractor turns a fetchable document URL into raw text. PDFs with an
// embedded text layer are read directly; everything else goes through OCR.
type Extractor struct {
	cfg     Config
	client  *http.Client
	runner  Runner
	pdfText func(data []byte) (string, error)
}

// New constructs an Extractor with defaults filled in.
func New(cfg Config) *Extractor {
	if cfg.TesseractBin == "" {
		cfg.TesseractBin = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.MaxFetchBytes <= 0 {
		cfg.MaxFetchBytes = defaultMaxBytes
	}
	return &Extractor{
		cfg:     cfg,
		client:  &http.Client{},
		runner:  execRunner{},
		pdfText: embeddedPDFText,
	}
}

// Extract fetches the document at sourceURL and returns its raw text.
// All failures come back as *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, sourceURL string) (string, error) {
	probedType := e.probeContentType(ctx, sourceURL)

	data, fetchedType, err := e.fetch(ctx, sourceURL)
	if err != nil {
		return "", err
	}

	contentType := fetchedType
	if contentType == "" {
		contentType = probedType
	}

	if isPDF(contentType, sourceURL) {
		if text, ok := e.tryEmbeddedText(data); ok {
			telemetry.Info("extract.pdf_text", map[string]any{
				"source_url": sourceURL,
				"chars":      len(text),
			})
			return text, nil
		}
	}

	text, err := e.ocr(ctx, data, sourceURL)
	if err != nil {
		return "", err
	}
	telemetry.Info("extract.ocr", map[string]any{
		"source_url": sourceURL,
		"chars":      len(text),
	})
	return text, nil
}

// probeContentType issues a HEAD request for the content type. Probe
// failures are tolerated; the GET response is authoritative anyway.
func (e *Extractor) probeContentType(ctx context.Context, sourceURL string) string {
	probeCtx, cancel := context.WithTimeout(ctx, e.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, sourceURL, nil)
	if err != nil {
		return ""
	}
	resp, err := e.client.Do(req)
	if err != nil {
		telemetry.Warn("extract.probe.failed", map[string]any{
			"source_url": sourceURL,
			"error":      err.Error(),
		})
		return ""
	}
	defer resp.Body.Close()
	return resp.Header.Get("Content-Type")
}

func (e *Extractor) fetch(ctx context.Context, sourceURL string) ([]byte, string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", failed("fetch", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", failed("fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", failed("fetch", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	limited := io.LimitReader(resp.Body, e.cfg.MaxFetchBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", failed("fetch", err)
	}
	if int64(len(data)) > e.cfg.MaxFetchBytes {
		return nil, "", failed("fetch", fmt.Errorf("document exceeds %d byte limit", e.cfg.MaxFetchBytes))
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// tryEmbeddedText attempts to read the PDF text layer. Any failure here,
// including panics from malformed PDFs, means "no embedded text" and the
// caller falls back to OCR.
func (e *Extractor) tryEmbeddedText(data []byte) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			text, ok = "", false
		}
	}()

	extracted, err := e.pdfText(data)
	if err != nil {
		return "", false
	}
	if strings.TrimSpace(extracted) == "" {
		return "", false
	}
	return extracted, true
}

func (e *Extractor) ocr(ctx context.Context, data []byte, sourceURL string) (string, error) {
	tmp, err := os.CreateTemp("", "finparse-ocr-*"+safeExt(sourceURL))
	if err != nil {
		return "", failed("ocr", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", failed("ocr", err)
	}
	if err := tmp.Close(); err != nil {
		return "", failed("ocr", err)
	}

	out, _, err := e.runner.Run(ctx, e.cfg.TesseractBin, tmp.Name(), "stdout", "-l", e.cfg.TesseractLang)
	if err != nil {
		return "", failed("ocr", err)
	}
	return string(out), nil
}

func embeddedPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func isPDF(contentType, sourceURL string) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	if u, err := url.Parse(sourceURL); err == nil {
		return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
	}
	return false
}

func safeExt(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(u.Path))
	switch ext {
	case ".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".webp":
		return ext
	}
	return ""
}
