package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finparse-backend/internal/documents"
	"finparse-backend/internal/queue"
	"finparse-backend/internal/shared/metrics"
	"finparse-backend/internal/shared/telemetry"
)

// Extractor produces raw text from a fetchable document URL.
type Extractor interface {
	Extract(ctx context.Context, sourceURL string) (string, error)
}

// Labeler produces the structured payload for raw text.
type Labeler interface {
	Label(ctx context.Context, rawText string) (map[string]any, error)
}

// Runner drives a document through PARSING to a terminal state. When a
// queue client is configured, TriggerParse enqueues the job for the worker
// process instead of spawning a goroutine.
type Runner struct {
	Repo      documents.Repo
	Extractor Extractor
	Labeler   Labeler
	Queue     queue.Client
}

// TriggerParse starts the parse run for a document and returns immediately.
func (r *Runner) TriggerParse(ctx context.Context, documentID string) {
	if r.Queue != nil {
		msg := queue.Message{
			DocumentID: documentID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		}
		err := r.Queue.Send(ctx, msg)
		if err == nil {
			telemetry.Info("pipeline.enqueued", map[string]any{
				"request_id":  msg.RequestID,
				"document_id": documentID,
			})
			return
		}
		// Enqueue failure falls back to an in-process run so the upload
		// still gets parsed.
		telemetry.Error("pipeline.enqueue.failed", map[string]any{
			"request_id":  msg.RequestID,
			"document_id": documentID,
			"error":       err.Error(),
		})
	}

	go r.Run(backgroundWithRequestID(ctx), documentID)
}

// Run executes the full parse state machine for one document. Every
// failure path lands the record in FAILED; nothing escapes to the caller.
func (r *Runner) Run(ctx context.Context, documentID string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(ctx, documentID, fmt.Sprintf("internal error: %v", rec), nil)
		}
	}()

	startedAt := time.Now().UTC()

	// A failed entry write aborts the run and leaves the record in
	// UPLOADED, eligible for a manual reparse.
	if err := r.Repo.SetStatus(ctx, documentID, documents.StatusParsing); err != nil {
		telemetry.Error("pipeline.mark_parsing_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"document_id": documentID,
			"error":       err.Error(),
		})
		return
	}
	metrics.IncParseStarted()
	r.logStatus(ctx, documentID, documents.StatusParsing, "UPLOADED->PARSING", nil)

	doc, err := r.Repo.GetAny(ctx, documentID)
	if err != nil {
		r.fail(ctx, documentID, fmt.Sprintf("document lookup failed: %v", err), &startedAt)
		return
	}

	rawText, err := r.Extractor.Extract(ctx, doc.FileURL)
	if err != nil {
		r.fail(ctx, documentID, fmt.Sprintf("text extraction failed: %v", err), &startedAt)
		return
	}
	if strings.TrimSpace(rawText) == "" {
		r.fail(ctx, documentID, "no text could be extracted from the document", &startedAt)
		return
	}

	payload, err := r.Labeler.Label(ctx, rawText)
	if err != nil {
		r.fail(ctx, documentID, fmt.Sprintf("labeling failed: %v", err), &startedAt)
		return
	}

	if err := r.Repo.SetParsed(ctx, documentID, payload); err != nil {
		r.fail(ctx, documentID, fmt.Sprintf("failed to store parsed data: %v", err), &startedAt)
		return
	}
	metrics.IncParseCompleted()
	metrics.ObserveParseDurationMs(sinceMs(startedAt))
	r.logStatus(ctx, documentID, documents.StatusParsed, "PARSING->PARSED", &startedAt)
}

// Sweep fails documents stuck in PARSING since before the cutoff. Worker
// crashes mid-run leave records in PARSING with no goroutine to finish them.
func (r *Runner) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	stuck, err := r.Repo.ListStuckParsing(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	for _, doc := range stuck {
		if err := r.Repo.SetFailed(ctx, doc.ID, "parsing timed out"); err != nil {
			telemetry.Error("pipeline.sweep.fail_failed", map[string]any{
				"document_id": doc.ID,
				"error":       err.Error(),
			})
			continue
		}
		metrics.IncParseFailed()
		telemetry.Warn("pipeline.sweep.failed_stale", map[string]any{
			"document_id": doc.ID,
			"stale_since": doc.UpdatedAt.Format(time.RFC3339),
		})
	}
	return len(stuck), nil
}

// fail moves the document to FAILED, best effort. The update uses a fresh
// context so a canceled run context cannot block the terminal transition.
func (r *Runner) fail(ctx context.Context, documentID, message string, startedAt *time.Time) {
	if err := r.Repo.SetFailed(context.Background(), documentID, message); err != nil {
		telemetry.Error("pipeline.fail_update_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"document_id": documentID,
			"error":       err.Error(),
			"original":    message,
		})
	}
	metrics.IncParseFailed()
	if startedAt != nil {
		metrics.ObserveParseDurationMs(sinceMs(*startedAt))
	}
	r.logStatus(ctx, documentID, documents.StatusFailed, "PARSING->FAILED", startedAt)
}

func (r *Runner) logStatus(ctx context.Context, documentID, status, transition string, startedAt *time.Time) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"document_id":       documentID,
		"status":            status,
		"status_transition": transition,
	}
	if startedAt != nil {
		fields["duration_ms"] = sinceMs(*startedAt)
	}
	telemetry.Info("document.status", fields)
}

func sinceMs(startedAt time.Time) float64 {
	return float64(time.Since(startedAt).Microseconds()) / 1000.0
}
