package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"finparse-backend/internal/bootstrap"
	"finparse-backend/internal/pipeline"
	"finparse-backend/internal/queue"
	"finparse-backend/internal/shared/config"
	"finparse-backend/internal/shared/telemetry"
)

const (
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
	defaultSweepIntervalSec   = 60
)

func main() {
	cfg := config.Load()
	if cfg.ParseQueueURL == "" {
		log.Fatal("FP_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	if app.Queue == nil {
		log.Fatal("queue client not configured")
	}

	concurrency := envInt("FP_WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("FP_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second
	sweepInterval := time.Duration(envInt("FP_SWEEP_INTERVAL_SECONDS", defaultSweepIntervalSec)) * time.Second

	sem := make(chan struct{}, maxInt(1, concurrency))
	var wg sync.WaitGroup

	// Periodically fail documents stuck in PARSING by a crashed run.
	go sweepLoop(ctx, app.Pipeline, sweepInterval, cfg.SweepAfter)

	log.Printf("worker started queue=%s concurrency=%d", cfg.ParseQueueURL, concurrency)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		received, err := app.Queue.Receive(ctx, 10)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range received {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m queue.Received) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, app, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

func handleMessage(ctx context.Context, app *bootstrap.App, m queue.Received) {
	if strings.TrimSpace(m.Message.DocumentID) == "" {
		telemetry.Error("worker.parse.missing_document_id", map[string]any{
			"request_id": m.Message.RequestID,
		})
		_ = app.Queue.Delete(ctx, m.ReceiptHandle)
		return
	}

	telemetry.Info("worker.parse.received", map[string]any{
		"request_id":  m.Message.RequestID,
		"document_id": m.Message.DocumentID,
	})

	runCtx := pipeline.WithRequestID(ctx, m.Message.RequestID)
	app.Pipeline.Run(runCtx, m.Message.DocumentID)

	// Run never fails the worker; the document always reaches a terminal
	// state, so the message is done either way.
	if err := app.Queue.Delete(ctx, m.ReceiptHandle); err != nil {
		telemetry.Error("worker.parse.delete_failed", map[string]any{
			"request_id":  m.Message.RequestID,
			"document_id": m.Message.DocumentID,
			"error":       err.Error(),
		})
		return
	}

	telemetry.Info("worker.parse.completed", map[string]any{
		"request_id":  m.Message.RequestID,
		"document_id": m.Message.DocumentID,
	})
}

func sweepLoop(ctx context.Context, runner *pipeline.Runner, interval, staleAfter time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-staleAfter)
			swept, err := runner.Sweep(ctx, cutoff)
			if err != nil {
				log.Printf("sweep: %v", err)
				continue
			}
			if swept > 0 {
				log.Printf("sweep: failed %d stale parsing documents", swept)
			}
		}
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
