// Package worker contiene la lógica del procesador de trabajos de impresión.
package worker

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/semaphore"

	"github.com/adcondev/pdf-daemon/internal/metrics"
	"github.com/adcondev/pdf-daemon/internal/printer"
	"github.com/adcondev/pdf-daemon/internal/server"
	"github.com/adcondev/pdf-daemon/internal/sumatra"
	workererrors "github.com/adcondev/pdf-daemon/internal/worker/errors"
)

// Config holds worker configuration
type Config struct {
	DefaultPrinter string        // Fallback printer name if not specified in the request
	PrintTimeout   time.Duration // Used when the request has no timeout; 0 lets the printer decide
}

// ClientNotifier interface for sending results back to clients
type ClientNotifier interface {
	NotifyClient(conn *websocket.Conn, response server.Response) error
}

// Printer runs SumatraPDF with bounded concurrency; *sumatra.Printer implements it.
type Printer interface {
	Run(ctx context.Context, options sumatra.PrintingOptions, timeout time.Duration) (sumatra.Outcome, error)
	Capacity() int
	InFlight() int
	Available() int
}

// Worker consumes print jobs from the queue and hands each one to the Printer.
// A job leaves the queue only once a print slot is free, so the queue stays the backlog.
type Worker struct {
	jobQueue <-chan *server.PrintJob
	notifier ClientNotifier
	printer  Printer
	config   Config
	slots    *semaphore.Weighted

	ctx      context.Context
	cancel   context.CancelFunc
	loopCtx  context.Context
	stopLoop context.CancelFunc
	loopWG   sync.WaitGroup
	jobsWG   sync.WaitGroup

	mu            sync.Mutex
	isRunning     bool
	jobsProcessed int64
	jobsFailed    int64
	jobsTimedOut  int64
	jobsActive    int64
	lastJobTime   time.Time
}

// NewWorker creates a new print worker
func NewWorker(jobQueue <-chan *server.PrintJob, notifier ClientNotifier, p Printer, config Config) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	loopCtx, stopLoop := context.WithCancel(context.Background())
	return &Worker{
		jobQueue: jobQueue,
		notifier: notifier,
		printer:  p,
		config:   config,
		slots:    semaphore.NewWeighted(int64(max(p.Capacity(), 1))),
		ctx:      ctx,
		cancel:   cancel,
		loopCtx:  loopCtx,
		stopLoop: stopLoop,
	}
}

// Start begins the worker goroutine
func (w *Worker) Start() {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = true
	w.mu.Unlock()

	w.loopWG.Add(1)
	go w.run()

	log.Printf("[WORKER] ✅ Print worker started (max %d concurrent SumatraPDF processes)", w.printer.Capacity())
}

// Stop stops taking jobs, kills prints still running and waits for them to settle.
// Jobs still waiting in the queue are left there.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.mu.Unlock()

	w.stopLoop()
	w.loopWG.Wait()

	w.cancel()
	w.jobsWG.Wait()

	stats := w.Stats()
	log.Printf("[WORKER] 🛑 Print worker stopped (processed: %d, timed out: %d, failed: %d)",
		stats.JobsProcessed, stats.JobsTimedOut, stats.JobsFailed)
}

// run is the main worker loop
func (w *Worker) run() {
	defer w.loopWG.Done()

	log.Println("[i] Iniciando escucha de trabajos de impresión")

	for {
		// Hold a slot before dequeuing; a full printer leaves jobs in the channel
		if err := w.slots.Acquire(w.loopCtx, 1); err != nil {
			log.Println("[i] Terminando escucha de trabajos")
			return
		}

		select {
		case <-w.loopCtx.Done():
			w.slots.Release(1)
			log.Println("[i] Terminando escucha de trabajos")
			return

		case job, ok := <-w.jobQueue:
			if !ok {
				w.slots.Release(1)
				log.Println("[WORKER] 📴 Job channel closed, exiting")
				return
			}
			w.jobsWG.Add(1)
			go func() {
				defer w.jobsWG.Done()
				defer w.slots.Release(1)
				w.processJob(job)
			}()
		}
	}
}

// processJob handles a single print job
func (w *Worker) processJob(job *server.PrintJob) {
	startTime := time.Now()
	log.Printf("[WORKER] 🔄 Processing job: %s", job.ID)

	w.mu.Lock()
	w.jobsActive++
	w.mu.Unlock()

	outcome, err := w.executePrint(job)

	duration := time.Since(startTime)

	w.mu.Lock()
	w.jobsActive--
	w.lastJobTime = time.Now()
	switch {
	case err != nil:
		w.jobsFailed++
	case outcome == sumatra.OutcomeTimedOut:
		w.jobsTimedOut++
	default:
		w.jobsProcessed++
	}
	w.mu.Unlock()

	var response server.Response
	switch {
	case err != nil:
		// Log detailed error to file for debugging
		log.Printf("[WORKER] ❌ Job %s FAILED after %v: %v", job.ID, duration, err)
		metrics.ObservePrint(metrics.ResultFailed, duration)
		response = server.Response{
			Tipo:    "result",
			ID:      job.ID,
			Status:  "error",
			Mensaje: workererrors.ExtractUserFriendlyError(err),
		}

	case outcome == sumatra.OutcomeTimedOut:
		log.Printf("[WORKER] ⏱️ Job %s killed after %v", job.ID, duration)
		metrics.ObservePrint(metrics.ResultTimedOut, duration)
		response = server.Response{
			Tipo:    "result",
			ID:      job.ID,
			Status:  "timeout",
			Mensaje: fmt.Sprintf("SumatraPDF did not finish in time and was stopped after %v", duration.Round(time.Millisecond)),
		}

	default:
		log.Printf("[WORKER] ✅ Job %s completed in %v", job.ID, duration)
		metrics.ObservePrint(metrics.ResultCompleted, duration)
		response = server.Response{
			Tipo:    "result",
			ID:      job.ID,
			Status:  "success",
			Mensaje: fmt.Sprintf("Print completed in %v", duration.Round(time.Millisecond)),
		}
	}

	// Notify client (async to not block the job goroutine on a slow socket)
	if job.ClientConn != nil && w.notifier != nil {
		go func() {
			if err := w.notifier.NotifyClient(job.ClientConn, response); err != nil {
				log.Printf("[WORKER] ⚠️ Failed to notify client for job %s: %v", job.ID, err)
			}
		}()
	}
}

// executePrint runs SumatraPDF for the job through the bounded printer
func (w *Worker) executePrint(job *server.PrintJob) (outcome sumatra.Outcome, err error) {
	// Capturar panics y convertirlos en errores
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered in executePrint: %v", r)
			log.Printf("[WORKER] 💥 Panic in job %s: %v\nStack: %s", job.ID, r, debug.Stack())
		}
	}()

	options := w.buildOptions(job.Request)
	log.Printf("[WORKER] 🖨️ Job %s -> SumatraPDF %s", job.ID, options)

	return w.printer.Run(w.ctx, options, w.timeoutFor(job.Request))
}

// buildOptions maps a request to SumatraPDF options, applying the default printer
func (w *Worker) buildOptions(req printer.Request) sumatra.PrintingOptions {
	printerName := req.Printer
	if printerName == "" {
		printerName = w.config.DefaultPrinter
	}

	options := sumatra.NewPrintingOptions(printerName, req.File)
	if req.Copies != nil {
		options = options.WithCopies(*req.Copies)
	}
	return options
}

// timeoutFor picks the request timeout, then the configured one
func (w *Worker) timeoutFor(req printer.Request) time.Duration {
	if req.TimeoutSeconds > 0 {
		return time.Duration(req.TimeoutSeconds) * time.Second
	}
	return w.config.PrintTimeout
}

// GateStatus reports the printer's admission slots
func (w *Worker) GateStatus() printer.GateStatus {
	return printer.GateStatus{
		Capacity:  w.printer.Capacity(),
		InFlight:  w.printer.InFlight(),
		Available: w.printer.Available(),
	}
}

// Stats returns current worker statistics
func (w *Worker) Stats() Statistics {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Statistics{
		IsRunning:     w.isRunning,
		JobsProcessed: w.jobsProcessed,
		JobsFailed:    w.jobsFailed,
		JobsTimedOut:  w.jobsTimedOut,
		JobsActive:    w.jobsActive,
		LastJobTime:   w.lastJobTime,
	}
}

// Statistics holds worker runtime statistics
type Statistics struct {
	IsRunning     bool      `json:"is_running"`
	JobsProcessed int64     `json:"jobs_processed"`
	JobsFailed    int64     `json:"jobs_failed"`
	JobsTimedOut  int64     `json:"jobs_timed_out"`
	JobsActive    int64     `json:"jobs_active"`
	LastJobTime   time.Time `json:"last_job_time,omitempty"`
}
