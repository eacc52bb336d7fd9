package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scanbay/internal/config"
	"scanbay/internal/enrich"
	"scanbay/internal/jobs"
	"scanbay/internal/logging"
	"scanbay/internal/services"
	"scanbay/internal/storage"
)

// sweepInterval bounds how long a pending job can sit outside the channel.
const sweepInterval = 30 * time.Second

// Runner executes one identification run. Satisfied by *enrich.Orchestrator.
type Runner interface {
	Run(ctx context.Context, input enrich.Input) (*enrich.Result, error)
}

// Dispatcher owns the worker pool draining the job queue.
type Dispatcher struct {
	store   *jobs.Store
	runner  Runner
	objects storage.Store
	workers config.Workers
	logger  *slog.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	queue    chan string
	enqueued map[string]struct{}
}

// New creates a dispatcher. The queue depth and worker count come from the
// workers config section; both are clamped to at least one.
func New(store *jobs.Store, runner Runner, objects storage.Store, workers config.Workers, logger *slog.Logger) *Dispatcher {
	depth := workers.QueueDepth
	if depth < 1 {
		depth = 1
	}
	if workers.Count < 1 {
		workers.Count = 1
	}
	if workers.MaxAttempts < 1 {
		workers.MaxAttempts = 1
	}
	return &Dispatcher{
		store:    store,
		runner:   runner,
		objects:  objects,
		workers:  workers,
		logger:   logging.NewComponentLogger(logger, "dispatch"),
		queue:    make(chan string, depth),
		enqueued: make(map[string]struct{}),
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("dispatcher already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.wg.Add(d.workers.Count + 1)
	for i := 0; i < d.workers.Count; i++ {
		go d.runWorker(runCtx, i)
	}
	go d.runPendingSweep(runCtx)
	return nil
}

// Stop terminates the workers and waits for in-flight jobs to finish their
// current step. Pending queue entries survive in the database.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
}

// Enqueue hands a job id to the pool. A job already sitting in the channel is
// not enqueued twice; a full channel is reported so the caller can surface
// backpressure.
func (d *Dispatcher) Enqueue(id string) error {
	d.mu.Lock()
	if _, ok := d.enqueued[id]; ok {
		d.mu.Unlock()
		return nil
	}
	d.enqueued[id] = struct{}{}
	d.mu.Unlock()

	select {
	case d.queue <- id:
		return nil
	default:
		d.forget(id)
		return services.Wrap(services.ErrValidation, "dispatch", "enqueue", "queue is full", nil)
	}
}

// Recover resets jobs stuck in processing from a previous run and re-enqueues
// everything pending. Called once at daemon startup before Start.
func (d *Dispatcher) Recover(ctx context.Context) error {
	reset, err := d.store.ResetStuckProcessing(ctx)
	if err != nil {
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	if reset > 0 {
		d.logger.Info("reset stuck processing jobs", logging.Int64("count", reset))
	}

	pending, err := d.store.List(ctx, jobs.StatusPending)
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}
	for _, job := range pending {
		if err := d.Enqueue(job.ID); err != nil {
			d.logger.Warn("recovered job left for a later sweep",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		}
	}
	return nil
}

// runPendingSweep periodically re-enqueues pending jobs that missed their
// channel slot, for example submissions that arrived while the queue was full.
func (d *Dispatcher) runPendingSweep(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := d.store.List(ctx, jobs.StatusPending)
			if err != nil {
				d.logger.Warn("pending sweep failed", logging.Error(err))
				continue
			}
			for _, job := range pending {
				_ = d.Enqueue(job.ID)
			}
		}
	}
}

func (d *Dispatcher) forget(id string) {
	d.mu.Lock()
	delete(d.enqueued, id)
	d.mu.Unlock()
}

func (d *Dispatcher) runWorker(ctx context.Context, index int) {
	defer d.wg.Done()
	logger := d.logger.With(logging.Int("worker", index))
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-d.queue:
			d.forget(id)
			d.processJob(ctx, logger, id)
		}
	}
}

// processJob drives one job to a terminal state or back to pending. A panic in
// the orchestrator fails the job instead of killing the worker.
func (d *Dispatcher) processJob(ctx context.Context, logger *slog.Logger, id string) {
	job, err := d.store.Claim(ctx, id)
	if err != nil {
		// Lost races and deleted jobs are expected under concurrent claims.
		if errors.Is(err, services.ErrNotPending) || errors.Is(err, services.ErrNotFound) {
			return
		}
		logger.Error("claim failed", logging.String(logging.FieldJobID, id), logging.Error(err))
		return
	}

	logger.Info("processing job",
		logging.String(logging.FieldJobID, id),
		logging.Int(logging.FieldAttempt, job.Attempts))

	result, runErr := d.runGuarded(ctx, job)
	if runErr == nil {
		if err := d.store.MarkDone(ctx, id, result.BundleJSON, traceJSON(result), result.ModelUsed); err != nil {
			logger.Error("mark done failed", logging.String(logging.FieldJobID, id), logging.Error(err))
			return
		}
		logger.Info("job done", logging.String(logging.FieldJobID, id))
		return
	}
	if errors.Is(runErr, context.Canceled) {
		// Shutdown mid-run; the startup recovery pass resets the job.
		return
	}

	message := services.Message(runErr)
	if services.Retryable(runErr) && job.Attempts < d.workers.MaxAttempts {
		logger.Warn("job attempt failed, requeueing",
			logging.String(logging.FieldJobID, id),
			logging.Int(logging.FieldAttempt, job.Attempts),
			logging.Error(runErr))
		if err := d.store.Requeue(ctx, id, message); err != nil {
			logger.Error("requeue failed", logging.String(logging.FieldJobID, id), logging.Error(err))
			return
		}
		if err := d.Enqueue(id); err != nil {
			logger.Warn("requeued job waits for recovery sweep",
				logging.String(logging.FieldJobID, id), logging.Error(err))
		}
		return
	}

	logger.Error("job failed",
		logging.String(logging.FieldJobID, id),
		logging.Int(logging.FieldAttempt, job.Attempts),
		logging.Error(runErr))
	if err := d.store.MarkFailed(ctx, id, message, traceJSON(result), modelUsed(result)); err != nil {
		logger.Error("mark failed failed", logging.String(logging.FieldJobID, id), logging.Error(err))
	}
}

func (d *Dispatcher) runGuarded(ctx context.Context, job *jobs.Job) (result *enrich.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if result == nil {
				result = &enrich.Result{}
			}
			err = services.Wrap(services.ErrValidation, "dispatch", "process",
				fmt.Sprintf("panic during processing: %v", r), nil)
		}
	}()

	files, err := d.resolveFiles(ctx, job)
	if err != nil {
		return &enrich.Result{}, err
	}
	return d.runner.Run(ctx, enrich.Input{
		JobID:         job.ID,
		Files:         files,
		Barcodes:      job.Payload.Barcodes,
		Locale:        job.Payload.Locale,
		ModelOverride: job.Payload.ModelOverride,
	})
}

// resolveFiles loads each payload file from object storage. A payload that
// references files which all fail to load cannot proceed; barcode-only
// payloads carry no files and pass through.
func (d *Dispatcher) resolveFiles(ctx context.Context, job *jobs.Job) ([]enrich.File, error) {
	if len(job.Payload.Files) == 0 {
		return nil, nil
	}
	files := make([]enrich.File, 0, len(job.Payload.Files))
	for _, ref := range job.Payload.Files {
		obj, err := d.objects.Download(ctx, ref.Path)
		if err != nil {
			d.logger.Warn("payload file unavailable",
				logging.String(logging.FieldJobID, job.ID),
				logging.String("path", ref.Path),
				logging.Error(err))
			continue
		}
		files = append(files, enrich.File{
			Data:         obj.Data,
			MimeType:     ref.MimeType,
			OriginalName: ref.OriginalName,
		})
	}
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "dispatch", "resolve files",
			"no payload files could be loaded", nil)
	}
	return files, nil
}

func modelUsed(result *enrich.Result) string {
	if result == nil {
		return ""
	}
	return result.ModelUsed
}

func traceJSON(result *enrich.Result) string {
	if result == nil {
		return ""
	}
	encoded, err := result.Trace.MarshalJSONString()
	if err != nil {
		return ""
	}
	return encoded
}
