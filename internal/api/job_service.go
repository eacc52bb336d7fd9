package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"scanbay/internal/config"
	"scanbay/internal/enrich"
	"scanbay/internal/jobs"
	"scanbay/internal/services"
	"scanbay/internal/storage"
)

// Upload is one photo received with a submission.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

// SubmitRequest carries everything needed to create a job.
type SubmitRequest struct {
	Uploads  []Upload
	Barcodes string
	Locale   string
	Model    string
}

// JobService validates submissions, hosts their photos, and hands accepted
// jobs to the dispatcher.
type JobService struct {
	store   *jobs.Store
	objects storage.Store
	enqueue func(string) error
	cfg     config.Enrichment
}

// NewJobService wires the submission service. The enqueue callback is the
// dispatcher handoff; a nil callback accepts jobs without scheduling them.
func NewJobService(store *jobs.Store, objects storage.Store, enqueue func(string) error, cfg config.Enrichment) *JobService {
	if enqueue == nil {
		enqueue = func(string) error { return nil }
	}
	return &JobService{store: store, objects: objects, enqueue: enqueue, cfg: cfg}
}

// Submit validates the request, uploads its photos, creates the job, and
// enqueues it. Limit violations reject the submission before anything is
// stored.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (*JobView, error) {
	barcodes := strings.TrimSpace(req.Barcodes)
	if len(req.Uploads) == 0 && barcodes == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "submit", "at least one photo or barcode is required", nil)
	}
	if _, err := enrich.ParseBarcodes(barcodes, s.cfg.MaxBarcodes); err != nil {
		return nil, err
	}
	var total int64
	for _, upload := range req.Uploads {
		if len(upload.Data) == 0 {
			return nil, services.Wrap(services.ErrValidation, "api", "submit",
				fmt.Sprintf("uploaded file %q is empty", upload.Name), nil)
		}
		total += int64(len(upload.Data))
		if s.cfg.MaxPayloadBytes > 0 && total > s.cfg.MaxPayloadBytes {
			return nil, services.Wrap(services.ErrPayloadLimit, "api", "submit",
				fmt.Sprintf("payload exceeds %d bytes", s.cfg.MaxPayloadBytes), nil)
		}
	}

	jobID := uuid.NewString()
	payload := jobs.Payload{
		Barcodes:      barcodes,
		Locale:        strings.TrimSpace(req.Locale),
		ModelOverride: strings.TrimSpace(req.Model),
	}
	for i, upload := range req.Uploads {
		obj, err := s.objects.Upload(ctx, upload.Data, upload.MimeType, jobID, fmt.Sprintf("photo-%d", i))
		if err != nil {
			return nil, fmt.Errorf("host uploaded photo %q: %w", upload.Name, err)
		}
		payload.Files = append(payload.Files, jobs.PayloadFile{
			Path:         obj.Path,
			MimeType:     obj.MimeType,
			OriginalName: upload.Name,
		})
	}

	job, err := s.store.Create(ctx, payload, jobID)
	if err != nil {
		return nil, err
	}
	// The job is persisted either way; when the queue is full the pending
	// sweep picks it up later.
	_ = s.enqueue(job.ID)
	view := FromJob(job)
	return &view, nil
}

// Get returns a job view, or nil when the id is unknown.
func (s *JobService) Get(ctx context.Context, id string) (*JobView, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	view := FromJob(job)
	return &view, nil
}

// List returns jobs filtered by status, newest last.
func (s *JobService) List(ctx context.Context, statuses ...jobs.Status) ([]JobView, error) {
	list, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(list), nil
}

// Retry moves failed jobs (all of them when no ids are given) back to
// pending and schedules them.
func (s *JobService) Retry(ctx context.Context, ids ...string) (int64, error) {
	retried, err := s.store.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if retried > 0 {
		pending, err := s.store.List(ctx, jobs.StatusPending)
		if err != nil {
			return retried, err
		}
		for _, job := range pending {
			_ = s.enqueue(job.ID)
		}
	}
	return retried, nil
}

// Health reports aggregate job counts.
func (s *JobService) Health(ctx context.Context) (HealthResponse, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return HealthResponse{}, err
	}
	return HealthResponse{Status: "ok", Jobs: FromStats(stats)}, nil
}
