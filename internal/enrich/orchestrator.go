package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"scanbay/internal/bundle"
	"scanbay/internal/config"
	"scanbay/internal/logging"
	"scanbay/internal/model"
	"scanbay/internal/serp"
	"scanbay/internal/services"
	"scanbay/internal/storage"
)

// File is one payload file resolved into memory by the dispatcher.
type File struct {
	Data         []byte
	MimeType     string
	OriginalName string
}

// Input carries everything one identification run needs.
type Input struct {
	JobID         string
	Files         []File
	Barcodes      string
	Locale        string
	ModelOverride string
}

// Result is the outcome of a run. Trace and ModelUsed are populated
// best-effort even when the run fails, for diagnostics on the job record.
type Result struct {
	Bundle     *bundle.Bundle
	BundleJSON string
	Trace      serp.Trace
	ModelUsed  string
}

// Orchestrator runs the bounded model/tool conversation for one job.
type Orchestrator struct {
	completer  model.Completer
	searcher   serp.Searcher
	store      storage.Store
	cfg        config.Enrichment
	logger     *slog.Logger
	httpClient *http.Client
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHTTPClient overrides the client used for image URL probes.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Orchestrator) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an orchestrator.
func New(completer model.Completer, searcher serp.Searcher, store storage.Store, cfg config.Enrichment, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		completer:  completer,
		searcher:   searcher,
		store:      store,
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "enrich"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one identification run end to end. The returned Result is
// non-nil even on failure so the dispatcher can persist the partial trace.
func (o *Orchestrator) Run(ctx context.Context, input Input) (*Result, error) {
	result := &Result{Trace: serp.Trace{}}

	barcodes, err := ParseBarcodes(input.Barcodes, o.cfg.MaxBarcodes)
	if err != nil {
		return result, err
	}

	imageURLs, err := o.hostImages(ctx, input.JobID, input.Files)
	if err != nil {
		return result, err
	}

	r := newRun(o, barcodes, imageURLs, input)
	if err := r.execute(ctx); err != nil {
		result.Trace = r.trace
		result.ModelUsed = r.modelUsed
		return result, err
	}
	result.Trace = r.trace
	result.ModelUsed = r.modelUsed

	b, err := bundle.Decode(r.finalContent)
	if err != nil {
		return result, err
	}
	b.Normalize()

	// Backfills are deterministic and non-fatal; they may extend the trace.
	o.backfillImages(ctx, b, r)
	o.backfillPrices(ctx, b, r)
	result.Trace = r.trace

	if r.searchCalls == 0 {
		return result, services.Wrap(services.ErrNoToolUsage, "enrich", "run",
			"model produced a result without a single search-tool call", nil)
	}

	json, err := b.MarshalJSONString()
	if err != nil {
		return result, services.Wrap(services.ErrSchema, "enrich", "run", "encode bundle", err)
	}
	result.Bundle = b
	result.BundleJSON = json
	return result, nil
}

// hostImages uploads each payload file and returns the public URLs. Byte
// accounting happens before each upload; individual upload failures are
// logged and skipped.
func (o *Orchestrator) hostImages(ctx context.Context, jobID string, files []File) ([]string, error) {
	urls := make([]string, 0, len(files))
	var total int64
	for i, file := range files {
		total += int64(len(file.Data))
		if o.cfg.MaxPayloadBytes > 0 && total > o.cfg.MaxPayloadBytes {
			return nil, services.Wrap(services.ErrPayloadLimit, "enrich", "host images",
				fmt.Sprintf("payload exceeds %d bytes", o.cfg.MaxPayloadBytes), nil)
		}
		obj, err := o.store.Upload(ctx, file.Data, file.MimeType, jobID, fmt.Sprintf("photo-%d", i))
		if err != nil {
			o.logger.Warn("image hosting failed, skipping file",
				logging.String(logging.FieldJobID, jobID),
				logging.String("file", file.OriginalName),
				logging.Error(err))
			continue
		}
		urls = append(urls, obj.URL)
	}
	return urls, nil
}
