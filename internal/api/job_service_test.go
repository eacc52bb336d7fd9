package api_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"scanbay/internal/api"
	"scanbay/internal/config"
	"scanbay/internal/jobs"
	"scanbay/internal/services"
	"scanbay/internal/storage"
	"scanbay/internal/testsupport"
)

type memoryObjects struct {
	uploads int
	files   map[string][]byte
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{files: make(map[string][]byte)}
}

func (m *memoryObjects) Upload(ctx context.Context, data []byte, mimeType, scope, variant string) (*storage.StoredObject, error) {
	m.uploads++
	path := scope + "/" + variant
	m.files[path] = data
	return &storage.StoredObject{
		URL:      "http://files.test/files/" + path,
		Path:     path,
		MimeType: mimeType,
	}, nil
}

func (m *memoryObjects) Download(ctx context.Context, path string) (*storage.Object, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "storage", "download", "object missing", nil)
	}
	return &storage.Object{Data: data, Size: int64(len(data))}, nil
}

type recordingQueue struct {
	ids []string
	err error
}

func (r *recordingQueue) enqueue(id string) error {
	r.ids = append(r.ids, id)
	return r.err
}

type serviceFixture struct {
	Store   *jobs.Store
	Objects *memoryObjects
	Queue   *recordingQueue
	Cfg     *config.Config
}

func newService(t *testing.T, mutate func(*serviceFixture)) (*api.JobService, *serviceFixture) {
	t.Helper()
	deps := &serviceFixture{
		Objects: newMemoryObjects(),
		Queue:   &recordingQueue{},
		Cfg:     testsupport.NewConfig(t),
	}
	deps.Store = testsupport.MustOpenStore(t, deps.Cfg)
	if mutate != nil {
		mutate(deps)
	}
	return api.NewJobService(deps.Store, deps.Objects, deps.Queue.enqueue, deps.Cfg.Enrichment), deps
}

func TestSubmitCreatesAndEnqueuesJob(t *testing.T) {
	svc, deps := newService(t, nil)
	queue := deps.Queue
	objects := deps.Objects

	view, err := svc.Submit(context.Background(), api.SubmitRequest{
		Uploads: []api.Upload{
			{Name: "front.jpg", MimeType: "image/jpeg", Data: []byte("jpeg-bytes")},
			{Name: "back.jpg", MimeType: "image/jpeg", Data: []byte("more-bytes")},
		},
		Barcodes: "4006381333931",
		Locale:   "de-DE",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if view.Status != string(jobs.StatusPending) {
		t.Fatalf("expected pending job, got %s", view.Status)
	}
	if len(view.Files) != 2 || view.Files[0].OriginalName != "front.jpg" {
		t.Fatalf("unexpected files %+v", view.Files)
	}
	if objects.uploads != 2 {
		t.Fatalf("expected 2 hosted photos, got %d", objects.uploads)
	}
	if len(queue.ids) != 1 || queue.ids[0] != view.ID {
		t.Fatalf("expected job handed to dispatcher, got %v", queue.ids)
	}

	stored, err := deps.Store.GetByID(context.Background(), view.ID)
	if err != nil || stored == nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if stored.Payload.Barcodes != "4006381333931" || stored.Payload.Locale != "de-DE" {
		t.Fatalf("unexpected payload %+v", stored.Payload)
	}
}

func TestSubmitRejectsEmptyRequest(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.Submit(context.Background(), api.SubmitRequest{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitEnforcesPayloadLimit(t *testing.T) {
	svc, deps := newService(t, func(deps *serviceFixture) {
		deps.Cfg.Enrichment.MaxPayloadBytes = 8
	})
	objects := deps.Objects

	_, err := svc.Submit(context.Background(), api.SubmitRequest{
		Uploads: []api.Upload{{Name: "big.jpg", MimeType: "image/jpeg", Data: []byte("way too many bytes")}},
	})
	if !errors.Is(err, services.ErrPayloadLimit) {
		t.Fatalf("expected payload limit error, got %v", err)
	}
	if objects.uploads != 0 {
		t.Fatalf("nothing may be hosted for a rejected submission, got %d uploads", objects.uploads)
	}
}

func TestSubmitEnforcesBarcodeLimit(t *testing.T) {
	svc, _ := newService(t, func(deps *serviceFixture) {
		deps.Cfg.Enrichment.MaxBarcodes = 2
	})
	_, err := svc.Submit(context.Background(), api.SubmitRequest{Barcodes: "1 2 3"})
	if !errors.Is(err, services.ErrBarcodeLimit) {
		t.Fatalf("expected barcode limit error, got %v", err)
	}
}

func TestRetrySchedulesFailedJobs(t *testing.T) {
	svc, deps := newService(t, nil)
	queue := deps.Queue
	ctx := context.Background()

	job, err := deps.Store.Create(ctx, jobs.Payload{Barcodes: "123"}, "")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, err := deps.Store.Claim(ctx, job.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := deps.Store.MarkFailed(ctx, job.ID, "boom", "[]", ""); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	retried, err := svc.Retry(ctx, job.ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected one retried job, got %d", retried)
	}
	found := false
	for _, id := range queue.ids {
		if id == job.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("retried job not enqueued: %v", queue.ids)
	}

	view, err := svc.Get(ctx, job.ID)
	if err != nil || view == nil {
		t.Fatalf("get after retry: %v", err)
	}
	if view.Status != string(jobs.StatusPending) || view.Attempts != 0 {
		t.Fatalf("expected fresh pending job, got %+v", view)
	}
}

func TestHealthAggregatesCounts(t *testing.T) {
	svc, deps := newService(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := deps.Store.Create(ctx, jobs.Payload{Barcodes: fmt.Sprintf("%d", i)}, ""); err != nil {
			t.Fatalf("create job: %v", err)
		}
	}

	health, err := svc.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Status != "ok" || health.Jobs.Pending != 3 || health.Jobs.Total != 3 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestGetUnknownJobReturnsNil(t *testing.T) {
	svc, _ := newService(t, nil)
	view, err := svc.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if view != nil {
		t.Fatalf("expected nil view, got %+v", view)
	}
}
