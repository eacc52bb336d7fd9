package daemon_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"scanbay/internal/config"
	"scanbay/internal/daemon"
	"scanbay/internal/dispatch"
	"scanbay/internal/enrich"
	"scanbay/internal/jobs"
	"scanbay/internal/logging"
	"scanbay/internal/storage"
	"scanbay/internal/testsupport"
)

type stubRunner struct {
	mu     sync.Mutex
	result *enrich.Result
	err    error
	calls  int
}

func (s *stubRunner) Run(ctx context.Context, input enrich.Input) (*enrich.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.result == nil {
		return &enrich.Result{BundleJSON: `{"products":[]}`, ModelUsed: "gpt-4o-test"}, s.err
	}
	return s.result, s.err
}

type daemonFixture struct {
	cfg    *config.Config
	store  *jobs.Store
	runner *stubRunner
	daemon *daemon.Daemon
}

func newTestDaemon(t *testing.T, mutate func(*config.Config)) *daemonFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithWorkerCount(1))
	if mutate != nil {
		mutate(cfg)
	}
	store := testsupport.MustOpenStore(t, cfg)
	objects, err := storage.NewFilesystemStore(cfg)
	if err != nil {
		t.Fatalf("filesystem store: %v", err)
	}
	runner := &stubRunner{}
	dispatcher := dispatch.New(store, runner, objects, cfg.Workers, logging.NewNop())
	d, err := daemon.New(cfg, store, objects, dispatcher, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return &daemonFixture{cfg: cfg, store: store, runner: runner, daemon: d}
}

func startTestDaemon(t *testing.T, f *daemonFixture) {
	t.Helper()
	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(f.daemon.Stop)
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	first := newTestDaemon(t, nil)
	startTestDaemon(t, first)

	second := newTestDaemon(t, func(cfg *config.Config) {
		cfg.Paths.DataDir = first.cfg.Paths.DataDir
	})
	err := second.daemon.Start(context.Background())
	if err == nil {
		second.daemon.Stop()
		t.Fatal("expected second instance rejected")
	}
}

func TestDaemonRecoversPendingJobsOnStart(t *testing.T) {
	f := newTestDaemon(t, nil)
	ctx := context.Background()

	job, err := f.store.Create(ctx, jobs.Payload{Barcodes: "4006381333931"}, "")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	startTestDaemon(t, f)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := f.store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if got.Status == jobs.StatusDone {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("pre-existing pending job never processed")
}

func TestDaemonStopIsIdempotent(t *testing.T) {
	f := newTestDaemon(t, nil)
	startTestDaemon(t, f)
	f.daemon.Stop()
	f.daemon.Stop()

	// The lock is free again, so a fresh start must succeed.
	if err := f.daemon.Start(context.Background()); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	f.daemon.Stop()
}
