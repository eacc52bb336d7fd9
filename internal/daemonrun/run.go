// Package daemonrun assembles the daemon process: logger, store, clients,
// dispatcher, and signal handling. The CLI stays thin by delegating here.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"scanbay/internal/config"
	"scanbay/internal/daemon"
	"scanbay/internal/dispatch"
	"scanbay/internal/enrich"
	"scanbay/internal/jobs"
	"scanbay/internal/logging"
	"scanbay/internal/model"
	"scanbay/internal/serp"
	"scanbay/internal/storage"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the scanbay daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "scanbayd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	objects, err := storage.NewFilesystemStore(cfg)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	completer, err := model.New(cfg.LLM)
	if err != nil {
		return fmt.Errorf("init model client: %w", err)
	}
	searcher, err := serp.New(cfg.Serp)
	if err != nil {
		return fmt.Errorf("init search client: %w", err)
	}

	orchestrator := enrich.New(completer, searcher, objects, cfg.Enrichment, logger)
	dispatcher := dispatch.New(store, orchestrator, objects, cfg.Workers, logger)

	d, err := daemon.New(cfg, store, objects, dispatcher, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("scanbay daemon shutting down")
	d.Stop()
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
