package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"storyboard/internal/config"
	"storyboard/internal/docstore"
	"storyboard/internal/logging"
	"storyboard/internal/pipeline"
)

// Daemon enforces single-instance execution and owns the API server
// lifecycle.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *docstore.Store
	runner *pipeline.Runner

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool                    `json:"running"`
	PID            int                     `json:"pid"`
	DocumentDBPath string                  `json:"document_db_path"`
	LockFilePath   string                  `json:"lock_file_path"`
	APIAddress     string                  `json:"api_address,omitempty"`
	Database       docstore.DatabaseHealth `json:"database"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *docstore.Store, runner *pipeline.Runner, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || runner == nil {
		return nil, errors.New("daemon requires config, store, and runner")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "storyboardd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		runner:   runner,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and brings up the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another storyboard daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			_ = d.lock.Unlock()
			cancel()
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("storyboard daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API server and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("storyboard daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports runtime information for the status endpoint.
func (d *Daemon) Status() Status {
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		DocumentDBPath: d.store.Path(),
		LockFilePath:   d.lockPath,
	}
	if d.api != nil {
		status.APIAddress = d.api.addr()
	}
	return status
}

// StatusContext extends Status with a database health probe.
func (d *Daemon) StatusContext(ctx context.Context) Status {
	status := d.Status()
	health, err := d.store.CheckHealth(ctx)
	if err != nil && health.Error == "" {
		health.Error = err.Error()
	}
	status.Database = health
	return status
}

// APIAddr returns the bound API address, empty until Start succeeds.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}
