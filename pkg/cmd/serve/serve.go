package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/detsql/detsql/pkg/allocator"
	"github.com/detsql/detsql/pkg/env"
	"github.com/detsql/detsql/pkg/errors"
	"github.com/detsql/detsql/pkg/log"
	"github.com/detsql/detsql/pkg/metrics"
	"github.com/detsql/detsql/pkg/poclog"
	"github.com/detsql/detsql/pkg/server"
	"github.com/detsql/detsql/pkg/storage"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	archiveBucket      = "entries"
	archiveLockTimeout = 5 * time.Second
)

// ServeOpts contain configuration options that can be passed to the Execute() method
type ServeOpts struct {
	Port int
}

// captures the panic event in sentry
func capturePanicEvent(err string, stack string) {
	msg := fmt.Sprintf("Panic: %s\nStackTrace: %s\n", err, stack)
	log.Errorf("%s", msg)
	sentry.CurrentHub().CaptureEvent(&sentry.Event{
		Level:   sentry.LevelError,
		Message: msg,
	})
	sentry.Flush(5 * time.Second)
}

// handle any panics reported by the errors package
func handlePanic(p errors.Panic) bool {
	switch err := p.Error.(type) {
	case error:
		capturePanicEvent(err.Error(), p.Stack)
	case string:
		capturePanicEvent(err, p.Stack)
	default:
		capturePanicEvent(fmt.Sprintf("%v", err), p.Stack)
	}

	// recover http handlers and background workers, anything else crashes the process
	return p.Type == errors.PanicTypeHTTP || p.Type == errors.PanicTypeWorker
}

func initErrorReporting() {
	if !env.IsErrorReportingEnabled() {
		return
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:     env.GetSentryDSN(),
		Release: env.GetAppVersion(),
	})
	if err != nil {
		log.Warnf("Failed to initialize sentry for error reporting: %s", err)
		return
	}

	if err := errors.SetPanicHandler(handlePanic); err != nil {
		log.Warnf("Failed to set panic handler: %s", err)
	}
}

// newArchive opens the bolt archive. If that fails, the service falls back to a memory-only
// archive so POST /archive and the final flush keep working.
func newArchive(ctx context.Context) storage.ArchiveStorage {
	if !env.IsArchiveEnabled() {
		return nil
	}

	path := env.GetArchivePath()
	db, err := storage.OpenBoltDB(ctx, path, archiveLockTimeout)
	if err != nil {
		log.Errorf("Failed to open archive %s, falling back to memory: %s", path, err)
		return storage.NewMemoryArchive()
	}

	archive, err := storage.NewBoltArchive(archiveBucket, db)
	if err != nil {
		log.Errorf("Failed to create archive bucket, falling back to memory: %s", err)
		db.Close()
		return storage.NewMemoryArchive()
	}

	log.Infof("Archiving entries to %s every %s", path, env.GetArchiveInterval())
	return archive
}

// Execute runs the detsql service until ctx is done.
func Execute(ctx context.Context, opts *ServeOpts) error {
	log.Infof("Starting detsql version %s", env.GetAppVersion())

	initErrorReporting()
	metrics.InitTelemetry(&metrics.MetricsConfig{}, prometheus.DefaultRegisterer)

	port := opts.Port
	if port == 0 {
		port = env.GetAPIPort()
	}

	initialID := env.GetInitialID()
	log.Infof("Allocating identifiers from %d", initialID)

	alloc := allocator.New[poclog.Record](initialID)
	svc := poclog.NewService(alloc, poclog.WithIdempotencyTTL(env.GetIdempotencyTTL()))

	srv := server.New(svc, server.Options{
		Port:              port,
		AllocationTimeout: env.GetAllocationTimeout(),
		Archive:           newArchive(ctx),
		ArchiveInterval:   env.GetArchiveInterval(),
	})

	return srv.Run(ctx)
}
