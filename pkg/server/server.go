package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/detsql/detsql/pkg/errors"
	"github.com/detsql/detsql/pkg/log"
	"github.com/detsql/detsql/pkg/metrics"
	"github.com/detsql/detsql/pkg/poclog"
	"github.com/detsql/detsql/pkg/storage"
	"github.com/detsql/detsql/pkg/util/interval"
	"github.com/hashicorp/go-multierror"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const shutdownTimeout = 10 * time.Second

// Options contains the configuration of a Server.
type Options struct {
	Port              int
	AllocationTimeout time.Duration

	// Archive is nil when archiving is disabled.
	Archive         storage.ArchiveStorage
	ArchiveInterval time.Duration

	// Gatherer serves /metrics. Defaults to the prometheus default gatherer.
	Gatherer prometheus.Gatherer
}

// Server exposes a poclog.Service over HTTP.
type Server struct {
	opts    Options
	service *poclog.Service
	router  *httprouter.Router
	flusher *interval.IntervalRunner
}

// New creates a Server for service.
func New(service *poclog.Service, opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		opts:    opts,
		service: service,
		router:  httprouter.New(),
	}

	s.router.GET("/healthz", Healthz)
	s.router.POST("/entries/:key", s.SubmitEntry)
	s.router.GET("/entries", s.ListEntries)
	s.router.GET("/entries/:key", s.GetEntry)
	s.router.GET("/status", s.GetStatus)
	s.router.POST("/archive", s.FlushArchive)
	s.router.GET("/archive/:key", s.GetArchivedEntry)

	if opts.Archive != nil && opts.ArchiveInterval > 0 {
		s.flusher = interval.NewIntervalRunner(s.archive, opts.ArchiveInterval).WithFinalRun()
	}

	return s
}

// Handler returns the full middleware chain: panic recovery, cors, response metrics and routing.
func (s *Server) Handler() http.Handler {
	rootMux := http.NewServeMux()
	rootMux.Handle("/", s.router)
	rootMux.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	telemetryHandler := metrics.ResponseMetricMiddleware(rootMux, routeLabel)
	handler := cors.AllowAll().Handler(telemetryHandler)

	return errors.PanicHandlerMiddleware(handler)
}

// Run serves HTTP until ctx is done, then shuts down gracefully. When archiving is enabled
// entries are flushed on the configured interval and once more during shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.opts.Port),
		Handler: s.Handler(),
	}

	if s.flusher != nil {
		s.flusher.Start()
	}

	serveErr := make(chan error, 1)
	go func() {
		defer errors.HandlePanic()

		log.Infof("Listening on %s", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	var result error

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			result = multierror.Append(result, err)
		}
	case <-ctx.Done():
		log.Infof("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := s.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	return result
}

// Close stops the archive flusher, writes a final archive and closes the archive storage.
func (s *Server) Close() error {
	if s.opts.Archive == nil {
		return nil
	}

	var result error

	if s.flusher != nil {
		// the final run archives every entry before the runner resets
		s.flusher.StopAndWait()
	} else if _, err := s.service.Archive(s.opts.Archive); err != nil {
		result = multierror.Append(result, err)
	}

	if err := s.opts.Archive.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	return result
}

// routeLabel collapses per-key paths into their route pattern.
func routeLabel(r *http.Request) string {
	switch {
	case strings.HasPrefix(r.URL.Path, "/entries/"):
		return "/entries/:key"
	case strings.HasPrefix(r.URL.Path, "/archive/"):
		return "/archive/:key"
	}
	return r.URL.Path
}

func (s *Server) archive() {
	written, err := s.service.Archive(s.opts.Archive)
	if err != nil {
		log.Errorf("Archiving entries: %s", err)
		return
	}
	log.Debugf("Archived %d entries", written)
}
