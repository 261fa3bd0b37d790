package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/detsql/detsql/pkg/allocator"
	"github.com/detsql/detsql/pkg/log"
	"github.com/detsql/detsql/pkg/poclog"
	"github.com/detsql/detsql/pkg/protocol"
	"github.com/detsql/detsql/pkg/util/json"
	"github.com/jszwec/csvutil"
	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/otel"
)

const tracerName = "github.com/detsql/detsql/pkg/server"

const (
	// RequestIDHeader carries the client supplied idempotency key of a submission.
	RequestIDHeader = "X-Request-Id"

	maxSubmissionSize = 1 << 20
)

var proto = protocol.HTTPProtocol{}

// Healthz answers liveness checks with an empty 200.
func Healthz(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Length", "0")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
}

// SubmitEntry accepts a JSON poclog.Submission for the key in the path.
func (s *Server) SubmitEntry(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(r.Context(), "Server.SubmitEntry")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmissionSize))
	if err != nil {
		proto.WriteError(w, proto.BadRequest("Failed to read request body"))
		return
	}

	var sub poclog.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		proto.WriteError(w, proto.BadRequest("Invalid JSON body: "+err.Error()))
		return
	}
	sub.Key = ps.ByName("key")

	if s.opts.AllocationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.AllocationTimeout)
		defer cancel()
	}

	receipt, err := s.service.Submit(ctx, r.Header.Get(RequestIDHeader), sub)
	if err != nil {
		switch {
		case poclog.IsValidationError(err):
			proto.WriteError(w, proto.BadRequest(err.Error()))
		case allocator.IsCancelled(err):
			proto.WriteError(w, proto.ServiceUnavailable(err.Error()))
		default:
			log.Errorf("Submitting entry for key %q: %s", sub.Key, err)
			proto.WriteError(w, proto.InternalServerError(err.Error()))
		}
		return
	}

	_, spanResp := tracer.Start(ctx, "write response")
	proto.WriteData(w, receipt)
	spanResp.End()
}

// ListEntries writes a summary of every key.
func (s *Server) ListEntries(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	_, span := otel.Tracer(tracerName).Start(r.Context(), "Server.ListEntries")
	defer span.End()

	proto.WriteData(w, s.service.Keys())
}

// GetEntry writes the records of the key in the path, as JSON or, with format=csv, as CSV.
func (s *Server) GetEntry(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(r.Context(), "Server.GetEntry")
	defer span.End()

	key := ps.ByName("key")

	records, ok := s.service.Records(key)
	if !ok {
		proto.WriteError(w, proto.NotFound("No entry for key "+key))
		return
	}

	_, spanResp := tracer.Start(ctx, "write response")
	defer spanResp.End()

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		proto.WriteData(w, records)
	case "csv":
		data, err := csvutil.Marshal(records)
		if err != nil {
			proto.WriteError(w, proto.InternalServerError(err.Error()))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	default:
		proto.WriteError(w, proto.BadRequest("Unsupported format "+format))
	}
}

// GetStatus writes the poclog.Status of the service.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "Server.GetStatus")
	defer span.End()

	if s.opts.AllocationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.AllocationTimeout)
		defer cancel()
	}

	status, err := s.service.Status(ctx)
	if err != nil {
		proto.WriteError(w, proto.ServiceUnavailable(err.Error()))
		return
	}

	proto.WriteData(w, status)
}

// FlushArchive archives every entry immediately. The response carries the number of entries
// written and the number of keys the archive holds afterwards.
func (s *Server) FlushArchive(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	_, span := otel.Tracer(tracerName).Start(r.Context(), "Server.FlushArchive")
	defer span.End()

	if s.opts.Archive == nil {
		proto.WriteError(w, proto.NotFound("Archiving is disabled"))
		return
	}

	written, err := s.service.Archive(s.opts.Archive)
	if err != nil {
		log.Errorf("Archiving entries: %s", err)
		proto.WriteError(w, proto.InternalServerError(err.Error()))
		return
	}

	keys, err := poclog.ArchivedKeys(s.opts.Archive)
	if err != nil {
		proto.WriteError(w, proto.InternalServerError(err.Error()))
		return
	}

	proto.WriteData(w, map[string]int{
		"archived": written,
		"stored":   len(keys),
	})
}

// GetArchivedEntry writes the archived snapshot of the key in the path. When the live entry has
// grown since the snapshot was taken, the response carries a warning.
func (s *Server) GetArchivedEntry(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	_, span := otel.Tracer(tracerName).Start(r.Context(), "Server.GetArchivedEntry")
	defer span.End()

	if s.opts.Archive == nil {
		proto.WriteError(w, proto.NotFound("Archiving is disabled"))
		return
	}

	key := ps.ByName("key")

	snapshot, ok, err := poclog.LoadSnapshot(s.opts.Archive, key)
	if err != nil {
		log.Errorf("Loading archived entry %q: %s", key, err)
		proto.WriteError(w, proto.InternalServerError(err.Error()))
		return
	}
	if !ok {
		proto.WriteError(w, proto.NotFound("No archived entry for key "+key))
		return
	}

	if live, ok := s.service.Records(key); ok && len(live) > len(snapshot.Records) {
		warning := fmt.Sprintf("Snapshot is %d records behind the live entry", len(live)-len(snapshot.Records))
		proto.WriteDataWithWarning(w, snapshot, warning)
		return
	}

	proto.WriteData(w, snapshot)
}
