package poclog

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/detsql/detsql/pkg/allocator"
	"github.com/detsql/detsql/pkg/log"
	"github.com/detsql/detsql/pkg/metrics"
	"github.com/detsql/detsql/pkg/storage"
	"github.com/detsql/detsql/pkg/util/json"
	"github.com/google/uuid"
	"github.com/kubecost/events"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/detsql/detsql/pkg/poclog"

const DefaultIdempotencyTTL = 10 * time.Minute

// Option configures a Service.
type Option func(*Service)

// WithIdempotencyTTL sets how long a request id is remembered. A ttl of zero or less disables
// request id deduplication.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithUIDGenerator replaces the uuid based record uid generator.
func WithUIDGenerator(f func() string) Option {
	return func(s *Service) {
		s.newUID = f
	}
}

// Allocator is the part of an allocator.Allocator the service depends on.
type Allocator interface {
	AllocateDetailed(ctx context.Context, key string) (allocator.Allocation[Record], error)
	NextID(ctx context.Context) (int64, error)
	Store() allocator.StoreReader[Record]
}

// Service accepts PoC log submissions. Every submission allocates a fresh identifier and makes
// sure the entry for its key exists, through a single shared Allocator.
type Service struct {
	alloc    Allocator
	ttl      time.Duration
	receipts *cache.Cache
	inflight singleflight.Group
	newUID   func() string
	now      func() time.Time

	allocDispatcher     events.Dispatcher[metrics.AllocationEvent]
	cancelledDispatcher events.Dispatcher[metrics.AllocationCancelledEvent]
}

// NewService creates a Service backed by alloc.
func NewService(alloc Allocator, opts ...Option) *Service {
	s := &Service{
		alloc:  alloc,
		ttl:    DefaultIdempotencyTTL,
		newUID: uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },

		allocDispatcher:     events.GlobalDispatcherFor[metrics.AllocationEvent](),
		cancelledDispatcher: events.GlobalDispatcherFor[metrics.AllocationCancelledEvent](),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.ttl > 0 {
		s.receipts = cache.New(s.ttl, 2*s.ttl)
	}

	return s
}

// Submit validates sub, allocates an identifier for it and appends the resulting Record to the
// entry of sub.Key.
//
// A non-empty requestID makes the call idempotent within the configured window: concurrent and
// later calls with the same requestID share one allocation and receive its Receipt with
// Replayed set. Failed calls are not remembered. If the shared call is cancelled, callers whose
// own context is still live retry it.
func (s *Service) Submit(ctx context.Context, requestID string, sub Submission) (*Receipt, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Service.Submit")
	defer span.End()

	if err := validate(sub); err != nil {
		return nil, err
	}

	if requestID == "" || s.receipts == nil {
		return s.submit(ctx, sub)
	}

	if receipt, ok := s.cachedReceipt(requestID); ok {
		return receipt, nil
	}

	for {
		executed := false
		v, err, _ := s.inflight.Do(requestID, func() (interface{}, error) {
			// a call that finished between the cache check and Do already stored its receipt
			if receipt, ok := s.cachedReceipt(requestID); ok {
				return receipt, nil
			}

			executed = true
			receipt, err := s.submit(ctx, sub)
			if err != nil {
				return nil, err
			}

			s.receipts.Set(requestID, *receipt, cache.DefaultExpiration)
			return receipt, nil
		})

		// the shared call ran under another caller's context; a cancelled allocation changed
		// nothing, so a caller whose own context is live takes over
		if err != nil && !executed && allocator.IsCancelled(err) && ctx.Err() == nil {
			continue
		}
		if err != nil {
			return nil, err
		}

		receipt := *(v.(*Receipt))
		receipt.Replayed = receipt.Replayed || !executed
		return &receipt, nil
	}
}

func (s *Service) cachedReceipt(requestID string) (*Receipt, bool) {
	v, ok := s.receipts.Get(requestID)
	if !ok {
		return nil, false
	}

	receipt := v.(Receipt)
	receipt.Replayed = true
	return &receipt, true
}

func (s *Service) submit(ctx context.Context, sub Submission) (*Receipt, error) {
	alloc, err := s.alloc.AllocateDetailed(ctx, sub.Key)
	if err != nil {
		reason := "canceled"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "deadline"
		}
		s.cancelledDispatcher.Dispatch(metrics.AllocationCancelledEvent{
			Key:    sub.Key,
			Reason: reason,
			Wait:   alloc.Wait,
		})
		log.DedupedWarningf(10, "Allocation for key %q abandoned after %s: %s", sub.Key, alloc.Wait, err)
		return nil, err
	}

	record := Record{
		ID:        alloc.ID,
		UID:       s.newUID(),
		Key:       sub.Key,
		Method:    strings.ToUpper(sub.Method),
		URL:       sub.URL,
		Parameter: sub.Parameter,
		Payload:   sub.Payload,
		Detection: sub.Detection,
		Status:    sub.Status,
		Note:      sub.Note,
		CreatedAt: s.now(),
	}

	// the entry is goroutine-safe, so appending does not need the allocation guard
	alloc.Entry.Append(record)

	s.allocDispatcher.Dispatch(metrics.AllocationEvent{
		Key:     sub.Key,
		ID:      alloc.ID,
		Created: alloc.Created,
		Wait:    alloc.Wait,
	})

	if alloc.Created {
		log.Debugf("Created entry for key %q", sub.Key)
	}

	return &Receipt{
		ID:  record.ID,
		Key: record.Key,
		UID: record.UID,
	}, nil
}

// Records returns the records of key in insertion order. The bool result is false if no
// submission has been accepted for key.
func (s *Service) Records(key string) ([]Record, bool) {
	entry, ok := s.alloc.Store().Get(key)
	if !ok {
		return nil, false
	}
	return entry.Records(), true
}

// Keys returns a summary of every key in ascending key order.
func (s *Service) Keys() []KeySummary {
	summaries := make([]KeySummary, 0, s.alloc.Store().Len())

	s.alloc.Store().Each(func(key string, entry *allocator.Entry[Record]) bool {
		summaries = append(summaries, KeySummary{
			Key:       key,
			Records:   entry.Len(),
			CreatedAt: entry.CreatedAt(),
		})
		return true
	})

	return summaries
}

// Status returns the next identifier along with key and record totals. It waits for the
// allocation guard to read the next identifier.
func (s *Service) Status(ctx context.Context) (Status, error) {
	next, err := s.alloc.NextID(ctx)
	if err != nil {
		return Status{}, err
	}

	status := Status{NextID: next}
	s.alloc.Store().Each(func(_ string, entry *allocator.Entry[Record]) bool {
		status.Keys++
		status.Records += entry.Len()
		return true
	})

	return status, nil
}

// Archive writes a JSON Snapshot of every entry to archive, replacing earlier snapshots of the
// same key. It returns the number of entries written.
func (s *Service) Archive(archive storage.ArchiveStorage) (int, error) {
	defer log.ProfileWithThreshold(time.Now(), time.Second, "poclog.Archive")

	var written int
	var err error

	s.alloc.Store().Each(func(key string, entry *allocator.Entry[Record]) bool {
		var data []byte
		data, err = json.Marshal(Snapshot{
			Key:       key,
			CreatedAt: entry.CreatedAt(),
			Records:   entry.Records(),
		})
		if err != nil {
			err = errors.Wrapf(err, "encoding entry %q", key)
			return false
		}

		if err = archive.Put(key, data); err != nil {
			err = errors.Wrapf(err, "archiving entry %q", key)
			return false
		}

		written++
		return true
	})

	return written, err
}

func validate(sub Submission) error {
	var problems []string

	if strings.TrimSpace(sub.Method) == "" {
		problems = append(problems, "method is required")
	}

	if strings.TrimSpace(sub.URL) == "" {
		problems = append(problems, "url is required")
	} else if u, err := url.Parse(sub.URL); err != nil {
		problems = append(problems, fmt.Sprintf("url is malformed: %s", err))
	} else if u.Scheme == "" || u.Host == "" {
		problems = append(problems, "url must be absolute")
	}

	if sub.Detection != "" && !sub.Detection.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown detection %q", sub.Detection))
	}

	if sub.Status < 0 {
		problems = append(problems, "status must not be negative")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
