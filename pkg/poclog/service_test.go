package poclog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/detsql/detsql/pkg/allocator"
	"github.com/detsql/detsql/pkg/storage"
	"github.com/detsql/detsql/pkg/util/json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestService(opts ...Option) *Service {
	var uids atomic.Int64
	opts = append([]Option{WithUIDGenerator(func() string {
		return fmt.Sprintf("uid-%d", uids.Add(1))
	})}, opts...)

	return NewService(allocator.New[Record](allocator.DefaultInitialID), opts...)
}

func submission(key string) Submission {
	return Submission{
		Key:       key,
		Method:    "get",
		URL:       "http://testphp.vulnweb.com/listproducts.php?cat=1",
		Parameter: "cat",
		Payload:   "1'",
		Detection: DetectionError,
		Status:    500,
	}
}

func TestSubmit(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	first, err := s.Submit(ctx, "", submission("h0"))
	require.NoError(t, err)
	second, err := s.Submit(ctx, "", submission("h0"))
	require.NoError(t, err)
	third, err := s.Submit(ctx, "", submission("h1"))
	require.NoError(t, err)

	assert.Equal(t, Receipt{ID: 1, Key: "h0", UID: "uid-1"}, *first)
	assert.Equal(t, Receipt{ID: 2, Key: "h0", UID: "uid-2"}, *second)
	assert.Equal(t, Receipt{ID: 3, Key: "h1", UID: "uid-3"}, *third)

	records, ok := s.Records("h0")
	require.True(t, ok)

	want := []Record{
		{ID: 1, UID: "uid-1", Key: "h0", Method: "GET", URL: "http://testphp.vulnweb.com/listproducts.php?cat=1", Parameter: "cat", Payload: "1'", Detection: DetectionError, Status: 500},
		{ID: 2, UID: "uid-2", Key: "h0", Method: "GET", URL: "http://testphp.vulnweb.com/listproducts.php?cat=1", Parameter: "cat", Payload: "1'", Detection: DetectionError, Status: 500},
	}
	if diff := cmp.Diff(want, records, cmpopts.IgnoreFields(Record{}, "CreatedAt")); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	_, ok = s.Records("h2")
	assert.False(t, ok)
}

func TestSubmitValidation(t *testing.T) {
	s := newTestService()

	tests := []struct {
		name   string
		modify func(*Submission)
	}{
		{name: "missing method", modify: func(sub *Submission) { sub.Method = " " }},
		{name: "missing url", modify: func(sub *Submission) { sub.URL = "" }},
		{name: "relative url", modify: func(sub *Submission) { sub.URL = "/listproducts.php" }},
		{name: "unknown detection", modify: func(sub *Submission) { sub.Detection = "union" }},
		{name: "negative status", modify: func(sub *Submission) { sub.Status = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := submission("h0")
			tt.modify(&sub)

			_, err := s.Submit(context.Background(), "", sub)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}

	status, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Status{NextID: 1}, status, "rejected submissions must not allocate")
}

func TestSubmitEmptyKey(t *testing.T) {
	s := newTestService()

	receipt, err := s.Submit(context.Background(), "", submission(""))
	require.NoError(t, err)
	assert.Equal(t, "", receipt.Key)

	records, ok := s.Records("")
	require.True(t, ok)
	assert.Len(t, records, 1)
}

func TestSubmitCancelled(t *testing.T) {
	s := newTestService()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Submit(ctx, "req-1", submission("h0"))
	require.Error(t, err)
	assert.True(t, allocator.IsCancelled(err))
	assert.ErrorIs(t, err, context.Canceled)

	_, ok := s.Records("h0")
	assert.False(t, ok)

	// failures are not remembered
	receipt, err := s.Submit(context.Background(), "req-1", submission("h0"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), receipt.ID)
	assert.False(t, receipt.Replayed)
}

func TestSubmitIdempotent(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	first, err := s.Submit(ctx, "req-1", submission("h0"))
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	again, err := s.Submit(ctx, "req-1", submission("h0"))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.UID, again.UID)

	other, err := s.Submit(ctx, "req-2", submission("h0"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), other.ID)

	records, _ := s.Records("h0")
	assert.Len(t, records, 2)
}

func TestSubmitIdempotencyDisabled(t *testing.T) {
	s := newTestService(WithIdempotencyTTL(0))
	ctx := context.Background()

	first, err := s.Submit(ctx, "req-1", submission("h0"))
	require.NoError(t, err)
	second, err := s.Submit(ctx, "req-1", submission("h0"))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, second.Replayed)
}

func TestSubmitConcurrentSameRequestID(t *testing.T) {
	s := newTestService()

	const callers = 32
	receipts := make([]*Receipt, callers)

	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			r, err := s.Submit(context.Background(), "req-shared", submission("h0"))
			receipts[i] = r
			return err
		})
	}
	require.NoError(t, g.Wait())

	var fresh int
	for _, r := range receipts {
		assert.Equal(t, int64(1), r.ID)
		if !r.Replayed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)

	records, _ := s.Records("h0")
	assert.Len(t, records, 1)
}

func TestSubmitConcurrentKeys(t *testing.T) {
	s := newTestService()

	const calls = 500
	var lock sync.Mutex
	seen := make(map[int64]struct{}, calls)

	var g errgroup.Group
	g.SetLimit(16)
	for i := 0; i < calls; i++ {
		key := fmt.Sprintf("h%d", i%50)
		g.Go(func() error {
			r, err := s.Submit(context.Background(), "", submission(key))
			if err != nil {
				return err
			}
			lock.Lock()
			seen[r.ID] = struct{}{}
			lock.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, seen, calls)
	for id := int64(1); id <= calls; id++ {
		assert.Contains(t, seen, id)
	}

	summaries := s.Keys()
	require.Len(t, summaries, 50)
	total := 0
	for i, summary := range summaries {
		total += summary.Records
		if i > 0 {
			assert.Less(t, summaries[i-1].Key, summary.Key)
		}
	}
	assert.Equal(t, calls, total)

	status, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Status{NextID: calls + 1, Keys: 50, Records: calls}, status)
}

func TestArchive(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	for _, key := range []string{"h1", "h0", "h1"} {
		_, err := s.Submit(ctx, "", submission(key))
		require.NoError(t, err)
	}

	archive := storage.NewMemoryArchive()
	written, err := s.Archive(archive)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	data, ok, err := archive.Get("h1")
	require.NoError(t, err)
	require.True(t, ok)

	var snapshot Snapshot
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.Equal(t, "h1", snapshot.Key)
	require.Len(t, snapshot.Records, 2)
	assert.Equal(t, int64(1), snapshot.Records[0].ID)
	assert.Equal(t, int64(3), snapshot.Records[1].ID)
}

// gatedAllocator blocks the first allocation until its context is done.
type gatedAllocator struct {
	*allocator.Allocator[Record]
	entered chan struct{}
	calls   atomic.Int32
}

func (g *gatedAllocator) AllocateDetailed(ctx context.Context, key string) (allocator.Allocation[Record], error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-ctx.Done()
		return allocator.Allocation[Record]{Key: key}, &allocator.CancelledError{Key: key, Err: ctx.Err()}
	}
	return g.Allocator.AllocateDetailed(ctx, key)
}

func TestSubmitSharedRequestSurvivesLeaderCancellation(t *testing.T) {
	gated := &gatedAllocator{
		Allocator: allocator.New[Record](allocator.DefaultInitialID),
		entered:   make(chan struct{}),
	}
	s := NewService(gated)

	leaderCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	leaderErr := make(chan error, 1)
	go func() {
		_, err := s.Submit(leaderCtx, "req-1", submission("h0"))
		leaderErr <- err
	}()

	<-gated.entered

	type result struct {
		receipt *Receipt
		err     error
	}
	follower := make(chan result, 1)
	go func() {
		r, err := s.Submit(context.Background(), "req-1", submission("h0"))
		follower <- result{r, err}
	}()

	select {
	case err := <-leaderErr:
		assert.True(t, allocator.IsCancelled(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("leader did not return")
	}

	select {
	case res := <-follower:
		require.NoError(t, res.err)
		assert.Equal(t, int64(1), res.receipt.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("follower did not return")
	}

	assert.Equal(t, int32(2), gated.calls.Load())

	records, ok := s.Records("h0")
	require.True(t, ok)
	assert.Len(t, records, 1)

	again, err := s.Submit(context.Background(), "req-1", submission("h0"))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, int64(1), again.ID)
}

func TestLoadSnapshotAndArchivedKeys(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	for _, key := range []string{"h2", "h0", "h2"} {
		_, err := s.Submit(ctx, "", submission(key))
		require.NoError(t, err)
	}

	archive := storage.NewMemoryArchive()
	require.NoError(t, archive.Put("stale", []byte(`{"key":"stale","records":[]}`)))

	_, err := s.Archive(archive)
	require.NoError(t, err)

	keys, err := ArchivedKeys(archive)
	require.NoError(t, err)
	assert.Equal(t, []string{"h0", "h2", "stale"}, keys)

	snapshot, ok, err := LoadSnapshot(archive, "h2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "h2", snapshot.Key)
	assert.Len(t, snapshot.Records, 2)

	_, ok, err = LoadSnapshot(archive, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, archive.Put("broken", []byte("{")))
	_, _, err = LoadSnapshot(archive, "broken")
	assert.Error(t, err)
}
