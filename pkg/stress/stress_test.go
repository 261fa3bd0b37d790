package stress

import (
	"context"
	"testing"
	"time"

	"github.com/detsql/detsql/pkg/allocator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDefaultScenario(t *testing.T) {
	report, err := Run(context.Background(), DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, report.Violations())
	assert.True(t, report.OK())
	assert.False(t, report.TimedOut)
	assert.Equal(t, 2000, report.Completed)
	assert.Equal(t, 2000, report.UniqueIDs)
	assert.Equal(t, int64(1), report.MinID)
	assert.Equal(t, int64(2000), report.MaxID)
	assert.Equal(t, 2000, report.Keys)
	assert.Equal(t, int64(2000), report.EntriesCreated)
	assert.Equal(t, 0, report.NilEntries)
	assert.Equal(t, 2000, report.Records)
}

func TestRunSharedKeys(t *testing.T) {
	report, err := Run(context.Background(), Options{
		Workers:      16,
		Calls:        500,
		InitialID:    1000,
		KeyPrefix:    "req-",
		DistinctKeys: 7,
		Timeout:      10 * time.Second,
	})
	require.NoError(t, err)

	assert.Empty(t, report.Violations())
	assert.Equal(t, 7, report.Keys)
	assert.Equal(t, int64(7), report.EntriesCreated)
	assert.Equal(t, int64(1000), report.MinID)
	assert.Equal(t, int64(1499), report.MaxID)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, Options{Workers: 4, Calls: 50, Timeout: 10 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, 50, report.Failed)
	assert.True(t, allocator.IsCancelled(report.Err))
	assert.False(t, report.OK())
	assert.Equal(t, 0, report.Keys)
}

func TestRunFromZero(t *testing.T) {
	report, err := Run(context.Background(), Options{
		Workers:   4,
		Calls:     10,
		InitialID: 0,
		KeyPrefix: "h",
		Timeout:   10 * time.Second,
	})
	require.NoError(t, err)

	assert.Empty(t, report.Violations())
	assert.Equal(t, int64(0), report.MinID)
	assert.Equal(t, int64(9), report.MaxID)
	assert.Equal(t, 10, report.Keys)
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{DistinctKeys: 10_000}.withDefaults()

	assert.Equal(t, DefaultWorkers, opts.Workers)
	assert.Equal(t, DefaultCalls, opts.Calls)
	assert.Equal(t, int64(0), opts.InitialID)
	assert.Equal(t, allocator.DefaultInitialID, DefaultOptions().InitialID)
	assert.Equal(t, DefaultCalls, opts.DistinctKeys)
	assert.Equal(t, DefaultTimeout, opts.Timeout)
	assert.Equal(t, "h0", DefaultOptions().Key(0))
	assert.Equal(t, "h1999", DefaultOptions().Key(1999))
}

func TestViolationsReported(t *testing.T) {
	r := &Report{
		Options:        Options{Calls: 3, InitialID: 1, DistinctKeys: 3},
		Completed:      3,
		UniqueIDs:      2,
		DuplicateIDs:   1,
		MinID:          1,
		MaxID:          2,
		MissingIDs:     1,
		Keys:           3,
		EntriesCreated: 4,
		Records:        3,
	}

	violations := r.Violations()
	assert.Len(t, violations, 5)
	assert.False(t, r.OK())

	timedOut := &Report{Options: Options{Timeout: time.Second}, TimedOut: true}
	assert.Equal(t, []string{"run did not complete within 1s"}, timedOut.Violations())
}
