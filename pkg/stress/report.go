package stress

import (
	"fmt"
	"time"

	"github.com/detsql/detsql/pkg/allocator"
)

// Report is the outcome of a stress run.
type Report struct {
	Options  Options
	Elapsed  time.Duration
	TimedOut bool

	// Err combines the errors of failed allocations.
	Err error

	Completed      int
	Failed         int
	UniqueIDs      int
	DuplicateIDs   int
	MinID          int64
	MaxID          int64
	MissingIDs     int
	Keys           int
	EntriesCreated int64
	NilEntries     int
	Records        int
}

func (r *Report) inspect(results []outcome, store allocator.StoreReader[int64]) {
	seen := make(map[int64]struct{}, len(results))

	for _, res := range results {
		if res.err != nil {
			r.Failed++
			continue
		}

		r.Completed++
		if _, ok := seen[res.id]; ok {
			r.DuplicateIDs++
			continue
		}
		seen[res.id] = struct{}{}

		if len(seen) == 1 || res.id < r.MinID {
			r.MinID = res.id
		}
		if len(seen) == 1 || res.id > r.MaxID {
			r.MaxID = res.id
		}
	}

	r.UniqueIDs = len(seen)
	for id := r.Options.InitialID; id < r.Options.InitialID+int64(r.Completed); id++ {
		if _, ok := seen[id]; !ok {
			r.MissingIDs++
		}
	}

	r.Keys = store.Len()
	r.EntriesCreated = store.Created()
	store.Each(func(_ string, entry *allocator.Entry[int64]) bool {
		if entry == nil {
			r.NilEntries++
			return true
		}
		r.Records += entry.Len()
		return true
	})
}

// Violations lists every allocation guarantee the run failed. It is empty for a successful run.
func (r *Report) Violations() []string {
	if r.TimedOut {
		return []string{fmt.Sprintf("run did not complete within %s", r.Options.Timeout)}
	}

	var v []string
	add := func(format string, args ...interface{}) {
		v = append(v, fmt.Sprintf(format, args...))
	}

	calls := r.Options.Calls
	if r.Failed > 0 {
		add("%d of %d calls failed: %v", r.Failed, calls, r.Err)
	}
	if r.DuplicateIDs > 0 {
		add("%d identifiers were handed out more than once", r.DuplicateIDs)
	}
	if r.UniqueIDs != r.Completed {
		add("expected %d unique identifiers, got %d", r.Completed, r.UniqueIDs)
	}
	if r.MissingIDs > 0 {
		add("%d identifiers missing from %d..%d", r.MissingIDs, r.Options.InitialID, r.Options.InitialID+int64(r.Completed)-1)
	}
	if r.Completed > 0 {
		if want := r.Options.InitialID + int64(r.Completed) - 1; r.MaxID != want {
			add("expected max identifier %d, got %d", want, r.MaxID)
		}
		if r.MinID != r.Options.InitialID {
			add("expected min identifier %d, got %d", r.Options.InitialID, r.MinID)
		}
	}
	if r.Failed == 0 && r.Keys != r.Options.DistinctKeys {
		add("expected %d keys in the store, got %d", r.Options.DistinctKeys, r.Keys)
	}
	if r.EntriesCreated != int64(r.Keys) {
		add("%d entries constructed for %d keys", r.EntriesCreated, r.Keys)
	}
	if r.NilEntries > 0 {
		add("%d keys have a nil entry", r.NilEntries)
	}
	if r.Records != r.Completed {
		add("expected %d records across all entries, got %d", r.Completed, r.Records)
	}

	return v
}

// OK returns true if the run has no violations.
func (r *Report) OK() bool {
	return len(r.Violations()) == 0
}
