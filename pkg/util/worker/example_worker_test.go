package worker_test

import (
	"fmt"
	"strings"

	"github.com/detsql/detsql/pkg/util/worker"
)

// escapeQuotes stands in for per-payload work.
func escapeQuotes(payload string) string {
	return strings.ReplaceAll(payload, "'", "''")
}

func Example_orderedGroup() {
	pool := worker.NewWorkerPool(4, escapeQuotes)
	defer pool.Shutdown()

	payloads := []string{"1'", "1' AND '1'='1", "1"}

	// results are returned in push order, regardless of which worker finished first
	group := worker.NewOrderedGroup(pool, len(payloads))
	for _, p := range payloads {
		if err := group.Push(p); err != nil {
			panic(err)
		}
	}

	for i, result := range group.Wait() {
		fmt.Printf("%s -> %s\n", payloads[i], result)
	}

	// Output:
	// 1' -> 1''
	// 1' AND '1'='1 -> 1'' AND ''1''=''1
	// 1 -> 1
}
