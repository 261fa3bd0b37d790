// Package allocator hands out unique, contiguous identifiers and lazily creates a per-key
// collection the first time a key is seen. Both happen inside a single guarded critical
// section so that callers racing on the same or different keys always observe a consistent
// id/entry pair.
package allocator
