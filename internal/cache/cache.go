// Package cache provides the in-process caches used for report results.
package cache

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// DeletePrefix drops every key starting with prefix and returns how many went.
	DeletePrefix(prefix string) int
	Size() int
	Stats() Stats
}

var _ Cache[int] = (*LRUCache[int])(nil)

// Stats reports cache effectiveness since creation.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
}
