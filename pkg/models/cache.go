package models

import "time"

// CacheEntry is a stored answer in the persistent tier.
type CacheEntry struct {
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheStats reports persistent tier metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// TierStats reports counters for the two-tier answer cache.
type TierStats struct {
	MemoryHits       int64 `json:"memory_hits"`
	PersistentHits   int64 `json:"persistent_hits"`
	Misses           int64 `json:"misses"`
	ProducerFailures int64 `json:"producer_failures"`
	StorageErrors    int64 `json:"storage_errors"`
	MemoryEntries    int   `json:"memory_entries"`
	MemoryEvictions  int64 `json:"memory_evictions"`
}
