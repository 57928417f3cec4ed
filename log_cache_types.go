package ordinator

import (
	"sync"
	"time"
)

// cacheItem holds the data with its associated ttl
type cacheItem struct {
	// ttl is the time after which the entry is expired
	ttl time.Time

	// record is the data to put in cache
	record *Record
}

// LogCacheOptions hold all cache options that will be later
// used by LogCache
type LogCacheOptions struct {
	// Store hold the long term storage data
	Store LogStore

	// CacheOnWrite when set to true will put every write
	// request in cache after writting to the long term storage
	CacheOnWrite bool

	// TTL is the maximum amount of time to keep the entry in cache.
	// Default to 30 seconds if ttl == 0
	TTL time.Duration

	// MaxRecords is the maximum amount of records kept in cache.
	// Default to 4096
	MaxRecords int
}

// LogCache keeps the tail of the log in memory so tailing
// readers like watch subscribers don't hit the disk
type LogCache struct {
	// mu hold locking mecanism
	mu sync.RWMutex

	// cache hold the records by sequence
	cache map[uint64]*cacheItem

	// cacheOnWrite when set to true will put every write
	// request in cache after writting to the long term storage
	cacheOnWrite bool

	// store hold the long term storage data
	store LogStore

	// ttl is the maximum amount of time to keep the entry in cache
	ttl time.Duration

	// maxRecords is the maximum amount of records kept in cache
	maxRecords int

	// lastStored is the last sequence written through the cache
	lastStored uint64
}
