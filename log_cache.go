package ordinator

import (
	"time"
)

// NewLogCache allow us to configure the cache with the provided store option
func NewLogCache(options LogCacheOptions) (*LogCache, error) {
	ttl := options.TTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	maxRecords := options.MaxRecords
	if maxRecords <= 0 {
		maxRecords = 4096
	}

	lastStored, err := options.Store.LastSequence()
	if err != nil {
		return nil, err
	}

	return &LogCache{
		cache:        make(map[uint64]*cacheItem),
		cacheOnWrite: options.CacheOnWrite,
		store:        options.Store,
		ttl:          ttl,
		maxRecords:   maxRecords,
		lastStored:   lastStored,
	}, nil
}

// Close will close the underlying long term store of the cache
func (lc *LogCache) Close() error {
	lc.mu.Lock()
	lc.cache = make(map[uint64]*cacheItem)
	lc.mu.Unlock()
	return lc.store.Close()
}

// LogID returns the unique id of the underlying log
func (lc *LogCache) LogID() string {
	return lc.store.LogID()
}

// isExpired return true if the cacheItem is expired
func (i *cacheItem) isExpired(now time.Time) bool {
	return !i.ttl.IsZero() && now.After(i.ttl)
}

// StoreRecords stores records in long term storage first
// and then in cache
func (lc *LogCache) StoreRecords(records []*Record) error {
	if err := lc.store.StoreRecords(records); err != nil {
		return err
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	for _, record := range records {
		if lc.cacheOnWrite {
			lc.cache[record.Sequence] = &cacheItem{ttl: time.Now().Add(lc.ttl), record: record}
		}
		lc.lastStored = max(lc.lastStored, record.Sequence)
	}
	lc.evict()
	return nil
}

// evict drops expired items and keeps at most maxRecords.
// Caller must hold the lock
func (lc *LogCache) evict() {
	if len(lc.cache) <= lc.maxRecords {
		return
	}

	now := time.Now()
	var floor uint64
	if lc.lastStored > uint64(lc.maxRecords) {
		floor = lc.lastStored - uint64(lc.maxRecords)
	}
	for sequence, item := range lc.cache {
		if sequence <= floor || item.isExpired(now) {
			delete(lc.cache, sequence)
		}
	}
}

// GetRecord return data from cache when exist otherwise
// data is fetch from long term storage
func (lc *LogCache) GetRecord(sequence uint64) (*Record, error) {
	lc.mu.RLock()
	if item, ok := lc.cache[sequence]; ok && !item.isExpired(time.Now()) {
		lc.mu.RUnlock()
		copied := *item.record
		return &copied, nil
	}
	lc.mu.RUnlock()

	return lc.store.GetRecord(sequence)
}

// GetRecords return records from cache as long as they are contiguous,
// the remaining ones are fetched from long term storage
func (lc *LogCache) GetRecords(from uint64, limit int) ([]*Record, error) {
	var records []*Record
	now := time.Now()

	lc.mu.RLock()
	next := from
	for limit <= 0 || len(records) < limit {
		item, ok := lc.cache[next]
		if !ok || item.isExpired(now) {
			break
		}
		copied := *item.record
		records = append(records, &copied)
		next++
	}
	tail := lc.cacheOnWrite && next > lc.lastStored
	lc.mu.RUnlock()

	if tail || (limit > 0 && len(records) >= limit) {
		return records, nil
	}

	remaining := 0
	if limit > 0 {
		remaining = limit - len(records)
	}
	stored, err := lc.store.GetRecords(next, remaining)
	if err != nil {
		return nil, err
	}
	return append(records, stored...), nil
}

// FirstSequence will return the first sequence of the log
func (lc *LogCache) FirstSequence() (uint64, error) {
	return lc.store.FirstSequence()
}

// LastSequence will return the last sequence of the log
func (lc *LogCache) LastSequence() (uint64, error) {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	if lc.cacheOnWrite {
		return lc.lastStored, nil
	}
	return lc.store.LastSequence()
}
