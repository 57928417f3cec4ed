package ordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCache_evict(t *testing.T) {
	assert := assert.New(t)
	store := NewInMemoryStorage()
	cache, err := NewLogCache(LogCacheOptions{Store: store, CacheOnWrite: true, MaxRecords: 4})
	require.Nil(t, err)

	records := makeRecords(1, 10)
	for _, record := range records {
		assert.Nil(cache.StoreRecords([]*Record{record}))
	}
	assert.LessOrEqual(len(cache.cache), 4)

	all, err := cache.GetRecords(1, 0)
	assert.Nil(err)
	require.Len(t, all, 10)
	for index, record := range all {
		assert.Equal(records[index].Sequence, record.Sequence)
		assert.Equal(records[index].Payload, record.Payload)
	}

	page, err := cache.GetRecords(8, 2)
	assert.Nil(err)
	require.Len(t, page, 2)
	assert.Equal(uint64(8), page[0].Sequence)
	assert.Equal(uint64(9), page[1].Sequence)

	last, err := cache.LastSequence()
	assert.Nil(err)
	assert.Equal(uint64(10), last)

	record, err := cache.GetRecord(2)
	assert.Nil(err)
	assert.Equal(records[1].Payload, record.Payload)

	// records handed out are copies
	again, err := cache.GetRecord(10)
	assert.Nil(err)
	again.Sequence = 42
	again, err = cache.GetRecord(10)
	assert.Nil(err)
	assert.Equal(uint64(10), again.Sequence)
}

func TestLogCache_expired(t *testing.T) {
	assert := assert.New(t)
	cache, err := NewLogCache(LogCacheOptions{Store: NewInMemoryStorage(), CacheOnWrite: true, TTL: time.Nanosecond})
	require.Nil(t, err)

	records := makeRecords(1, 3)
	assert.Nil(cache.StoreRecords(records))
	time.Sleep(time.Millisecond)

	all, err := cache.GetRecords(1, 0)
	assert.Nil(err)
	assert.Len(all, 3)
	assert.NotEmpty(cache.LogID())
}

func TestLogCache_existingStore(t *testing.T) {
	assert := assert.New(t)
	store := NewInMemoryStorage()
	require.Nil(t, store.StoreRecords(makeRecords(1, 5)))

	cache, err := NewLogCache(LogCacheOptions{Store: store, CacheOnWrite: true})
	require.Nil(t, err)
	last, err := cache.LastSequence()
	assert.Nil(err)
	assert.Equal(uint64(5), last)

	assert.Nil(cache.StoreRecords(makeRecords(6, 2)))
	all, err := cache.GetRecords(1, 0)
	assert.Nil(err)
	assert.Len(all, 7)

	first, err := cache.FirstSequence()
	assert.Nil(err)
	assert.Equal(uint64(1), first)
}
