package ordinator

import (
	"testing"

	"github.com/jackc/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func makeRecords(from uint64, count int) []*Record {
	records := make([]*Record, 0, count)
	for index := range count {
		records = append(records, &Record{
			Sequence:  from + uint64(index),
			Kind:      RecordData,
			Timestamp: int64(index),
			Payload:   []byte(fake.Sentence()),
		})
	}
	return records
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) LogStore{
		"in_memory": func(t *testing.T) LogStore {
			return NewInMemoryStorage()
		},
		"bolt": func(t *testing.T) LogStore {
			store, err := NewBoltStorage(BoltOptions{DataDir: t.TempDir()})
			require.Nil(t, err)
			return store
		},
		"cache": func(t *testing.T) LogStore {
			store, err := NewLogCache(LogCacheOptions{Store: NewInMemoryStorage(), CacheOnWrite: true, MaxRecords: 4})
			require.Nil(t, err)
			return store
		},
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			store := build(t)
			assert.NotEmpty(store.LogID())

			last, err := store.LastSequence()
			assert.Nil(err)
			assert.Equal(uint64(0), last)
			_, err = store.FirstSequence()
			assert.ErrorIs(err, ErrRecordNotFound)

			records := makeRecords(1, 10)
			assert.Nil(store.StoreRecords(records))

			first, err := store.FirstSequence()
			assert.Nil(err)
			assert.Equal(uint64(1), first)
			last, err = store.LastSequence()
			assert.Nil(err)
			assert.Equal(uint64(10), last)

			record, err := store.GetRecord(3)
			assert.Nil(err)
			assert.Equal(records[2].Payload, record.Payload)
			assert.Equal(records[2].Checksum, record.Checksum)

			_, err = store.GetRecord(42)
			assert.ErrorIs(err, ErrRecordNotFound)

			page, err := store.GetRecords(4, 3)
			assert.Nil(err)
			require.Len(t, page, 3)
			for index, record := range page {
				assert.Equal(uint64(4+index), record.Sequence)
				assert.Equal(records[3+index].Payload, record.Payload)
			}

			all, err := store.GetRecords(1, 0)
			assert.Nil(err)
			assert.Len(all, 10)

			assert.Nil(store.Close())
			_, err = store.GetRecords(1, 0)
			assert.ErrorIs(err, ErrStoreClosed)
		})
	}
}

func TestBoltStore_reopen(t *testing.T) {
	assert := assert.New(t)
	dataDir := t.TempDir()

	store, err := NewBoltStorage(BoltOptions{DataDir: dataDir})
	require.Nil(t, err)
	logID := store.LogID()
	records := makeRecords(1, 5)
	assert.Nil(store.StoreRecords(records))
	assert.Nil(store.Close())

	store, err = NewBoltStorage(BoltOptions{DataDir: dataDir})
	require.Nil(t, err)
	defer func() {
		assert.Nil(store.Close())
	}()
	assert.Equal(logID, store.LogID())

	last, err := store.LastSequence()
	assert.Nil(err)
	assert.Equal(uint64(5), last)

	all, err := store.GetRecords(1, 0)
	assert.Nil(err)
	require.Len(t, all, 5)
	for index, record := range all {
		assert.Equal(records[index].Payload, record.Payload)
	}
}

func TestBoltStore_errors(t *testing.T) {
	assert := assert.New(t)

	_, err := NewBoltStorage(BoltOptions{})
	assert.ErrorIs(err, ErrDataDirRequired)

	store, err := NewBoltStorage(BoltOptions{DataDir: t.TempDir()})
	require.Nil(t, err)
	defer func() {
		_ = store.Close()
	}()
	assert.Nil(store.StoreRecords(makeRecords(1, 3)))

	assert.Nil(store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketLogName)).Put(EncodeUint64ToBytes(2), []byte("garbage-value"))
	}))
	_, err = store.GetRecords(1, 0)
	assert.ErrorIs(err, ErrChecksumMismatch)
	_, err = store.GetRecord(2)
	assert.ErrorIs(err, ErrChecksumMismatch)
}

func TestInMemoryStore_tampered(t *testing.T) {
	assert := assert.New(t)
	store := NewInMemoryStorage()
	assert.Nil(store.StoreRecords(makeRecords(1, 3)))

	store.records[1].Payload = []byte("tampered")
	_, err := store.GetRecords(1, 0)
	assert.ErrorIs(err, ErrChecksumMismatch)
}

func TestSharedStore(t *testing.T) {
	assert := assert.New(t)
	store := NewInMemoryStorage()
	shared := sharedStore{LogStore: store}

	assert.Nil(shared.Close())
	assert.Nil(shared.StoreRecords(makeRecords(1, 1)))
	assert.Nil(store.Close())
	assert.ErrorIs(shared.StoreRecords(makeRecords(2, 1)), ErrStoreClosed)
}
