package ordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lord-Y/ordinator/logger"
	"github.com/jackc/fake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T, store LogStore) *Log {
	t.Helper()
	log, err := OpenLog(LogOptions{
		Logger:       logger.NewComponentLogger("test"),
		Store:        store,
		NodeID:       "test",
		RetryBackoff: time.Millisecond,
		PageSize:     4,
		Registerer:   prometheus.NewRegistry(),
	})
	require.Nil(t, err)
	require.Nil(t, log.Replay(context.Background(), nil))
	return log
}

func collect(t *testing.T, log *Log, from uint64) []*Record {
	t.Helper()
	var records []*Record
	for record, err := range log.Read(from) {
		require.Nil(t, err)
		records = append(records, record)
	}
	return records
}

func TestLog_appendRead(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	log := openTestLog(t, NewInMemoryStorage())
	defer func() {
		assert.Nil(log.Close())
	}()

	var payloads [][]byte
	for index := range 10 {
		payload := []byte(fake.Sentence())
		payloads = append(payloads, payload)
		sequence, err := log.Append(ctx, RecordData, payload)
		assert.Nil(err)
		assert.Equal(uint64(index+1), sequence)
	}

	records, err := log.AppendBatch(ctx, []Entry{
		{Kind: RecordData, Payload: []byte("a")},
		{Kind: RecordData, Payload: []byte("b")},
	})
	assert.Nil(err)
	require.Len(t, records, 2)
	assert.Equal(uint64(11), records[0].Sequence)
	assert.Equal(uint64(12), records[1].Sequence)
	payloads = append(payloads, []byte("a"), []byte("b"))
	assert.Equal(uint64(12), log.LastSequence())

	all := collect(t, log, 0)
	require.Len(t, all, 12)
	for index, record := range all {
		assert.Equal(uint64(index+1), record.Sequence)
		assert.Equal(payloads[index], record.Payload)
	}

	again := collect(t, log, 0)
	assert.Equal(all, again)

	tail := collect(t, log, 10)
	require.Len(t, tail, 3)
	assert.Equal(uint64(10), tail[0].Sequence)

	assert.Empty(collect(t, log, 13))

	page, err := log.ReadRange(5, 2)
	assert.Nil(err)
	require.Len(t, page, 2)
	assert.Equal(uint64(6), page[1].Sequence)

	empty, err := log.AppendBatch(ctx, nil)
	assert.Nil(err)
	assert.Nil(empty)
}

func TestLog_replayRestart(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	dataDir := t.TempDir()

	store, err := NewBoltStorage(BoltOptions{DataDir: dataDir})
	require.Nil(t, err)
	log := openTestLog(t, store)
	for range 5 {
		_, err := log.Append(ctx, RecordData, []byte(fake.Word()))
		assert.Nil(err)
	}
	before := collect(t, log, 0)
	assert.Nil(log.Close())

	store, err = NewBoltStorage(BoltOptions{DataDir: dataDir})
	require.Nil(t, err)
	log, err = OpenLog(LogOptions{Store: store, Registerer: prometheus.NewRegistry()})
	require.Nil(t, err)
	defer func() {
		assert.Nil(log.Close())
	}()

	_, err = log.Append(ctx, RecordData, []byte("too early"))
	assert.ErrorIs(err, ErrIOFailure)

	var replayed []*Record
	assert.Nil(log.Replay(ctx, func(record *Record) error {
		replayed = append(replayed, record)
		return nil
	}))
	assert.Equal(before, replayed)

	sequence, err := log.Append(ctx, RecordData, []byte("after"))
	assert.Nil(err)
	assert.Equal(uint64(6), sequence)
}

func TestLog_fenced(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	log := openTestLog(t, NewInMemoryStorage())
	defer func() {
		assert.Nil(log.Close())
	}()

	_, err := log.Append(ctx, RecordData, []byte("a"))
	assert.Nil(err)

	log.Fence()
	assert.False(log.Writable())
	_, err = log.Append(ctx, RecordData, []byte("b"))
	assert.ErrorIs(err, ErrIOFailure)
	assert.Equal(uint64(1), log.LastSequence())
	assert.Len(collect(t, log, 0), 1)

	log.Unfence()
	sequence, err := log.Append(ctx, RecordData, []byte("c"))
	assert.Nil(err)
	assert.Equal(uint64(2), sequence)
}

func TestLog_ioFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := newMockStore()
	log := openTestLog(t, store)
	defer func() {
		assert.Nil(log.Close())
	}()

	store.On("StoreRecords", mock.Anything).Return(nil).Once()
	_, err := log.Append(ctx, RecordData, []byte("a"))
	assert.Nil(err)

	store.On("StoreRecords", mock.Anything).Return(errors.New("disk full")).Times(int(defaultWriteRetries) + 1)
	_, err = log.AppendBatch(ctx, []Entry{
		{Kind: RecordData, Payload: []byte("b")},
		{Kind: RecordData, Payload: []byte("c")},
	})
	assert.ErrorIs(err, ErrIOFailure)
	assert.False(log.Healthy())
	assert.Equal(uint64(1), log.LastSequence())
	assert.Len(collect(t, log, 0), 1)
	store.AssertExpectations(t)

	store.On("StoreRecords", mock.Anything).Return(errors.New("disk full")).Once()
	store.On("StoreRecords", mock.Anything).Return(nil).Once()
	sequence, err := log.Append(ctx, RecordData, []byte("d"))
	assert.Nil(err)
	assert.Equal(uint64(2), sequence)
	assert.True(log.Healthy())
}

func TestLog_noWriteRetries(t *testing.T) {
	assert := assert.New(t)
	store := newMockStore()
	log, err := OpenLog(LogOptions{
		Store:               store,
		WriteRetries:        5,
		DisableWriteRetries: true,
		RetryBackoff:        time.Millisecond,
		Registerer:          prometheus.NewRegistry(),
	})
	require.Nil(t, err)
	require.Nil(t, log.Replay(context.Background(), nil))
	defer func() {
		assert.Nil(log.Close())
	}()

	store.On("StoreRecords", mock.Anything).Return(errors.New("disk full")).Once()
	_, err = log.Append(context.Background(), RecordData, []byte("a"))
	assert.ErrorIs(err, ErrIOFailure)
	assert.False(log.Healthy())
	store.AssertExpectations(t)
}

func TestLog_corruption(t *testing.T) {
	ctx := context.Background()

	t.Run("checksum_mismatch", func(t *testing.T) {
		store := NewInMemoryStorage()
		require.Nil(t, store.StoreRecords(makeRecords(1, 3)))
		store.records[2].Payload = []byte("tampered")

		log, err := OpenLog(LogOptions{Store: store, Registerer: prometheus.NewRegistry()})
		require.Nil(t, err)
		err = log.Replay(ctx, nil)
		assert.ErrorIs(t, err, ErrReplayCorruption)
		assert.False(t, log.Writable())
	})

	t.Run("sequence_gap", func(t *testing.T) {
		store := NewInMemoryStorage()
		require.Nil(t, store.StoreRecords(makeRecords(1, 2)))
		require.Nil(t, store.StoreRecords(makeRecords(4, 1)))

		log, err := OpenLog(LogOptions{Store: store, Registerer: prometheus.NewRegistry()})
		require.Nil(t, err)
		err = log.Replay(ctx, nil)
		assert.ErrorIs(t, err, ErrReplayCorruption)
		assert.ErrorIs(t, err, ErrSequenceGap)
	})

	t.Run("missing_head", func(t *testing.T) {
		store := NewInMemoryStorage()
		require.Nil(t, store.StoreRecords(makeRecords(2, 2)))

		log, err := OpenLog(LogOptions{Store: store, Registerer: prometheus.NewRegistry()})
		require.Nil(t, err)
		err = log.Replay(ctx, nil)
		assert.ErrorIs(t, err, ErrReplayCorruption)
		assert.ErrorIs(t, err, ErrSequenceGap)
		assert.False(t, log.Writable())
	})

	t.Run("fold_failure", func(t *testing.T) {
		store := NewInMemoryStorage()
		require.Nil(t, store.StoreRecords(makeRecords(1, 2)))

		log, err := OpenLog(LogOptions{Store: store, Registerer: prometheus.NewRegistry()})
		require.Nil(t, err)
		err = log.Replay(ctx, func(*Record) error {
			return errors.New("cannot fold")
		})
		assert.ErrorIs(t, err, ErrReplayCorruption)
	})

	t.Run("closed_store", func(t *testing.T) {
		store := NewInMemoryStorage()
		require.Nil(t, store.StoreRecords(makeRecords(1, 2)))
		log, err := OpenLog(LogOptions{Store: store, Registerer: prometheus.NewRegistry()})
		require.Nil(t, err)
		require.Nil(t, store.Close())

		err = log.Replay(ctx, nil)
		assert.ErrorIs(t, err, ErrIOFailure)
		assert.NotErrorIs(t, err, ErrReplayCorruption)
	})
}

func TestLog_follow(t *testing.T) {
	assert := assert.New(t)
	log := openTestLog(t, NewInMemoryStorage())
	defer func() {
		assert.Nil(log.Close())
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := log.Append(ctx, RecordData, []byte("1"))
	require.Nil(t, err)

	received := make(chan uint64, 10)
	done := make(chan error, 1)
	go func() {
		done <- log.Follow(ctx, 1, func(record *Record) error {
			received <- record.Sequence
			return nil
		})
	}()

	assert.Equal(uint64(1), <-received)
	for range 3 {
		_, err := log.Append(ctx, RecordData, []byte(fake.Word()))
		require.Nil(t, err)
	}
	for expected := uint64(2); expected <= 4; expected++ {
		select {
		case sequence := <-received:
			assert.Equal(expected, sequence)
		case <-time.After(5 * time.Second):
			require.FailNow(t, "record not followed")
		}
	}

	cancel()
	assert.ErrorIs(<-done, context.Canceled)
}

func TestLog_wait(t *testing.T) {
	assert := assert.New(t)
	log := openTestLog(t, NewInMemoryStorage())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(log.Wait(ctx, 0), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() {
		done <- log.Wait(context.Background(), 0)
	}()
	assert.Nil(log.Close())
	assert.ErrorIs(<-done, ErrStoreClosed)
}

func TestLog_readLog(t *testing.T) {
	assert := assert.New(t)
	log := openTestLog(t, NewInMemoryStorage())
	defer func() {
		assert.Nil(log.Close())
	}()

	for range 3 {
		_, err := log.AppendLog(context.Background(), []byte(fake.Word()))
		require.Nil(t, err)
	}

	var sequences []uint64
	assert.Nil(log.ReadLog(context.Background(), 2, false, func(record *Record) error {
		sequences = append(sequences, record.Sequence)
		return nil
	}))
	assert.Equal([]uint64{2, 3}, sequences)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := log.ReadLog(ctx, 1, true, func(*Record) error { return nil })
	assert.ErrorIs(err, ErrCancelled)

	stop := errors.New("stop")
	err = log.ReadLog(context.Background(), 1, false, func(*Record) error { return stop })
	assert.ErrorIs(err, stop)
}

func TestOpenLog_errors(t *testing.T) {
	_, err := OpenLog(LogOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	store := NewInMemoryStorage()
	require.Nil(t, store.Close())
	_, err = OpenLog(LogOptions{Store: store})
	assert.ErrorIs(t, err, ErrIOFailure)
}
