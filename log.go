package ordinator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/Lord-Y/ordinator/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// OpenLog builds a log on top of the provided store.
// The log is not writable until Replay completed
func OpenLog(options LogOptions) (*Log, error) {
	if options.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidArgument)
	}
	if options.Logger == nil {
		options.Logger = logger.NewLogger()
	}
	switch {
	case options.DisableWriteRetries:
		options.WriteRetries = 0
	case options.WriteRetries == 0:
		options.WriteRetries = defaultWriteRetries
	}
	if options.RetryBackoff == 0 {
		options.RetryBackoff = defaultRetryBackoff
	}
	if options.PageSize <= 0 {
		options.PageSize = defaultPageSize
	}
	if options.Registerer == nil {
		options.Registerer = prometheus.DefaultRegisterer
	}

	last, err := options.Store.LastSequence()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	l := &Log{
		logger:       options.Logger,
		store:        options.Store,
		notify:       make(chan struct{}),
		closed:       make(chan struct{}),
		writeRetries: options.WriteRetries,
		retryBackoff: options.RetryBackoff,
		pageSize:     options.PageSize,
		metrics:      newMetrics(options.NodeID, options.MetricsNamespacePrefix, options.Registerer),
		now:          time.Now,
	}
	l.lastSequence.Store(last)
	l.healthy.Store(true)
	l.metrics.setGauge(l.metrics.healthy, true)
	return l, nil
}

// Replay reads every record from the start of the log and hands it over to fn.
// Once all records have been replayed, the log accepts new appends.
// Any checksum or sequence error is reported as ErrReplayCorruption
func (l *Log) Replay(ctx context.Context, fn func(*Record) error) error {
	start := l.now()
	defer l.metrics.timeSince("replay", start)

	if err := l.checkBounds(); err != nil {
		return err
	}

	var total uint64
	for record, err := range l.Read(0) {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if fn != nil {
			if err := fn(record); err != nil {
				return fmt.Errorf("%w: record %d: %w", ErrReplayCorruption, record.Sequence, err)
			}
		}
		total++
	}

	l.writable.Store(true)
	l.logger.Info().
		Str("logId", l.store.LogID()).
		Uint64("records", total).
		Uint64("lastSequence", l.lastSequence.Load()).
		Str("duration", time.Since(start).String()).
		Msgf("Log replay completed")
	return nil
}

// checkBounds makes sure a non empty log starts at the first sequence
// and that its last record can be read back
func (l *Log) checkBounds() error {
	last := l.lastSequence.Load()
	if last == 0 {
		return nil
	}

	first, err := l.store.FirstSequence()
	if err != nil {
		return classifyReadError(err)
	}
	if first != 1 {
		return fmt.Errorf("%w: log starts at sequence %d: %w", ErrReplayCorruption, first, ErrSequenceGap)
	}

	record, err := l.store.GetRecord(last)
	if err != nil {
		return classifyReadError(err)
	}
	if record.Sequence != last {
		return fmt.Errorf("%w: expected sequence %d got %d: %w", ErrReplayCorruption, last, record.Sequence, ErrSequenceGap)
	}
	return nil
}

// Fence prevents any further append until Unfence is called.
// It's used when the node lost the writer lease
func (l *Log) Fence() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writable.Store(false)
}

// Unfence allows appends again
func (l *Log) Unfence() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writable.Store(true)
}

// Writable tells if appends are accepted
func (l *Log) Writable() bool {
	return l.writable.Load()
}

// Healthy tells if the writer path is healthy
func (l *Log) Healthy() bool {
	return l.healthy.Load()
}

// LastSequence returns the sequence of the last committed record
func (l *Log) LastSequence() uint64 {
	return l.lastSequence.Load()
}

// LogID returns the unique id of the log
func (l *Log) LogID() string {
	return l.store.LogID()
}

// Append persists a single record and returns its sequence
func (l *Log) Append(ctx context.Context, kind RecordKind, payload []byte) (uint64, error) {
	records, err := l.AppendBatch(ctx, []Entry{{Kind: kind, Payload: payload}})
	if err != nil {
		return 0, err
	}
	return records[0].Sequence, nil
}

// AppendBatch persists all entries atomically with contiguous sequences.
// It never returns without error unless all records are durable
func (l *Log) AppendBatch(ctx context.Context, entries []Entry) ([]*Record, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.writable.Load() {
		return nil, fmt.Errorf("%w: no active writer", ErrIOFailure)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := l.now()
	next := l.lastSequence.Load() + 1
	records := make([]*Record, len(entries))
	for index, entry := range entries {
		records[index] = &Record{
			Sequence:  next + uint64(index),
			Kind:      entry.Kind,
			Timestamp: start.UnixNano(),
			Payload:   entry.Payload,
		}
	}

	if err := l.persist(ctx, records); err != nil {
		return nil, err
	}

	l.lastSequence.Store(records[len(records)-1].Sequence)
	l.metrics.timeSince("append", start)
	l.metrics.committed(records)
	l.broadcast()
	return records, nil
}

// persist writes records with retries and exponential backoff.
// Caller must hold the writer lock
func (l *Log) persist(ctx context.Context, records []*Record) error {
	var failures uint64
	for {
		err := l.store.StoreRecords(records)
		if err == nil {
			if !l.healthy.Load() {
				l.healthy.Store(true)
				l.metrics.setGauge(l.metrics.healthy, true)
			}
			return nil
		}

		failures++
		l.logger.Warn().Err(err).
			Uint64("sequence", records[0].Sequence).
			Uint64("attempt", failures).
			Msgf("Fail to persist records")

		if failures > l.writeRetries {
			l.healthy.Store(false)
			l.metrics.setGauge(l.metrics.healthy, false)
			l.metrics.appendFailures.With(prometheus.Labels{"node_id": l.metrics.id}).Inc()
			return fmt.Errorf("%w: %w", ErrIOFailure, err)
		}

		timer := time.NewTimer(backoff(l.retryBackoff, failures-1, l.writeRetries))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrIOFailure, ctx.Err())
		case <-l.closed:
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrIOFailure, ErrStoreClosed)
		case <-timer.C:
		}
	}
}

// broadcast wakes up everyone waiting for new records
func (l *Log) broadcast() {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	close(l.notify)
	l.notify = make(chan struct{})
}

// changed returns a channel closed on the next commit
func (l *Log) changed() <-chan struct{} {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()
	return l.notify
}

// Wait blocks until a record with a sequence greater than after is committed,
// ctx is done or the log is closed
func (l *Log) Wait(ctx context.Context, after uint64) error {
	for {
		notify := l.changed()
		if l.lastSequence.Load() > after {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closed:
			return ErrStoreClosed
		case <-notify:
		}
	}
}

// classifyReadError tells apart storage failures from corrupted content
func classifyReadError(err error) error {
	if errors.Is(err, ErrStoreClosed) || errors.Is(err, ErrIOFailure) {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return fmt.Errorf("%w: %w", ErrReplayCorruption, err)
}

// Read returns a lazy sequence of committed records starting at from.
// A from of 0 reads from the start of the log.
// The sequence is finite: it stops at the last record committed
// when the iteration started and can be restarted from any sequence
func (l *Log) Read(from uint64) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		expected := max(from, 1)
		last := l.lastSequence.Load()

		for expected <= last {
			records, err := l.store.GetRecords(expected, l.pageSize)
			if err != nil {
				yield(nil, classifyReadError(err))
				return
			}
			if len(records) == 0 {
				yield(nil, fmt.Errorf("%w: record %d: %w", ErrReplayCorruption, expected, ErrRecordNotFound))
				return
			}

			for _, record := range records {
				if record.Sequence > last {
					return
				}
				if record.Sequence != expected {
					yield(nil, fmt.Errorf("%w: expected sequence %d got %d: %w", ErrReplayCorruption, expected, record.Sequence, ErrSequenceGap))
					return
				}
				if !yield(record, nil) {
					return
				}
				expected++
			}
		}
	}
}

// ReadRange returns at most limit committed records starting at from
func (l *Log) ReadRange(from uint64, limit int) ([]*Record, error) {
	var records []*Record
	for record, err := range l.Read(from) {
		if err != nil {
			return nil, err
		}
		records = append(records, record)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records, nil
}

// Close fences the writer and closes the underlying store
func (l *Log) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.Fence()
		close(l.closed)
		err = l.store.Close()
	})
	return err
}

// Follow hands over every record starting at from to fn and then waits
// for new ones until ctx is done, the log is closed or fn fails
func (l *Log) Follow(ctx context.Context, from uint64, fn func(*Record) error) error {
	next := max(from, 1)
	for {
		for record, err := range l.Read(next) {
			if err != nil {
				return err
			}
			if err := fn(record); err != nil {
				return err
			}
			next = record.Sequence + 1
		}

		if err := l.Wait(ctx, next-1); err != nil {
			return err
		}
	}
}

// AppendLog appends an opaque payload and returns its sequence
func (l *Log) AppendLog(ctx context.Context, payload []byte) (uint64, error) {
	return l.Append(ctx, RecordData, payload)
}

// ReadLog hands over records starting at from to fn.
// When follow is true, it keeps waiting for new records until ctx is done
func (l *Log) ReadLog(ctx context.Context, from uint64, follow bool, fn func(*Record) error) error {
	if follow {
		return cancelled(l.Follow(ctx, from, fn))
	}
	for record, err := range l.Read(from) {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return nil
}
