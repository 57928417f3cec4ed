package ordinator

import (
	"sort"

	"github.com/google/uuid"
)

// NewInMemoryStorage returns an empty in memory store
func NewInMemoryStorage() *InMemoryStore {
	return &InMemoryStore{logID: uuid.NewString()}
}

// Close will close the store
func (in *InMemoryStore) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.closed = true
	return nil
}

// LogID returns the unique id of the log
func (in *InMemoryStore) LogID() string {
	return in.logID
}

// StoreRecords stores multiple records
func (in *InMemoryStore) StoreRecords(records []*Record) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return ErrStoreClosed
	}

	for _, record := range records {
		stored := *record
		stored.Payload = append([]byte(nil), record.Payload...)
		stored.Checksum = checksumRecord(&stored)
		record.Checksum = stored.Checksum
		in.records = append(in.records, &stored)
	}
	return nil
}

// GetRecord permits to retrieve the record with the specified sequence
func (in *InMemoryStore) GetRecord(sequence uint64) (*Record, error) {
	records, err := in.GetRecords(sequence, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || records[0].Sequence != sequence {
		return nil, ErrRecordNotFound
	}
	return records[0], nil
}

// GetRecords returns at most limit records starting at from
func (in *InMemoryStore) GetRecords(from uint64, limit int) (records []*Record, err error) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if in.closed {
		return nil, ErrStoreClosed
	}

	start := sort.Search(len(in.records), func(i int) bool {
		return in.records[i].Sequence >= from
	})
	for _, record := range in.records[start:] {
		if limit > 0 && len(records) >= limit {
			break
		}
		if checksumRecord(record) != record.Checksum {
			return nil, ErrChecksumMismatch
		}
		copied := *record
		records = append(records, &copied)
	}
	return
}

// FirstSequence will return the first sequence of the log
func (in *InMemoryStore) FirstSequence() (uint64, error) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if in.closed {
		return 0, ErrStoreClosed
	}
	if len(in.records) == 0 {
		return 0, ErrRecordNotFound
	}
	return in.records[0].Sequence, nil
}

// LastSequence will return the last sequence of the log
func (in *InMemoryStore) LastSequence() (uint64, error) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if in.closed {
		return 0, ErrStoreClosed
	}
	if len(in.records) == 0 {
		return 0, nil
	}
	return in.records[len(in.records)-1].Sequence, nil
}
