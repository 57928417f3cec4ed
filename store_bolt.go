package ordinator

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// NewBoltStorage opens or creates the bolt database in options.DataDir
func NewBoltStorage(options BoltOptions) (*BoltStore, error) {
	if options.DataDir == "" {
		return nil, ErrDataDirRequired
	}
	if options.Options == nil {
		options.Options = bolt.DefaultOptions
	}

	dbdir := filepath.Join(options.DataDir, "db")
	if err := createDirectoryIfNotExist(dbdir, 0750); err != nil {
		return nil, fmt.Errorf("fail to create directory %s: %w", dbdir, err)
	}

	db, err := bolt.Open(filepath.Join(dbdir, dbFileName), 0600, options.Options)
	if err != nil {
		return nil, err
	}

	store := &BoltStore{
		dataDir: options.DataDir,
		db:      db,
	}

	if !options.Options.ReadOnly {
		if err := store.initializeBuckets(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	if err := store.loadLogID(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// initializeBuckets will initialize all buckets
// and generate the log id on first run
func (b *BoltStore) initializeBuckets() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketLogName)); err != nil {
			return err
		}

		bucket, err := tx.CreateBucketIfNotExists([]byte(bucketMetadataName))
		if err != nil {
			return err
		}
		if bucket.Get([]byte(metadataLogIDKey)) == nil {
			return bucket.Put([]byte(metadataLogIDKey), []byte(uuid.NewString()))
		}
		return nil
	})
}

// loadLogID reads the log id from the metadata bucket
func (b *BoltStore) loadLogID() error {
	return b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketMetadataName))
		if bucket == nil {
			return ErrRecordNotFound
		}
		b.logID = string(bucket.Get([]byte(metadataLogIDKey)))
		return nil
	})
}

// Close will close bolt database
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// LogID returns the unique id of the log
func (b *BoltStore) LogID() string {
	return b.logID
}

// StoreRecords stores multiple records in a single transaction.
// Bolt syncs the file on commit so the records are durable once it returns
func (b *BoltStore) StoreRecords(records []*Record) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketLogName))

		for _, record := range records {
			value := new(bytes.Buffer)
			if err := MarshalRecord(record, value); err != nil {
				return err
			}

			if err := bucket.Put(EncodeUint64ToBytes(record.Sequence), value.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRecord permits to retrieve the record with the specified sequence
func (b *BoltStore) GetRecord(sequence uint64) (*Record, error) {
	var record *Record
	err := b.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket([]byte(bucketLogName)).Get(EncodeUint64ToBytes(sequence))
		if value == nil {
			return ErrRecordNotFound
		}

		var err error
		record, err = UnmarshalRecord(value)
		return err
	})
	return record, err
}

// GetRecords returns at most limit records starting at from
func (b *BoltStore) GetRecords(from uint64, limit int) (records []*Record, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket([]byte(bucketLogName)).Cursor()
		for k, v := cursor.Seek(EncodeUint64ToBytes(from)); k != nil; k, v = cursor.Next() {
			if limit > 0 && len(records) >= limit {
				return nil
			}

			record, err := UnmarshalRecord(v)
			if err != nil {
				return fmt.Errorf("record %d: %w", DecodeUint64ToBytes(k), err)
			}
			if record.Sequence != DecodeUint64ToBytes(k) {
				return fmt.Errorf("record %d stored under key %d: %w", record.Sequence, DecodeUint64ToBytes(k), ErrChecksumMismatch)
			}
			records = append(records, record)
		}
		return nil
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		err = ErrStoreClosed
	}
	return
}

// FirstSequence will return the first sequence of the log
func (b *BoltStore) FirstSequence() (uint64, error) {
	var sequence uint64
	var found bool
	if err := b.db.View(func(tx *bolt.Tx) error {
		key, _ := tx.Bucket([]byte(bucketLogName)).Cursor().First()
		if len(key) > 0 {
			sequence, found = DecodeUint64ToBytes(key), true
		}
		return nil
	}); err != nil {
		return 0, ErrStoreClosed
	}
	if !found {
		return 0, ErrRecordNotFound
	}
	return sequence, nil
}

// LastSequence will return the last sequence of the log
func (b *BoltStore) LastSequence() (uint64, error) {
	var sequence uint64
	var found bool
	if err := b.db.View(func(tx *bolt.Tx) error {
		key, _ := tx.Bucket([]byte(bucketLogName)).Cursor().Last()
		if len(key) > 0 {
			sequence, found = DecodeUint64ToBytes(key), true
		}
		return nil
	}); err != nil {
		return 0, ErrStoreClosed
	}
	if !found {
		return 0, nil
	}
	return sequence, nil
}
