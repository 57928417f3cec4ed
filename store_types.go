package ordinator

import (
	"sync"

	bolt "go.etcd.io/bbolt"
)

const (
	// dbFileName is the name of the database file
	dbFileName string = "ordinator.db"
	// bucketLogName will be used to store records
	bucketLogName string = "ordinator_log"
	// bucketMetadataName will be used to store log metadata
	bucketMetadataName string = "ordinator_metadata"
	// metadataLogIDKey is the key holding the log id
	metadataLogIDKey string = "log_id"
)

// LogStore is an interface that allow us to persist
// and retrieve records
type LogStore interface {
	// Close permits to close the store
	Close() error

	// StoreRecords stores multiple records atomically.
	// Either all records are persisted or none
	StoreRecords(records []*Record) error

	// GetRecord permits to retrieve the record with the specified sequence
	GetRecord(sequence uint64) (*Record, error)

	// GetRecords returns at most limit records with
	// sequence greater or equal to from, in sequence order
	GetRecords(from uint64, limit int) ([]*Record, error)

	// FirstSequence returns the first sequence of the log
	FirstSequence() (uint64, error)

	// LastSequence returns the last sequence of the log
	// or 0 when the log is empty
	LastSequence() (uint64, error)

	// LogID returns the unique id of the log generated on creation
	LogID() string
}

// BoltOptions holds the configuration of BoltStore
type BoltOptions struct {
	// DataDir is the default data directory that will be used to store all data on the disk. It's required
	DataDir string

	// Options hold all bolt options
	Options *bolt.Options
}

// BoltStore is a LogStore persisted with bolt
type BoltStore struct {
	// dataDir is the data directory used to store all data on the disk
	dataDir string

	// db allows us to manipulate the k/v database
	db *bolt.DB

	// logID is the unique id of the log
	logID string
}

// InMemoryStore is a LogStore living only in memory.
// It's meant for unit testing and ephemeral setups
type InMemoryStore struct {
	// mu hold locking mecanism
	mu sync.RWMutex

	// records hold all records
	records []*Record

	// closed tells if the store has been closed
	closed bool

	// logID is the unique id of the log
	logID string
}

// sharedStore is a store provided by the caller.
// Closing it is left to the caller
type sharedStore struct {
	LogStore
}

// Close does nothing
func (sharedStore) Close() error {
	return nil
}
