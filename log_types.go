package ordinator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	// defaultWriteRetries is the number of times a failed write
	// is retried before declaring the writer path unhealthy
	defaultWriteRetries uint64 = 3

	// defaultRetryBackoff is the first wait between two write attempts
	defaultRetryBackoff = 50 * time.Millisecond

	// defaultPageSize is the amount of records fetched at once by readers
	defaultPageSize int = 256
)

// LogOptions holds config of the durable log
type LogOptions struct {
	// Logger expose zerolog so it can be override
	Logger *zerolog.Logger

	// Store is the long term storage of the records. It's required
	Store LogStore

	// NodeID is used as a label for metrics
	NodeID string

	// WriteRetries is the number of times a failed write is retried.
	// Default to 3
	WriteRetries uint64

	// DisableWriteRetries makes the first failed write declare
	// the writer path unhealthy. WriteRetries is ignored
	DisableWriteRetries bool

	// RetryBackoff is the first wait between two write attempts,
	// doubled on each failure.
	// Default to 50ms
	RetryBackoff time.Duration

	// PageSize is the amount of records fetched at once by readers.
	// Default to 256
	PageSize int

	// MetricsNamespacePrefix is the namespace to use for all metrics.
	MetricsNamespacePrefix string

	// Registerer is where metrics are registered.
	// Default to prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

// Log is the durable, append only and strictly ordered log.
// There is a single writer at a time, readers run concurrently
type Log struct {
	// mu serializes writers
	mu sync.Mutex

	// logger expose zerolog so it can be override
	logger *zerolog.Logger

	// store is the long term storage of the records
	store LogStore

	// lastSequence is the sequence of the last committed record
	lastSequence atomic.Uint64

	// writable is false until replay completed or when the writer is fenced
	writable atomic.Bool

	// healthy is set to false when a write failed after all retries
	healthy atomic.Bool

	// notifyMu protects notify
	notifyMu sync.Mutex

	// notify is closed and replaced every time records are committed
	notify chan struct{}

	// closed is closed when the log is closed
	closed chan struct{}

	// closeOnce makes Close idempotent
	closeOnce sync.Once

	// writeRetries is the number of times a failed write is retried
	writeRetries uint64

	// retryBackoff is the first wait between two write attempts
	retryBackoff time.Duration

	// pageSize is the amount of records fetched at once by readers
	pageSize int

	// metrics holds all prometheus metrics
	metrics *metrics

	// now is used to mock time in unit testing
	now func() time.Time
}
