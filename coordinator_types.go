package ordinator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Coordinator tracks members, decides which member owns which unit of work
// and commits every decision into the durable log before exposing it
type Coordinator struct {
	// options holds the validated config
	options Options

	// logger expose zerolog so it can be override
	logger *zerolog.Logger

	// id is the id of the current replica
	id string

	// wg holds go routines of the current leadership term
	wg sync.WaitGroup

	// writeLock serializes writers so that appending, folding and publishing
	// happen as a single step. It holds a token while a writer is running
	writeLock chan struct{}

	// log is the durable log of the current leadership term.
	// It's nil when the replica is not the leader
	log atomic.Pointer[Log]

	// snapshot is the last published derived state
	snapshot atomic.Pointer[Snapshot]

	// ready is true once replay completed and while the replica is the leader
	ready atomic.Bool

	// leader is true while the replica holds the writer lease
	leader atomic.Bool

	// tracker maintains the liveness view of members
	tracker *Tracker

	// engine decides assignments
	engine *Engine

	// metrics holds all prometheus metrics
	metrics *metrics

	// fatal receives errors that must stop the replica
	fatal chan error

	// hooksMu protects readyHooks
	hooksMu sync.Mutex

	// readyHooks are called every time readiness changes
	readyHooks []func(bool)
}

// Engine computes and commits assignment rounds
type Engine struct {
	// logger expose zerolog so it can be override
	logger *zerolog.Logger

	// coordinator holds the shared writer and snapshot
	coordinator *Coordinator

	// keepSuspectUnits lets suspect members keep their units
	// during the suspect grace
	keepSuspectUnits bool
}

// term holds the resources of a leadership term
type term struct {
	// ctx is cancelled when the term ends
	ctx context.Context

	// cancel ends the term
	cancel context.CancelFunc

	// log is the durable log opened for the term
	log *Log
}
