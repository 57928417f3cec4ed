package ordinator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// NewCoordinator builds a coordinator from the provided options.
// Storage is only opened once the replica becomes the leader
func NewCoordinator(options Options) (*Coordinator, error) {
	options, err := options.withDefaults()
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		options:   options,
		logger:    options.Logger,
		id:        options.NodeID,
		metrics:   newMetrics(options.NodeID, options.MetricsNamespacePrefix, options.Registerer),
		fatal:     make(chan error, 1),
		writeLock: make(chan struct{}, 1),
	}
	c.snapshot.Store(newSnapshot())
	c.tracker = newTracker(c)
	c.engine = &Engine{
		logger:           options.Logger,
		coordinator:      c,
		keepSuspectUnits: options.KeepSuspectUnits,
	}
	return c, nil
}

// NodeID returns the id of the current replica
func (c *Coordinator) NodeID() string {
	return c.id
}

// IsReady tells if the coordinator serves authoritative answers
func (c *Coordinator) IsReady() bool {
	return c.ready.Load()
}

// IsLeader tells if the coordinator holds the writer lease
func (c *Coordinator) IsLeader() bool {
	return c.leader.Load()
}

// Snapshot returns the last published derived state.
// The returned snapshot must not be modified
func (c *Coordinator) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Log returns the durable log of the current leadership term
// or nil when the replica is not the leader
func (c *Coordinator) Log() *Log {
	return c.log.Load()
}

// Tracker returns the membership tracker
func (c *Coordinator) Tracker() *Tracker {
	return c.tracker
}

// Engine returns the assignment engine
func (c *Coordinator) Engine() *Engine {
	return c.engine
}

// Run campaigns for leadership and serves as leader until ctx is done.
// It only returns an error when the replica must stop: replay corruption,
// storage that cannot be opened or a writer path declared unhealthy
func (c *Coordinator) Run(ctx context.Context) error {
	var failures uint64
	for {
		c.logger.Info().Str("nodeId", c.id).Msgf("Campaigning for leadership")
		lost, err := c.options.Elector.Campaign(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			c.logger.Error().Err(err).Str("nodeId", c.id).Msgf("Fail to campaign for leadership")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(randomTimeout(backoff(c.options.RetryBackoff, failures, 6))):
			}
			continue
		}
		failures = 0

		c.setLeader(true)
		err = c.lead(ctx, lost)
		c.setLeader(false)

		resignCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		if rerr := c.options.Elector.Resign(resignCtx); rerr != nil {
			c.logger.Warn().Err(rerr).Str("nodeId", c.id).Msgf("Fail to resign leadership")
		}
		cancel()

		if ctx.Err() != nil {
			c.logger.Info().Str("nodeId", c.id).Msgf("Coordinator stopped")
			return nil
		}
		if err != nil {
			return err
		}
		c.logger.Warn().Str("nodeId", c.id).Msgf("Leadership lost")
	}
}

// lead opens the log, replays it and serves until leadership is lost
func (c *Coordinator) lead(ctx context.Context, lost <-chan struct{}) error {
	t, err := c.startTerm(ctx)
	if err != nil {
		return err
	}
	defer c.endTerm(t)

	select {
	case <-ctx.Done():
		return nil
	case <-lost:
		c.setLeader(false)
		return nil
	case err := <-c.fatal:
		c.logger.Error().Err(err).Str("nodeId", c.id).Msgf("Stopping replica after fatal error")
		return err
	}
}

// openStore returns the store of the log
func (c *Coordinator) openStore() (LogStore, error) {
	var store LogStore
	if c.options.Store != nil {
		store = sharedStore{LogStore: c.options.Store}
	} else {
		boltStore, err := NewBoltStorage(BoltOptions{
			DataDir: c.options.DataDir,
			Options: &bolt.Options{Timeout: c.options.HeartbeatWindow},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
		}
		store = boltStore
	}

	if c.options.DisableLogCache {
		return store, nil
	}
	return NewLogCache(LogCacheOptions{Store: store, CacheOnWrite: true})
}

// startTerm opens and replays the log then starts background tasks.
// The coordinator is ready once it returns without error
func (c *Coordinator) startTerm(ctx context.Context) (*term, error) {
	store, err := c.openStore()
	if err != nil {
		return nil, err
	}

	log, err := OpenLog(LogOptions{
		Logger:                 c.logger,
		Store:                  store,
		NodeID:                 c.id,
		WriteRetries:           c.options.WriteRetries,
		DisableWriteRetries:    c.options.DisableWriteRetries,
		RetryBackoff:           c.options.RetryBackoff,
		MetricsNamespacePrefix: c.options.MetricsNamespacePrefix,
		Registerer:             c.options.Registerer,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	snapshot := newSnapshot()
	if err := log.Replay(ctx, snapshot.apply); err != nil {
		_ = log.Close()
		return nil, err
	}

	termCtx, cancel := context.WithCancel(ctx)
	t := &term{ctx: termCtx, cancel: cancel, log: log}

	c.writeLock <- struct{}{}
	c.log.Store(log)
	c.publish(snapshot)
	c.unlockWrite()
	c.tracker.start(termCtx, snapshot)

	if err := c.bootstrap(termCtx); err != nil && !errors.Is(err, ErrNoEligibleMember) {
		c.endTerm(t)
		return nil, err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.sweepLoop(termCtx)
	}()

	if c.options.EventSource != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.consumeEvents(termCtx)
		}()
	}

	c.setReady(true)
	c.logger.Info().
		Str("nodeId", c.id).
		Str("logId", log.LogID()).
		Uint64("version", c.Snapshot().Version).
		Uint64("epoch", c.Snapshot().Epoch).
		Msgf("Coordinator is ready")
	return t, nil
}

// endTerm drops readiness, stops background tasks and closes the log
func (c *Coordinator) endTerm(t *term) {
	c.setReady(false)
	t.cancel()
	c.tracker.stop()
	c.wg.Wait()

	c.writeLock <- struct{}{}
	c.log.Store(nil)
	c.unlockWrite()

	if err := t.log.Close(); err != nil {
		c.logger.Warn().Err(err).Str("nodeId", c.id).Msgf("Fail to close log")
	}
}

// bootstrap declares configured units and runs a first assignment round
func (c *Coordinator) bootstrap(ctx context.Context) error {
	if err := c.lockWrite(ctx); err != nil {
		return err
	}
	defer c.unlockWrite()

	snapshot := c.Snapshot()
	var missing []string
	for _, unit := range c.options.configuredUnits() {
		if !snapshot.HasUnit(unit) {
			missing = append(missing, unit)
		}
	}

	if len(missing) > 0 {
		entry, err := newUnitsEntry(unitsCommand{Units: missing})
		if err != nil {
			return err
		}
		if _, err := c.commitLocked(ctx, []Entry{entry}); err != nil {
			return err
		}
	}

	_, err := c.engine.reassignLocked(ctx, "bootstrap")
	return err
}

// sweepLoop periodically applies liveness timeouts
func (c *Coordinator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.options.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.tracker.sweep(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error().Err(err).Str("nodeId", c.id).Msgf("Fail to sweep members")
			}
		}
	}
}

// consumeEvents hands over pod events to the tracker
func (c *Coordinator) consumeEvents(ctx context.Context) {
	events, err := c.options.EventSource.Subscribe(ctx)
	if err != nil {
		c.logger.Error().Err(err).Str("nodeId", c.id).Msgf("Fail to subscribe to member events")
		return
	}

	for event := range events {
		if err := c.tracker.HandleEvent(ctx, event); err != nil && ctx.Err() == nil {
			c.logger.Warn().Err(err).
				Str("nodeId", c.id).
				Str("memberId", event.MemberID).
				Str("incarnation", event.Incarnation).
				Str("event", event.Kind.String()).
				Msgf("Fail to handle member event")
		}
	}
}

// OnReadyChange registers fn to be called every time readiness changes
func (c *Coordinator) OnReadyChange(fn func(ready bool)) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.readyHooks = append(c.readyHooks, fn)
}

// setReady updates readiness
func (c *Coordinator) setReady(value bool) {
	c.ready.Store(value)
	c.metrics.setGauge(c.metrics.ready, value)

	c.hooksMu.Lock()
	hooks := slices.Clone(c.readyHooks)
	c.hooksMu.Unlock()
	for _, hook := range hooks {
		hook(value)
	}
}

// setLeader updates leadership
func (c *Coordinator) setLeader(value bool) {
	c.leader.Store(value)
	c.metrics.setGauge(c.metrics.leader, value)
}

// checkReady returns ErrNotReady until replay completed
func (c *Coordinator) checkReady() error {
	if !c.ready.Load() {
		return ErrNotReady
	}
	return nil
}

// publish swaps in a new snapshot for readers.
// Caller must hold the write lock
func (c *Coordinator) publish(snapshot *Snapshot) {
	c.snapshot.Store(snapshot)
	c.metrics.setSnapshot(snapshot)
}

// lockWrite waits for the write lock until ctx is done
func (c *Coordinator) lockWrite(ctx context.Context) error {
	select {
	case c.writeLock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return cancelled(ctx.Err())
	}
}

// unlockWrite releases the write lock
func (c *Coordinator) unlockWrite() {
	<-c.writeLock
}

// reportFatal hands over an error that must stop the replica
func (c *Coordinator) reportFatal(err error) {
	select {
	case c.fatal <- err:
	default:
	}
}

// commitLocked appends entries atomically, folds them into a new snapshot
// and publishes it. Nothing is published unless the records are durable.
// Caller must hold the write lock
func (c *Coordinator) commitLocked(ctx context.Context, entries []Entry) (*Snapshot, error) {
	log := c.log.Load()
	if log == nil {
		return nil, ErrNotReady
	}
	if !c.leader.Load() {
		return nil, fmt.Errorf("%w: %s", ErrNotLeader, c.id)
	}

	records, err := log.AppendBatch(ctx, entries)
	if err != nil {
		if errors.Is(err, ErrIOFailure) && !log.Healthy() {
			c.reportFatal(err)
		}
		return nil, err
	}

	next, err := c.Snapshot().applyRecords(records)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrReplayCorruption, err)
		c.reportFatal(err)
		return nil, err
	}
	c.publish(next)
	return next, nil
}

// cancelled wraps context errors so callers can tell
// a client cancellation apart from other failures
func cancelled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if errors.Is(err, ErrStoreClosed) {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return err
}

// RegisterMember registers a member incarnation in Joining status.
// An empty incarnation gets a random one.
// Registering an incarnation twice returns the existing one
func (c *Coordinator) RegisterMember(ctx context.Context, id, incarnation, address string) (MemberInfo, error) {
	if err := c.checkReady(); err != nil {
		return MemberInfo{}, err
	}
	if id == "" {
		return MemberInfo{}, fmt.Errorf("%w: member id is required", ErrInvalidArgument)
	}
	if incarnation == "" {
		incarnation = uuid.NewString()
	}
	return c.tracker.Register(ctx, id, incarnation, address, SourceRPC)
}

// Heartbeat refreshes the liveness of a member incarnation
func (c *Coordinator) Heartbeat(ctx context.Context, id, incarnation string) (MemberInfo, error) {
	if err := c.checkReady(); err != nil {
		return MemberInfo{}, err
	}
	return c.tracker.Heartbeat(ctx, id, incarnation)
}

// CheckRegistered returns ErrNotRegistered unless the incarnation
// has an active membership record
func (c *Coordinator) CheckRegistered(id, incarnation string) error {
	member, ok := c.Snapshot().Member(id, incarnation)
	if !ok || member.Status == Departed {
		return fmt.Errorf("%w: %s", ErrNotRegistered, memberKey(id, incarnation))
	}
	return nil
}

// GetAssignment returns the last committed assignment of the unit
func (c *Coordinator) GetAssignment(unitID string) (AssignmentEntry, error) {
	if err := c.checkReady(); err != nil {
		return AssignmentEntry{}, err
	}

	snapshot := c.Snapshot()
	if !snapshot.HasUnit(unitID) {
		return AssignmentEntry{}, fmt.Errorf("%w: %s", ErrUnitNotFound, unitID)
	}
	entry, ok := snapshot.Assignment(unitID)
	if !ok || !entry.Assigned() {
		return AssignmentEntry{UnitID: unitID, Epoch: entry.Epoch, Sequence: entry.Sequence}, fmt.Errorf("%w: unit %s has no owner", ErrUnavailable, unitID)
	}
	return entry, nil
}

// WatchAssignments hands over every committed assignment change
// with a sequence greater than lastSeen to fn, in commit order,
// and keeps waiting for new changes until ctx is done
func (c *Coordinator) WatchAssignments(ctx context.Context, lastSeen uint64, fn func(AssignmentEntry) error) error {
	if err := c.checkReady(); err != nil {
		return err
	}
	log := c.log.Load()
	if log == nil {
		return ErrNotReady
	}

	c.metrics.watchers.WithLabelValues(c.id).Inc()
	defer c.metrics.watchers.WithLabelValues(c.id).Dec()

	err := log.Follow(ctx, lastSeen+1, func(record *Record) error {
		if record.Kind != RecordAssignment {
			return nil
		}
		cmd, err := decodeAssignmentCommand(record.Payload)
		if err != nil {
			return fmt.Errorf("%w: record %d: %w", ErrReplayCorruption, record.Sequence, err)
		}
		return fn(AssignmentEntry{
			UnitID:           cmd.UnitID,
			OwnerID:          cmd.OwnerID,
			OwnerIncarnation: cmd.OwnerIncarnation,
			Epoch:            cmd.Epoch,
			Sequence:         record.Sequence,
		})
	})
	return cancelled(err)
}

// DeclareUnits declares new units of work and assigns them.
// It returns the units that were not declared yet
func (c *Coordinator) DeclareUnits(ctx context.Context, units []string) ([]string, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}

	if err := c.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer c.unlockWrite()

	snapshot := c.Snapshot()
	seen := make(map[string]struct{})
	var added []string
	for _, unit := range units {
		if unit == "" {
			return nil, fmt.Errorf("%w: unit id is required", ErrInvalidArgument)
		}
		if _, ok := seen[unit]; ok || snapshot.HasUnit(unit) {
			continue
		}
		seen[unit] = struct{}{}
		added = append(added, unit)
	}
	if len(added) == 0 {
		return nil, nil
	}

	entry, err := newUnitsEntry(unitsCommand{Units: added})
	if err != nil {
		return nil, err
	}
	if _, err := c.commitLocked(ctx, []Entry{entry}); err != nil {
		return nil, err
	}

	if _, err := c.engine.reassignLocked(ctx, "units declared"); err != nil && !errors.Is(err, ErrNoEligibleMember) {
		return added, err
	}
	return added, nil
}

// ListMembers returns every known member sorted by identity
// with their last observed liveness
func (c *Coordinator) ListMembers() ([]MemberInfo, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}

	members := c.Snapshot().SortedMembers()
	for index := range members {
		if at, ok := c.tracker.lastSeen(members[index].Key()); ok {
			members[index].LastHeartbeat = at
		}
	}
	return members, nil
}

// AppendLog appends an opaque payload to the log and returns its sequence
func (c *Coordinator) AppendLog(ctx context.Context, payload []byte) (uint64, error) {
	if err := c.checkReady(); err != nil {
		return 0, err
	}

	if err := c.lockWrite(ctx); err != nil {
		return 0, err
	}
	defer c.unlockWrite()

	snapshot, err := c.commitLocked(ctx, []Entry{{Kind: RecordData, Payload: payload}})
	if err != nil {
		return 0, err
	}
	return snapshot.Version, nil
}

// ReadLog hands over records starting at from to fn.
// When follow is true, it keeps waiting for new records until ctx is done
func (c *Coordinator) ReadLog(ctx context.Context, from uint64, follow bool, fn func(*Record) error) error {
	if err := c.checkReady(); err != nil {
		return err
	}
	log := c.log.Load()
	if log == nil {
		return ErrNotReady
	}

	return log.ReadLog(ctx, from, follow, fn)
}
