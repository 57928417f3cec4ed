package ordinator

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// newTracker returns a tracker bound to the coordinator
func newTracker(c *Coordinator) *Tracker {
	return &Tracker{
		logger:      c.logger,
		coordinator: c,
		heartbeats:  make(map[string]time.Time),
		since:       make(map[string]time.Time),
		ctx:         context.Background(),
		now:         time.Now,
	}
}

// start resets runtime liveness after replay.
// Heartbeats are not logged so every known member is considered
// alive at the time the replica becomes ready
func (t *Tracker) start(ctx context.Context, snapshot *Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.ctx = ctx
	t.heartbeats = make(map[string]time.Time, len(snapshot.Members))
	t.since = make(map[string]time.Time, len(snapshot.Members))
	for key := range snapshot.Members {
		t.heartbeats[key] = now
		t.since[key] = now
	}
	t.pending = MembershipDelta{}
}

// stop cancels any pending flush
func (t *Tracker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.flushTimer != nil {
		t.flushTimer.Stop()
		t.flushTimer = nil
	}
	t.pending = MembershipDelta{}
}

// touch records liveness of the incarnation
func (t *Tracker) touch(key string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.heartbeats[key] = at
}

// lastSeen returns the last liveness observed for the incarnation
func (t *Tracker) lastSeen(key string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.heartbeats[key]
	return at, ok
}

// statusSince returns when the incarnation changed status for the last time
func (t *Tracker) statusSince(key string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.since[key]
}

// activation returns the commands moving the member to Active.
// Older incarnations of the same identity that did not depart yet
// are superseded
func activation(snapshot *Snapshot, member MemberInfo, reason string) []memberCommand {
	op := memberActivate
	if member.Status == Suspect {
		op = memberRecover
	}
	cmds := []memberCommand{{
		Op:          op,
		MemberID:    member.ID,
		Incarnation: member.Incarnation,
		Address:     member.Address,
		Reason:      reason,
		Source:      member.Source,
	}}

	for _, other := range snapshot.SortedMembers() {
		if other.ID != member.ID || other.Incarnation == member.Incarnation || other.Status == Departed {
			continue
		}
		cmds = append(cmds, memberCommand{
			Op:          memberDepart,
			MemberID:    other.ID,
			Incarnation: other.Incarnation,
			Reason:      fmt.Sprintf("superseded by incarnation %s", member.Incarnation),
			Source:      other.Source,
		})
	}
	return cmds
}

// commitLocked logs the member transitions, updates runtime liveness
// and schedules the reassignment round.
// Caller must hold the coordinator write lock
func (t *Tracker) commitLocked(ctx context.Context, cmds []memberCommand) (*Snapshot, error) {
	if len(cmds) == 0 {
		return t.coordinator.Snapshot(), nil
	}

	entries := make([]Entry, 0, len(cmds))
	for _, cmd := range cmds {
		entry, err := newMemberEntry(cmd)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	snapshot, err := t.coordinator.commitLocked(ctx, entries)
	if err != nil {
		return nil, err
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, cmd := range cmds {
		key := memberKey(cmd.MemberID, cmd.Incarnation)
		t.logger.Info().
			Str("memberId", cmd.MemberID).
			Str("incarnation", cmd.Incarnation).
			Str("op", cmd.Op.String()).
			Str("reason", cmd.Reason).
			Uint64("version", snapshot.Version).
			Msgf("Member transition committed")

		switch cmd.Op {
		case memberJoin:
			t.heartbeats[key] = now
			t.since[key] = now
		case memberActivate, memberRecover:
			t.heartbeats[key] = now
			t.since[key] = now
			t.pending.Joined = append(t.pending.Joined, key)
		case memberSuspect:
			t.since[key] = now
			t.pending.Suspected = append(t.pending.Suspected, key)
		case memberDepart:
			t.since[key] = now
			t.pending.Departed = append(t.pending.Departed, key)
		case memberEvict:
			delete(t.heartbeats, key)
			delete(t.since, key)
		}
	}

	if !t.pending.IsEmpty() && t.flushTimer == nil {
		termCtx := t.ctx
		t.flushTimer = time.AfterFunc(t.coordinator.options.CoalesceWindow, func() {
			_ = t.flush(termCtx)
		})
	}
	return snapshot, nil
}

// flush hands over the coalesced delta to the assignment engine
func (t *Tracker) flush(ctx context.Context) error {
	t.mu.Lock()
	delta := t.pending
	t.pending = MembershipDelta{}
	t.flushTimer = nil
	t.mu.Unlock()

	if delta.IsEmpty() || ctx.Err() != nil {
		return nil
	}

	_, err := t.coordinator.engine.Reassign(ctx, delta)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoEligibleMember):
		t.logger.Warn().Err(err).
			Int("joined", len(delta.Joined)).
			Int("suspected", len(delta.Suspected)).
			Int("departed", len(delta.Departed)).
			Msgf("Units left unassigned")
	default:
		t.logger.Error().Err(err).Msgf("Fail to reassign units")
	}
	return err
}

// Register adds the member incarnation in Joining status.
// Registering a known incarnation only refreshes its liveness
func (t *Tracker) Register(ctx context.Context, id, incarnation, address string, source MemberSource) (MemberInfo, error) {
	c := t.coordinator
	if err := c.lockWrite(ctx); err != nil {
		return MemberInfo{}, err
	}
	defer c.unlockWrite()

	snapshot := c.Snapshot()
	key := memberKey(id, incarnation)
	if member, ok := snapshot.Members[key]; ok {
		if member.Status == Departed {
			return MemberInfo{}, fmt.Errorf("%w: %s", ErrIncarnationDeparted, key)
		}
		now := t.now()
		t.touch(key, now)
		member.LastHeartbeat = now
		return member, nil
	}

	snapshot, err := t.commitLocked(ctx, []memberCommand{{
		Op:          memberJoin,
		MemberID:    id,
		Incarnation: incarnation,
		Address:     address,
		Reason:      "registered",
		Source:      source,
	}})
	if err != nil {
		return MemberInfo{}, err
	}
	return snapshot.Members[key], nil
}

// Heartbeat refreshes liveness of the member incarnation.
// A joining member becomes active and a suspect one recovers
func (t *Tracker) Heartbeat(ctx context.Context, id, incarnation string) (MemberInfo, error) {
	c := t.coordinator
	key := memberKey(id, incarnation)
	now := t.now()

	member, ok := c.Snapshot().Members[key]
	if !ok || member.Status == Departed {
		return MemberInfo{}, fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}
	t.touch(key, now)
	if member.Status == Active {
		member.LastHeartbeat = now
		return member, nil
	}

	if err := c.lockWrite(ctx); err != nil {
		return MemberInfo{}, err
	}
	defer c.unlockWrite()

	snapshot := c.Snapshot()
	member, ok = snapshot.Members[key]
	if !ok || member.Status == Departed {
		return MemberInfo{}, fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}
	if member.Status != Active {
		var err error
		snapshot, err = t.commitLocked(ctx, activation(snapshot, member, "heartbeat"))
		if err != nil {
			return MemberInfo{}, err
		}
		member = snapshot.Members[key]
	}
	member.LastHeartbeat = now
	return member, nil
}

// HandleEvent applies a pod lifecycle event
func (t *Tracker) HandleEvent(ctx context.Context, event MemberEvent) error {
	if event.MemberID == "" || event.Incarnation == "" {
		return fmt.Errorf("%w: member id and incarnation are required", ErrInvalidArgument)
	}
	if event.Kind == EventCreated {
		_, err := t.Register(ctx, event.MemberID, event.Incarnation, event.Address, SourcePod)
		return err
	}

	c := t.coordinator
	if err := c.lockWrite(ctx); err != nil {
		return err
	}
	defer c.unlockWrite()

	snapshot := c.Snapshot()
	key := memberKey(event.MemberID, event.Incarnation)
	member, ok := snapshot.Members[key]
	if ok && member.Status == Departed {
		return fmt.Errorf("%w: %s", ErrIncarnationDeparted, key)
	}

	var cmds []memberCommand
	switch event.Kind {
	case EventReady:
		if !ok {
			member = MemberInfo{
				ID:          event.MemberID,
				Incarnation: event.Incarnation,
				Address:     event.Address,
				Status:      Joining,
				Source:      SourcePod,
			}
			cmds = append(cmds, memberCommand{
				Op:          memberJoin,
				MemberID:    event.MemberID,
				Incarnation: event.Incarnation,
				Address:     event.Address,
				Reason:      "pod ready",
				Source:      SourcePod,
			})
		}
		if member.Status == Active {
			t.touch(key, t.now())
			return nil
		}
		cmds = append(cmds, activation(snapshot, member, "pod ready")...)

	case EventUnreachable:
		if !ok || member.Status != Active {
			return nil
		}
		cmds = append(cmds, memberCommand{
			Op:          memberSuspect,
			MemberID:    member.ID,
			Incarnation: member.Incarnation,
			Reason:      "pod unreachable",
			Source:      member.Source,
		})

	case EventDeleted:
		if !ok {
			return nil
		}
		cmds = append(cmds, memberCommand{
			Op:          memberDepart,
			MemberID:    member.ID,
			Incarnation: member.Incarnation,
			Reason:      "pod deleted",
			Source:      member.Source,
		})

	default:
		return fmt.Errorf("%w: event kind %d", ErrInvalidArgument, event.Kind)
	}

	_, err := t.commitLocked(ctx, cmds)
	return err
}

// sweep applies liveness timeouts to every member.
// Active members without liveness for the heartbeat window become suspect,
// suspect members that did not recover within the suspect grace depart
// and departed members are evicted after the retention
func (t *Tracker) sweep(ctx context.Context) error {
	c := t.coordinator
	if err := c.lockWrite(ctx); err != nil {
		return err
	}
	defer c.unlockWrite()

	now := t.now()
	options := c.options
	var cmds []memberCommand
	for _, member := range c.Snapshot().SortedMembers() {
		key := member.Key()
		since := t.statusSince(key)
		cmd := memberCommand{
			MemberID:    member.ID,
			Incarnation: member.Incarnation,
			Source:      member.Source,
		}

		switch member.Status {
		case Joining:
			if now.Sub(since) <= options.HeartbeatWindow+options.SuspectGrace {
				continue
			}
			cmd.Op, cmd.Reason = memberDepart, "never became active"
		case Active:
			seen, _ := t.lastSeen(key)
			if now.Sub(seen) <= options.HeartbeatWindow {
				continue
			}
			cmd.Op, cmd.Reason = memberSuspect, "heartbeat window exceeded"
		case Suspect:
			if now.Sub(since) <= options.SuspectGrace {
				continue
			}
			cmd.Op, cmd.Reason = memberDepart, "suspect grace exceeded"
		case Departed:
			if now.Sub(since) <= options.DepartedRetention {
				continue
			}
			cmd.Op, cmd.Reason = memberEvict, "departed retention exceeded"
		}
		cmds = append(cmds, cmd)
	}

	_, err := t.commitLocked(ctx, cmds)
	return err
}
