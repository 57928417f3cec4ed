package ordinator

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// reason returns a human readable summary of the delta
func (d MembershipDelta) reason() string {
	return fmt.Sprintf("membership changed joined=%d suspected=%d departed=%d", len(d.Joined), len(d.Suspected), len(d.Departed))
}

// keepsUnits tells if the owner of a unit is allowed to keep it
func (e *Engine) keepsUnits(member MemberInfo, known bool) bool {
	if !known {
		return false
	}
	switch member.Status {
	case Active:
		return true
	case Suspect:
		return e.keepSuspectUnits
	}
	return false
}

// plan computes the minimal set of changes restoring full coverage.
// Units owned by a member allowed to keep them are never moved.
// Every other unit goes, in unit order, to the least loaded active member
// with ties broken by the lowest identity.
// It also returns how many units are left without owner
func (e *Engine) plan(snapshot *Snapshot) (changes []assignmentCommand, unassigned int) {
	active := snapshot.ActiveMembers()
	load := make(map[string]int, len(active))
	for _, key := range active {
		load[key] = 0
	}
	for _, entry := range snapshot.Assignments {
		if _, ok := load[entry.OwnerKey()]; ok {
			load[entry.OwnerKey()]++
		}
	}

	for _, unit := range snapshot.Units {
		entry, exists := snapshot.Assignments[unit]
		if exists && entry.Assigned() {
			member, known := snapshot.Members[entry.OwnerKey()]
			if e.keepsUnits(member, known) {
				continue
			}
		}

		if len(active) == 0 {
			unassigned++
			if exists && !entry.Assigned() {
				continue
			}
			changes = append(changes, assignmentCommand{UnitID: unit})
			continue
		}

		owner := active[0]
		for _, key := range active[1:] {
			if load[key] < load[owner] {
				owner = key
			}
		}
		load[owner]++

		member := snapshot.Members[owner]
		changes = append(changes, assignmentCommand{
			UnitID:           unit,
			OwnerID:          member.ID,
			OwnerIncarnation: member.Incarnation,
		})
	}
	return
}

// Reassign runs an assignment round after a membership delta.
// The round is committed as a single batch made of the new epoch
// followed by every assignment change, then published.
// It fails with ErrNoEligibleMember when units are left without owner
func (e *Engine) Reassign(ctx context.Context, delta MembershipDelta) ([]AssignmentEntry, error) {
	c := e.coordinator
	if err := c.lockWrite(ctx); err != nil {
		return nil, err
	}
	defer c.unlockWrite()
	return e.reassignLocked(ctx, delta.reason())
}

// reassignLocked runs an assignment round.
// Caller must hold the coordinator write lock
func (e *Engine) reassignLocked(ctx context.Context, reason string) ([]AssignmentEntry, error) {
	c := e.coordinator
	snapshot := c.Snapshot()
	changes, unassigned := e.plan(snapshot)

	var result []AssignmentEntry
	if len(changes) > 0 {
		epoch := snapshot.Epoch + 1
		entry, err := newEpochEntry(epochCommand{Epoch: epoch, Reason: reason})
		if err != nil {
			return nil, err
		}
		entries := []Entry{entry}
		for _, change := range changes {
			change.Epoch = epoch
			entry, err := newAssignmentEntry(change)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}

		next, err := c.commitLocked(ctx, entries)
		if err != nil {
			return nil, err
		}

		result = make([]AssignmentEntry, 0, len(changes))
		for _, change := range changes {
			result = append(result, next.Assignments[change.UnitID])
		}
		c.metrics.reassignments.With(prometheus.Labels{"node_id": c.id}).Add(float64(len(changes)))
		e.logger.Info().
			Str("reason", reason).
			Uint64("epoch", epoch).
			Int("changes", len(changes)).
			Int("unassigned", unassigned).
			Uint64("version", next.Version).
			Msgf("Assignment round committed")
	}

	if unassigned > 0 {
		return result, fmt.Errorf("%w: %d units left unassigned", ErrNoEligibleMember, unassigned)
	}
	return result, nil
}
