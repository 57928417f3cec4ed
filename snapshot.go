package ordinator

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// errInvalidTransition is returned when a member record does not follow
// the status lifecycle
var errInvalidTransition = errors.New("invalid member transition")

// newSnapshot returns an empty snapshot
func newSnapshot() *Snapshot {
	return &Snapshot{
		Members:     make(map[string]MemberInfo),
		Assignments: make(map[string]AssignmentEntry),
	}
}

// clone returns a deep copy of the snapshot that can be modified
func (s *Snapshot) clone() *Snapshot {
	return &Snapshot{
		Version:     s.Version,
		Epoch:       s.Epoch,
		Members:     maps.Clone(s.Members),
		Units:       slices.Clone(s.Units),
		Assignments: maps.Clone(s.Assignments),
	}
}

// Member returns the incarnation of the member
func (s *Snapshot) Member(id, incarnation string) (MemberInfo, bool) {
	member, ok := s.Members[memberKey(id, incarnation)]
	return member, ok
}

// Assignment returns the current assignment of the unit
func (s *Snapshot) Assignment(unitID string) (AssignmentEntry, bool) {
	entry, ok := s.Assignments[unitID]
	return entry, ok
}

// HasUnit tells if the unit has been declared
func (s *Snapshot) HasUnit(unitID string) bool {
	_, found := slices.BinarySearch(s.Units, unitID)
	return found
}

// SortedMembers returns all members sorted by identity
func (s *Snapshot) SortedMembers() []MemberInfo {
	members := slices.Collect(maps.Values(s.Members))
	slices.SortFunc(members, func(a, b MemberInfo) int {
		if a.ID != b.ID {
			if a.ID < b.ID {
				return -1
			}
			return 1
		}
		if a.Incarnation < b.Incarnation {
			return -1
		}
		if a.Incarnation > b.Incarnation {
			return 1
		}
		return 0
	})
	return members
}

// ActiveMembers returns the keys of active members
// sorted by member id then incarnation
func (s *Snapshot) ActiveMembers() []string {
	var keys []string
	for _, member := range s.SortedMembers() {
		if member.Status == Active {
			keys = append(keys, member.Key())
		}
	}
	return keys
}

// OwnedUnits returns the sorted units owned by the incarnation
func (s *Snapshot) OwnedUnits(key string) []string {
	var units []string
	for unit, entry := range s.Assignments {
		if entry.OwnerKey() == key {
			units = append(units, unit)
		}
	}
	slices.Sort(units)
	return units
}

// allowedTransition tells if a member can move from one status to another.
// Suspect can go back to Active, Departed is terminal
func allowedTransition(from, to MemberStatus) bool {
	switch from {
	case Joining:
		return to == Active || to == Departed
	case Active:
		return to == Suspect || to == Departed
	case Suspect:
		return to == Active || to == Departed
	}
	return false
}

// apply folds the record into the snapshot.
// The snapshot must be a private copy.
// Data records only move the version
func (s *Snapshot) apply(record *Record) error {
	switch record.Kind {
	case RecordData:
	case RecordMember:
		cmd, err := decodeMemberCommand(record.Payload)
		if err != nil {
			return err
		}
		if err := s.applyMember(cmd, time.Unix(0, record.Timestamp)); err != nil {
			return err
		}
	case RecordUnits:
		cmd, err := decodeUnitsCommand(record.Payload)
		if err != nil {
			return err
		}
		s.Units = append(s.Units, cmd.Units...)
		slices.Sort(s.Units)
		s.Units = slices.Compact(s.Units)
	case RecordEpoch:
		cmd, err := decodeEpochCommand(record.Payload)
		if err != nil {
			return err
		}
		if cmd.Epoch <= s.Epoch {
			return fmt.Errorf("epoch %d is not greater than current epoch %d", cmd.Epoch, s.Epoch)
		}
		s.Epoch = cmd.Epoch
	case RecordAssignment:
		cmd, err := decodeAssignmentCommand(record.Payload)
		if err != nil {
			return err
		}
		if cmd.Epoch > s.Epoch {
			return fmt.Errorf("assignment of unit %s references epoch %d greater than current epoch %d", cmd.UnitID, cmd.Epoch, s.Epoch)
		}
		s.Assignments[cmd.UnitID] = AssignmentEntry{
			UnitID:           cmd.UnitID,
			OwnerID:          cmd.OwnerID,
			OwnerIncarnation: cmd.OwnerIncarnation,
			Epoch:            cmd.Epoch,
			Sequence:         record.Sequence,
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrUnknownCommand, record.Kind)
	}

	s.Version = record.Sequence
	return nil
}

// applyMember folds a member transition into the snapshot
func (s *Snapshot) applyMember(cmd memberCommand, at time.Time) error {
	key := memberKey(cmd.MemberID, cmd.Incarnation)
	member, found := s.Members[key]

	switch cmd.Op {
	case memberJoin:
		if found {
			return fmt.Errorf("%w: %s already joined", errInvalidTransition, key)
		}
		s.Members[key] = MemberInfo{
			ID:            cmd.MemberID,
			Incarnation:   cmd.Incarnation,
			Address:       cmd.Address,
			Status:        Joining,
			Source:        cmd.Source,
			LastHeartbeat: at,
			JoinedAt:      at,
			StatusSince:   at,
		}
		return nil

	case memberEvict:
		if !found || member.Status != Departed {
			return fmt.Errorf("%w: %s cannot be evicted", errInvalidTransition, key)
		}
		delete(s.Members, key)
		return nil
	}

	if !found {
		return fmt.Errorf("%w: %s is unknown", errInvalidTransition, key)
	}

	var to MemberStatus
	switch cmd.Op {
	case memberActivate, memberRecover:
		to = Active
	case memberSuspect:
		to = Suspect
	case memberDepart:
		to = Departed
	default:
		return fmt.Errorf("%w: op %d", ErrUnknownCommand, cmd.Op)
	}
	if !allowedTransition(member.Status, to) {
		return fmt.Errorf("%w: %s from %s to %s", errInvalidTransition, key, member.Status, to)
	}

	member.Status = to
	member.StatusSince = at
	if to == Active {
		member.LastHeartbeat = at
	}
	if cmd.Address != "" {
		member.Address = cmd.Address
	}
	s.Members[key] = member
	return nil
}

// applyRecords folds records onto a copy of the snapshot
// and returns the new version
func (s *Snapshot) applyRecords(records []*Record) (*Snapshot, error) {
	next := s.clone()
	for _, record := range records {
		if err := next.apply(record); err != nil {
			return nil, fmt.Errorf("record %d: %w", record.Sequence, err)
		}
	}
	return next, nil
}
