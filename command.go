package ordinator

import (
	"bytes"
	"fmt"
)

// memberOp is the membership transition carried by a RecordMember record
type memberOp uint8

const (
	// memberJoin creates a new incarnation in Joining status
	memberJoin memberOp = iota

	// memberActivate moves an incarnation from Joining to Active
	memberActivate

	// memberSuspect moves an incarnation from Active to Suspect
	memberSuspect

	// memberRecover moves an incarnation from Suspect back to Active
	// when liveness came back within the suspect grace
	memberRecover

	// memberDepart moves an incarnation to Departed. It's terminal
	memberDepart

	// memberEvict forgets a departed incarnation
	memberEvict
)

// String return a human readable member operation
func (o memberOp) String() string {
	switch o {
	case memberJoin:
		return "join"
	case memberActivate:
		return "activate"
	case memberSuspect:
		return "suspect"
	case memberRecover:
		return "recover"
	case memberDepart:
		return "depart"
	case memberEvict:
		return "evict"
	}
	return "unknown"
}

// memberCommand is the payload of RecordMember
type memberCommand struct {
	// Op is the transition to apply
	Op memberOp

	// MemberID is the member identity
	MemberID string

	// Incarnation is the registration instance of the member identity
	Incarnation string

	// Address is the network address of the member
	Address string

	// Reason explains the transition, only used for troubleshooting
	Reason string

	// Source is where the member has been discovered from
	Source MemberSource
}

// unitsCommand is the payload of RecordUnits
type unitsCommand struct {
	// Units are the unit of work identifiers to declare
	Units []string
}

// epochCommand is the payload of RecordEpoch
type epochCommand struct {
	// Epoch is the new cluster epoch
	Epoch uint64

	// Reason explains why the round happened
	Reason string
}

// assignmentCommand is the payload of RecordAssignment
type assignmentCommand struct {
	// UnitID is the unit of work identifier
	UnitID string

	// OwnerID is the member identity owning the unit.
	// Empty means unassigned
	OwnerID string

	// OwnerIncarnation is the incarnation owning the unit
	OwnerIncarnation string

	// Epoch is the cluster epoch of the decision
	Epoch uint64
}

// newMemberEntry builds a log entry from a member command
func newMemberEntry(cmd memberCommand) (Entry, error) {
	buffer := new(bytes.Buffer)
	if err := encodeMemberCommand(cmd, buffer); err != nil {
		return Entry{}, fmt.Errorf("fail to encode member command: %w", err)
	}
	return Entry{Kind: RecordMember, Payload: buffer.Bytes()}, nil
}

// newUnitsEntry builds a log entry from a units command
func newUnitsEntry(cmd unitsCommand) (Entry, error) {
	buffer := new(bytes.Buffer)
	if err := encodeUnitsCommand(cmd, buffer); err != nil {
		return Entry{}, fmt.Errorf("fail to encode units command: %w", err)
	}
	return Entry{Kind: RecordUnits, Payload: buffer.Bytes()}, nil
}

// newEpochEntry builds a log entry from an epoch command
func newEpochEntry(cmd epochCommand) (Entry, error) {
	buffer := new(bytes.Buffer)
	if err := encodeEpochCommand(cmd, buffer); err != nil {
		return Entry{}, fmt.Errorf("fail to encode epoch command: %w", err)
	}
	return Entry{Kind: RecordEpoch, Payload: buffer.Bytes()}, nil
}

// newAssignmentEntry builds a log entry from an assignment command
func newAssignmentEntry(cmd assignmentCommand) (Entry, error) {
	buffer := new(bytes.Buffer)
	if err := encodeAssignmentCommand(cmd, buffer); err != nil {
		return Entry{}, fmt.Errorf("fail to encode assignment command: %w", err)
	}
	return Entry{Kind: RecordAssignment, Payload: buffer.Bytes()}, nil
}
