package ordinator

// AssignmentEntry is the ownership of a unit of work.
// The current value is always the last committed record for the unit
type AssignmentEntry struct {
	// UnitID is the unit of work identifier
	UnitID string

	// OwnerID is the member identity owning the unit.
	// Empty means the unit is unassigned
	OwnerID string

	// OwnerIncarnation is the incarnation of the member owning the unit
	OwnerIncarnation string

	// Epoch is the cluster epoch of the round that took the decision
	Epoch uint64

	// Sequence is the sequence of the record that committed the entry
	Sequence uint64
}

// Assigned tells if the unit has an owner
func (a AssignmentEntry) Assigned() bool {
	return a.OwnerID != ""
}

// OwnerKey returns the identity of the incarnation owning the unit
func (a AssignmentEntry) OwnerKey() string {
	if !a.Assigned() {
		return ""
	}
	return memberKey(a.OwnerID, a.OwnerIncarnation)
}

// Snapshot is the immutable view of the derived state
// rebuilt by folding the log in sequence order.
// A published snapshot must never be modified
type Snapshot struct {
	// Version is the sequence of the last folded record
	Version uint64

	// Epoch is the current cluster epoch
	Epoch uint64

	// Members holds every known incarnation by identity
	Members map[string]MemberInfo

	// Units holds the sorted list of declared units of work
	Units []string

	// Assignments holds the current assignment of each unit
	Assignments map[string]AssignmentEntry
}
