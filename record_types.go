package ordinator

// RecordKind represent the kind of a record stored in the durable log
type RecordKind uint8

const (
	// RecordData is an opaque payload appended by clients
	// through AppendLog or the log service.
	// It is never folded into the coordinator state
	RecordData RecordKind = iota

	// RecordMember holds a membership status transition
	RecordMember

	// RecordUnits declares units of work
	RecordUnits

	// RecordEpoch opens a new reassignment round
	RecordEpoch

	// RecordAssignment holds one assignment entry
	RecordAssignment
)

// recordFormat is the version of the on disk record layout
const recordFormat uint8 = 1

// String return a human readable kind of the record
func (k RecordKind) String() string {
	switch k {
	case RecordMember:
		return "member"
	case RecordUnits:
		return "units"
	case RecordEpoch:
		return "epoch"
	case RecordAssignment:
		return "assignment"
	}
	return "data"
}

// Record is an immutable entry of the durable log
type Record struct {
	// Sequence is the position of the record in the log.
	// It starts at 1 and has no gaps
	Sequence uint64

	// Kind is the kind of the record
	Kind RecordKind

	// Timestamp is the unix nano time at which the writer appended the record
	Timestamp int64

	// Payload is the content of the record
	Payload []byte

	// Checksum is the xxhash64 of the encoded header and payload
	Checksum uint64
}

// Entry is what a writer submits to the log.
// Sequence and checksum are assigned by the log itself
type Entry struct {
	// Kind is the kind of the record
	Kind RecordKind

	// Payload is the content of the record
	Payload []byte
}
