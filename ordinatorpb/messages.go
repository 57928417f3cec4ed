package ordinatorpb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// MemberStatus is the liveness status of a member incarnation
type MemberStatus uint32

const (
	MemberStatusJoining MemberStatus = iota
	MemberStatusActive
	MemberStatusSuspect
	MemberStatusDeparted
)

// Member describes a member incarnation
type Member struct {
	MemberID              string
	Incarnation           string
	Address               string
	Status                MemberStatus
	LastHeartbeatUnixNano int64
	JoinedAtUnixNano      int64
	Source                string
}

func (m *Member) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.MemberID)
	b = appendString(b, 2, m.Incarnation)
	b = appendString(b, 3, m.Address)
	b = appendUint64(b, 4, uint64(m.Status))
	b = appendUint64(b, 5, uint64(m.LastHeartbeatUnixNano))
	b = appendUint64(b, 6, uint64(m.JoinedAtUnixNano))
	b = appendString(b, 7, m.Source)
	return b, nil
}

func (m *Member) Unmarshal(data []byte) error {
	*m = Member{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, data, &m.MemberID)
		case 2:
			return consumeString(typ, data, &m.Incarnation)
		case 3:
			return consumeString(typ, data, &m.Address)
		case 4:
			var status uint64
			n, err := consumeUint64(typ, data, &status)
			m.Status = MemberStatus(status)
			return n, err
		case 5:
			return consumeInt64(typ, data, &m.LastHeartbeatUnixNano)
		case 6:
			return consumeInt64(typ, data, &m.JoinedAtUnixNano)
		case 7:
			return consumeString(typ, data, &m.Source)
		}
		return -1, nil
	})
}

// Assignment is the ownership of a unit of work.
// An empty owner means the unit is unassigned
type Assignment struct {
	UnitID           string
	OwnerID          string
	OwnerIncarnation string
	Epoch            uint64
	Sequence         uint64
}

func (m *Assignment) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.UnitID)
	b = appendString(b, 2, m.OwnerID)
	b = appendString(b, 3, m.OwnerIncarnation)
	b = appendUint64(b, 4, m.Epoch)
	b = appendUint64(b, 5, m.Sequence)
	return b, nil
}

func (m *Assignment) Unmarshal(data []byte) error {
	*m = Assignment{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, data, &m.UnitID)
		case 2:
			return consumeString(typ, data, &m.OwnerID)
		case 3:
			return consumeString(typ, data, &m.OwnerIncarnation)
		case 4:
			return consumeUint64(typ, data, &m.Epoch)
		case 5:
			return consumeUint64(typ, data, &m.Sequence)
		}
		return -1, nil
	})
}

// LogRecord is a committed record of the durable log
type LogRecord struct {
	Sequence  uint64
	Kind      uint32
	Timestamp int64
	Payload   []byte
	Checksum  uint64
}

func (m *LogRecord) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, m.Sequence)
	b = appendUint64(b, 2, uint64(m.Kind))
	b = appendUint64(b, 3, uint64(m.Timestamp))
	b = appendBytes(b, 4, m.Payload)
	b = appendFixed64(b, 5, m.Checksum)
	return b, nil
}

func (m *LogRecord) Unmarshal(data []byte) error {
	*m = LogRecord{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint64(typ, data, &m.Sequence)
		case 2:
			var kind uint64
			n, err := consumeUint64(typ, data, &kind)
			m.Kind = uint32(kind)
			return n, err
		case 3:
			return consumeInt64(typ, data, &m.Timestamp)
		case 4:
			return consumeBytes(typ, data, &m.Payload)
		case 5:
			return consumeFixed64(typ, data, &m.Checksum)
		}
		return -1, nil
	})
}

type RegisterMemberRequest struct {
	MemberID    string
	Incarnation string
	Address     string
}

func (m *RegisterMemberRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.MemberID)
	b = appendString(b, 2, m.Incarnation)
	b = appendString(b, 3, m.Address)
	return b, nil
}

func (m *RegisterMemberRequest) Unmarshal(data []byte) error {
	*m = RegisterMemberRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, data, &m.MemberID)
		case 2:
			return consumeString(typ, data, &m.Incarnation)
		case 3:
			return consumeString(typ, data, &m.Address)
		}
		return -1, nil
	})
}

type RegisterMemberResponse struct {
	Member *Member
}

func (m *RegisterMemberResponse) Marshal() ([]byte, error) {
	if m.Member == nil {
		return nil, nil
	}
	return appendMessage(nil, 1, m.Member)
}

func (m *RegisterMemberResponse) Unmarshal(data []byte) error {
	*m = RegisterMemberResponse{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num == 1 {
			m.Member = &Member{}
			return consumeMessage(typ, data, m.Member)
		}
		return -1, nil
	})
}

type HeartbeatRequest struct {
	MemberID    string
	Incarnation string
}

func (m *HeartbeatRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.MemberID)
	b = appendString(b, 2, m.Incarnation)
	return b, nil
}

func (m *HeartbeatRequest) Unmarshal(data []byte) error {
	*m = HeartbeatRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, data, &m.MemberID)
		case 2:
			return consumeString(typ, data, &m.Incarnation)
		}
		return -1, nil
	})
}

type HeartbeatResponse struct {
	Member *Member

	// Epoch is the current cluster epoch
	Epoch uint64
}

func (m *HeartbeatResponse) Marshal() ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if m.Member != nil {
		if b, err = appendMessage(b, 1, m.Member); err != nil {
			return nil, err
		}
	}
	b = appendUint64(b, 2, m.Epoch)
	return b, nil
}

func (m *HeartbeatResponse) Unmarshal(data []byte) error {
	*m = HeartbeatResponse{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			m.Member = &Member{}
			return consumeMessage(typ, data, m.Member)
		case 2:
			return consumeUint64(typ, data, &m.Epoch)
		}
		return -1, nil
	})
}

type GetAssignmentRequest struct {
	UnitID string
}

func (m *GetAssignmentRequest) Marshal() ([]byte, error) {
	return appendString(nil, 1, m.UnitID), nil
}

func (m *GetAssignmentRequest) Unmarshal(data []byte) error {
	*m = GetAssignmentRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num == 1 {
			return consumeString(typ, data, &m.UnitID)
		}
		return -1, nil
	})
}

type GetAssignmentResponse struct {
	Assignment *Assignment
}

func (m *GetAssignmentResponse) Marshal() ([]byte, error) {
	if m.Assignment == nil {
		return nil, nil
	}
	return appendMessage(nil, 1, m.Assignment)
}

func (m *GetAssignmentResponse) Unmarshal(data []byte) error {
	*m = GetAssignmentResponse{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num == 1 {
			m.Assignment = &Assignment{}
			return consumeMessage(typ, data, m.Assignment)
		}
		return -1, nil
	})
}

type WatchAssignmentsRequest struct {
	// LastSeenSequence is the sequence of the last change already received.
	// Changes are streamed starting right after it
	LastSeenSequence uint64

	// MemberID and Incarnation are optional.
	// When set, the incarnation must be registered
	MemberID    string
	Incarnation string
}

func (m *WatchAssignmentsRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, m.LastSeenSequence)
	b = appendString(b, 2, m.MemberID)
	b = appendString(b, 3, m.Incarnation)
	return b, nil
}

func (m *WatchAssignmentsRequest) Unmarshal(data []byte) error {
	*m = WatchAssignmentsRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint64(typ, data, &m.LastSeenSequence)
		case 2:
			return consumeString(typ, data, &m.MemberID)
		case 3:
			return consumeString(typ, data, &m.Incarnation)
		}
		return -1, nil
	})
}

type AppendRequest struct {
	Payload []byte
}

func (m *AppendRequest) Marshal() ([]byte, error) {
	return appendBytes(nil, 1, m.Payload), nil
}

func (m *AppendRequest) Unmarshal(data []byte) error {
	*m = AppendRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num == 1 {
			return consumeBytes(typ, data, &m.Payload)
		}
		return -1, nil
	})
}

type AppendResponse struct {
	Sequence uint64
}

func (m *AppendResponse) Marshal() ([]byte, error) {
	return appendUint64(nil, 1, m.Sequence), nil
}

func (m *AppendResponse) Unmarshal(data []byte) error {
	*m = AppendResponse{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num == 1 {
			return consumeUint64(typ, data, &m.Sequence)
		}
		return -1, nil
	})
}

type ReadRequest struct {
	// FromSequence is the first sequence to read, 0 reads from the start
	FromSequence uint64

	// Follow keeps the stream open waiting for new records
	Follow bool

	// Limit is the maximum amount of records to stream, 0 means no limit
	Limit uint64
}

func (m *ReadRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, m.FromSequence)
	b = appendBool(b, 2, m.Follow)
	b = appendUint64(b, 3, m.Limit)
	return b, nil
}

func (m *ReadRequest) Unmarshal(data []byte) error {
	*m = ReadRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint64(typ, data, &m.FromSequence)
		case 2:
			return consumeBool(typ, data, &m.Follow)
		case 3:
			return consumeUint64(typ, data, &m.Limit)
		}
		return -1, nil
	})
}

type DeclareUnitsRequest struct {
	UnitIDs []string
}

func (m *DeclareUnitsRequest) Marshal() ([]byte, error) {
	var b []byte
	for _, unit := range m.UnitIDs {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, unit)
	}
	return b, nil
}

func (m *DeclareUnitsRequest) Unmarshal(data []byte) error {
	*m = DeclareUnitsRequest{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num == 1 {
			var unit string
			n, err := consumeString(typ, data, &unit)
			m.UnitIDs = append(m.UnitIDs, unit)
			return n, err
		}
		return -1, nil
	})
}

type DeclareUnitsResponse struct {
	// Declared are the units that were not known yet
	Declared []string
}

func (m *DeclareUnitsResponse) Marshal() ([]byte, error) {
	var b []byte
	for _, unit := range m.Declared {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, unit)
	}
	return b, nil
}

func (m *DeclareUnitsResponse) Unmarshal(data []byte) error {
	*m = DeclareUnitsResponse{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num == 1 {
			var unit string
			n, err := consumeString(typ, data, &unit)
			m.Declared = append(m.Declared, unit)
			return n, err
		}
		return -1, nil
	})
}

type ListMembersRequest struct{}

func (m *ListMembersRequest) Marshal() ([]byte, error) {
	return nil, nil
}

func (m *ListMembersRequest) Unmarshal(data []byte) error {
	return decodeFields(data, func(protowire.Number, protowire.Type, []byte) (int, error) {
		return -1, nil
	})
}

type ListMembersResponse struct {
	Members []*Member
}

func (m *ListMembersResponse) Marshal() ([]byte, error) {
	var (
		b   []byte
		err error
	)
	for _, member := range m.Members {
		if b, err = appendMessage(b, 1, member); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *ListMembersResponse) Unmarshal(data []byte) error {
	*m = ListMembersResponse{}
	return decodeFields(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if num == 1 {
			member := &Member{}
			n, err := consumeMessage(typ, data, member)
			m.Members = append(m.Members, member)
			return n, err
		}
		return -1, nil
	})
}
