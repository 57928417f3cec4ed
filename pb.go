package ordinator

import (
	"time"

	"github.com/Lord-Y/ordinator/ordinatorpb"
)

// memberToProto converts a member to its wire format
func memberToProto(member MemberInfo) *ordinatorpb.Member {
	return &ordinatorpb.Member{
		MemberID:              member.ID,
		Incarnation:           member.Incarnation,
		Address:               member.Address,
		Status:                ordinatorpb.MemberStatus(member.Status),
		LastHeartbeatUnixNano: unixNano(member.LastHeartbeat),
		JoinedAtUnixNano:      unixNano(member.JoinedAt),
		Source:                member.Source.String(),
	}
}

// memberFromProto converts a member from its wire format
func memberFromProto(member *ordinatorpb.Member) MemberInfo {
	if member == nil {
		return MemberInfo{}
	}
	info := MemberInfo{
		ID:            member.MemberID,
		Incarnation:   member.Incarnation,
		Address:       member.Address,
		Status:        MemberStatus(member.Status),
		LastHeartbeat: fromUnixNano(member.LastHeartbeatUnixNano),
		JoinedAt:      fromUnixNano(member.JoinedAtUnixNano),
	}
	if member.Source == SourcePod.String() {
		info.Source = SourcePod
	}
	return info
}

// assignmentToProto converts an assignment to its wire format
func assignmentToProto(entry AssignmentEntry) *ordinatorpb.Assignment {
	return &ordinatorpb.Assignment{
		UnitID:           entry.UnitID,
		OwnerID:          entry.OwnerID,
		OwnerIncarnation: entry.OwnerIncarnation,
		Epoch:            entry.Epoch,
		Sequence:         entry.Sequence,
	}
}

// assignmentFromProto converts an assignment from its wire format
func assignmentFromProto(entry *ordinatorpb.Assignment) AssignmentEntry {
	if entry == nil {
		return AssignmentEntry{}
	}
	return AssignmentEntry{
		UnitID:           entry.UnitID,
		OwnerID:          entry.OwnerID,
		OwnerIncarnation: entry.OwnerIncarnation,
		Epoch:            entry.Epoch,
		Sequence:         entry.Sequence,
	}
}

// recordToProto converts a record to its wire format
func recordToProto(record *Record) *ordinatorpb.LogRecord {
	return &ordinatorpb.LogRecord{
		Sequence:  record.Sequence,
		Kind:      uint32(record.Kind),
		Timestamp: record.Timestamp,
		Payload:   record.Payload,
		Checksum:  record.Checksum,
	}
}

// recordFromProto converts a record from its wire format
func recordFromProto(record *ordinatorpb.LogRecord) *Record {
	return &Record{
		Sequence:  record.Sequence,
		Kind:      RecordKind(record.Kind),
		Timestamp: record.Timestamp,
		Payload:   record.Payload,
		Checksum:  record.Checksum,
	}
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.Unix(0, value)
}
