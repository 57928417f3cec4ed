package ordinator

import (
	"bytes"
	"testing"

	"github.com/jackc/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRecord(t *testing.T) {
	assert := assert.New(t)

	record := &Record{
		Sequence:  7,
		Kind:      RecordMember,
		Timestamp: 1234,
		Payload:   []byte(fake.Paragraph()),
	}
	buffer := new(bytes.Buffer)
	require.Nil(t, MarshalRecord(record, buffer))
	assert.NotZero(record.Checksum)
	assert.Equal(checksumRecord(record), record.Checksum)

	decoded, err := UnmarshalRecord(buffer.Bytes())
	assert.Nil(err)
	assert.Equal(record, decoded)

	t.Run("too_short", func(t *testing.T) {
		_, err := UnmarshalRecord([]byte{1, 2})
		assert.ErrorIs(err, ErrChecksumDataTooShort)
	})

	t.Run("checksum_mismatch", func(t *testing.T) {
		data := bytes.Clone(buffer.Bytes())
		data[len(data)-9] ^= 0xff
		_, err := UnmarshalRecord(data)
		assert.ErrorIs(err, ErrChecksumMismatch)
	})
}

func TestEncodeDecodeCommands(t *testing.T) {
	assert := assert.New(t)

	member := memberCommand{
		Op:          memberSuspect,
		MemberID:    fake.UserName(),
		Incarnation: fake.CharactersN(12),
		Address:     fake.IPv4() + ":9000",
		Reason:      "heartbeat window exceeded",
		Source:      SourcePod,
	}
	entry, err := newMemberEntry(member)
	require.Nil(t, err)
	assert.Equal(RecordMember, entry.Kind)
	decodedMember, err := decodeMemberCommand(entry.Payload)
	assert.Nil(err)
	assert.Equal(member, decodedMember)

	units := unitsCommand{Units: []string{"unit-0000", "unit-0001"}}
	entry, err = newUnitsEntry(units)
	require.Nil(t, err)
	decodedUnits, err := decodeUnitsCommand(entry.Payload)
	assert.Nil(err)
	assert.Equal(units, decodedUnits)

	epoch := epochCommand{Epoch: 3, Reason: "bootstrap"}
	entry, err = newEpochEntry(epoch)
	require.Nil(t, err)
	decodedEpoch, err := decodeEpochCommand(entry.Payload)
	assert.Nil(err)
	assert.Equal(epoch, decodedEpoch)

	assignment := assignmentCommand{UnitID: "unit-0001", OwnerID: "a", OwnerIncarnation: "i1", Epoch: 3}
	entry, err = newAssignmentEntry(assignment)
	require.Nil(t, err)
	decodedAssignment, err := decodeAssignmentCommand(entry.Payload)
	assert.Nil(err)
	assert.Equal(assignment, decodedAssignment)

	_, err = decodeAssignmentCommand(entry.Payload[:3])
	assert.Error(err)
}

func TestEncodeDecodeUint64(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(42), DecodeUint64ToBytes(EncodeUint64ToBytes(42)))
	assert.Equal(-1, bytes.Compare(EncodeUint64ToBytes(9), EncodeUint64ToBytes(10)))
}
