package ordinator

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// writeRecordBody encodes every field of the record except its checksum
func writeRecordBody(record *Record, w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, recordFormat); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint8(record.Kind)); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, record.Timestamp); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, record.Sequence); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(record.Payload))); err != nil {
		return err
	}

	if _, err := w.Write(record.Payload); err != nil {
		return err
	}
	return nil
}

// checksumRecord returns the checksum the provided record must carry
func checksumRecord(record *Record) uint64 {
	buffer := new(bytes.Buffer)
	// writes into a bytes.Buffer never fail
	_ = writeRecordBody(record, buffer)
	return xxhash.Sum64(buffer.Bytes())
}

// MarshalRecord encodes the record in binary format followed by its checksum.
// The checksum of the record is updated accordingly
func MarshalRecord(record *Record, w io.Writer) error {
	buffer := new(bytes.Buffer)
	if err := writeRecordBody(record, buffer); err != nil {
		return err
	}
	record.Checksum = xxhash.Sum64(buffer.Bytes())

	if _, err := w.Write(buffer.Bytes()); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, record.Checksum)
}

// UnmarshalRecord decodes a record previously encoded with MarshalRecord
// by validating its checksum before moving further
func UnmarshalRecord(data []byte) (*Record, error) {
	if len(data) < 8 {
		return nil, ErrChecksumDataTooShort
	}

	body := data[:len(data)-8]
	checksum := binary.LittleEndian.Uint64(data[len(data)-8:])
	if xxhash.Sum64(body) != checksum {
		return nil, ErrChecksumMismatch
	}

	var (
		record Record
		format uint8
		kind   uint8
		size   uint64
	)
	buffer := bytes.NewReader(body)

	if err := binary.Read(buffer, binary.LittleEndian, &format); err != nil {
		return nil, err
	}
	if format != recordFormat {
		return nil, fmt.Errorf("unsupported record format %d", format)
	}

	if err := binary.Read(buffer, binary.LittleEndian, &kind); err != nil {
		return nil, err
	}
	record.Kind = RecordKind(kind)

	if err := binary.Read(buffer, binary.LittleEndian, &record.Timestamp); err != nil {
		return nil, err
	}

	if err := binary.Read(buffer, binary.LittleEndian, &record.Sequence); err != nil {
		return nil, err
	}

	if err := binary.Read(buffer, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > uint64(buffer.Len()) {
		return nil, io.ErrUnexpectedEOF
	}

	record.Payload = make([]byte, size)
	if _, err := io.ReadFull(buffer, record.Payload); err != nil {
		return nil, err
	}
	record.Checksum = checksum

	return &record, nil
}

// writeString writes a length prefixed string
func writeString(w io.Writer, value string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(value))); err != nil {
		return err
	}
	_, err := io.WriteString(w, value)
	return err
}

// readString reads a length prefixed string
func readString(r *bytes.Reader) (string, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return "", err
	}
	if int64(size) > int64(r.Len()) {
		return "", io.ErrUnexpectedEOF
	}
	value := make([]byte, size)
	if _, err := io.ReadFull(r, value); err != nil {
		return "", err
	}
	return string(value), nil
}

// encodeMemberCommand transforms a member command to binary language machine
func encodeMemberCommand(cmd memberCommand, w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint8(cmd.Op)); err != nil {
		return err
	}
	for _, value := range []string{cmd.MemberID, cmd.Incarnation, cmd.Address, cmd.Reason} {
		if err := writeString(w, value); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, uint8(cmd.Source))
}

// decodeMemberCommand transforms back a member command from binary language machine
func decodeMemberCommand(data []byte) (cmd memberCommand, err error) {
	buffer := bytes.NewReader(data)

	var op uint8
	if err = binary.Read(buffer, binary.LittleEndian, &op); err != nil {
		return
	}
	cmd.Op = memberOp(op)

	for _, value := range []*string{&cmd.MemberID, &cmd.Incarnation, &cmd.Address, &cmd.Reason} {
		if *value, err = readString(buffer); err != nil {
			return
		}
	}

	var source uint8
	if err = binary.Read(buffer, binary.LittleEndian, &source); err != nil {
		return
	}
	cmd.Source = MemberSource(source)
	return
}

// encodeUnitsCommand transforms a units command to binary language machine
func encodeUnitsCommand(cmd unitsCommand, w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(cmd.Units))); err != nil {
		return err
	}
	for _, unit := range cmd.Units {
		if err := writeString(w, unit); err != nil {
			return err
		}
	}
	return nil
}

// decodeUnitsCommand transforms back a units command from binary language machine
func decodeUnitsCommand(data []byte) (cmd unitsCommand, err error) {
	buffer := bytes.NewReader(data)

	var total uint32
	if err = binary.Read(buffer, binary.LittleEndian, &total); err != nil {
		return
	}
	if int64(total)*4 > int64(buffer.Len()) {
		err = io.ErrUnexpectedEOF
		return
	}

	cmd.Units = make([]string, 0, total)
	for range total {
		var unit string
		if unit, err = readString(buffer); err != nil {
			return
		}
		cmd.Units = append(cmd.Units, unit)
	}
	return
}

// encodeEpochCommand transforms an epoch command to binary language machine
func encodeEpochCommand(cmd epochCommand, w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, cmd.Epoch); err != nil {
		return err
	}
	return writeString(w, cmd.Reason)
}

// decodeEpochCommand transforms back an epoch command from binary language machine
func decodeEpochCommand(data []byte) (cmd epochCommand, err error) {
	buffer := bytes.NewReader(data)
	if err = binary.Read(buffer, binary.LittleEndian, &cmd.Epoch); err != nil {
		return
	}
	cmd.Reason, err = readString(buffer)
	return
}

// encodeAssignmentCommand transforms an assignment command to binary language machine
func encodeAssignmentCommand(cmd assignmentCommand, w io.Writer) error {
	for _, value := range []string{cmd.UnitID, cmd.OwnerID, cmd.OwnerIncarnation} {
		if err := writeString(w, value); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, cmd.Epoch)
}

// decodeAssignmentCommand transforms back an assignment command from binary language machine
func decodeAssignmentCommand(data []byte) (cmd assignmentCommand, err error) {
	buffer := bytes.NewReader(data)
	for _, value := range []*string{&cmd.UnitID, &cmd.OwnerID, &cmd.OwnerIncarnation} {
		if *value, err = readString(buffer); err != nil {
			return
		}
	}
	err = binary.Read(buffer, binary.LittleEndian, &cmd.Epoch)
	return
}

// EncodeUint64ToBytes permits to encode uint64 to bytes
func EncodeUint64ToBytes(value uint64) []byte {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, value)
	return buffer
}

// DecodeUint64ToBytes permits to decode bytes to uint64
func DecodeUint64ToBytes(value []byte) uint64 {
	return binary.BigEndian.Uint64(value)
}
