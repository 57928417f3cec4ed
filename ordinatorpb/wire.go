// Package ordinatorpb holds the wire messages and gRPC services
// of the coordinator and the log service.
//
// Messages are encoded with the protobuf wire format and exchanged
// through the codec registered under CodecName.
// The schema is described in ordinator.proto
package ordinatorpb

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrWrongWireType is returned when a field is encoded with an unexpected wire type
var ErrWrongWireType = errors.New("wrong wire type")

// Message is implemented by every wire message
type Message interface {
	// Marshal encodes the message in protobuf wire format
	Marshal() ([]byte, error)

	// Unmarshal decodes the message from protobuf wire format
	Unmarshal(data []byte) error
}

// fieldFunc decodes a single field and returns how many bytes it consumed.
// A negative value means the field is unknown and must be skipped
type fieldFunc func(num protowire.Number, typ protowire.Type, data []byte) (int, error)

// decodeFields walks over all fields of an encoded message
func decodeFields(data []byte, field fieldFunc) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		n, err := field(num, typ, data)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if n < 0 {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
		}
		data = data[n:]
	}
	return nil
}

func consumeString(typ protowire.Type, data []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWrongWireType
	}
	value, n := protowire.ConsumeString(data)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = value
	return n, nil
}

func consumeBytes(typ protowire.Type, data []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWrongWireType
	}
	value, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = append([]byte(nil), value...)
	return n, nil
}

func consumeUint64(typ protowire.Type, data []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, ErrWrongWireType
	}
	value, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = value
	return n, nil
}

func consumeInt64(typ protowire.Type, data []byte, dst *int64) (int, error) {
	var value uint64
	n, err := consumeUint64(typ, data, &value)
	*dst = int64(value)
	return n, err
}

func consumeBool(typ protowire.Type, data []byte, dst *bool) (int, error) {
	var value uint64
	n, err := consumeUint64(typ, data, &value)
	*dst = protowire.DecodeBool(value)
	return n, err
}

func consumeFixed64(typ protowire.Type, data []byte, dst *uint64) (int, error) {
	if typ != protowire.Fixed64Type {
		return 0, ErrWrongWireType
	}
	value, n := protowire.ConsumeFixed64(data)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = value
	return n, nil
}

// consumeMessage decodes an embedded message
func consumeMessage(typ protowire.Type, data []byte, dst Message) (int, error) {
	if typ != protowire.BytesType {
		return 0, ErrWrongWireType
	}
	value, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, dst.Unmarshal(value)
}

// appendString appends a non empty string field
func appendString(b []byte, num protowire.Number, value string) []byte {
	if value == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, value)
}

// appendBytes appends a non empty bytes field
func appendBytes(b []byte, num protowire.Number, value []byte) []byte {
	if len(value) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, value)
}

// appendUint64 appends a non zero varint field
func appendUint64(b []byte, num protowire.Number, value uint64) []byte {
	if value == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, value)
}

// appendBool appends a true bool field
func appendBool(b []byte, num protowire.Number, value bool) []byte {
	if !value {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(value))
}

// appendFixed64 appends a non zero fixed64 field
func appendFixed64(b []byte, num protowire.Number, value uint64) []byte {
	if value == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, value)
}

// appendMessage appends an embedded message
func appendMessage(b []byte, num protowire.Number, value Message) ([]byte, error) {
	data, err := value.Marshal()
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, data), nil
}
