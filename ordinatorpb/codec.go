package ordinatorpb

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype used by ordinator services.
// Calls must be made with grpc.CallContentSubtype(CodecName)
const CodecName = "ordinator"

// codec encodes Message values for gRPC
type codec struct{}

// Marshal encodes the message
func (codec) Marshal(v any) ([]byte, error) {
	message, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("ordinatorpb: cannot marshal %T", v)
	}
	return message.Marshal()
}

// Unmarshal decodes the message
func (codec) Unmarshal(data []byte, v any) error {
	message, ok := v.(Message)
	if !ok {
		return fmt.Errorf("ordinatorpb: cannot unmarshal into %T", v)
	}
	return message.Unmarshal(data)
}

// Name returns the name of the codec
func (codec) Name() string {
	return CodecName
}

// CallOption returns the call option selecting the ordinator codec
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}

func init() {
	encoding.RegisterCodec(codec{})
}
