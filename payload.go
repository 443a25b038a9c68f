package ulink

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Format tags how Payload bytes are to be interpreted.
type Format uint8

const (
	FormatUnspecified Format = iota
	// FormatRaw is an opaque byte sequence.
	FormatRaw
	// FormatProtobufWrappedInAny is a protobuf message packed into a
	// google.protobuf.Any envelope.
	FormatProtobufWrappedInAny
	// FormatText is a plain UTF-8 string.
	FormatText
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatProtobufWrappedInAny:
		return "protobuf-wrapped"
	case FormatText:
		return "text"
	default:
		return "unspecified"
	}
}

// Payload is an immutable byte buffer plus a format tag. A message with
// no payload (nil *Payload) is a valid, distinct state.
//
// The underlying bytes are shared by reference into every dispatch and
// must never be mutated after construction.
type Payload struct {
	data   []byte
	format Format
}

// NewPayload wraps raw bytes with an explicit format tag.
func NewPayload(data []byte, format Format) Payload {
	return Payload{data: data, format: format}
}

// BytesPayload wraps an opaque byte sequence.
func BytesPayload(data []byte) Payload {
	return Payload{data: data, format: FormatRaw}
}

// TextPayload wraps a string as a protobuf StringValue packed into an
// Any envelope, the wire form notification payloads travel in.
func TextPayload(value string) (Payload, error) {
	wrapped, err := anypb.New(wrapperspb.String(value))
	if err != nil {
		return Payload{}, Errorf(CodeInvalidArgument, "wrap text payload: %v", err)
	}
	data, err := proto.Marshal(wrapped)
	if err != nil {
		return Payload{}, Errorf(CodeInvalidArgument, "encode text payload: %v", err)
	}
	return Payload{data: data, format: FormatProtobufWrappedInAny}, nil
}

// Format returns the payload's format tag.
func (p Payload) Format() Format { return p.format }

// Data returns the payload bytes. Callers must treat them as read-only.
func (p Payload) Data() []byte { return p.data }

// Len returns the payload size in bytes.
func (p Payload) Len() int { return len(p.data) }

// ExtractText attempts to read the payload as a string value. It returns
// ok=false, not an error, when the payload does not carry a string: a
// raw-bytes payload decoded as text is "no string value", never a
// failure.
func (p Payload) ExtractText() (string, bool) {
	switch p.format {
	case FormatText:
		return string(p.data), true
	case FormatProtobufWrappedInAny:
		var wrapped anypb.Any
		if err := proto.Unmarshal(p.data, &wrapped); err != nil {
			return "", false
		}
		var value wrapperspb.StringValue
		if err := wrapped.UnmarshalTo(&value); err != nil {
			return "", false
		}
		return value.GetValue(), true
	default:
		return "", false
	}
}
