// Package codec serializes cached records to and from bytes.
package codec

import "fmt"

// Codec encodes/decodes records of type V for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names accepted by ByName.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
	NameCBOR    = "cbor"
)

// ByName returns a reflection-based codec for configuration files. The
// msgpack codec it returns honors json tags, like the json codec.
// Protobuf needs a message constructor and is not selectable by name.
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", NameJSON:
		return JSON[V]{}, nil
	case NameMsgpack:
		return Msgpack[V]{UseJSONTag: true}, nil
	case NameCBOR:
		return NewCBOR[V](true)
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
