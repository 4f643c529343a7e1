package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

var errNoConstructor = errors.New("codec: protobuf codec has no message constructor")

// Protobuf caches generated message types. Such records usually expose their
// fields through the modelcache.Record interface rather than struct tags.
// Encoding is deterministic so equal messages produce equal entries.
type Protobuf[T proto.Message] struct {
	newMsg func() T
}

// NewProtobuf takes the constructor Decode allocates into,
// e.g. func() *pb.Widget { return new(pb.Widget) }.
func NewProtobuf[T proto.Message](newMsg func() T) Protobuf[T] {
	return Protobuf[T]{newMsg: newMsg}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	if c.newMsg == nil {
		var zero T
		return zero, errNoConstructor
	}
	m := c.newMsg()
	if err := proto.Unmarshal(b, m); err != nil {
		var zero T
		return zero, err
	}
	return m, nil
}
