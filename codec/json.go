package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var errTrailingJSON = errors.New("codec: trailing data after JSON record")

// JSON caches records through their json tags; unexported fields are lost.
// Strict rejects unknown fields and trailing data, so entries written by a
// different schema fail to decode and are healed as misses.
type JSON[V any] struct {
	Strict bool
}

var _ Codec[struct{}] = JSON[struct{}]{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (c JSON[V]) Decode(b []byte) (V, error) {
	var v V
	if !c.Strict {
		err := json.Unmarshal(b, &v)
		return v, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		var zero V
		return zero, errTrailingJSON
	}
	return v, nil
}
