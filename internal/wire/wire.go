package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const version byte = 1

// Kind tags what a stored entry holds.
type Kind byte

const (
	KindRecord    Kind = 1
	KindReference Kind = 2
	KindSet       Kind = 3
	KindTombstone Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindReference:
		return "reference"
	case KindSet:
		return "set"
	case KindTombstone:
		return "tombstone"
	default:
		return "unknown"
	}
}

var (
	ErrCorrupt   = errors.New("modelcache: corrupt entry")
	ErrKeyLength = errors.New("modelcache: invalid key length")
	magic4       = [...]byte{'M', 'D', 'L', 'C'}
)

const hdr = 4 + 1 + 1

// Entry is a decoded frame. Only the fields matching Kind are set.
type Entry struct {
	Kind     Kind
	Payload  []byte    // record
	Key      string    // reference
	Keys     []string  // set
	Deadline time.Time // tombstone; zero => no deadline
}

// Expired reports whether a tombstone deadline has passed at now.
func (e Entry) Expired(now time.Time) bool {
	return e.Kind == KindTombstone && !e.Deadline.IsZero() && !now.Before(e.Deadline)
}

func header(buf *bytes.Buffer, k Kind) {
	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(byte(k))
}

// Record: magic(4) | ver(1) | kind(1) | vlen(u32 be) | payload(vlen)
func EncodeRecord(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdr + 4 + len(payload))
	header(&buf, KindRecord)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])
	buf.Write(payload)
	return buf.Bytes()
}

// Reference: magic(4) | ver(1) | kind(2) | klen(u16 be) | key(klen)
func EncodeReference(key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(hdr + 2 + len(key))
	header(&buf, KindReference)
	writeKey(&buf, key)
	return buf.Bytes(), nil
}

// Set: magic(4) | ver(1) | kind(3) | n(u32 be) | (klen(u16 be) | key(klen)) * n
func EncodeSet(keys []string) ([]byte, error) {
	total := hdr + 4
	for _, k := range keys {
		if err := checkKey(k); err != nil {
			return nil, err
		}
		total += 2 + len(k)
	}

	var buf bytes.Buffer
	buf.Grow(total)
	header(&buf, KindSet)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(keys)))
	buf.Write(u4[:])
	for _, k := range keys {
		writeKey(&buf, k)
	}
	return buf.Bytes(), nil
}

// Tombstone: magic(4) | ver(1) | kind(4) | deadline(i64 be, unix nanos; 0 = none)
func EncodeTombstone(deadline time.Time) []byte {
	var buf bytes.Buffer
	buf.Grow(hdr + 8)
	header(&buf, KindTombstone)

	var ns int64
	if !deadline.IsZero() {
		ns = deadline.UnixNano()
	}
	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], uint64(ns))
	buf.Write(u8[:])
	return buf.Bytes()
}

func checkKey(k string) error {
	if l := len(k); l == 0 || l > 0xFFFF {
		return ErrKeyLength
	}
	return nil
}

func writeKey(buf *bytes.Buffer, k string) {
	var u2 [2]byte
	binary.BigEndian.PutUint16(u2[:], uint16(len(k)))
	buf.Write(u2[:])
	buf.WriteString(k)
}

// Decode parses any frame. Trailing bytes are rejected.
func Decode(b []byte) (Entry, error) {
	if len(b) < hdr || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	r := reader{b: b, off: hdr}
	e := Entry{Kind: Kind(b[5])}

	switch e.Kind {
	case KindRecord:
		vlen, ok := r.u32()
		if !ok {
			return Entry{}, ErrCorrupt
		}
		p, ok := r.bytes(int(vlen))
		if !ok {
			return Entry{}, ErrCorrupt
		}
		e.Payload = p
	case KindReference:
		k, ok := r.key()
		if !ok {
			return Entry{}, ErrCorrupt
		}
		e.Key = k
	case KindSet:
		n, ok := r.u32()
		if !ok {
			return Entry{}, ErrCorrupt
		}
		// each member needs at least 3 bytes; bound n before allocating
		if int64(n)*3 > int64(len(b)-r.off) {
			return Entry{}, ErrCorrupt
		}
		e.Keys = make([]string, 0, n)
		for i := uint32(0); i < n; i++ {
			k, ok := r.key()
			if !ok {
				return Entry{}, ErrCorrupt
			}
			e.Keys = append(e.Keys, k)
		}
	case KindTombstone:
		raw, ok := r.bytes(8)
		if !ok {
			return Entry{}, ErrCorrupt
		}
		if ns := int64(binary.BigEndian.Uint64(raw)); ns != 0 {
			e.Deadline = time.Unix(0, ns)
		}
	default:
		return Entry{}, ErrCorrupt
	}

	if r.off != len(b) {
		return Entry{}, ErrCorrupt
	}
	return e, nil
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) bytes(n int) ([]byte, bool) {
	if n < 0 || n > len(r.b)-r.off {
		return nil, false
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, true
}

func (r *reader) u32() (uint32, bool) {
	raw, ok := r.bytes(4)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint32(raw), true
}

func (r *reader) key() (string, bool) {
	raw, ok := r.bytes(2)
	if !ok {
		return "", false
	}
	klen := int(binary.BigEndian.Uint16(raw))
	if klen == 0 {
		return "", false
	}
	kb, ok := r.bytes(klen)
	if !ok {
		return "", false
	}
	return string(kb), true
}
