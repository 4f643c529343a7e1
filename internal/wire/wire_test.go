package wire

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
	"time"
)

func mustDecode(t *testing.T, b []byte) Entry {
	t.Helper()
	e, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return e
}

func TestRecordRTEmptyAndNonEmpty(t *testing.T) {
	cases := [][]byte{nil, []byte("hello"), {0, 1, 2, 3, 4}}
	for _, payload := range cases {
		e := mustDecode(t, EncodeRecord(payload))
		if e.Kind != KindRecord {
			t.Fatalf("kind: got %v want record", e.Kind)
		}
		if !bytes.Equal(e.Payload, payload) {
			t.Fatalf("payload mismatch: got %x want %x", e.Payload, payload)
		}
	}
}

func TestReferenceRT(t *testing.T) {
	b, err := EncodeReference("model:app.widget[id=1]")
	if err != nil {
		t.Fatalf("EncodeReference: %v", err)
	}
	e := mustDecode(t, b)
	if e.Kind != KindReference || e.Key != "model:app.widget[id=1]" {
		t.Fatalf("got %+v", e)
	}
}

func TestSetRTPreservesOrder(t *testing.T) {
	keys := []string{"c", "a", "b", "a"}
	b, err := EncodeSet(keys)
	if err != nil {
		t.Fatalf("EncodeSet: %v", err)
	}
	e := mustDecode(t, b)
	if e.Kind != KindSet || strings.Join(e.Keys, ",") != "c,a,b,a" {
		t.Fatalf("got %+v", e)
	}

	b, err = EncodeSet(nil)
	if err != nil {
		t.Fatalf("EncodeSet empty: %v", err)
	}
	if e := mustDecode(t, b); e.Kind != KindSet || len(e.Keys) != 0 {
		t.Fatalf("empty set: got %+v", e)
	}
}

func TestTombstoneDeadline(t *testing.T) {
	now := time.Unix(1700000000, 0)
	e := mustDecode(t, EncodeTombstone(now.Add(5*time.Second)))
	if e.Kind != KindTombstone {
		t.Fatalf("kind: got %v", e.Kind)
	}
	if e.Expired(now) {
		t.Fatalf("tombstone should be live before deadline")
	}
	if !e.Expired(now.Add(5 * time.Second)) {
		t.Fatalf("tombstone should be expired at deadline")
	}

	forever := mustDecode(t, EncodeTombstone(time.Time{}))
	if !forever.Deadline.IsZero() || forever.Expired(now.Add(time.Hour)) {
		t.Fatalf("zero deadline must never expire: %+v", forever)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	ref, _ := EncodeReference("k")
	set, _ := EncodeSet([]string{"k"})
	frames := map[string][]byte{
		"record":    EncodeRecord([]byte("x")),
		"reference": ref,
		"set":       set,
		"tombstone": EncodeTombstone(time.Now()),
	}
	for name, b := range frames {
		t.Run(name, func(t *testing.T) {
			b = append(append([]byte(nil), b...), 0xDE, 0xAD)
			if _, err := Decode(b); err == nil {
				t.Fatalf("expected error on trailing bytes")
			}
		})
	}
}

func TestDecodeCorruptHeaders(t *testing.T) {
	enc := EncodeRecord([]byte("abc"))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := Decode(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := Decode(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = 99
	if _, err := Decode(badKind); err == nil {
		t.Fatalf("expected error on unknown kind")
	}

	if _, err := Decode([]byte("not-wire-format")); err == nil {
		t.Fatalf("expected error on foreign bytes")
	}

	// vlen larger than remaining payload
	short := append([]byte(nil), enc[:len(enc)-1]...)
	if _, err := Decode(short); err == nil {
		t.Fatalf("expected error on truncated payload")
	}
}

func TestEncodeKeyLengthValidation(t *testing.T) {
	if _, err := EncodeReference(""); err == nil {
		t.Fatalf("EncodeReference should error on empty key")
	}
	if _, err := EncodeSet([]string{"ok", ""}); err == nil {
		t.Fatalf("EncodeSet should error on empty member key")
	}
	if _, err := EncodeReference(strings.Repeat("a", 0x10000)); err == nil {
		t.Fatalf("EncodeReference should error on key length > 0xFFFF")
	}
	if _, err := EncodeReference(strings.Repeat("b", 0xFFFF)); err != nil {
		t.Fatalf("EncodeReference should succeed at 0xFFFF, got %v", err)
	}
}

// Bogus n in a set header must not preallocate and must error cleanly.
func TestDecodeSetFakeNNotPrealloc(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{'M', 'D', 'L', 'C'})
	buf.WriteByte(version)
	buf.WriteByte(byte(KindSet))
	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], ^uint32(0))
	buf.Write(u4[:])

	if _, err := Decode(buf.Bytes()); err == nil {
		t.Fatalf("Decode should fail on wrong n with insufficient bytes")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindRecord:    "record",
		KindReference: "reference",
		KindSet:       "set",
		KindTombstone: "tombstone",
		Kind(0):       "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("Kind(%d).String() = %q want %q", k, got, want)
		}
	}
}
