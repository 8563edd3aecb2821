package factlog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/otbe/factcast/internal/fact"
)

func TestRecordRoundtrip(t *testing.T) {
	header := []byte("h")
	payload := []byte("payload")
	rec := EncodeRecord(header, payload)
	h, p, ok := DecodeRecord(rec)
	if !ok {
		t.Fatalf("decode failed")
	}
	if string(h) != string(header) || string(p) != string(payload) {
		t.Fatalf("roundtrip mismatch: %q %q", h, p)
	}
}

func TestRecordCRCFail(t *testing.T) {
	rec := EncodeRecord([]byte("x"), []byte("y"))
	rec[len(rec)-1] ^= 0xFF
	if _, _, ok := DecodeRecord(rec); ok {
		t.Fatalf("expected crc failure")
	}
}

func TestDecodeFactCorrupt(t *testing.T) {
	if _, err := decodeFact(9, []byte{0x01}); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	rec := EncodeRecord([]byte("{not json"), nil)
	if _, err := decodeFact(9, rec); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for bad header, got %v", err)
	}
}

func TestEncodeFactKeepsHeader(t *testing.T) {
	f := fact.Fact{
		Header:  fact.Header{ID: uuid.New(), Namespace: "ns", Type: "T", Meta: map[string]string{"k": "v"}},
		Payload: []byte("body"),
	}
	raw, err := encodeFact(&f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := decodeFact(4, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.ID != f.ID || back.Serial != 4 || back.Meta["k"] != "v" || !bytes.Equal(back.Payload, f.Payload) {
		t.Fatalf("roundtrip %+v", back)
	}
}
