package factlog

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"

	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/fact"
)

// ErrCorrupt is returned when a stored record fails its checksum.
var ErrCorrupt = errors.New("factlog: corrupt record")

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeRecord frames header and payload: varint headerLen | header | payload | crc32c.
func EncodeRecord(header, payload []byte) []byte {
	out := make([]byte, 0, binary.MaxVarintLen64+len(header)+len(payload)+4)
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	out = append(out, tmp[:n]...)
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...)
}

// DecodeRecord reverses EncodeRecord. The returned slices are copies.
func DecodeRecord(b []byte) (header, payload []byte, ok bool) {
	if len(b) < 1+4 {
		return nil, nil, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, nil, false
	}
	if uint64(n)+hlen+4 > uint64(len(b)) {
		return nil, nil, false
	}
	h := b[n : n+int(hlen)]
	p := b[n+int(hlen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, h)
	crc = crc32.Update(crc, castagnoli, p)
	if crc != expect {
		return nil, nil, false
	}
	return append([]byte(nil), h...), append([]byte(nil), p...), true
}

func encodeFact(f *fact.Fact) ([]byte, error) {
	h, err := json.Marshal(f.Header)
	if err != nil {
		return nil, err
	}
	return EncodeRecord(h, f.Payload), nil
}

func decodeFact(serial uint64, raw []byte) (fact.Fact, error) {
	h, p, ok := DecodeRecord(raw)
	if !ok {
		return fact.Fact{}, errors.Wrapf(ErrCorrupt, "serial %d", serial)
	}
	var f fact.Fact
	if err := json.Unmarshal(h, &f.Header); err != nil {
		return fact.Fact{}, errors.Wrapf(ErrCorrupt, "serial %d: %v", serial, err)
	}
	f.Serial = serial
	if len(p) > 0 {
		f.Payload = p
	}
	return f, nil
}
