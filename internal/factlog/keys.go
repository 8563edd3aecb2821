package factlog

import (
	"encoding/binary"

	"github.com/google/uuid"
)

var (
	sep        = byte('/')
	metaKey    = []byte("fact/m")
	entryPfx   = []byte("fact/e/")
	idPfx      = []byte("fact/id/")
	nsIndexPfx = []byte("fact/ns/")
)

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyEntry builds the entry key with a big-endian serial for ordering.
func KeyEntry(serial uint64) []byte {
	k := make([]byte, 0, len(entryPfx)+8)
	k = append(k, entryPfx...)
	return appendBE8(k, serial)
}

// KeyID builds the id index key.
func KeyID(id uuid.UUID) []byte {
	k := make([]byte, 0, len(idPfx)+16)
	k = append(k, idPfx...)
	return append(k, id[:]...)
}

// keyNamespacePrefix is fact/ns/{len_be4}{ns}/.
func keyNamespacePrefix(ns string) []byte {
	k := make([]byte, 0, len(nsIndexPfx)+4+len(ns)+1+8)
	k = append(k, nsIndexPfx...)
	k = appendBE4(k, uint32(len(ns)))
	k = append(k, ns...)
	return append(k, sep)
}

// KeyNamespace builds the namespace index key for serial.
func KeyNamespace(ns string, serial uint64) []byte {
	return appendBE8(keyNamespacePrefix(ns), serial)
}

// serialSuffix reads the trailing 8-byte serial of an entry or index key.
func serialSuffix(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
