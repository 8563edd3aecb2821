package id

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Nil is the zero id; facts never carry it.
var Nil = uuid.Nil

// ErrInvalid is returned by Parse for malformed input.
var ErrInvalid = errors.New("invalid fact id")

// Generator produces monotonically increasing version 7 UUIDs per process.
type Generator struct {
	mu   sync.Mutex
	last uuid.UUID
}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator { return &Generator{} }

// NowMs returns current time in milliseconds since Unix epoch.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Next returns a new id that sorts after every id previously returned by g.
// If the clock goes backwards the previous timestamp is reused and the
// random tail is incremented instead.
func (g *Generator) Next() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := make7(NowMs())
	if bytes.Compare(next[:], g.last[:]) <= 0 {
		next = bump(g.last)
	}
	g.last = next
	return next
}

// Parse reads a canonical or braced UUID string.
func Parse(s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.Wrapf(ErrInvalid, "%q", s)
	}
	return u, nil
}

// FromBytes converts a 16-byte slice.
func FromBytes(b []byte) (uuid.UUID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil, errors.Wrap(ErrInvalid, err.Error())
	}
	return u, nil
}

// Time extracts the millisecond timestamp of a version 7 id.
func Time(u uuid.UUID) time.Time {
	var buf [8]byte
	copy(buf[2:], u[:6])
	return time.UnixMilli(int64(binary.BigEndian.Uint64(buf[:])))
}

func make7(ms int64) uuid.UUID {
	u := uuid.Must(uuid.NewRandom())
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(ms))
	copy(u[:6], ts[2:])
	u[6] = (u[6] & 0x0f) | 0x70
	u[8] = (u[8] & 0x3f) | 0x80
	return u
}

// bump increments the 62-bit random tail of u, carrying into rand_a and
// finally into the timestamp.
func bump(u uuid.UUID) uuid.UUID {
	tail := binary.BigEndian.Uint64(u[8:]) & 0x3fffffffffffffff
	randA := uint16(u[6]&0x0f)<<8 | uint16(u[7])
	ms := int64(binary.BigEndian.Uint64(append([]byte{0, 0}, u[:6]...)))

	tail++
	if tail > 0x3fffffffffffffff {
		tail = 0
		randA++
		if randA > 0x0fff {
			randA = 0
			ms++
		}
	}
	var out uuid.UUID
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(ms))
	copy(out[:6], ts[2:])
	out[6] = 0x70 | byte(randA>>8)
	out[7] = byte(randA)
	binary.BigEndian.PutUint64(out[8:], tail|0x8000000000000000)
	return out
}
