// Package gameid generates the opaque identifiers assigned to games at
// creation. IDs are UUIDv7 values rendered as 26 characters of Crockford
// base32, so they are URL-safe, case-insensitive to humans, and sort by
// creation time.
package gameid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// Crockford's base32 alphabet: no i, l, o or u.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// encodedLen is the length of an encoded id: 130 bits of base32 covering the
// 128-bit UUID.
const encodedLen = 26

// RandSource supplies the random tail of each id. Inject one for
// deterministic tests; nil means crypto/rand.
type RandSource interface {
	Intn(n int) int
}

// Generator produces game ids.
type Generator struct {
	randSource RandSource
}

// NewGenerator returns a Generator. randSource may be nil, in which case
// crypto/rand is used.
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate returns a new id using the default crypto/rand source.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate returns a new 26-character id.
func (g *Generator) Generate() string {
	return encode(g.newUUIDv7())
}

// newUUIDv7 builds a 128-bit UUIDv7: 48-bit millisecond timestamp, version
// and variant bits, and a random remainder.
func (g *Generator) newUUIDv7() [16]byte {
	var id [16]byte

	ms := uint64(time.Now().UnixMilli())
	for i := 0; i < 6; i++ {
		id[i] = byte(ms >> (40 - 8*i))
	}

	if g.randSource != nil {
		for i := 6; i < len(id); i++ {
			id[i] = byte(g.randSource.Intn(256))
		}
	} else {
		if _, err := rand.Read(id[6:]); err != nil {
			panic("gameid: reading random bytes: " + err.Error())
		}
	}

	id[6] = (id[6] & 0x0f) | 0x70 // version 7
	id[8] = (id[8] & 0x3f) | 0x80 // variant 10

	return id
}

// encode renders 128 bits as base32, consuming 5 bits per output character.
// The bit stream is treated as left-padded with two zero bits so the first
// character is always 0-7.
func encode(id [16]byte) string {
	var b strings.Builder
	b.Grow(encodedLen)

	// acc holds up to 12 unconsumed bits, most significant first.
	var acc uint16
	bits := 2 // two leading zero bits
	for i := 0; i <= len(id); i++ {
		for bits >= 5 {
			bits -= 5
			b.WriteByte(alphabet[(acc>>bits)&0x1f])
		}
		if i < len(id) {
			acc = acc<<8 | uint16(id[i])
			bits += 8
		}
	}
	return b.String()
}

// Validate checks that id is a well-formed game id: 26 characters of the
// base32 alphabet whose first character stays within the 128-bit range.
func Validate(id string) error {
	if len(id) != encodedLen {
		return fmt.Errorf("game id must be %d characters, got %d", encodedLen, len(id))
	}
	if id[0] > '7' {
		return fmt.Errorf("game id first character must be 0-7, got %c", id[0])
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(alphabet, id[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
