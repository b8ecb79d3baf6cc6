// Package intid implements the signed-64-bit entity identifier grammar
// used throughout apiproxy, and the MD5-based sharding key derived from
// one or two identifiers.
package intid

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrOutOfRange is returned when a parsed value falls outside [0, 2^64).
var ErrOutOfRange = errors.New("intid: value out of range")

// ParseI64 parses a decimal (optionally signed) or 0x-prefixed unsigned
// hexadecimal string into an int64. Unsigned values in (MaxInt64, MaxUint64]
// are reinterpreted as negative via two's complement.
func ParseI64(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("intid: empty id")
	}

	if hex, ok := stripHexPrefix(s); ok {
		u, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return 0, fmt.Errorf("intid: hex id %q: %w", s, ErrOutOfRange)
			}
			return 0, fmt.Errorf("intid: invalid hex id %q: %w", s, err)
		}
		return U2I(u), nil
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}

	if s[0] == '-' {
		return 0, fmt.Errorf("intid: invalid id %q", s)
	}
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("intid: id %q: %w", s, ErrOutOfRange)
		}
		return 0, fmt.Errorf("intid: invalid id %q: %w", s, err)
	}
	return U2I(u), nil
}

func stripHexPrefix(s string) (string, bool) {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:], true
	}
	return "", false
}

// U2I reinterprets an unsigned 64-bit value as its two's-complement
// signed counterpart.
func U2I(u uint64) int64 {
	return int64(u)
}

// I2U reinterprets a signed 64-bit value as its two's-complement
// unsigned counterpart, always in [0, 2^64).
func I2U(i int64) uint64 {
	return uint64(i)
}

// U2Dec renders a uint64 as its unsigned decimal representation, used
// to embed ids that may have originated as negative i64 values into
// URL path segments (see enumpage's next-page URL construction).
func U2Dec(u uint64) string {
	return strconv.FormatUint(u, 10)
}

const (
	MinI64 int64 = math.MinInt64
	MaxI64 int64 = math.MaxInt64
)

// ShardKey computes the 32-bit sharding key for one or two entity ids:
// serialize a as 8 big-endian bytes, optionally append b's 8 big-endian
// bytes, MD5 the buffer, and return the first 4 bytes as a big-endian
// uint32. This is the only sharding function in the system; every
// backend-selection decision flows through it.
func ShardKey(a int64, b *int64) uint32 {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], I2U(a))
	n := 8
	if b != nil {
		binary.BigEndian.PutUint64(buf[8:16], I2U(*b))
		n = 16
	}
	sum := md5.Sum(buf[:n])
	return binary.BigEndian.Uint32(sum[:4])
}
