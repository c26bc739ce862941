package zone

import "time"

// Serial is a 32-bit serial number with RFC 1982 wrap-around arithmetic,
// used for RRSIG inception and expiration times.
type Serial uint32

// UnixTimeSerial returns the serial for a point in time, seconds since the
// Unix epoch truncated to 32 bits.
func UnixTimeSerial(t time.Time) Serial {
	return Serial(uint32(t.Unix())) //nolint:gosec // wrap-around is the defined behavior
}

// Add returns the serial advanced by n, wrapping around per RFC 1982.
func (s Serial) Add(n uint32) Serial {
	return Serial(uint32(s) + n)
}

// Before reports whether s is less than other in RFC 1982 serial arithmetic.
// Serials half the number space apart compare as unordered; Before returns
// false for both orderings of such a pair.
func (s Serial) Before(other Serial) bool {
	i1, i2 := uint32(s), uint32(other)

	return (i1 < i2 && i2-i1 < 1<<31) || (i1 > i2 && i1-i2 > 1<<31)
}
