package zone

import (
	"fmt"
	"io"

	"github.com/miekg/dns"
)

// ParseZone reads a zone file in presentation format and returns its records.
// The file argument is used in error messages only.
func ParseZone(r io.Reader, origin, file string) ([]dns.RR, error) {
	var rrs []dns.RR

	zp := dns.NewZoneParser(r, origin, file)
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		rrs = append(rrs, rr)
	}
	if err := zp.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse zone: %w", err)
	}

	return rrs, nil
}
