package zone

import (
	"bytes"
	"strings"

	"github.com/miekg/dns"
)

const (
	// Initial pack buffer size; doubled on dns.ErrBuf until the record fits.
	packBufSize = 1024

	// Maximum wire length of a domain name (RFC 1035 §3.1).
	maxNameWireLen = 255
)

// NamesEqual reports whether two domain names are equal under the
// case-insensitive comparison of RFC 1035 §3.1.
func NamesEqual(a, b string) bool {
	return strings.EqualFold(dns.Fqdn(a), dns.Fqdn(b))
}

// CompareNames compares two domain names in canonical order (RFC 4034 §6.1):
// label by label from the root, each label compared as lowercased wire-form
// bytes, with the shorter name sorting first when one is a prefix of the
// other.
func CompareNames(name1, name2 string) int {
	labels1 := canonicalLabels(name1)
	labels2 := canonicalLabels(name2)

	// Compare label by label starting at the root.
	minLen := len(labels1)
	if len(labels2) < minLen {
		minLen = len(labels2)
	}
	for i := 1; i <= minLen; i++ {
		cmp := bytes.Compare(labels1[len(labels1)-i], labels2[len(labels2)-i])
		if cmp != 0 {
			return cmp
		}
	}

	if len(labels1) < len(labels2) {
		return -1
	}
	if len(labels1) > len(labels2) {
		return 1
	}

	return 0
}

// canonicalLabels slices a name's canonical wire form into its labels, root
// excluded.
func canonicalLabels(name string) [][]byte {
	wire := CanonicalName(name)

	var labels [][]byte
	for off := 0; wire[off] != 0; {
		l := int(wire[off])
		labels = append(labels, wire[off+1:off+1+l])
		off += 1 + l
	}

	return labels
}

// CompareRecords compares two resource records in canonical order: owner name
// first, then class, then type, then canonical-form rdata bytes. Records for
// which all four compare equal are canonically equal and may not coexist in a
// SortedRecords store.
func CompareRecords(a, b dns.RR) int {
	if cmp := CompareNames(a.Header().Name, b.Header().Name); cmp != 0 {
		return cmp
	}
	if a.Header().Class != b.Header().Class {
		if a.Header().Class < b.Header().Class {
			return -1
		}

		return 1
	}
	if a.Header().Rrtype != b.Header().Rrtype {
		if a.Header().Rrtype < b.Header().Rrtype {
			return -1
		}

		return 1
	}

	rdataA := canonicalRdata(a)
	rdataB := canonicalRdata(b)
	if rdataA == nil || rdataB == nil {
		// Unpackable records still need a stable, distinct position, so fall
		// back to their presentation forms.
		return strings.Compare(a.String(), b.String())
	}

	return bytes.Compare(rdataA, rdataB)
}

// CanonicalName converts a domain name to canonical wire format (RFC 4034
// §6.2): lowercased, uncompressed, terminated by the root label. Presentation
// escapes such as `\.` and `\DDD` are decoded during packing; a name that
// cannot be packed maps to the root name.
func CanonicalName(name string) []byte {
	buf := make([]byte, maxNameWireLen)
	off, err := dns.PackDomainName(dns.Fqdn(name), buf, 0, nil, false)
	if err != nil {
		return []byte{0}
	}

	wire := buf[:off]
	// Length octets stay below 'A', so lowercasing every byte only touches
	// label content.
	for i, b := range wire {
		if b >= 'A' && b <= 'Z' {
			wire[i] = b + 'a' - 'A'
		}
	}

	return wire
}

// CanonicalRecord returns the full canonical wire form of a record (RFC 4034
// §6): lowercased owner name, type, class, the given TTL, rdlength, and rdata
// with embedded domain names lowercased.
func CanonicalRecord(rr dns.RR, ttl uint32) ([]byte, error) {
	cp := canonicalCopy(rr)
	cp.Header().Ttl = ttl

	wire, err := packRecord(cp)
	if err != nil {
		return nil, err
	}

	return wire, nil
}

// canonicalRdata returns the canonical rdata bytes of a record, used for
// ordering and duplicate detection. Returns nil for records that cannot be
// packed; CompareRecords handles those separately.
func canonicalRdata(rr dns.RR) []byte {
	wire, err := packRecord(canonicalCopy(rr))
	if err != nil {
		return nil
	}

	// The owner name is packed uncompressed; its wire length tells us where
	// the fixed 10-byte header starts. Rdata follows the header.
	nameLen := len(CanonicalName(rr.Header().Name))
	rdataStart := nameLen + 10
	if rdataStart > len(wire) {
		return nil
	}

	return wire[rdataStart:]
}

// canonicalCopy returns a copy of rr with its owner name, and any domain
// names embedded in the rdata of the RFC 4034 §6.2 types, lowercased.
func canonicalCopy(rr dns.RR) dns.RR {
	cp := dns.Copy(rr)
	cp.Header().Name = strings.ToLower(dns.Fqdn(cp.Header().Name))

	switch x := cp.(type) {
	case *dns.NS:
		x.Ns = strings.ToLower(x.Ns)
	case *dns.CNAME:
		x.Target = strings.ToLower(x.Target)
	case *dns.DNAME:
		x.Target = strings.ToLower(x.Target)
	case *dns.PTR:
		x.Ptr = strings.ToLower(x.Ptr)
	case *dns.SOA:
		x.Ns = strings.ToLower(x.Ns)
		x.Mbox = strings.ToLower(x.Mbox)
	case *dns.MX:
		x.Mx = strings.ToLower(x.Mx)
	case *dns.SRV:
		x.Target = strings.ToLower(x.Target)
	case *dns.RRSIG:
		x.SignerName = strings.ToLower(x.SignerName)
	case *dns.NSEC:
		x.NextDomain = strings.ToLower(x.NextDomain)
	}

	return cp
}

// packRecord packs a record to uncompressed wire format, growing the buffer
// until it fits.
func packRecord(rr dns.RR) ([]byte, error) {
	size := packBufSize
	for {
		buf := make([]byte, size)
		off, err := dns.PackRR(rr, buf, 0, nil, false)
		if err == nil {
			return buf[:off], nil
		}
		if err != dns.ErrBuf || size >= dns.MaxMsgSize {
			return nil, err
		}
		size *= 2
	}
}
