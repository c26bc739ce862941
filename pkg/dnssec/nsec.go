package dnssec

import (
	"sort"

	"github.com/miekg/dns"

	"github.com/piwi3910/zonesign/pkg/zone"
)

// NSECs walks the zone rooted at apex and returns its NSEC chain: one record
// per authoritative family, each pointing at the next family's owner name,
// the last wrapping back to the apex. The chain is a closed ring; a zone
// holding only the apex yields a single self-looping record.
//
// Each record's type bitmap holds the union of the types present at the
// owner plus RRSIG, on the assumption that the zone will be signed. Families
// below a zone cut get no record and leave no gap in the ring; the cut-point
// family itself does get one.
func NSECs(records *zone.SortedRecords, apex zone.FamilyName, ttl uint32) []*dns.NSEC {
	var res []*dns.NSEC

	// The previous family's record stays pending until the next owner name
	// is known.
	var prev *dns.NSEC

	_ = walkAuthoritative(records, apex, func(family *zone.Family, _ bool) error {
		if prev != nil {
			prev.NextDomain = family.Owner()
			res = append(res, prev)
		}

		prev = &dns.NSEC{
			Hdr: dns.RR_Header{
				Name:   family.Owner(),
				Rrtype: dns.TypeNSEC,
				Class:  family.Class(),
				Ttl:    ttl,
			},
			TypeBitMap: typeBitmap(family),
		}

		return nil
	})

	if prev != nil {
		prev.NextDomain = dns.Fqdn(apex.Owner)
		res = append(res, prev)
	}

	return res
}

// typeBitmap returns the sorted union of the record types present in a
// family, plus RRSIG.
func typeBitmap(family *zone.Family) []uint16 {
	seen := map[uint16]bool{dns.TypeRRSIG: true}

	rrsets := family.Rrsets()
	for rrset := rrsets.Next(); rrset != nil; rrset = rrsets.Next() {
		seen[rrset.Type()] = true
	}

	types := make([]uint16, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}
