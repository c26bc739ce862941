package dnssec

import (
	"github.com/miekg/dns"

	"github.com/piwi3910/zonesign/pkg/zone"
)

// walkAuthoritative drives the zone-cut-aware traversal shared by the signer
// and the NSEC chain builder. Starting at the apex family, it visits every
// family the zone is authoritative for, in canonical order, and tells the
// visitor whether the family is the parent side of a zone cut.
//
// Families below an active cut are skipped without a visit. The walk ends at
// the first out-of-zone family: canonical order keeps the zone's contents
// contiguous, so nothing in-zone can follow it.
func walkAuthoritative(records *zone.SortedRecords, apex zone.FamilyName,
	visit func(family *zone.Family, atCut bool) error,
) error {
	// Owner name of the nearest active delegation point, or empty.
	var cut string

	families := records.Families()
	families.SkipBefore(apex)

	for family := families.Next(); family != nil; family = families.Next() {
		if !family.IsInZone(apex) {
			break
		}

		if cut != "" && dns.IsSubDomain(cut, family.Owner()) {
			continue
		}

		atCut := family.IsZoneCut(apex)
		if atCut {
			cut = family.Owner()
		} else {
			cut = ""
		}

		if err := visit(family, atCut); err != nil {
			return err
		}
	}

	return nil
}
