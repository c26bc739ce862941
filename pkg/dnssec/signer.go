package dnssec

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"

	"github.com/piwi3910/zonesign/pkg/zone"
)

// Length of the fixed RRSIG rdata fields preceding the signer name
// (RFC 4034 §3.1).
const rrsigFixedLen = 18

// Sign walks the zone rooted at apex and returns one RRSIG record per
// eligible rrset, signed with the given key over the rrset's canonical form.
// The expiration and inception serials bound the signatures' validity window.
//
// At a zone cut only DS and NSEC rrsets are signed; NS records at the cut
// belong to the child. Everywhere else every rrset is signed except existing
// RRSIGs. Any key failure aborts the run with no partial output. The key's
// algorithm and tag are re-queried for every rrset, so a stateful key is
// reflected faithfully.
func Sign(records *zone.SortedRecords, apex zone.FamilyName,
	expiration, inception zone.Serial, key SigningKey,
) ([]*dns.RRSIG, error) {
	var res []*dns.RRSIG

	signerName := strings.ToLower(dns.Fqdn(apex.Owner))

	err := walkAuthoritative(records, apex, func(family *zone.Family, atCut bool) error {
		rrsets := family.Rrsets()
		for rrset := rrsets.Next(); rrset != nil; rrset = rrsets.Next() {
			if atCut {
				// At the parent side of a cut only DS and NSEC are ours to
				// sign. NS must not be signed and nothing else should be
				// here, really.
				if rrset.Type() != dns.TypeDS && rrset.Type() != dns.TypeNSEC {
					continue
				}
			} else if rrset.Type() == dns.TypeRRSIG {
				// Signatures are never re-signed.
				continue
			}

			rrsig, err := signRrset(rrset, signerName, expiration, inception, key)
			if err != nil {
				return err
			}
			res = append(res, rrsig)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// signRrset builds the RFC 4034 §3.1.8.1 signing input for one rrset, asks
// the key for a signature, and returns the finished RRSIG record.
func signRrset(rrset *zone.Rrset, signerName string,
	expiration, inception zone.Serial, key SigningKey,
) (*dns.RRSIG, error) {
	algorithm, err := key.Algorithm()
	if err != nil {
		return nil, fmt.Errorf("signing key algorithm unavailable: %w", err)
	}
	keyTag, err := key.KeyTag()
	if err != nil {
		return nil, fmt.Errorf("signing key tag unavailable: %w", err)
	}

	rrsig := &dns.RRSIG{
		Hdr: dns.RR_Header{
			Name:   rrset.Owner(),
			Rrtype: dns.TypeRRSIG,
			Class:  rrset.Class(),
			Ttl:    rrset.TTL(),
		},
		TypeCovered: rrset.Type(),
		Algorithm:   algorithm,
		Labels:      SignatureLabelCount(rrset.Owner()),
		OrigTtl:     rrset.TTL(),
		Expiration:  uint32(expiration),
		Inception:   uint32(inception),
		KeyTag:      keyTag,
		SignerName:  signerName,
	}

	buf, err := signingInput(rrsig, rrset)
	if err != nil {
		return nil, err
	}

	sig, err := key.Sign(buf)
	if err != nil {
		return nil, fmt.Errorf("signing %s/%s failed: %w",
			rrset.Owner(), dns.TypeToString[rrset.Type()], err)
	}
	rrsig.Signature = encodeSignature(sig)

	return rrsig, nil
}

// signingInput assembles the bytes covered by an RRSIG: the canonical-form
// rdata prefix of the signature record itself, minus the signature, followed
// by the canonical wire form of every rrset member in store order
// (RFC 4034 §3.1.8.1).
func signingInput(rrsig *dns.RRSIG, rrset *zone.Rrset) ([]byte, error) {
	buf := make([]byte, 0, 4096)

	prefix := make([]byte, rrsigFixedLen)
	prefix[0] = byte(rrsig.TypeCovered >> 8)
	prefix[1] = byte(rrsig.TypeCovered)
	prefix[2] = rrsig.Algorithm
	prefix[3] = rrsig.Labels
	prefix[4] = byte(rrsig.OrigTtl >> 24)
	prefix[5] = byte(rrsig.OrigTtl >> 16)
	prefix[6] = byte(rrsig.OrigTtl >> 8)
	prefix[7] = byte(rrsig.OrigTtl)
	prefix[8] = byte(rrsig.Expiration >> 24)
	prefix[9] = byte(rrsig.Expiration >> 16)
	prefix[10] = byte(rrsig.Expiration >> 8)
	prefix[11] = byte(rrsig.Expiration)
	prefix[12] = byte(rrsig.Inception >> 24)
	prefix[13] = byte(rrsig.Inception >> 16)
	prefix[14] = byte(rrsig.Inception >> 8)
	prefix[15] = byte(rrsig.Inception)
	prefix[16] = byte(rrsig.KeyTag >> 8)
	prefix[17] = byte(rrsig.KeyTag)

	buf = append(buf, prefix...)
	buf = append(buf, zone.CanonicalName(rrsig.SignerName)...)

	// Members are already in canonical order in the store.
	for _, rr := range rrset.Records() {
		wire, err := zone.CanonicalRecord(rr, rrsig.OrigTtl)
		if err != nil {
			return nil, fmt.Errorf("failed to canonicalize %s: %w", rr.Header().Name, err)
		}
		buf = append(buf, wire...)
	}

	return buf, nil
}

// SignatureLabelCount returns the RRSIG labels field for an owner name per
// RFC 4034 §3.1.3: the number of labels excluding the root, with a leading
// wildcard label not counted.
func SignatureLabelCount(owner string) uint8 {
	owner = dns.Fqdn(owner)
	count := dns.CountLabel(owner)
	if strings.HasPrefix(owner, "*.") {
		count--
	}

	return uint8(count) //nolint:gosec // label count is at most 127
}

// DNSKEYRecord returns the key's DNSKEY record stamped with the given family
// name and TTL.
func DNSKEYRecord(name zone.FamilyName, ttl uint32, key SigningKey) (*dns.DNSKEY, error) {
	dnskey, err := key.DNSKEY()
	if err != nil {
		return nil, fmt.Errorf("DNSKEY unavailable: %w", err)
	}
	dnskey.Hdr = dns.RR_Header{
		Name:   dns.Fqdn(name.Owner),
		Rrtype: dns.TypeDNSKEY,
		Class:  name.Class,
		Ttl:    ttl,
	}

	return dnskey, nil
}

// DSRecord returns the key's delegation signer record for the given family
// name at the given TTL.
func DSRecord(name zone.FamilyName, ttl uint32, key SigningKey) (*dns.DS, error) {
	ds, err := key.DS(name.Owner)
	if err != nil {
		return nil, fmt.Errorf("DS unavailable: %w", err)
	}
	ds.Hdr.Class = name.Class
	ds.Hdr.Ttl = ttl

	return ds, nil
}
