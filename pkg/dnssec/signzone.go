package dnssec

import (
	"errors"
	"fmt"

	"github.com/miekg/dns"

	"github.com/piwi3910/zonesign/pkg/zone"
)

// ErrNoSOA indicates the zone data carries no SOA record at all.
var ErrNoSOA = errors.New("zone has no SOA record")

// SignConfig bundles the parameters of a whole-zone signing run.
type SignConfig struct {
	// Expiration and Inception bound the signature validity window.
	Expiration zone.Serial
	Inception  zone.Serial

	// DNSKEYTTL is stamped on the published DNSKEY record.
	DNSKEYTTL uint32

	// NSECTTL is stamped on generated NSEC records.
	NSECTTL uint32
}

// SignZone turns unsigned zone records into a complete signed zone: the
// published DNSKEY is added, the NSEC chain is built and inserted so the NSEC
// records themselves get signed, and RRSIGs are generated over everything
// eligible. The apex is taken from the zone's SOA record.
//
// The returned store is newly built from the input records; the input slice
// is not modified. On any signing failure no store is returned.
func SignZone(rrs []dns.RR, key SigningKey, cfg SignConfig) (*zone.SortedRecords, error) {
	store := zone.FromRecords(rrs)

	soa := store.FindSOA()
	if soa == nil {
		return nil, ErrNoSOA
	}
	apex := soa.Name()

	dnskey, err := DNSKEYRecord(apex, cfg.DNSKEYTTL, key)
	if err != nil {
		return nil, err
	}
	if err := store.Insert(dnskey); err != nil {
		return nil, fmt.Errorf("failed to add DNSKEY: %w", err)
	}

	for _, nsec := range NSECs(store, apex, cfg.NSECTTL) {
		if err := store.Insert(nsec); err != nil {
			return nil, fmt.Errorf("failed to add NSEC: %w", err)
		}
	}

	rrsigs, err := Sign(store, apex, cfg.Expiration, cfg.Inception, key)
	if err != nil {
		return nil, err
	}
	for _, rrsig := range rrsigs {
		if err := store.Insert(rrsig); err != nil {
			return nil, fmt.Errorf("failed to add RRSIG: %w", err)
		}
	}

	return store, nil
}
