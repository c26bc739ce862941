package dnssec_test

import (
	"errors"
	"testing"

	"github.com/miekg/dns"
	"github.com/piwi3910/zonesign/pkg/dnssec"
	"github.com/piwi3910/zonesign/pkg/zone"
)

func TestSignZone(t *testing.T) {
	t.Parallel()
	key, err := dnssec.GenerateKey("example.org.", 256, dns.ECDSAP256SHA256, 0, 3600)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	rrs := []dns.RR{
		newRR(t, "example.org. 3600 IN SOA ns1.example.org. admin.example.org. 1 7200 3600 1209600 300"),
		newRR(t, "example.org. 3600 IN NS ns1.example.org."),
		newRR(t, "www.example.org. 300 IN A 192.0.2.1"),
	}

	cfg := dnssec.SignConfig{
		Expiration: zone.Serial(1767225600),
		Inception:  zone.Serial(1764633600),
		DNSKEYTTL:  3600,
		NSECTTL:    300,
	}

	signed, err := dnssec.SignZone(rrs, key, cfg)
	if err != nil {
		t.Fatalf("SignZone failed: %v", err)
	}

	counts := make(map[uint16]int)
	signedTypes := make(map[uint16]bool)
	for _, rr := range signed.Records() {
		counts[rr.Header().Rrtype]++
		if sig, ok := rr.(*dns.RRSIG); ok {
			signedTypes[sig.TypeCovered] = true
		}
	}

	if counts[dns.TypeDNSKEY] != 1 {
		t.Errorf("expected 1 DNSKEY, got %d", counts[dns.TypeDNSKEY])
	}
	// One NSEC per family: apex and www.
	if counts[dns.TypeNSEC] != 2 {
		t.Errorf("expected 2 NSEC records, got %d", counts[dns.TypeNSEC])
	}
	// SOA, NS, DNSKEY, NSEC at the apex, A and NSEC at www.
	if counts[dns.TypeRRSIG] != 6 {
		t.Errorf("expected 6 RRSIG records, got %d", counts[dns.TypeRRSIG])
	}
	if !signedTypes[dns.TypeNSEC] {
		t.Error("NSEC rrsets must themselves be signed")
	}
	if !signedTypes[dns.TypeDNSKEY] {
		t.Error("the DNSKEY rrset must be signed")
	}

	// The input slice is not modified.
	if len(rrs) != 3 {
		t.Errorf("input slice grew to %d records", len(rrs))
	}
}

func TestSignZone_Verifies(t *testing.T) {
	t.Parallel()
	key, err := dnssec.GenerateKey("example.org.", 256, dns.ED25519, 0, 3600)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	dnskey, err := key.DNSKEY()
	if err != nil {
		t.Fatalf("DNSKEY failed: %v", err)
	}

	cfg := dnssec.SignConfig{
		Expiration: zone.Serial(1767225600),
		Inception:  zone.Serial(1764633600),
		DNSKEYTTL:  3600,
		NSECTTL:    300,
	}

	signed, err := dnssec.SignZone([]dns.RR{
		newRR(t, "example.org. 3600 IN SOA ns1.example.org. admin.example.org. 1 7200 3600 1209600 300"),
		newRR(t, "www.example.org. 300 IN A 192.0.2.1"),
	}, key, cfg)
	if err != nil {
		t.Fatalf("SignZone failed: %v", err)
	}

	// Collect the plain rrsets and check every RRSIG against its rrset.
	rrsets := make(map[string][]dns.RR)
	var sigs []*dns.RRSIG
	for _, rr := range signed.Records() {
		if sig, ok := rr.(*dns.RRSIG); ok {
			sigs = append(sigs, sig)

			continue
		}
		k := rr.Header().Name + "/" + dns.TypeToString[rr.Header().Rrtype]
		rrsets[k] = append(rrsets[k], rr)
	}

	if len(sigs) == 0 {
		t.Fatal("no signatures produced")
	}
	for _, sig := range sigs {
		k := sig.Hdr.Name + "/" + dns.TypeToString[sig.TypeCovered]
		rrset, ok := rrsets[k]
		if !ok {
			t.Errorf("RRSIG covers missing rrset %s", k)

			continue
		}
		if err := sig.Verify(dnskey, rrset); err != nil {
			t.Errorf("signature over %s does not verify: %v", k, err)
		}
	}
}

func TestSignZone_NoSOA(t *testing.T) {
	t.Parallel()
	key, err := dnssec.GenerateKey("example.org.", 256, dns.ED25519, 0, 3600)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	_, err = dnssec.SignZone([]dns.RR{
		newRR(t, "www.example.org. 300 IN A 192.0.2.1"),
	}, key, dnssec.SignConfig{})
	if !errors.Is(err, dnssec.ErrNoSOA) {
		t.Errorf("expected ErrNoSOA, got %v", err)
	}
}
