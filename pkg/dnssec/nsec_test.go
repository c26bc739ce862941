package dnssec_test

import (
	"reflect"
	"testing"

	"github.com/miekg/dns"
	"github.com/piwi3910/zonesign/pkg/dnssec"
	"github.com/piwi3910/zonesign/pkg/zone"
)

func TestNSECs_RingClosure(t *testing.T) {
	t.Parallel()
	apex := zone.NewFamilyName("example.org.", dns.ClassINET)

	store := zone.FromRecords([]dns.RR{
		newRR(t, "example.org. 3600 IN SOA ns1.example.org. admin.example.org. 1 7200 3600 1209600 300"),
		newRR(t, "example.org. 3600 IN NS ns1.example.org."),
		newRR(t, "a.example.org. 300 IN A 192.0.2.1"),
		newRR(t, "b.example.org. 300 IN A 192.0.2.2"),
	})

	nsecs := dnssec.NSECs(store, apex, 300)
	if len(nsecs) != 3 {
		t.Fatalf("expected 3 NSEC records, got %d", len(nsecs))
	}

	links := map[string]string{
		"example.org.":   "a.example.org.",
		"a.example.org.": "b.example.org.",
		"b.example.org.": "example.org.",
	}
	for _, nsec := range nsecs {
		next, ok := links[nsec.Hdr.Name]
		if !ok {
			t.Errorf("unexpected NSEC owner %s", nsec.Hdr.Name)

			continue
		}
		if nsec.NextDomain != next {
			t.Errorf("NSEC at %s points to %s, expected %s",
				nsec.Hdr.Name, nsec.NextDomain, next)
		}
		if nsec.Hdr.Ttl != 300 {
			t.Errorf("NSEC at %s has TTL %d, expected 300", nsec.Hdr.Name, nsec.Hdr.Ttl)
		}
	}
}

func TestNSECs_ApexOnly(t *testing.T) {
	t.Parallel()
	apex := zone.NewFamilyName("example.org.", dns.ClassINET)

	store := zone.FromRecords([]dns.RR{
		newRR(t, "example.org. 3600 IN SOA ns1.example.org. admin.example.org. 1 7200 3600 1209600 300"),
	})

	nsecs := dnssec.NSECs(store, apex, 300)
	if len(nsecs) != 1 {
		t.Fatalf("expected a single NSEC record, got %d", len(nsecs))
	}
	if nsecs[0].Hdr.Name != "example.org." || nsecs[0].NextDomain != "example.org." {
		t.Errorf("apex-only zone must self-loop, got %s -> %s",
			nsecs[0].Hdr.Name, nsecs[0].NextDomain)
	}
}

func TestNSECs_TypeBitmap(t *testing.T) {
	t.Parallel()
	apex := zone.NewFamilyName("example.org.", dns.ClassINET)

	store := zone.FromRecords([]dns.RR{
		newRR(t, "example.org. 3600 IN SOA ns1.example.org. admin.example.org. 1 7200 3600 1209600 300"),
		newRR(t, "a.example.org. 300 IN A 192.0.2.1"),
		newRR(t, "a.example.org. 300 IN AAAA 2001:db8::1"),
	})

	nsecs := dnssec.NSECs(store, apex, 300)
	for _, nsec := range nsecs {
		if nsec.Hdr.Name != "a.example.org." {
			continue
		}
		expected := []uint16{dns.TypeA, dns.TypeAAAA, dns.TypeRRSIG}
		if !reflect.DeepEqual(nsec.TypeBitMap, expected) {
			t.Errorf("bitmap = %v, expected %v", nsec.TypeBitMap, expected)
		}

		return
	}
	t.Fatal("no NSEC record for a.example.org.")
}

func TestNSECs_BelowCutSkipped(t *testing.T) {
	t.Parallel()
	apex := zone.NewFamilyName("example.org.", dns.ClassINET)

	store := zone.FromRecords([]dns.RR{
		newRR(t, "example.org. 3600 IN SOA ns1.example.org. admin.example.org. 1 7200 3600 1209600 300"),
		newRR(t, "sub.example.org. 3600 IN NS ns1.sub.example.org."),
		newRR(t, "www.sub.example.org. 300 IN A 192.0.2.1"),
	})

	nsecs := dnssec.NSECs(store, apex, 300)
	if len(nsecs) != 2 {
		t.Fatalf("expected 2 NSEC records, got %d", len(nsecs))
	}

	for _, nsec := range nsecs {
		if nsec.Hdr.Name == "www.sub.example.org." {
			t.Error("family below a zone cut must not get an NSEC record")
		}
	}

	// The cut-point family itself is part of the ring and closes back to the
	// apex.
	for _, nsec := range nsecs {
		if nsec.Hdr.Name == "sub.example.org." && nsec.NextDomain != "example.org." {
			t.Errorf("ring not closed: sub.example.org. -> %s", nsec.NextDomain)
		}
	}
}
