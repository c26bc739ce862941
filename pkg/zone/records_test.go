package zone_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/piwi3910/zonesign/pkg/zone"
)

func TestSortedRecords_Insert(t *testing.T) {
	t.Parallel()
	s := zone.NewSortedRecords()

	if err := s.Insert(newA(t, "www.example.com.", 300, "192.0.2.1")); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", s.Len())
	}
}

func TestSortedRecords_InsertDuplicate(t *testing.T) {
	t.Parallel()
	s := zone.NewSortedRecords()

	_ = s.Insert(newA(t, "www.example.com.", 300, "192.0.2.1"))
	err := s.Insert(newA(t, "WWW.example.com.", 600, "192.0.2.1"))

	if !errors.Is(err, zone.ErrDuplicateRecord) {
		t.Errorf("expected ErrDuplicateRecord, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("store must be unchanged after rejected insert, got %d records", s.Len())
	}
}

func TestSortedRecords_SortedAfterInsertions(t *testing.T) {
	t.Parallel()
	s := zone.NewSortedRecords()

	// Insert out of canonical order.
	rrs := []dns.RR{
		newRR(t, "z.example.com. 300 IN A 192.0.2.3"),
		newRR(t, "example.com. 3600 IN SOA ns1.example.com. admin.example.com. 1 7200 3600 1209600 300"),
		newRR(t, "a.example.com. 300 IN A 192.0.2.1"),
		newRR(t, "a.example.com. 300 IN AAAA 2001:db8::1"),
		newRR(t, "example.com. 3600 IN NS ns1.example.com."),
	}
	for _, rr := range rrs {
		if err := s.Insert(rr); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	records := s.Records()
	for i := 0; i < len(records)-1; i++ {
		if zone.CompareRecords(records[i], records[i+1]) >= 0 {
			t.Errorf("records out of order at %d: %s >= %s",
				i, records[i].Header().Name, records[i+1].Header().Name)
		}
	}
}

func TestFromRecords_DropsDuplicates(t *testing.T) {
	t.Parallel()
	rrs := []dns.RR{
		newA(t, "www.example.com.", 300, "192.0.2.1"),
		newA(t, "www.example.com.", 300, "192.0.2.1"),
		newA(t, "www.example.com.", 300, "192.0.2.2"),
	}

	s := zone.FromRecords(rrs)
	if s.Len() != 2 {
		t.Errorf("expected 2 records after dedup, got %d", s.Len())
	}
}

func TestFamilies_Grouping(t *testing.T) {
	t.Parallel()
	s := zone.FromRecords([]dns.RR{
		newRR(t, "example.com. 3600 IN SOA ns1.example.com. admin.example.com. 1 7200 3600 1209600 300"),
		newRR(t, "example.com. 3600 IN NS ns1.example.com."),
		newRR(t, "a.example.com. 300 IN A 192.0.2.1"),
		newRR(t, "a.example.com. 300 IN AAAA 2001:db8::1"),
	})

	var owners []string
	var sizes []int
	iter := s.Families()
	for family := iter.Next(); family != nil; family = iter.Next() {
		owners = append(owners, family.Owner())
		sizes = append(sizes, len(family.Records()))
	}

	if len(owners) != 2 {
		t.Fatalf("expected 2 families, got %d (%v)", len(owners), owners)
	}
	if owners[0] != "example.com." || sizes[0] != 2 {
		t.Errorf("expected apex family with 2 records first, got %s with %d", owners[0], sizes[0])
	}
	if owners[1] != "a.example.com." || sizes[1] != 2 {
		t.Errorf("expected a.example.com. family with 2 records, got %s with %d", owners[1], sizes[1])
	}
}

func TestRrsets_Grouping(t *testing.T) {
	t.Parallel()
	s := zone.FromRecords([]dns.RR{
		newRR(t, "a.example.com. 300 IN A 192.0.2.1"),
		newRR(t, "a.example.com. 300 IN A 192.0.2.2"),
		newRR(t, "a.example.com. 300 IN AAAA 2001:db8::1"),
	})

	var types []uint16
	var sizes []int
	iter := s.Rrsets()
	for rrset := iter.Next(); rrset != nil; rrset = iter.Next() {
		types = append(types, rrset.Type())
		sizes = append(sizes, len(rrset.Records()))
	}

	if len(types) != 2 {
		t.Fatalf("expected 2 rrsets, got %d", len(types))
	}
	if types[0] != dns.TypeA || sizes[0] != 2 {
		t.Errorf("expected A rrset with 2 members, got type %d with %d", types[0], sizes[0])
	}
	if types[1] != dns.TypeAAAA || sizes[1] != 1 {
		t.Errorf("expected AAAA rrset with 1 member, got type %d with %d", types[1], sizes[1])
	}
}

func TestFamily_Rrsets(t *testing.T) {
	t.Parallel()
	s := zone.FromRecords([]dns.RR{
		newRR(t, "a.example.com. 300 IN A 192.0.2.1"),
		newRR(t, "a.example.com. 300 IN AAAA 2001:db8::1"),
		newRR(t, "a.example.com. 300 IN MX 10 mail.example.com."),
	})

	family := s.Families().Next()
	if family == nil {
		t.Fatal("expected a family")
	}

	count := 0
	iter := family.Rrsets()
	for rrset := iter.Next(); rrset != nil; rrset = iter.Next() {
		if rrset.Owner() != "a.example.com." {
			t.Errorf("unexpected owner %s", rrset.Owner())
		}
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 rrsets in family, got %d", count)
	}
}

func TestFindSOA(t *testing.T) {
	t.Parallel()
	s := zone.FromRecords([]dns.RR{
		newRR(t, "a.example.com. 300 IN A 192.0.2.1"),
		newRR(t, "example.com. 3600 IN SOA ns1.example.com. admin.example.com. 1 7200 3600 1209600 300"),
	})

	soa := s.FindSOA()
	if soa == nil {
		t.Fatal("expected SOA rrset")
	}
	if soa.Owner() != "example.com." {
		t.Errorf("expected SOA at example.com., got %s", soa.Owner())
	}

	empty := zone.NewSortedRecords()
	if empty.FindSOA() != nil {
		t.Error("expected nil SOA for empty store")
	}
}

func TestFamilyIter_SkipBefore(t *testing.T) {
	t.Parallel()
	s := zone.FromRecords([]dns.RR{
		newRR(t, "example.com. 3600 IN SOA ns1.example.com. admin.example.com. 1 7200 3600 1209600 300"),
		newRR(t, "www.example.com. 300 IN A 192.0.2.1"),
		// Sorts before example.com. in canonical order.
		newRR(t, "example.aa. 300 IN A 192.0.2.9"),
	})

	apex := zone.NewFamilyName("example.com.", dns.ClassINET)

	iter := s.Families()
	iter.SkipBefore(apex)

	family := iter.Next()
	if family == nil {
		t.Fatal("expected a family after SkipBefore")
	}
	if family.Owner() != "example.com." {
		t.Errorf("expected apex family first, got %s", family.Owner())
	}
}

func TestFamilyIter_SkipBeforeApexFirst(t *testing.T) {
	t.Parallel()
	s := zone.FromRecords([]dns.RR{
		newRR(t, "example.com. 3600 IN SOA ns1.example.com. admin.example.com. 1 7200 3600 1209600 300"),
		newRR(t, "www.example.com. 300 IN A 192.0.2.1"),
	})

	apex := zone.NewFamilyName("example.com.", dns.ClassINET)

	iter := s.Families()
	iter.SkipBefore(apex)

	count := 0
	for family := iter.Next(); family != nil; family = iter.Next() {
		count++
	}
	if count != 2 {
		t.Errorf("SkipBefore must not advance past the apex; expected 2 families, got %d", count)
	}
}

func TestFamily_IsZoneCut(t *testing.T) {
	t.Parallel()
	apex := zone.NewFamilyName("example.com.", dns.ClassINET)

	s := zone.FromRecords([]dns.RR{
		newRR(t, "example.com. 3600 IN NS ns1.example.com."),
		newRR(t, "sub.example.com. 3600 IN NS ns1.sub.example.com."),
		newRR(t, "www.example.com. 300 IN A 192.0.2.1"),
	})

	iter := s.Families()
	for family := iter.Next(); family != nil; family = iter.Next() {
		isCut := family.IsZoneCut(apex)
		switch family.Owner() {
		case "example.com.":
			if isCut {
				t.Error("apex NS must not be a zone cut")
			}
		case "sub.example.com.":
			if !isCut {
				t.Error("sub.example.com. with NS must be a zone cut")
			}
		case "www.example.com.":
			if isCut {
				t.Error("www.example.com. without NS must not be a zone cut")
			}
		}
	}
}

func TestFamily_IsInZone(t *testing.T) {
	t.Parallel()
	apex := zone.NewFamilyName("example.com.", dns.ClassINET)

	s := zone.FromRecords([]dns.RR{
		newRR(t, "example.com. 300 IN A 192.0.2.1"),
		newRR(t, "deep.sub.example.com. 300 IN A 192.0.2.2"),
		newRR(t, "example.org. 300 IN A 192.0.2.3"),
	})

	iter := s.Families()
	for family := iter.Next(); family != nil; family = iter.Next() {
		inZone := family.IsInZone(apex)
		expected := strings.HasSuffix(family.Owner(), "example.com.")
		if inZone != expected {
			t.Errorf("IsInZone(%s) = %v, expected %v", family.Owner(), inZone, expected)
		}
	}
}

func TestSortedRecords_WriteTo(t *testing.T) {
	t.Parallel()
	s := zone.FromRecords([]dns.RR{
		newRR(t, "www.example.com. 300 IN A 192.0.2.1"),
	})

	var out strings.Builder
	if err := s.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if !strings.Contains(out.String(), "www.example.com.") {
		t.Errorf("expected owner name in output, got %q", out.String())
	}
}
