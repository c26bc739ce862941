// Package zone provides a canonically ordered resource record store and the
// family/rrset views over it that DNSSEC signing operates on.
package zone

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/miekg/dns"
)

// Store errors.
var (
	ErrDuplicateRecord = errors.New("duplicate record")
)

// FamilyName identifies a record family: an owner name and a class.
type FamilyName struct {
	Owner string
	Class uint16
}

// NewFamilyName creates a FamilyName with a fully qualified owner name.
func NewFamilyName(owner string, class uint16) FamilyName {
	return FamilyName{Owner: dns.Fqdn(owner), Class: class}
}

// Equal reports whether two family names have the same class and the same
// owner under case-insensitive name comparison.
func (n FamilyName) Equal(other FamilyName) bool {
	return n.Class == other.Class && NamesEqual(n.Owner, other.Owner)
}

// EqualRecord reports whether a record belongs to this family.
func (n FamilyName) EqualRecord(rr dns.RR) bool {
	return n.Class == rr.Header().Class && NamesEqual(n.Owner, rr.Header().Name)
}

// String returns "owner/class" for logging.
func (n FamilyName) String() string {
	return fmt.Sprintf("%s/%s", n.Owner, dns.ClassToString[n.Class])
}

// SortedRecords is a collection of resource records kept sorted in canonical
// order with canonically equal duplicates rejected.
//
// A store is populated once and then treated as read-only by the signing and
// NSEC passes; it provides no internal locking. Callers must not mutate it
// concurrently with, or between, those passes.
type SortedRecords struct {
	records []dns.RR
}

// NewSortedRecords creates an empty store.
func NewSortedRecords() *SortedRecords {
	return &SortedRecords{records: nil}
}

// FromRecords builds a store from an unsorted collection. The records are
// sorted once and canonical duplicates are dropped.
func FromRecords(rrs []dns.RR) *SortedRecords {
	sorted := make([]dns.RR, len(rrs))
	copy(sorted, rrs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareRecords(sorted[i], sorted[j]) < 0
	})

	deduped := sorted[:0]
	for _, rr := range sorted {
		if len(deduped) > 0 && CompareRecords(deduped[len(deduped)-1], rr) == 0 {
			continue
		}
		deduped = append(deduped, rr)
	}

	return &SortedRecords{records: deduped}
}

// Insert adds a record at its canonical position. If a canonically equal
// record is already present, the store is left untouched and
// ErrDuplicateRecord is returned; the caller keeps the rejected record.
func (s *SortedRecords) Insert(rr dns.RR) error {
	idx, found := sort.Find(len(s.records), func(i int) int {
		return CompareRecords(rr, s.records[i])
	})
	if found {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, rr.Header().Name)
	}

	s.records = append(s.records, nil)
	copy(s.records[idx+1:], s.records[idx:])
	s.records[idx] = rr

	return nil
}

// Len returns the number of records in the store.
func (s *SortedRecords) Len() int {
	return len(s.records)
}

// Records returns the underlying sorted records. The slice must be treated
// as read-only.
func (s *SortedRecords) Records() []dns.RR {
	return s.records
}

// Families returns an iterator over the record families in canonical order.
func (s *SortedRecords) Families() *FamilyIter {
	return &FamilyIter{records: s.records}
}

// Rrsets returns an iterator over all rrsets in canonical order.
func (s *SortedRecords) Rrsets() *RrsetIter {
	return &RrsetIter{records: s.records}
}

// FindSOA returns the first rrset of type SOA, or nil if the store has none.
// The store does not validate that a SOA is present; that is the caller's
// concern.
func (s *SortedRecords) FindSOA() *Rrset {
	iter := s.Rrsets()
	for rrset := iter.Next(); rrset != nil; rrset = iter.Next() {
		if rrset.Type() == dns.TypeSOA {
			return rrset
		}
	}

	return nil
}

// WriteTo writes the records in zone file presentation format.
func (s *SortedRecords) WriteTo(w io.Writer) error {
	for _, rr := range s.records {
		if _, err := fmt.Fprintln(w, rr.String()); err != nil {
			return err
		}
	}

	return nil
}

// Family is a zero-copy view over the maximal run of records sharing one
// owner name and class.
type Family struct {
	records []dns.RR
}

// Owner returns the family's owner name.
func (f *Family) Owner() string {
	return f.records[0].Header().Name
}

// Class returns the family's class.
func (f *Family) Class() uint16 {
	return f.records[0].Header().Class
}

// Name returns the family's FamilyName.
func (f *Family) Name() FamilyName {
	return NewFamilyName(f.Owner(), f.Class())
}

// Records returns the family's records. Read-only.
func (f *Family) Records() []dns.RR {
	return f.records
}

// Rrsets returns an iterator over the family's rrsets. Owner and class are
// constant within the family, so only the type changes between rrsets.
func (f *Family) Rrsets() *FamilyRrsetIter {
	return &FamilyRrsetIter{records: f.records}
}

// IsZoneCut reports whether this family is the parent side of a zone cut:
// its owner differs from the apex and it carries an NS record.
func (f *Family) IsZoneCut(apex FamilyName) bool {
	if f.Name().Equal(apex) {
		return false
	}
	for _, rr := range f.records {
		if rr.Header().Rrtype == dns.TypeNS {
			return true
		}
	}

	return false
}

// IsInZone reports whether the family's owner is the apex or a descendant of
// it, in the apex's class.
func (f *Family) IsInZone(apex FamilyName) bool {
	return f.Class() == apex.Class && dns.IsSubDomain(apex.Owner, f.Owner())
}

// Rrset is a zero-copy view over the maximal run of records sharing one
// owner name, class, and type.
type Rrset struct {
	records []dns.RR
}

// Owner returns the rrset's owner name.
func (r *Rrset) Owner() string {
	return r.records[0].Header().Name
}

// Class returns the rrset's class.
func (r *Rrset) Class() uint16 {
	return r.records[0].Header().Class
}

// Type returns the rrset's record type.
func (r *Rrset) Type() uint16 {
	return r.records[0].Header().Rrtype
}

// TTL returns the rrset's nominal TTL, taken from its first member. RFC 2181
// expects all members to share one TTL; this is not validated here.
func (r *Rrset) TTL() uint32 {
	return r.records[0].Header().Ttl
}

// Name returns the rrset's FamilyName.
func (r *Rrset) Name() FamilyName {
	return NewFamilyName(r.Owner(), r.Class())
}

// First returns the rrset's first member.
func (r *Rrset) First() dns.RR {
	return r.records[0]
}

// Records returns the rrset's records. Read-only.
func (r *Rrset) Records() []dns.RR {
	return r.records
}

// FamilyIter iterates over the families of a sorted record run.
type FamilyIter struct {
	records []dns.RR
}

// SkipBefore drops leading records whose family does not equal apex. It
// never advances past a family equal to apex: if the apex family is already
// first, the iterator is unchanged.
func (it *FamilyIter) SkipBefore(apex FamilyName) {
	for len(it.records) > 0 && !apex.EqualRecord(it.records[0]) {
		it.records = it.records[1:]
	}
}

// Next returns the next family, or nil when the iterator is exhausted.
func (it *FamilyIter) Next() *Family {
	if len(it.records) == 0 {
		return nil
	}

	first := it.records[0].Header()
	end := 1
	for end < len(it.records) {
		hdr := it.records[end].Header()
		if hdr.Class != first.Class || !NamesEqual(hdr.Name, first.Name) {
			break
		}
		end++
	}

	family := &Family{records: it.records[:end]}
	it.records = it.records[end:]

	return family
}

// RrsetIter iterates over the rrsets of a sorted record run.
type RrsetIter struct {
	records []dns.RR
}

// Next returns the next rrset, or nil when the iterator is exhausted.
func (it *RrsetIter) Next() *Rrset {
	if len(it.records) == 0 {
		return nil
	}

	first := it.records[0].Header()
	end := 1
	for end < len(it.records) {
		hdr := it.records[end].Header()
		if hdr.Class != first.Class || hdr.Rrtype != first.Rrtype ||
			!NamesEqual(hdr.Name, first.Name) {
			break
		}
		end++
	}

	rrset := &Rrset{records: it.records[:end]}
	it.records = it.records[end:]

	return rrset
}

// FamilyRrsetIter iterates over the rrsets inside one family, where owner
// and class are already constant.
type FamilyRrsetIter struct {
	records []dns.RR
}

// Next returns the next rrset, or nil when the iterator is exhausted.
func (it *FamilyRrsetIter) Next() *Rrset {
	if len(it.records) == 0 {
		return nil
	}

	first := it.records[0].Header().Rrtype
	end := 1
	for end < len(it.records) && it.records[end].Header().Rrtype == first {
		end++
	}

	rrset := &Rrset{records: it.records[:end]}
	it.records = it.records[end:]

	return rrset
}
