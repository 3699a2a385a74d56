package zone

import (
	"fmt"
	"sort"
	"strings"

	"github.com/faultdns/faultdns/internal/dnswire"
)

// Zone holds the records of one authoritative zone. Records are stored in
// wire-ready typed form and indexed by owner name; a zone is never mutated
// after construction, scenario changes swap in a whole new Store.
type Zone struct {
	Origin  string // normalized: lowercase, no trailing dot
	Records []dnswire.Record

	nameIndex map[string][]int // normalized name -> indices into Records
}

// New builds a zone from its origin and records. Every record must have an
// owner name at or below the origin; anything else is a fixture authoring
// mistake and fails construction.
func New(origin string, records []dnswire.Record) (*Zone, error) {
	o := dnswire.NormalizeName(origin)
	if o == "" {
		return nil, fmt.Errorf("zone origin must be non-empty")
	}

	z := &Zone{Origin: o, Records: records}
	z.nameIndex = make(map[string][]int, len(records))
	for i, rr := range records {
		name := dnswire.NormalizeName(rr.Header().Name)
		if !z.ContainsName(name) {
			return nil, fmt.Errorf("record %q is outside zone %q", rr.Header().Name, o)
		}
		z.nameIndex[name] = append(z.nameIndex[name], i)
	}
	return z, nil
}

// ContainsName reports whether qname falls at or below the zone origin.
func (z *Zone) ContainsName(qname string) bool {
	q := dnswire.NormalizeName(qname)
	return q == z.Origin || strings.HasSuffix(q, "."+z.Origin)
}

// NameExists checks if any records exist for the given name and class,
// regardless of type. This is what separates NXDOMAIN (name absent) from
// NODATA (name present, type absent).
func (z *Zone) NameExists(qname string, qclass uint16) bool {
	q := dnswire.NormalizeName(qname)
	for _, idx := range z.nameIndex[q] {
		if z.Records[idx].Header().Class == qclass {
			return true
		}
	}
	return false
}

// Lookup retrieves records matching the given name, type, and class.
// A qtype of ANY returns every record at the name in the class, in fixture
// order and unmodified; a planted CNAME conflict comes back as-is.
func (z *Zone) Lookup(qname string, qtype uint16, qclass uint16) []dnswire.Record {
	q := dnswire.NormalizeName(qname)
	indices := z.nameIndex[q]
	if len(indices) == 0 {
		return nil
	}

	out := make([]dnswire.Record, 0, len(indices))
	for _, idx := range indices {
		rr := z.Records[idx]
		if rr.Header().Class != qclass {
			continue
		}
		if qtype == dnswire.QTypeANY || uint16(rr.Type()) == qtype {
			out = append(out, rr)
		}
	}
	return out
}

// SOA returns the zone's SOA record, or nil if the fixture planted none.
func (z *Zone) SOA(qclass uint16) *dnswire.SOARecord {
	for _, idx := range z.nameIndex[z.Origin] {
		rr := z.Records[idx]
		if rr.Header().Class != qclass {
			continue
		}
		if soa, ok := rr.(*dnswire.SOARecord); ok {
			return soa
		}
	}
	return nil
}

// Serial returns the zone's SOA serial, or 0 when there is no SOA.
func (z *Zone) Serial() uint32 {
	if soa := z.SOA(uint16(dnswire.ClassIN)); soa != nil {
		return soa.Serial
	}
	return 0
}

// CNAMEConflicts returns the names that carry a CNAME alongside other data,
// sorted. RFC 1034 forbids this; the fixture plants it on purpose and the
// zone must preserve it.
func (z *Zone) CNAMEConflicts() []string {
	out := make([]string, 0)
	for name, indices := range z.nameIndex {
		var hasCNAME, hasOther bool
		for _, idx := range indices {
			if z.Records[idx].Type() == dnswire.TypeCNAME {
				hasCNAME = true
			} else {
				hasOther = true
			}
		}
		if hasCNAME && hasOther {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
