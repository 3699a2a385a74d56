// Package scenario defines the fixture catalog: named, reproducible zone
// setups each planting one defect from a closed fault taxonomy. Fixtures are
// YAML documents (zone, record list, expected fault, remediation text)
// embedded into the binary; loading one materializes an immutable zone.Store
// for the run.
package scenario

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/faultdns/faultdns/internal/dnswire"
	"github.com/faultdns/faultdns/internal/zone"
)

// defaultTTL applies to fixture records that do not set one.
const defaultTTL uint32 = 300

// Scenario is one materialized fixture: the zones to serve plus what an
// evaluation is expected to find in them.
type Scenario struct {
	// ID is the catalog name, identical to the fixture file name.
	ID string
	// Description says what the fixture plants, for humans.
	Description string
	// Focus is the name an evaluation should investigate.
	Focus string
	// Fault is the planted defect from the closed taxonomy.
	Fault FaultKind
	// Remediation is the fix a correct diagnosis would propose.
	Remediation string
	// Zones holds the fixture's zones in file order.
	Zones []*zone.Zone

	store *zone.Store
}

// Store returns the scenario's zones as an immutable snapshot.
func (s *Scenario) Store() *zone.Store {
	return s.store
}

// scenarioSpec is the YAML layout of one fixture file. The layout is
// persisted state: recorded scenarios must stay loadable across versions.
type scenarioSpec struct {
	ID          string     `yaml:"id"`
	Description string     `yaml:"description"`
	Focus       string     `yaml:"focus"`
	Fault       string     `yaml:"fault"`
	Remediation string     `yaml:"remediation"`
	Zones       []zoneSpec `yaml:"zones"`
}

type zoneSpec struct {
	Origin  string       `yaml:"origin"`
	Records []recordSpec `yaml:"records"`
}

type recordSpec struct {
	// Name is the owner, relative to the zone origin unless absolute.
	// "@" means the origin itself.
	Name string `yaml:"name"`
	// Type is the record type mnemonic (A, AAAA, CNAME, NS, PTR, MX,
	// TXT, SOA).
	Type string `yaml:"type"`
	// TTL in seconds; records without one get the catalog default of 300.
	TTL *uint32 `yaml:"ttl"`
	// Data is the type-specific RDATA in presentation form.
	Data string `yaml:"data"`
}

// build validates the fixture document and materializes it into a Scenario.
func (spec *scenarioSpec) build() (*Scenario, error) {
	if spec.ID == "" {
		return nil, errors.New("missing id")
	}
	kind, ok := ParseFaultKind(spec.Fault)
	if !ok {
		return nil, fmt.Errorf("unknown fault kind %q", spec.Fault)
	}
	if spec.Description == "" {
		return nil, errors.New("missing description")
	}
	if spec.Remediation == "" {
		return nil, errors.New("missing remediation")
	}
	if spec.Focus == "" {
		return nil, errors.New("missing focus name")
	}
	if len(spec.Zones) == 0 {
		return nil, errors.New("no zones")
	}

	focus := dnswire.NormalizeName(spec.Focus)
	zones := make([]*zone.Zone, 0, len(spec.Zones))
	focusCovered := false
	for zi, zs := range spec.Zones {
		z, err := zs.build()
		if err != nil {
			return nil, fmt.Errorf("zones[%d]: %w", zi, err)
		}
		if z.ContainsName(focus) {
			focusCovered = true
		}
		zones = append(zones, z)
	}
	if !focusCovered {
		return nil, fmt.Errorf("focus name %q is not covered by any zone", spec.Focus)
	}

	store, err := zone.NewStore(spec.ID, zones...)
	if err != nil {
		return nil, err
	}
	return &Scenario{
		ID:          spec.ID,
		Description: spec.Description,
		Focus:       focus,
		Fault:       kind,
		Remediation: spec.Remediation,
		Zones:       zones,
		store:       store,
	}, nil
}

func (zs *zoneSpec) build() (*zone.Zone, error) {
	if zs.Origin == "" {
		return nil, errors.New("missing zone origin")
	}
	origin := dnswire.NormalizeName(zs.Origin)
	records := make([]dnswire.Record, 0, len(zs.Records))
	for ri, rs := range zs.Records {
		rr, err := buildRecord(rs, origin)
		if err != nil {
			return nil, fmt.Errorf("zone %q records[%d]: %w", origin, ri, err)
		}
		records = append(records, rr)
	}
	return zone.New(origin, records)
}

// buildRecord turns one fixture record into its wire-typed form, validating
// the RDATA presentation syntax per type.
func buildRecord(rs recordSpec, origin string) (dnswire.Record, error) {
	rt, ok := dnswire.TypeFromName(strings.ToUpper(strings.TrimSpace(rs.Type)))
	if !ok {
		return nil, fmt.Errorf("unsupported record type %q", rs.Type)
	}

	ttl := defaultTTL
	if rs.TTL != nil {
		ttl = *rs.TTL
	}
	name, err := ownerName(rs.Name, origin)
	if err != nil {
		return nil, err
	}
	h := dnswire.NewRRHeader(name, dnswire.ClassIN, ttl)
	data := strings.TrimSpace(rs.Data)

	switch rt {
	case dnswire.TypeA:
		addr, err := netip.ParseAddr(data)
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("invalid IPv4 address %q", data)
		}
		return dnswire.NewIPRecord(h, addr.AsSlice()), nil
	case dnswire.TypeAAAA:
		addr, err := netip.ParseAddr(data)
		if err != nil || addr.Is4() {
			return nil, fmt.Errorf("invalid IPv6 address %q", data)
		}
		return dnswire.NewIPRecord(h, addr.AsSlice()), nil
	case dnswire.TypeCNAME, dnswire.TypeNS, dnswire.TypePTR:
		target, err := ownerName(data, origin)
		if err != nil {
			return nil, err
		}
		return dnswire.NewNameRecord(h, rt, target), nil
	case dnswire.TypeMX:
		parts := strings.Fields(data)
		if len(parts) != 2 {
			return nil, errors.New("MX data must be: <preference> <exchange>")
		}
		pref, err := strconv.Atoi(parts[0])
		if err != nil || pref < 0 || pref > 65535 {
			return nil, errors.New("MX preference must be 0..65535")
		}
		exchange, err := ownerName(parts[1], origin)
		if err != nil {
			return nil, err
		}
		return dnswire.NewMXRecord(h, uint16(pref), exchange), nil
	case dnswire.TypeTXT:
		strs, err := splitTXT(rs.Data)
		if err != nil {
			return nil, err
		}
		for _, s := range strs {
			if len(s) > 255 {
				return nil, fmt.Errorf("TXT character-string too long (%d > 255)", len(s))
			}
		}
		return dnswire.NewTXTRecord(h, strs...), nil
	case dnswire.TypeSOA:
		return buildSOA(h, data, origin)
	default:
		return nil, fmt.Errorf("unsupported record type %q", rs.Type)
	}
}

// buildSOA parses "MNAME RNAME SERIAL REFRESH RETRY EXPIRE MINIMUM".
func buildSOA(h dnswire.RRHeader, data, origin string) (dnswire.Record, error) {
	parts := strings.Fields(data)
	if len(parts) != 7 {
		return nil, errors.New("SOA data must be: MNAME RNAME SERIAL REFRESH RETRY EXPIRE MINIMUM")
	}
	mname, err := ownerName(parts[0], origin)
	if err != nil {
		return nil, err
	}
	rname, err := ownerName(parts[1], origin)
	if err != nil {
		return nil, err
	}
	timers := make([]uint32, 5)
	labels := []string{"serial", "refresh", "retry", "expire", "minimum"}
	for i, p := range parts[2:] {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid SOA %s %q", labels[i], p)
		}
		timers[i] = uint32(v)
	}
	return dnswire.NewSOARecord(h, mname, rname, timers[0], timers[1], timers[2], timers[3], timers[4]), nil
}

// ownerName resolves a fixture name against the zone origin: "@" is the
// origin, a trailing dot marks an absolute name, anything else is relative.
func ownerName(name, origin string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", errors.New("empty name")
	case name == "@":
		return origin, nil
	case strings.HasSuffix(name, "."):
		return dnswire.NormalizeName(name), nil
	default:
		n := dnswire.NormalizeName(name)
		if n == origin || strings.HasSuffix(n, "."+origin) {
			return n, nil
		}
		return n + "." + origin, nil
	}
}

// splitTXT splits TXT data into its character-strings. Quoted form gives
// explicit segments; bare text becomes a single segment.
func splitTXT(data string) ([]string, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return nil, errors.New("empty TXT data")
	}
	if !strings.HasPrefix(trimmed, `"`) {
		return []string{trimmed}, nil
	}

	var segs []string
	rest := trimmed
	for rest != "" {
		if !strings.HasPrefix(rest, `"`) {
			return nil, fmt.Errorf("malformed TXT data %q", data)
		}
		end := strings.Index(rest[1:], `"`)
		if end < 0 {
			return nil, fmt.Errorf("unterminated TXT string in %q", data)
		}
		segs = append(segs, rest[1:1+end])
		rest = strings.TrimLeft(rest[end+2:], " \t")
	}
	return segs, nil
}
