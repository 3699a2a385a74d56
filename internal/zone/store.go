package zone

import (
	"fmt"
	"strings"

	"github.com/faultdns/faultdns/internal/dnswire"
)

// Store is an immutable snapshot of the zones a scenario serves. Activating
// another scenario builds a fresh Store and swaps it in whole, so queries
// always see one scenario's zones, never a mixture.
type Store struct {
	scenarioID string
	zones      []*Zone
	byOrigin   map[string]*Zone
}

// NewStore builds a snapshot from the given zones, tagged with the scenario
// it was built from. Duplicate origins fail construction.
func NewStore(scenarioID string, zones ...*Zone) (*Store, error) {
	s := &Store{
		scenarioID: scenarioID,
		zones:      zones,
		byOrigin:   make(map[string]*Zone, len(zones)),
	}
	for _, z := range zones {
		if _, dup := s.byOrigin[z.Origin]; dup {
			return nil, fmt.Errorf("duplicate zone origin %q", z.Origin)
		}
		s.byOrigin[z.Origin] = z
	}
	return s, nil
}

// ScenarioID returns the id of the scenario this snapshot serves.
func (s *Store) ScenarioID() string {
	return s.scenarioID
}

// Zones returns the snapshot's zones in fixture order.
func (s *Store) Zones() []*Zone {
	return s.zones
}

// Zone returns the zone with exactly the given origin, or nil.
func (s *Store) Zone(origin string) *Zone {
	return s.byOrigin[dnswire.NormalizeName(origin)]
}

// ZoneFor returns the most specific zone enclosing qname, or nil when no
// hosted zone encloses it. When both a parent and a hosted child zone
// enclose the name, the child wins: its origin has more labels.
func (s *Store) ZoneFor(qname string) *Zone {
	var (
		best       *Zone
		bestLabels int
	)
	for _, z := range s.zones {
		if !z.ContainsName(qname) {
			continue
		}
		labels := strings.Count(z.Origin, ".") + 1
		if best == nil || labels > bestLabels {
			best = z
			bestLabels = labels
		}
	}
	return best
}
