// Package delegation derives who is authoritative for a name from the zones
// a scenario hosts. NS records a parent zone holds below its own apex are the
// parent's advertised view of a subtree; a hosted child zone's apex records
// are the child's own view. The two views are kept separate on purpose:
// fixtures plant disagreements between them, and nothing here reconciles one
// against the other.
package delegation

import (
	"sort"
	"strings"

	"github.com/faultdns/faultdns/internal/dnswire"
	"github.com/faultdns/faultdns/internal/zone"
)

// Cut is one delegation point: the NS records a parent zone holds at a name
// strictly below its own apex.
type Cut struct {
	Name       string           // delegated apex, normalized
	ParentZone string           // origin of the advertising zone
	Records    []dnswire.Record // the parent's NS records at Name, fixture order
}

// Targets returns the advertised nameserver names, normalized, fixture order.
func (c *Cut) Targets() []string {
	out := make([]string, 0, len(c.Records))
	for _, rr := range c.Records {
		if ns, ok := rr.(*dnswire.NameRecord); ok {
			out = append(out, dnswire.NormalizeName(ns.Target))
		}
	}
	return out
}

// MismatchKind classifies a delegation defect surfaced by Mismatches.
type MismatchKind string

const (
	// MismatchNSSetsDiffer: the parent's advertised NS names and the hosted
	// child's own apex NS names disagree.
	MismatchNSSetsDiffer MismatchKind = "ns-sets-differ"
	// MismatchUnresolvableNS: the child zone is not hosted and no advertised
	// target resolves to an address in any hosted zone.
	MismatchUnresolvableNS MismatchKind = "unresolvable-ns"
	// MismatchOrphanChild: a child zone is hosted but its hosted parent
	// never delegates to it, so the parent answers NXDOMAIN for its names.
	MismatchOrphanChild MismatchKind = "orphan-child"
)

// Mismatch describes one delegation defect in the active scenario.
type Mismatch struct {
	Kind     MismatchKind
	Cut      string   // delegated apex (the child origin for orphans)
	ParentNS []string // sorted; nil for orphans
	ChildNS  []string // sorted; nil when the child zone is not hosted
}

// Graph holds the delegation points of one zone snapshot.
type Graph struct {
	store  *zone.Store
	cuts   []*Cut
	byName map[string]*Cut
}

// Build collects every delegation point advertised by the snapshot's zones.
// Apex NS records are never cuts; they are the zone's own view of itself.
func Build(store *zone.Store) *Graph {
	g := &Graph{store: store, byName: make(map[string]*Cut)}
	for _, z := range store.Zones() {
		for _, rr := range z.Records {
			if rr.Type() != dnswire.TypeNS {
				continue
			}
			name := dnswire.NormalizeName(rr.Header().Name)
			if name == z.Origin {
				continue
			}
			c := g.byName[name]
			if c == nil {
				c = &Cut{Name: name, ParentZone: z.Origin}
				g.byName[name] = c
				g.cuts = append(g.cuts, c)
			}
			c.Records = append(c.Records, rr)
		}
	}
	sort.Slice(g.cuts, func(i, j int) bool { return g.cuts[i].Name < g.cuts[j].Name })
	return g
}

// Cuts returns every delegation point, sorted by name.
func (g *Graph) Cuts() []*Cut {
	return g.cuts
}

// CoveringDelegation returns the delegation point governing qname, or nil
// when the hosting zone holds plain authority over it.
//
// Authority descends from the topmost hosted ancestor: only cuts advertised
// by the shallowest hosted zone enclosing qname count, and the deepest such
// cut wins. A hosted child zone that its parent never delegates to is
// invisible here; the parent stays authoritative and answers NXDOMAIN for
// the child's names.
func (g *Graph) CoveringDelegation(qname string) *Cut {
	q := dnswire.NormalizeName(qname)
	top := g.topZone(q)
	if top == nil {
		return nil
	}

	var (
		best       *Cut
		bestLabels int
	)
	for _, c := range g.cuts {
		if c.ParentZone != top.Origin {
			continue
		}
		if q != c.Name && !strings.HasSuffix(q, "."+c.Name) {
			continue
		}
		labels := strings.Count(c.Name, ".") + 1
		if best == nil || labels > bestLabels {
			best, bestLabels = c, labels
		}
	}
	return best
}

// AuthorityZone returns the zone whose view governs qname: the shallowest
// hosted zone enclosing it, or nil when no zone does. Deeper hosted zones
// only ever answer through a delegation this zone advertises.
func (g *Graph) AuthorityZone(qname string) *zone.Zone {
	return g.topZone(dnswire.NormalizeName(qname))
}

// topZone returns the shallowest hosted zone enclosing q.
func (g *Graph) topZone(q string) *zone.Zone {
	var (
		best       *zone.Zone
		bestLabels int
	)
	for _, z := range g.store.Zones() {
		if !z.ContainsName(q) {
			continue
		}
		labels := strings.Count(z.Origin, ".") + 1
		if best == nil || labels < bestLabels {
			best, bestLabels = z, labels
		}
	}
	return best
}

// ParentView returns the NS names a parent advertises at the given
// delegation point, or nil when no zone delegates there.
func (g *Graph) ParentView(name string) []string {
	c := g.byName[dnswire.NormalizeName(name)]
	if c == nil {
		return nil
	}
	return c.Targets()
}

// ChildView returns the NS names the hosted child zone claims at its own
// apex, or nil when the child zone is not hosted.
func (g *Graph) ChildView(name string) []string {
	z := g.store.Zone(name)
	if z == nil {
		return nil
	}
	rrs := z.Lookup(z.Origin, uint16(dnswire.TypeNS), uint16(dnswire.ClassIN))
	out := make([]string, 0, len(rrs))
	for _, rr := range rrs {
		if ns, ok := rr.(*dnswire.NameRecord); ok {
			out = append(out, dnswire.NormalizeName(ns.Target))
		}
	}
	return out
}

// Mismatches enumerates the delegation defects the scenario plants: NS-set
// disagreements, delegations whose targets resolve nowhere, and hosted child
// zones their parents never delegate to. Output is sorted by cut name.
func (g *Graph) Mismatches() []Mismatch {
	out := make([]Mismatch, 0)

	for _, c := range g.cuts {
		parentNS := sortedSet(c.Targets())
		if child := g.store.Zone(c.Name); child != nil {
			childNS := sortedSet(g.ChildView(c.Name))
			if !equalSets(parentNS, childNS) {
				out = append(out, Mismatch{
					Kind:     MismatchNSSetsDiffer,
					Cut:      c.Name,
					ParentNS: parentNS,
					ChildNS:  childNS,
				})
			}
			continue
		}
		if !g.anyTargetResolvable(c) {
			out = append(out, Mismatch{
				Kind:     MismatchUnresolvableNS,
				Cut:      c.Name,
				ParentNS: parentNS,
			})
		}
	}

	for _, child := range g.store.Zones() {
		if !g.hasHostedParent(child) {
			continue
		}
		if _, delegated := g.byName[child.Origin]; !delegated {
			out = append(out, Mismatch{Kind: MismatchOrphanChild, Cut: child.Origin})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Cut != out[j].Cut {
			return out[i].Cut < out[j].Cut
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// anyTargetResolvable reports whether at least one advertised NS target has
// an address record in some hosted zone.
func (g *Graph) anyTargetResolvable(c *Cut) bool {
	for _, target := range c.Targets() {
		z := g.store.ZoneFor(target)
		if z == nil {
			continue
		}
		if len(z.Lookup(target, uint16(dnswire.TypeA), uint16(dnswire.ClassIN))) > 0 {
			return true
		}
		if len(z.Lookup(target, uint16(dnswire.TypeAAAA), uint16(dnswire.ClassIN))) > 0 {
			return true
		}
	}
	return false
}

// hasHostedParent reports whether another hosted zone strictly encloses z.
func (g *Graph) hasHostedParent(z *zone.Zone) bool {
	for _, other := range g.store.Zones() {
		if other.Origin != z.Origin && other.ContainsName(z.Origin) {
			return true
		}
	}
	return false
}

func sortedSet(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
