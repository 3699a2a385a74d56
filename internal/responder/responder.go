// Package responder implements the authoritative answer path: one scenario
// snapshot in, one well-formed DNS response out for every conceivable query.
// It never recurses, never chases CNAMEs and never mutates zone data; the
// planted faults must reach the client exactly as the fixture defines them.
package responder

import (
	"context"

	"github.com/faultdns/faultdns/internal/delegation"
	"github.com/faultdns/faultdns/internal/dnswire"
	"github.com/faultdns/faultdns/internal/zone"
)

// Responder answers parsed queries against one immutable scenario snapshot.
// It is safe for concurrent use; all state is read-only after New.
type Responder struct {
	store *zone.Store
	graph *delegation.Graph
}

// New builds a Responder over the snapshot, deriving its delegation graph.
func New(store *zone.Store) *Responder {
	return &Responder{store: store, graph: delegation.Build(store)}
}

// ScenarioID reports which scenario the snapshot serves.
func (r *Responder) ScenarioID() string {
	return r.store.ScenarioID()
}

// Resolve answers one query. It always returns a well-formed response
// packet: lookup misses become NXDOMAIN or NODATA, a cancelled context
// becomes SERVFAIL, and nothing here returns an error to drop.
//
// The resolution order: no enclosing zone means NXDOMAIN at the root; a
// covering delegation means a referral from the parent's advertised view,
// except at the delegated apex of a hosted child zone, which answers for
// itself; otherwise the enclosing zone answers authoritatively.
func (r *Responder) Resolve(ctx context.Context, req dnswire.Packet) dnswire.Packet {
	if ctx.Err() != nil {
		return dnswire.BuildErrorResponse(req, uint16(dnswire.RCodeServFail))
	}
	if len(req.Questions) != 1 {
		return dnswire.BuildErrorResponse(req, uint16(dnswire.RCodeFormErr))
	}

	q := req.Questions[0]
	qname := dnswire.NormalizeName(q.Name)

	authZone := r.graph.AuthorityZone(qname)
	if authZone == nil {
		// Nothing hosted encloses the name. Not our zone, so no AA and
		// no SOA to offer for negative caching.
		return dnswire.BuildErrorResponse(req, uint16(dnswire.RCodeNXDomain))
	}

	if cut := r.graph.CoveringDelegation(qname); cut != nil {
		if child := r.store.Zone(cut.Name); child != nil && qname == cut.Name {
			return r.answerFrom(child, req, q, qname)
		}
		return r.referral(req, q, cut)
	}

	return r.answerFrom(authZone, req, q, qname)
}

// answerFrom builds an authoritative response from a single zone.
func (r *Responder) answerFrom(z *zone.Zone, req dnswire.Packet, q dnswire.Question, qname string) dnswire.Packet {
	answers := z.Lookup(qname, q.Type, q.Class)

	// A CNAME answers any type it is not itself, but the target is the
	// client's problem: chains are never chased server-side.
	if len(answers) == 0 && q.Type != dnswire.QTypeANY && q.Type != uint16(dnswire.TypeCNAME) {
		answers = z.Lookup(qname, uint16(dnswire.TypeCNAME), q.Class)
	}

	if len(answers) > 0 {
		flags := dnswire.ResponseFlags(req.Header.Flags, uint16(dnswire.RCodeNoError)) | dnswire.AAFlag
		return dnswire.Packet{
			Header:    dnswire.Header{ID: req.Header.ID, Flags: flags},
			Questions: []dnswire.Question{q},
			Answers:   answers,
		}
	}

	// Negative answer. NXDOMAIN when the name has nothing at all, NODATA
	// when it exists under another type; both carry the zone SOA so
	// resolvers know how long to remember the absence.
	rcode := dnswire.RCodeNoError
	if !z.NameExists(qname, q.Class) {
		rcode = dnswire.RCodeNXDomain
	}
	flags := dnswire.ResponseFlags(req.Header.Flags, uint16(rcode)) | dnswire.AAFlag
	return dnswire.Packet{
		Header:      dnswire.Header{ID: req.Header.ID, Flags: flags},
		Questions:   []dnswire.Question{q},
		Authorities: negativeAuthority(z, q.Class),
	}
}

// referral hands the client the parent's advertised view of a delegation:
// NS records in authority, no AA, plus whatever glue addresses the
// advertising zone holds for the targets.
func (r *Responder) referral(req dnswire.Packet, q dnswire.Question, cut *delegation.Cut) dnswire.Packet {
	additionals := make([]dnswire.Record, 0)
	if parent := r.store.Zone(cut.ParentZone); parent != nil {
		for _, target := range cut.Targets() {
			additionals = append(additionals, parent.Lookup(target, uint16(dnswire.TypeA), q.Class)...)
			additionals = append(additionals, parent.Lookup(target, uint16(dnswire.TypeAAAA), q.Class)...)
		}
	}

	flags := dnswire.ResponseFlags(req.Header.Flags, uint16(dnswire.RCodeNoError))
	return dnswire.Packet{
		Header:      dnswire.Header{ID: req.Header.ID, Flags: flags},
		Questions:   []dnswire.Question{q},
		Authorities: cut.Records,
		Additionals: additionals,
	}
}

// negativeAuthority returns the zone's SOA with the negative-caching TTL
// from RFC 2308: the smaller of the SOA's own TTL and its MINIMUM field.
// The zone's record is copied, never retagged in place.
func negativeAuthority(z *zone.Zone, qclass uint16) []dnswire.Record {
	soa := z.SOA(qclass)
	if soa == nil {
		return nil
	}
	ttl := soa.Header().TTL
	if soa.Minimum < ttl {
		ttl = soa.Minimum
	}
	h := dnswire.NewRRHeader(soa.Header().Name, dnswire.RecordClass(qclass), ttl)
	return []dnswire.Record{
		dnswire.NewSOARecord(h, soa.MName, soa.RName, soa.Serial, soa.Refresh, soa.Retry, soa.Expire, soa.Minimum),
	}
}
