package responder_test

// ============================================================================
// Authoritative resolution over scenario snapshots: exact and ANY matches,
// CNAME handling, referrals with glue, NXDOMAIN/NODATA negatives, and the
// parent-view rules the delegation scenarios depend on.
// ============================================================================

import (
	"context"
	"net"
	"testing"

	"github.com/faultdns/faultdns/internal/dnswire"
	"github.com/faultdns/faultdns/internal/responder"
	"github.com/faultdns/faultdns/internal/scenario"
	"github.com/faultdns/faultdns/internal/zone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromScenario(t *testing.T, id string) *responder.Responder {
	t.Helper()
	s, err := scenario.NewLoader().Load(id)
	require.NoError(t, err)
	return responder.New(s.Store())
}

func query(name string, qtype uint16) dnswire.Packet {
	return dnswire.Packet{
		Header: dnswire.Header{ID: 0x1234, Flags: dnswire.RDFlag},
		Questions: []dnswire.Question{
			{Name: name, Type: qtype, Class: uint16(dnswire.ClassIN)},
		},
	}
}

func TestResolve_ExactMatchIsAuthoritative(t *testing.T) {
	r := fromScenario(t, "clean")

	resp := r.Resolve(context.Background(), query("www.dnstest.local", uint16(dnswire.TypeA)))

	assert.Equal(t, uint16(0x1234), resp.Header.ID)
	assert.True(t, resp.Header.IsResponse())
	assert.True(t, resp.Header.Authoritative(), "answers from own zone data carry AA")
	assert.True(t, resp.Header.RecursionDesired(), "RD echoes the request")
	assert.Zero(t, resp.Header.Flags&dnswire.RAFlag, "a fixture never offers recursion")
	assert.Equal(t, dnswire.RCodeNoError, dnswire.RCodeFromFlags(resp.Header.Flags))

	require.Len(t, resp.Answers, 3)
	var addrs []string
	for _, rr := range resp.Answers {
		ip, ok := rr.(*dnswire.IPRecord)
		require.True(t, ok)
		addrs = append(addrs, net.IP(ip.Addr).String())
	}
	assert.Equal(t, []string{"192.0.2.11", "192.0.2.12", "192.0.2.13"}, addrs,
		"answers keep fixture order")
	assert.Empty(t, resp.Authorities)
}

func TestResolve_ANYReturnsUnionUnmodified(t *testing.T) {
	r := fromScenario(t, "cname-conflict")

	resp := r.Resolve(context.Background(), query("cname-conflict.dnstest.local", dnswire.QTypeANY))

	require.Len(t, resp.Answers, 2, "the planted CNAME conflict comes back intact")
	assert.Equal(t, dnswire.TypeA, resp.Answers[0].Type())
	assert.Equal(t, dnswire.TypeCNAME, resp.Answers[1].Type())
	assert.True(t, resp.Header.Authoritative())
}

func TestResolve_CNAMEAnswersOtherTypesUnchased(t *testing.T) {
	// The target is hosted right next to the alias; a resolver would chase
	// it, an authoritative fixture must not.
	z, err := zone.New("dnstest.local", []dnswire.Record{
		dnswire.NewSOARecord(dnswire.NewRRHeader("dnstest.local", dnswire.ClassIN, 300),
			"ns1.dnstest.local", "admin.dnstest.local", 1, 3600, 600, 86400, 300),
		dnswire.NewCNAMERecord(dnswire.NewRRHeader("alias.dnstest.local", dnswire.ClassIN, 300), "real.dnstest.local"),
		dnswire.NewIPRecord(dnswire.NewRRHeader("real.dnstest.local", dnswire.ClassIN, 300), []byte{192, 0, 2, 99}),
	})
	require.NoError(t, err)
	store, err := zone.NewStore("handmade", z)
	require.NoError(t, err)
	r := responder.New(store)

	resp := r.Resolve(context.Background(), query("alias.dnstest.local", uint16(dnswire.TypeA)))

	require.Len(t, resp.Answers, 1)
	cname, ok := resp.Answers[0].(*dnswire.NameRecord)
	require.True(t, ok)
	assert.Equal(t, dnswire.TypeCNAME, cname.Type())
	assert.Equal(t, "real.dnstest.local", cname.Target)
	assert.Empty(t, resp.Additionals, "the target address is never resolved server-side")
	assert.Equal(t, dnswire.RCodeNoError, dnswire.RCodeFromFlags(resp.Header.Flags))
}

func TestResolve_NXDOMAINCarriesZoneSOA(t *testing.T) {
	r := fromScenario(t, "clean")

	resp := r.Resolve(context.Background(), query("absent.dnstest.local", uint16(dnswire.TypeA)))

	assert.Equal(t, dnswire.RCodeNXDomain, dnswire.RCodeFromFlags(resp.Header.Flags))
	assert.True(t, resp.Header.Authoritative())
	assert.Empty(t, resp.Answers)
	require.Len(t, resp.Authorities, 1)
	soa, ok := resp.Authorities[0].(*dnswire.SOARecord)
	require.True(t, ok)
	assert.Equal(t, "dnstest.local", soa.Header().Name)
	assert.Equal(t, uint32(300), soa.Header().TTL)
}

func TestResolve_NegativeTTLIsMinOfSOATTLAndMinimum(t *testing.T) {
	build := func(t *testing.T, soaTTL uint32, minimum uint32) *responder.Responder {
		t.Helper()
		z, err := zone.New("dnstest.local", []dnswire.Record{
			dnswire.NewSOARecord(dnswire.NewRRHeader("dnstest.local", dnswire.ClassIN, soaTTL),
				"ns1.dnstest.local", "admin.dnstest.local", 1, 3600, 600, 86400, minimum),
		})
		require.NoError(t, err)
		store, err := zone.NewStore("handmade", z)
		require.NoError(t, err)
		return responder.New(store)
	}

	t.Run("minimum smaller than SOA TTL", func(t *testing.T) {
		r := build(t, 3600, 300)
		resp := r.Resolve(context.Background(), query("gone.dnstest.local", uint16(dnswire.TypeA)))
		require.Len(t, resp.Authorities, 1)
		assert.Equal(t, uint32(300), resp.Authorities[0].Header().TTL)
	})

	t.Run("SOA TTL smaller than minimum", func(t *testing.T) {
		r := build(t, 60, 300)
		resp := r.Resolve(context.Background(), query("gone.dnstest.local", uint16(dnswire.TypeA)))
		require.Len(t, resp.Authorities, 1)
		assert.Equal(t, uint32(60), resp.Authorities[0].Header().TTL)
	})
}

func TestResolve_NODATAKeepsNOERROR(t *testing.T) {
	r := fromScenario(t, "clean")

	// www exists with A records but has no MX.
	resp := r.Resolve(context.Background(), query("www.dnstest.local", uint16(dnswire.TypeMX)))

	assert.Equal(t, dnswire.RCodeNoError, dnswire.RCodeFromFlags(resp.Header.Flags),
		"name exists, so the type miss must not look like NXDOMAIN")
	assert.True(t, resp.Header.Authoritative())
	assert.Empty(t, resp.Answers)
	require.Len(t, resp.Authorities, 1)
	assert.Equal(t, dnswire.TypeSOA, resp.Authorities[0].Type())
}

func TestResolve_NameOutsideEveryZone(t *testing.T) {
	r := fromScenario(t, "clean")

	resp := r.Resolve(context.Background(), query("www.other.example", uint16(dnswire.TypeA)))

	assert.Equal(t, dnswire.RCodeNXDomain, dnswire.RCodeFromFlags(resp.Header.Flags))
	assert.False(t, resp.Header.Authoritative(), "no hosted zone covers it, so no authority claim")
	assert.Empty(t, resp.Answers)
	assert.Empty(t, resp.Authorities, "no enclosing zone means no SOA to offer")
}

func TestResolve_ReferralWithGlue(t *testing.T) {
	r := fromScenario(t, "clean")

	resp := r.Resolve(context.Background(), query("www.sub.dnstest.local", uint16(dnswire.TypeA)))

	assert.Equal(t, dnswire.RCodeNoError, dnswire.RCodeFromFlags(resp.Header.Flags))
	assert.False(t, resp.Header.Authoritative(), "a referral is not an answer")
	assert.Empty(t, resp.Answers)

	require.Len(t, resp.Authorities, 2)
	var targets []string
	for _, rr := range resp.Authorities {
		ns, ok := rr.(*dnswire.NameRecord)
		require.True(t, ok)
		assert.Equal(t, dnswire.TypeNS, ns.Type())
		assert.Equal(t, "sub.dnstest.local", ns.Header().Name)
		targets = append(targets, ns.Target)
	}
	assert.Equal(t, []string{"ns1.sub.dnstest.local", "ns2.sub.dnstest.local"}, targets)

	require.Len(t, resp.Additionals, 2, "glue for both advertised nameservers")
	for _, rr := range resp.Additionals {
		assert.Equal(t, dnswire.TypeA, rr.Type())
	}
}

func TestResolve_DelegationMismatchShowsBothViews(t *testing.T) {
	r := fromScenario(t, "delegation-mismatch")

	// Below the cut: the parent's advertised view wins, even though the
	// child zone is hosted and disagrees.
	resp := r.Resolve(context.Background(), query("www.sub.dnstest.local", uint16(dnswire.TypeA)))
	assert.False(t, resp.Header.Authoritative())
	require.Len(t, resp.Authorities, 1)
	assert.Equal(t, "ns1.dnstest.local", resp.Authorities[0].(*dnswire.NameRecord).Target,
		"referrals follow the parent")
	require.Len(t, resp.Additionals, 1, "the parent holds an address for its advertised NS")

	// At the delegated apex: the hosted child answers for itself.
	resp = r.Resolve(context.Background(), query("sub.dnstest.local", uint16(dnswire.TypeNS)))
	assert.True(t, resp.Header.Authoritative())
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, "ns2.dnstest.local", resp.Answers[0].(*dnswire.NameRecord).Target,
		"the child's own view stays observable")
}

func TestResolve_MissingDelegationAnswersFromParent(t *testing.T) {
	r := fromScenario(t, "missing-delegation")

	// The child zone is hosted but the parent never delegates to it, so
	// the parent's empty view produces NXDOMAIN with the parent's SOA.
	for _, name := range []string{"www.sub.dnstest.local", "sub.dnstest.local"} {
		resp := r.Resolve(context.Background(), query(name, uint16(dnswire.TypeA)))
		assert.Equal(t, dnswire.RCodeNXDomain, dnswire.RCodeFromFlags(resp.Header.Flags), "query %s", name)
		assert.True(t, resp.Header.Authoritative())
		require.Len(t, resp.Authorities, 1, "query %s", name)
		assert.Equal(t, "dnstest.local", resp.Authorities[0].Header().Name,
			"the parent's SOA, not the orphaned child's")
	}
}

func TestResolve_BrokenDelegationRefersWithoutGlue(t *testing.T) {
	r := fromScenario(t, "broken-delegation")

	resp := r.Resolve(context.Background(), query("www.sub.dnstest.local", uint16(dnswire.TypeA)))

	assert.False(t, resp.Header.Authoritative())
	require.Len(t, resp.Authorities, 1)
	assert.Equal(t, "ns1.nonexistent.invalid", resp.Authorities[0].(*dnswire.NameRecord).Target)
	assert.Empty(t, resp.Additionals, "nothing hosted resolves the advertised target")

	// Data at the delegated name itself is occluded: still a referral.
	resp = r.Resolve(context.Background(), query("sub.dnstest.local", uint16(dnswire.TypeA)))
	assert.Empty(t, resp.Answers)
	assert.False(t, resp.Header.Authoritative())
	require.Len(t, resp.Authorities, 1)
	assert.Equal(t, dnswire.TypeNS, resp.Authorities[0].Type())
}

func TestResolve_ApexANYCarriesTheWholeSet(t *testing.T) {
	r := fromScenario(t, "clean")

	resp := r.Resolve(context.Background(), query("dnstest.local", dnswire.QTypeANY))

	require.True(t, resp.Header.Authoritative())
	types := map[dnswire.RecordType]int{}
	for _, rr := range resp.Answers {
		types[rr.Type()]++
	}
	assert.Equal(t, 1, types[dnswire.TypeSOA])
	assert.Equal(t, 2, types[dnswire.TypeNS])
	assert.Equal(t, 1, types[dnswire.TypeTXT])
	assert.Equal(t, 2, types[dnswire.TypeMX])
}

func TestResolve_OtherClassGetsNegativeAnswer(t *testing.T) {
	r := fromScenario(t, "clean")

	req := dnswire.Packet{
		Header: dnswire.Header{ID: 7, Flags: 0},
		Questions: []dnswire.Question{
			{Name: "www.dnstest.local", Type: uint16(dnswire.TypeA), Class: 3},
		},
	}
	resp := r.Resolve(context.Background(), req)

	assert.Equal(t, dnswire.RCodeNXDomain, dnswire.RCodeFromFlags(resp.Header.Flags),
		"fixture data is IN only; CH queries find nothing")
	assert.Empty(t, resp.Answers)
	assert.Empty(t, resp.Authorities, "no IN SOA is offered for a CH miss")
}

func TestResolve_CancelledContextIsSERVFAIL(t *testing.T) {
	r := fromScenario(t, "clean")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := r.Resolve(ctx, query("www.dnstest.local", uint16(dnswire.TypeA)))

	assert.Equal(t, dnswire.RCodeServFail, dnswire.RCodeFromFlags(resp.Header.Flags))
	assert.Equal(t, uint16(0x1234), resp.Header.ID, "even a failure echoes the transaction")
	assert.Len(t, resp.Questions, 1)
}

func TestResolve_StaleTTLSurvivesToTheAnswer(t *testing.T) {
	r := fromScenario(t, "stale-ttl")

	resp := r.Resolve(context.Background(), query("stale.dnstest.local", uint16(dnswire.TypeA)))

	require.Len(t, resp.Answers, 2)
	ttls := []uint32{resp.Answers[0].Header().TTL, resp.Answers[1].Header().TTL}
	assert.ElementsMatch(t, []uint32{604800, 30}, ttls,
		"the planted TTL divergence reaches the client untouched")
}
