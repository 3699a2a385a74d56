package scenario

// FaultKind names one planted defect from the closed taxonomy. Every
// scenario declares exactly one kind, and the scorer never classifies a
// verdict outside this set.
type FaultKind string

const (
	// FaultClean marks a scenario with nothing wrong on purpose.
	FaultClean FaultKind = "clean"
	// FaultMultipleSPF: two TXT records both starting v=spf1, which
	// evaluates to permerror.
	FaultMultipleSPF FaultKind = "multiple-spf"
	// FaultMissingAllQualifier: an SPF policy with no trailing all
	// mechanism, leaving unlisted senders undefined.
	FaultMissingAllQualifier FaultKind = "missing-all-qualifier"
	// FaultPermissiveSPF: an SPF policy ending in +all, letting anyone
	// pass.
	FaultPermissiveSPF FaultKind = "permissive-spf"
	// FaultDeprecatedPTR: an SPF policy using the deprecated ptr
	// mechanism.
	FaultDeprecatedPTR FaultKind = "deprecated-ptr-mechanism"
	// FaultExcessiveSPFLookups: an SPF policy needing more than the ten
	// DNS lookups RFC 7208 allows.
	FaultExcessiveSPFLookups FaultKind = "excessive-spf-lookups"
	// FaultCNAMEConflict: a CNAME sharing an owner name with other data.
	FaultCNAMEConflict FaultKind = "cname-conflict"
	// FaultDuplicateMX: two MX records carrying the same preference.
	FaultDuplicateMX FaultKind = "duplicate-mx"
	// FaultDelegationMismatch: the parent's advertised NS set disagrees
	// with the child zone's own.
	FaultDelegationMismatch FaultKind = "delegation-mismatch"
	// FaultMissingDelegation: a child zone exists but the parent never
	// delegates to it.
	FaultMissingDelegation FaultKind = "missing-delegation"
	// FaultBrokenDelegation: the parent delegates to nameservers that
	// resolve nowhere.
	FaultBrokenDelegation FaultKind = "broken-delegation"
	// FaultStaleTTL: records in one set advertise wildly divergent TTLs,
	// so caches disagree about freshness.
	FaultStaleTTL FaultKind = "stale-ttl"
)

// kindOrder fixes the catalog order used everywhere kinds are enumerated.
var kindOrder = []FaultKind{
	FaultClean,
	FaultMultipleSPF,
	FaultMissingAllQualifier,
	FaultPermissiveSPF,
	FaultDeprecatedPTR,
	FaultExcessiveSPFLookups,
	FaultCNAMEConflict,
	FaultDuplicateMX,
	FaultDelegationMismatch,
	FaultMissingDelegation,
	FaultBrokenDelegation,
	FaultStaleTTL,
}

// kindKeywords maps each kind to the lowercase phrases that identify it in a
// free-text verdict. Matching is plain substring containment; the scorer
// counts distinct hits and the kind with the most wins. The phrases are
// deliberately specific: generic words shared across kinds would turn every
// verdict into a tie.
var kindKeywords = map[FaultKind][]string{
	FaultClean: {
		"healthy", "no fault", "no issue", "no problem", "nothing wrong",
		"correctly configured", "looks correct", "valid configuration",
		"properly configured",
	},
	FaultMultipleSPF: {
		"multiple spf", "two spf", "duplicate spf", "more than one spf",
		"second spf", "both spf", "permerror",
	},
	FaultMissingAllQualifier: {
		"missing all", "no all mechanism", "without all", "lacks all",
		"missing -all", "no -all", "missing ~all", "no ~all",
		"incomplete spf", "no terminal all", "does not end",
	},
	FaultPermissiveSPF: {
		"+all", "plus all", "permissive", "allows anyone", "anyone to spoof",
		"any sender", "pass all",
	},
	FaultDeprecatedPTR: {
		"ptr mechanism", "ptr:", "deprecated ptr", "deprecated mechanism",
		"discouraged ptr",
	},
	FaultExcessiveSPFLookups: {
		"too many lookups", "lookup limit", "10 lookups", "ten lookups",
		"10 dns lookups", "ten dns lookups", "exceeds the lookup",
		"more than 10 lookups", "more than ten", "eleven includes",
	},
	FaultCNAMEConflict: {
		"cname", "alias with other data", "coexist",
	},
	FaultDuplicateMX: {
		"same priority", "same preference", "equal priority",
		"equal preference", "duplicate mx", "identical priority",
		"identical preference", "mx records with the same",
	},
	FaultDelegationMismatch: {
		"parent and child", "between parent", "ns mismatch",
		"delegation mismatch", "disagree", "differ between",
		"inconsistent ns", "ns records differ", "child zone lists",
		"glue does not match",
	},
	FaultMissingDelegation: {
		"missing delegation", "no delegation", "not delegated", "orphan",
		"parent lacks", "never delegates", "no ns records for the child",
		"parent has no ns",
	},
	FaultBrokenDelegation: {
		"broken delegation", "delegation is broken", "lame", "unresolvable",
		"does not resolve", "no address record", "dangling",
		"nonexistent nameserver", "ns target", "cannot be reached",
	},
	FaultStaleTTL: {
		"ttl", "stale", "cache", "propagat", "time to live",
	},
}

// Kinds returns every fault kind in catalog order.
func Kinds() []FaultKind {
	out := make([]FaultKind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

// ParseFaultKind maps a fixture string onto the taxonomy.
func ParseFaultKind(s string) (FaultKind, bool) {
	k := FaultKind(s)
	if _, ok := kindKeywords[k]; !ok {
		return "", false
	}
	return k, true
}

// Keywords returns the lowercase phrases that identify this kind in verdict
// text. The returned slice is a copy.
func (k FaultKind) Keywords() []string {
	kw := kindKeywords[k]
	out := make([]string, len(kw))
	copy(out, kw)
	return out
}
