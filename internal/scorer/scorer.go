// Package scorer grades free-text diagnosis verdicts against the fault a
// scenario planted. Classification is deliberately dumb: a fixed keyword
// table, lowercase substring hits, no models and no fuzziness, so the same
// verdict always grades the same way.
package scorer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/faultdns/faultdns/internal/scenario"
)

// Result is the outcome of grading one verdict.
type Result struct {
	// Matched is true when the verdict names the planted fault.
	Matched bool `json:"matched"`
	// Ambiguous is true when the verdict could not be classified: it hit
	// no fault kind, or several with equal weight. Ambiguity is its own
	// outcome and never coerced toward a pass or a fail.
	Ambiguous bool `json:"ambiguous"`
	// Expected is the fault the scenario planted.
	Expected scenario.FaultKind `json:"expected"`
	// Got is the kind the verdict was classified as; empty when Ambiguous.
	Got scenario.FaultKind `json:"got,omitempty"`
	// Rationale says in one sentence how the grade came about.
	Rationale string `json:"rationale"`
}

// Score grades a verdict against the scenario's planted fault.
func Score(verdict string, s *scenario.Scenario) Result {
	res := Result{Expected: s.Fault}

	got, tied := classify(verdict)
	switch {
	case len(tied) > 1:
		res.Ambiguous = true
		res.Rationale = fmt.Sprintf("verdict matches %s with equal weight and cannot be classified",
			strings.Join(kindsToStrings(tied), " and "))
	case got == "":
		res.Ambiguous = true
		res.Rationale = "verdict matches no known fault kind"
	case got == s.Fault:
		res.Matched = true
		res.Got = got
		res.Rationale = fmt.Sprintf("verdict identifies %s, the planted fault", got)
	default:
		res.Got = got
		res.Rationale = fmt.Sprintf("verdict identifies %s but the planted fault is %s", got, s.Fault)
	}
	return res
}

// classify maps verdict text onto the taxonomy. The kind with the most
// distinct keyword hits wins; ties come back as the tied set and zero hits
// as an empty kind.
func classify(verdict string) (scenario.FaultKind, []scenario.FaultKind) {
	folded := strings.ToLower(verdict)

	best := 0
	hitsByKind := make(map[scenario.FaultKind]int)
	for _, k := range scenario.Kinds() {
		hits := 0
		for _, kw := range k.Keywords() {
			if strings.Contains(folded, kw) {
				hits++
			}
		}
		if hits > 0 {
			hitsByKind[k] = hits
			if hits > best {
				best = hits
			}
		}
	}
	if best == 0 {
		return "", nil
	}

	var tied []scenario.FaultKind
	for k, hits := range hitsByKind {
		if hits == best {
			tied = append(tied, k)
		}
	}
	sort.Slice(tied, func(i, j int) bool { return tied[i] < tied[j] })
	if len(tied) > 1 {
		return "", tied
	}
	return tied[0], tied
}

func kindsToStrings(kinds []scenario.FaultKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
