package harness

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/faultdns/faultdns/internal/scorer"
)

var verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "faultdns_verdicts_total",
	Help: "Verdicts submitted, by scenario and grade.",
}, []string{"scenario", "grade"})

// verdictGrade collapses a scoring result into one metric label.
func verdictGrade(res scorer.Result) string {
	switch {
	case res.Ambiguous:
		return "ambiguous"
	case res.Matched:
		return "matched"
	default:
		return "missed"
	}
}
