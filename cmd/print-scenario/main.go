// Command print-scenario inspects the fixture catalog without starting a
// server. With no arguments it lists the catalog; with a scenario id it
// dumps the scenario's zones and summarizes the planted defect.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/faultdns/faultdns/internal/delegation"
	"github.com/faultdns/faultdns/internal/dnswire"
	"github.com/faultdns/faultdns/internal/scenario"
)

func main() {
	dir := flag.String("dir", "", "Load fixtures from a directory instead of the built-in catalog")
	flag.Parse()

	loader := scenario.NewLoader()
	if *dir != "" {
		loader = scenario.NewDirLoader(*dir)
	}

	switch flag.NArg() {
	case 0:
		if err := printCatalog(loader); err != nil {
			fmt.Fprintf(os.Stderr, "print-scenario: %v\n", err)
			os.Exit(1)
		}
	case 1:
		if err := printScenario(loader, flag.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "print-scenario: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Usage: print-scenario [-dir DIR] [scenario-id]\n")
		os.Exit(2)
	}
}

func printCatalog(loader *scenario.Loader) error {
	ids, err := loader.IDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		sc, err := loader.Load(id)
		if err != nil {
			return err
		}
		fmt.Printf("%-24s %-26s %s\n", sc.ID, sc.Fault, sc.Description)
	}
	return nil
}

func printScenario(loader *scenario.Loader, id string) error {
	sc, err := loader.Load(id)
	if err != nil {
		return err
	}

	fmt.Printf("SCENARIO: %s\n", sc.ID)
	fmt.Printf("FAULT: %s\n", sc.Fault)
	fmt.Printf("FOCUS: %s\n", sc.Focus)
	fmt.Printf("DESCRIPTION: %s\n", sc.Description)
	fmt.Printf("REMEDIATION: %s\n", sc.Remediation)

	for _, z := range sc.Zones {
		fmt.Printf("\nORIGIN: %s\n", z.Origin)
		fmt.Println("RECORDS:")
		rows := make([]string, 0, len(z.Records))
		for _, rr := range z.Records {
			rows = append(rows, "  "+formatRecord(rr))
		}
		sort.Strings(rows)
		for _, s := range rows {
			fmt.Println(s)
		}
	}

	printAnalysis(sc)
	return nil
}

// printAnalysis reports the structural defects the zones actually carry, so
// a fixture author sees the planted fault from the server's own analysis
// instead of trusting the YAML header.
func printAnalysis(sc *scenario.Scenario) {
	g := delegation.Build(sc.Store())

	lines := make([]string, 0, 4)
	for _, m := range g.Mismatches() {
		switch m.Kind {
		case delegation.MismatchNSSetsDiffer:
			lines = append(lines, fmt.Sprintf("delegation %s: parent NS %v != child NS %v", m.Cut, m.ParentNS, m.ChildNS))
		case delegation.MismatchUnresolvableNS:
			lines = append(lines, fmt.Sprintf("delegation %s: no advertised NS resolves (%v)", m.Cut, m.ParentNS))
		case delegation.MismatchOrphanChild:
			lines = append(lines, fmt.Sprintf("zone %s: hosted but never delegated from its parent", m.Cut))
		}
	}
	for _, z := range sc.Zones {
		for _, name := range z.CNAMEConflicts() {
			lines = append(lines, fmt.Sprintf("name %s: CNAME coexists with other records", name))
		}
	}

	fmt.Println("\nANALYSIS:")
	if len(lines) == 0 {
		fmt.Println("  no structural defects detected")
		return
	}
	sort.Strings(lines)
	for _, s := range lines {
		fmt.Println("  " + s)
	}
}

func formatRecord(rr dnswire.Record) string {
	h := rr.Header()
	name := h.Name
	if name == "" {
		name = "."
	}
	prefix := fmt.Sprintf("%s %d IN %s", name, h.TTL, dnswire.TypeName(rr.Type()))

	switch r := rr.(type) {
	case *dnswire.IPRecord:
		return fmt.Sprintf("%s %s", prefix, r.Addr.String())
	case *dnswire.NameRecord:
		return fmt.Sprintf("%s %s", prefix, r.Target)
	case *dnswire.MXRecord:
		return fmt.Sprintf("%s %d %s", prefix, r.Preference, r.Exchange)
	case *dnswire.TXTRecord:
		quoted := make([]string, len(r.Strings))
		for i, s := range r.Strings {
			quoted[i] = strconv.Quote(s)
		}
		return fmt.Sprintf("%s %s", prefix, strings.Join(quoted, " "))
	case *dnswire.SOARecord:
		return fmt.Sprintf("%s %s %s %d %d %d %d %d",
			prefix, r.MName, r.RName, r.Serial, r.Refresh, r.Retry, r.Expire, r.Minimum)
	case *dnswire.OpaqueRecord:
		return fmt.Sprintf("%s \\# %d", prefix, len(r.Data))
	default:
		return prefix + " (unparsed)"
	}
}
