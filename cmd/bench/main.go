// Command bench hammers a running fixture with one query and reports
// latency percentiles, throughput, and the rcode mix. Useful for checking
// that the UDP drop-under-load path sheds queries instead of stalling them.
package main

import (
	"flag"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/faultdns/faultdns/internal/dnswire"
)

func main() {
	var (
		server      = flag.String("server", "127.0.0.1:5053", "DNS server HOST:PORT")
		name        = flag.String("name", "www.dnstest.local", "Query name")
		qtype       = flag.String("type", "A", "Query type (mnemonic like MX, or numeric)")
		concurrency = flag.Int("concurrency", 200, "Number of concurrent workers")
		requests    = flag.Int("requests", 20000, "Total number of requests")
		timeout     = flag.Duration("timeout", 2*time.Second, "Per-request timeout")
		recvSize    = flag.Int("recv-size", 2048, "UDP receive buffer size")
	)
	flag.Parse()

	qt, err := parseType(*qtype)
	if err != nil {
		panic(err)
	}

	addr, err := net.ResolveUDPAddr("udp", *server)
	if err != nil {
		panic(err)
	}

	reqBytes, err := buildQuery(*name, qt)
	if err != nil {
		panic(err)
	}

	conc := *concurrency
	if conc < 1 {
		conc = 1
	}
	total := *requests
	if total < 1 {
		total = 1
	}
	per := total / conc
	rem := total % conc

	lat := make([]float64, 0, total)
	rcodes := make(map[string]int)
	var mu sync.Mutex

	t0 := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < conc; i++ {
		n := per
		if i < rem {
			n++
		}
		if n <= 0 {
			continue
		}
		wg.Add(1)
		go func(num int) {
			defer wg.Done()
			c, err := net.DialUDP("udp", nil, addr)
			if err != nil {
				return
			}
			defer c.Close()
			buf := make([]byte, *recvSize)
			for j := 0; j < num; j++ {
				start := time.Now()
				_ = c.SetDeadline(time.Now().Add(*timeout))
				if _, err := c.Write(reqBytes); err != nil {
					continue
				}
				nn, err := c.Read(buf)
				if err != nil {
					continue
				}
				ms := float64(time.Since(start).Microseconds()) / 1000.0
				rc := "unparseable"
				if p, err := dnswire.ParsePacket(buf[:nn]); err == nil {
					rc = dnswire.RCodeName(dnswire.RCodeFromFlags(p.Header.Flags))
				}
				mu.Lock()
				lat = append(lat, ms)
				rcodes[rc]++
				mu.Unlock()
			}
		}(n)
	}
	wg.Wait()
	elapsed := time.Since(t0).Seconds()

	if len(lat) == 0 {
		fmt.Printf("no successful requests\n")
		return
	}
	sort.Float64s(lat)
	p50 := percentile(lat, 50)
	p95 := percentile(lat, 95)
	p99 := percentile(lat, 99)
	qps := float64(len(lat)) / elapsed

	fmt.Printf("server=%s name=%q type=%s concurrency=%d requests=%d answered=%d dropped=%d\n",
		*server, *name, dnswire.TypeName(dnswire.RecordType(qt)), conc, total, len(lat), total-len(lat))
	fmt.Printf("elapsed_s=%.3f qps=%.1f\n", elapsed, qps)
	fmt.Printf("latency_ms p50=%.3f p95=%.3f p99=%.3f min=%.3f max=%.3f\n", p50, p95, p99, lat[0], lat[len(lat)-1])

	codes := make([]string, 0, len(rcodes))
	for rc := range rcodes {
		codes = append(codes, rc)
	}
	sort.Strings(codes)
	for _, rc := range codes {
		fmt.Printf("rcode %s=%d\n", rc, rcodes[rc])
	}
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := int(float64(len(sorted))*float64(p)/100.0) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func parseType(s string) (uint16, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "ANY" {
		return dnswire.QTypeANY, nil
	}
	if rt, ok := dnswire.TypeFromName(s); ok {
		return uint16(rt), nil
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 65535 {
		return uint16(n), nil
	}
	return 0, fmt.Errorf("unknown query type %q", s)
}

func buildQuery(name string, qtype uint16) ([]byte, error) {
	p := dnswire.Packet{
		Header: dnswire.Header{ID: 0xBEEF, Flags: dnswire.RDFlag},
		Questions: []dnswire.Question{{
			Name:  dnswire.NormalizeName(name),
			Type:  qtype,
			Class: uint16(dnswire.ClassIN),
		}},
	}
	return p.Marshal()
}
