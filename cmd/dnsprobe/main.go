// Command dnsprobe sends a single DNS query and prints the response in a
// dig-like format. It speaks the same wire subset the fixture serves, so
// it doubles as a quick smoke test for a running scenario.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/faultdns/faultdns/internal/dnswire"
)

func main() {
	var (
		server   = flag.String("server", "127.0.0.1:5053", "DNS server HOST:PORT")
		name     = flag.String("name", "dnstest.local", "Query name")
		qtype    = flag.String("type", "A", "Query type (mnemonic like MX, or numeric)")
		useTCP   = flag.Bool("tcp", false, "Query over TCP instead of UDP")
		timeout  = flag.Duration("timeout", 2*time.Second, "Timeout")
		recvSize = flag.Int("recv-size", 2048, "UDP receive buffer size")
		quiet    = flag.Bool("quiet", false, "Suppress output (exit status indicates success)")
	)
	flag.Parse()

	qt, err := parseType(*qtype)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dnsprobe error: %v\n", err)
		os.Exit(2)
	}

	reqBytes, err := buildQuery(*name, qt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dnsprobe error: %v\n", err)
		os.Exit(2)
	}

	var resp []byte
	if *useTCP {
		resp, err = queryTCP(*server, reqBytes, *timeout)
	} else {
		resp, err = queryUDP(*server, reqBytes, *timeout, *recvSize)
	}
	if err != nil {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "dnsprobe error: %v\n", err)
		}
		os.Exit(1)
	}
	if *quiet {
		return
	}

	p, err := dnswire.ParsePacket(resp)
	if err != nil {
		fmt.Printf("received %d bytes (unparseable: %v)\n", len(resp), err)
		os.Exit(1)
	}

	printResponse(p, *useTCP)
}

// parseType accepts a mnemonic (A, MX, ANY) or a numeric type code.
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
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("name required")
	}
	id := uint16(time.Now().UnixNano())
	if id == 0 {
		id = 0x1234
	}
	p := dnswire.Packet{
		Header: dnswire.Header{ID: id, Flags: dnswire.RDFlag},
		Questions: []dnswire.Question{{
			Name:  dnswire.NormalizeName(name),
			Type:  qtype,
			Class: uint16(dnswire.ClassIN),
		}},
	}
	return p.Marshal()
}

func queryUDP(server string, req []byte, timeout time.Duration, recvSize int) ([]byte, error) {
	addr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		return nil, err
	}
	c, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	_ = c.SetDeadline(time.Now().Add(timeout))
	if _, err := c.Write(req); err != nil {
		return nil, err
	}
	buf := make([]byte, recvSize)
	n, err := c.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// queryTCP frames the message with the 2-byte length prefix DNS-over-TCP
// requires (RFC 1035 Section 4.2.2).
func queryTCP(server string, req []byte, timeout time.Duration) ([]byte, error) {
	c, err := net.DialTimeout("tcp", server, timeout)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(timeout))

	framed := make([]byte, 2+len(req))
	binary.BigEndian.PutUint16(framed[0:2], uint16(len(req)))
	copy(framed[2:], req)
	if _, err := c.Write(framed); err != nil {
		return nil, err
	}

	var prefix [2]byte
	if _, err := io.ReadFull(c, prefix[:]); err != nil {
		return nil, err
	}
	resp := make([]byte, binary.BigEndian.Uint16(prefix[:]))
	if _, err := io.ReadFull(c, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func printResponse(p dnswire.Packet, viaTCP bool) {
	rcode := dnswire.RCodeFromFlags(p.Header.Flags)
	fmt.Printf("id=%d rcode=%s aa=%t tc=%t answers=%d authorities=%d additionals=%d\n",
		p.Header.ID,
		dnswire.RCodeName(rcode),
		p.Header.Authoritative(),
		p.Header.Truncated(),
		len(p.Answers),
		len(p.Authorities),
		len(p.Additionals),
	)
	if p.Header.Truncated() && !viaTCP {
		fmt.Println(";; truncated, retry with -tcp")
	}

	printSection(";; ANSWER", p.Answers)
	printSection(";; AUTHORITY", p.Authorities)
	printSection(";; ADDITIONAL", p.Additionals)
}

func printSection(label string, records []dnswire.Record) {
	if len(records) == 0 {
		return
	}
	rows := make([]string, 0, len(records))
	for _, rr := range records {
		rows = append(rows, formatRecord(rr))
	}
	sort.Strings(rows)
	fmt.Println(label)
	for _, s := range rows {
		fmt.Println(s)
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
