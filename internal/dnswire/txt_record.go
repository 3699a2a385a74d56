package dnswire

import (
	"fmt"
	"strings"
)

// TXTRecord represents a DNS TXT record (RFC 1035 Section 3.3.14).
//
// TXT RDATA is one or more <character-string>s, each at most 255 bytes and
// prefixed by a length byte. Records split across several strings are kept
// split: SPF policies published that way must reach the client exactly as
// the zone defines them, including awkward mid-token breaks.
type TXTRecord struct {
	H       RRHeader
	Strings []string
}

// NewTXTRecord creates a new TXT record from one or more character-strings.
func NewTXTRecord(h RRHeader, strs ...string) *TXTRecord {
	return &TXTRecord{H: h, Strings: strs}
}

// Type returns TypeTXT.
func (r *TXTRecord) Type() RecordType { return TypeTXT }

// Header returns the record header.
func (r *TXTRecord) Header() RRHeader { return r.H }

// SetHeader sets the record header.
func (r *TXTRecord) SetHeader(h RRHeader) { r.H = h }

// Joined returns the character-strings concatenated without separators,
// the form SPF and similar text policies are evaluated in (RFC 7208 §3.3).
func (r *TXTRecord) Joined() string {
	return strings.Join(r.Strings, "")
}

// MarshalRData marshals the character-strings to wire format.
func (r *TXTRecord) MarshalRData() ([]byte, error) {
	if len(r.Strings) == 0 {
		return nil, fmt.Errorf("%w: TXT record must contain at least one character-string (RFC 1035 §3.3.14)", ErrWire)
	}
	size := 0
	for _, s := range r.Strings {
		size += 1 + len(s)
	}
	out := make([]byte, 0, size)
	for _, s := range r.Strings {
		if len(s) > 255 {
			return nil, fmt.Errorf("%w: TXT character-string too long (%d > 255)", ErrWire, len(s))
		}
		out = append(out, byte(len(s)))
		out = append(out, s...)
	}
	return out, nil
}

// ParseTXTRData parses TXT record RDATA from wire format.
func ParseTXTRData(msg []byte, off *int, rdlen int) (*TXTRecord, error) {
	if rdlen == 0 {
		return nil, fmt.Errorf("%w: TXT record must contain at least one character-string (RFC 1035 §3.3.14)", ErrWire)
	}
	end := *off + rdlen
	if end > len(msg) {
		return nil, fmt.Errorf("%w: unexpected EOF reading TXT record", ErrWire)
	}

	strs := make([]string, 0, 1)
	for *off < end {
		slen := int(msg[*off])
		*off++
		if *off+slen > end {
			return nil, fmt.Errorf("%w: TXT character-string overruns RDATA", ErrWire)
		}
		strs = append(strs, string(msg[*off:*off+slen]))
		*off += slen
	}
	return &TXTRecord{Strings: strs}, nil
}
