package dnswire

import (
	"encoding/binary"
	"fmt"
)

// MXRecord represents a DNS MX record (RFC 1035 Section 3.3.9):
// a 16-bit preference followed by the exchange host name.
type MXRecord struct {
	H          RRHeader
	Preference uint16
	Exchange   string
}

// NewMXRecord creates a new MX record.
func NewMXRecord(h RRHeader, preference uint16, exchange string) *MXRecord {
	return &MXRecord{H: h, Preference: preference, Exchange: exchange}
}

// Type returns TypeMX.
func (r *MXRecord) Type() RecordType { return TypeMX }

// Header returns the record header.
func (r *MXRecord) Header() RRHeader { return r.H }

// SetHeader sets the record header.
func (r *MXRecord) SetHeader(h RRHeader) { r.H = h }

// MarshalRData marshals the preference and exchange name to wire format.
func (r *MXRecord) MarshalRData() ([]byte, error) {
	name, err := EncodeName(r.Exchange)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 2, 2+len(name))
	binary.BigEndian.PutUint16(out[0:2], r.Preference)
	return append(out, name...), nil
}

// ParseMXRData parses MX record RDATA from wire format.
// The exchange name may use compression pointers into the full message.
func ParseMXRData(msg []byte, off *int, start, rdlen int) (*MXRecord, error) {
	if rdlen < 3 {
		return nil, fmt.Errorf("%w: MX record RDATA too short (RFC 1035 §3.3.9), got %d bytes", ErrWire, rdlen)
	}
	if *off+2 > len(msg) {
		return nil, fmt.Errorf("%w: unexpected EOF reading MX preference", ErrWire)
	}
	pref := binary.BigEndian.Uint16(msg[*off : *off+2])
	*off += 2
	exchange, err := DecodeName(msg, off)
	if err != nil {
		return nil, err
	}
	if *off-start != rdlen {
		return nil, fmt.Errorf("%w: MX record RDATA length mismatch (RFC 1035 §3.3.9)", ErrWire)
	}
	return &MXRecord{Preference: pref, Exchange: exchange}, nil
}
