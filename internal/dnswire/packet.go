package dnswire

import "github.com/faultdns/faultdns/internal/helpers"

// Packet represents a complete DNS message (RFC 1035 Section 4.1).
//
// DNS messages are composed of five sections:
//   - Header: Transaction ID, flags, section counts
//   - Questions: What is being asked
//   - Answers: Resource records answering the question
//   - Authorities: Name servers or SOA records describing authority
//   - Additionals: Extra records (e.g., glue A records for NS targets)
type Packet struct {
	Header      Header
	Questions   []Question
	Answers     []Record
	Authorities []Record
	Additionals []Record
}

// Marshal serializes the packet to DNS wire format (big-endian).
// Section counts are derived from the slice lengths, never taken from the
// header the caller supplied.
func (p Packet) Marshal() ([]byte, error) {
	h := Header{
		ID:      p.Header.ID,
		Flags:   p.Header.Flags,
		QDCount: helpers.ClampIntToUint16(len(p.Questions)),
		ANCount: helpers.ClampIntToUint16(len(p.Answers)),
		NSCount: helpers.ClampIntToUint16(len(p.Authorities)),
		ARCount: helpers.ClampIntToUint16(len(p.Additionals)),
	}

	hb, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	// Estimate capacity: header(12) + question(~50) + records(~100 each)
	estimatedSize := HeaderSize + len(p.Questions)*50 + (len(p.Answers)+len(p.Authorities)+len(p.Additionals))*100
	out := make([]byte, 0, estimatedSize)
	out = append(out, hb...)

	for _, q := range p.Questions {
		qb, err := q.Marshal()
		if err != nil {
			return nil, err
		}
		out = append(out, qb...)
	}

	if err := appendRecords(&out, p.Answers); err != nil {
		return nil, err
	}
	if err := appendRecords(&out, p.Authorities); err != nil {
		return nil, err
	}
	if err := appendRecords(&out, p.Additionals); err != nil {
		return nil, err
	}

	return out, nil
}

// appendRecords marshals and appends records to the output buffer.
func appendRecords(out *[]byte, records []Record) error {
	for _, r := range records {
		b, err := MarshalRecord(r)
		if err != nil {
			return err
		}
		*out = append(*out, b...)
	}
	return nil
}

// ParsePacket parses a complete DNS message from wire format.
func ParsePacket(msg []byte) (Packet, error) {
	off := 0
	h, err := ParseHeader(msg, &off)
	if err != nil {
		return Packet{}, err
	}

	p := Packet{Header: h}

	// Cap initial allocations: header counts may be large while the actual
	// packet is tiny.
	p.Questions = make([]Question, 0, min(int(h.QDCount), MaxQuestions))
	for i := uint16(0); i < h.QDCount; i++ {
		q, err := ParseQuestion(msg, &off)
		if err != nil {
			return Packet{}, err
		}
		p.Questions = append(p.Questions, q)
	}
	p.Answers = make([]Record, 0, min(int(h.ANCount), MaxRRPerSection))
	for i := uint16(0); i < h.ANCount; i++ {
		r, err := ParseRecord(msg, &off)
		if err != nil {
			return Packet{}, err
		}
		p.Answers = append(p.Answers, r)
	}
	p.Authorities = make([]Record, 0, min(int(h.NSCount), MaxRRPerSection))
	for i := uint16(0); i < h.NSCount; i++ {
		r, err := ParseRecord(msg, &off)
		if err != nil {
			return Packet{}, err
		}
		p.Authorities = append(p.Authorities, r)
	}
	p.Additionals = make([]Record, 0, min(int(h.ARCount), MaxRRPerSection))
	for i := uint16(0); i < h.ARCount; i++ {
		r, err := ParseRecord(msg, &off)
		if err != nil {
			return Packet{}, err
		}
		p.Additionals = append(p.Additionals, r)
	}
	return p, nil
}
