package dnswire

import (
	"errors"
	"fmt"

	"github.com/faultdns/faultdns/internal/helpers"
)

// Limits for incoming DNS messages to prevent resource exhaustion.
const (
	MaxIncomingMessageSize = 4096 // Maximum size of an incoming DNS message
	MaxQuestions           = 4    // Maximum questions per query before rejecting outright
	MaxRRPerSection        = 100  // Maximum resource records per section
	MaxTotalRR             = 200  // Maximum total resource records

	// DefaultUDPPayloadSize is the classic RFC 1035 UDP message ceiling.
	// Responses larger than this are truncated with TC set; clients retry
	// over TCP.
	DefaultUDPPayloadSize = 512
)

// ParseRequestBounded parses a DNS request with bounds checking.
// It validates that the message is a standard query (not a response),
// uses opcode 0 (QUERY), and carries exactly one question.
//
// Returns an error if:
//   - Message exceeds MaxIncomingMessageSize
//   - QR flag is set (packet is a response, not a query)
//   - Opcode is not 0 (only standard queries are supported)
//   - Question count is not exactly 1, or RR counts exceed limits
func ParseRequestBounded(msg []byte) (Packet, error) {
	if len(msg) > MaxIncomingMessageSize {
		return Packet{}, errors.New("dns message too large")
	}
	p, err := ParsePacket(msg)
	if err != nil {
		return Packet{}, err
	}

	if p.Header.IsResponse() {
		return Packet{}, errors.New("invalid packet: QR flag set (response packet received)")
	}

	if opcode := extractOpcode(p.Header.Flags); opcode != 0 {
		return Packet{}, fmt.Errorf("unsupported OpCode: %d", opcode)
	}

	if err := validateSectionCounts(p.Header); err != nil {
		return Packet{}, err
	}

	return p, nil
}

// extractOpcode extracts the 4-bit opcode from the flags field.
// Opcode occupies bits 14-11, so we mask with 0x7800 and shift right by 11.
func extractOpcode(flags uint16) uint16 {
	return (flags & OpcodeMask) >> 11
}

// validateSectionCounts checks that section counts don't exceed limits.
func validateSectionCounts(h Header) error {
	qd := int(h.QDCount)
	an := int(h.ANCount)
	ns := int(h.NSCount)
	ar := int(h.ARCount)

	if qd > MaxQuestions {
		return errors.New("too many questions")
	}
	if qd != 1 {
		return errors.New("unsupported question count")
	}
	if an > MaxRRPerSection || ns > MaxRRPerSection || ar > MaxRRPerSection {
		return errors.New("too many resource records")
	}
	if (an + ns + ar) > MaxTotalRR {
		return errors.New("too many total resource records")
	}
	return nil
}

// BuildErrorResponse constructs a DNS error response packet.
// It preserves the transaction ID and RD flag from the request,
// sets the QR flag (response), and applies the given response code.
//
// The response includes the original question section but no answer records.
func BuildErrorResponse(req Packet, rcode uint16) Packet {
	flags := ResponseFlags(req.Header.Flags, rcode)

	h := Header{
		ID:      req.Header.ID,
		Flags:   flags,
		QDCount: helpers.ClampIntToUint16(len(req.Questions)),
	}
	return Packet{Header: h, Questions: req.Questions}
}

// ResponseFlags constructs the flags field for a response to a query with
// the given request flags:
//
//  1. Set QR flag (bit 15) to mark as response
//  2. Preserve RD flag (bit 8) from the request if set
//  3. Clear existing RCODE bits and set the given rcode in bits 3-0
//
// RA is never set: the fixture does not recurse.
func ResponseFlags(reqFlags uint16, rcode uint16) uint16 {
	flags := QRFlag
	flags |= (reqFlags & RDFlag)
	flags = (flags &^ RCodeMask) | (rcode & RCodeMask)
	return flags
}
