package server

import (
	"encoding/binary"

	"github.com/faultdns/faultdns/internal/dnswire"
)

// truncateUDPResponse cuts a DNS response down to the UDP size limit.
//
// The fixture never negotiates EDNS, so the limit is the classic 512 bytes
// of RFC 1035. A response over the limit keeps only the header and question
// section, with the TC flag set so the client retries over TCP.
func truncateUDPResponse(respBytes []byte, maxSize int) []byte {
	if maxSize <= 0 {
		maxSize = dnswire.DefaultUDPPayloadSize
	}
	if len(respBytes) <= maxSize {
		return respBytes
	}
	if len(respBytes) < dnswire.HeaderSize {
		return respBytes
	}

	qdcount := questionCount(respBytes)
	header := truncatedHeader(respBytes, qdcount)

	if qdcount == 0 {
		return header
	}

	questionEnd := questionSectionEnd(respBytes, int(qdcount))
	if questionEnd <= dnswire.HeaderSize {
		return header
	}
	if questionEnd > maxSize {
		return header
	}

	out := make([]byte, 0, questionEnd)
	out = append(out, header...)
	out = append(out, respBytes[dnswire.HeaderSize:questionEnd]...)
	return out
}

// questionCount reads the QDCOUNT from a DNS message header.
// QDCOUNT is at bytes 4-5 (big-endian).
func questionCount(msg []byte) uint16 {
	return binary.BigEndian.Uint16(msg[4:6])
}

// truncatedHeader builds a new header for a truncated response: original
// transaction ID and flags with TC added, question count preserved, all
// record counts zeroed.
func truncatedHeader(respBytes []byte, qdcount uint16) []byte {
	flags := binary.BigEndian.Uint16(respBytes[2:4])
	newFlags := flags | dnswire.TCFlag

	h := make([]byte, dnswire.HeaderSize)
	copy(h[0:2], respBytes[0:2])
	binary.BigEndian.PutUint16(h[2:4], newFlags)
	binary.BigEndian.PutUint16(h[4:6], qdcount)
	binary.BigEndian.PutUint16(h[6:8], 0)
	binary.BigEndian.PutUint16(h[8:10], 0)
	binary.BigEndian.PutUint16(h[10:12], 0)
	return h
}

// questionSectionEnd finds the byte offset just past the question section.
//
// Each question is a QNAME (labels or a compression pointer) followed by
// 2 bytes of QTYPE and 2 bytes of QCLASS.
func questionSectionEnd(msg []byte, qdcount int) int {
	pos := dnswire.HeaderSize

	for i := 0; i < qdcount; i++ {
		pos = skipName(msg, pos)
		if pos > len(msg) {
			return len(msg)
		}

		// Skip QTYPE and QCLASS
		if pos+4 > len(msg) {
			return len(msg)
		}
		pos += 4
	}
	return pos
}

// skipName advances past a DNS name in wire format: length-prefixed labels
// terminated by a zero byte, or a 2-byte compression pointer (0xC0 prefix).
func skipName(msg []byte, pos int) int {
	for pos < len(msg) {
		labelLen := msg[pos]

		if labelLen == 0 {
			return pos + 1
		}

		// A compression pointer ends the name
		if labelLen >= 0xC0 {
			if pos+2 > len(msg) {
				return len(msg)
			}
			return pos + 2
		}

		pos++
		if pos+int(labelLen) > len(msg) {
			return len(msg)
		}
		pos += int(labelLen)
	}
	return pos
}
