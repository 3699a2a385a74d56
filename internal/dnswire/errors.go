// Package dnswire implements the DNS message wire format used by the fixture
// server.
//
// Standards Compliance:
//
//   - RFC 1035: Domain Names - Implementation and Specification (core protocol)
//   - RFC 1034: Domain Names - Concepts and Facilities
//   - RFC 2308: Negative Caching of DNS Queries (SOA TTL for NXDOMAIN/NODATA)
//   - RFC 3596: DNS Extensions to Support IPv6 (AAAA records)
//   - RFC 4343: Domain Name System Case Insensitivity Clarification
//
// Type-Oriented Design:
//
// Every record kind the fixture serves has an explicit Go type (IPRecord,
// NameRecord, MXRecord, TXTRecord, SOARecord). The set is closed: resolution
// and serialization switch exhaustively over these types, and anything
// outside the set is carried as an OpaqueRecord with raw RDATA.
//
// Error Handling:
//
// All protocol violations wrap ErrWire via fmt.Errorf("...: %w", ErrWire),
// so callers can classify any decode failure with errors.Is.
package dnswire

import "errors"

// ErrWire is the sentinel for DNS wire-format violations. Wrap it with
// fmt.Errorf("context: %w", ErrWire) to add context.
var ErrWire = errors.New("dns wire error")
