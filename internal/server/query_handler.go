// Package server implements the DNS protocol servers for UDP and TCP.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/faultdns/faultdns/internal/dnswire"
	"github.com/faultdns/faultdns/internal/responder"
)

// QueryHandler turns raw request bytes into raw response bytes against the
// active run: parse, resolve with a wall-clock budget, record the outcome.
type QueryHandler struct {
	Logger   *slog.Logger  // Optional logger for debug output
	Exchange *Exchange     // Source of the active run
	Timeout  time.Duration // Maximum time for one resolution (default: 2s)
}

// HandleResult contains the outcome of query processing.
type HandleResult struct {
	ResponseBytes []byte         // Serialized DNS response, nil when nothing should be sent
	Source        string         // Outcome class (fixture, timeout, formerr, ...)
	Parsed        dnswire.Packet // Parsed request (if ParsedOK is true)
	ParsedOK      bool           // Whether the request was successfully parsed
}

// Handle processes a DNS request and returns a response.
//
// Malformed requests get FORMERR when at least the header is readable and
// are dropped otherwise. Only well-formed queries reach the run's query
// log; the drop and response counters account for everything else.
func (h *QueryHandler) Handle(ctx context.Context, transport string, src string, reqBytes []byte) HandleResult {
	queriesTotal.WithLabelValues(transport).Inc()

	parsed, err := dnswire.ParseRequestBounded(reqBytes)
	if err != nil {
		return h.handleParseError(reqBytes)
	}

	run := h.Exchange.Current()
	if run == nil {
		resp := dnswire.BuildErrorResponse(parsed, uint16(dnswire.RCodeServFail))
		return h.finish(ctx, transport, src, nil, parsed, resp, "no-run")
	}

	resp, source := h.resolveWithTimeout(ctx, run, parsed)
	return h.finish(ctx, transport, src, run, parsed, resp, source)
}

// handleParseError attempts to build an error response from a malformed request.
// Returns FORMERR if the header/question could be extracted, or nil if not.
func (h *QueryHandler) handleParseError(reqBytes []byte) HandleResult {
	resp := tryBuildErrorFromRaw(reqBytes, uint16(dnswire.RCodeFormErr))
	if resp == nil {
		return HandleResult{ResponseBytes: nil, Source: "parse-error", ParsedOK: false}
	}
	responsesTotal.WithLabelValues(dnswire.RCodeName(dnswire.RCodeFormErr)).Inc()
	return HandleResult{ResponseBytes: resp, Source: "formerr", ParsedOK: false}
}

// resolveWithTimeout runs the responder in a goroutine and waits for the
// result within the per-query budget. Returns SERVFAIL on timeout or
// cancellation.
func (h *QueryHandler) resolveWithTimeout(ctx context.Context, run *Run, parsed dnswire.Packet) (dnswire.Packet, string) {
	resCh := make(chan dnswire.Packet, 1)
	go func() {
		resCh <- run.Responder.Resolve(ctx, parsed)
	}()

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return dnswire.BuildErrorResponse(parsed, uint16(dnswire.RCodeServFail)), "shutdown"
	case <-timer.C:
		return dnswire.BuildErrorResponse(parsed, uint16(dnswire.RCodeServFail)), "timeout"
	case resp := <-resCh:
		return resp, "fixture"
	}
}

// finish serializes the response, updates counters and the run's query log,
// and logs the request at debug level.
func (h *QueryHandler) finish(
	ctx context.Context,
	transport, src string,
	run *Run,
	parsed dnswire.Packet,
	resp dnswire.Packet,
	source string,
) HandleResult {
	respBytes, err := resp.Marshal()
	if err != nil {
		source = "marshal-error"
		resp = dnswire.BuildErrorResponse(parsed, uint16(dnswire.RCodeServFail))
		respBytes = mustMarshal(resp)
	}

	rcode := dnswire.RCodeName(dnswire.RCodeFromFlags(resp.Header.Flags))
	if len(respBytes) > 0 {
		responsesTotal.WithLabelValues(rcode).Inc()
	}

	if run != nil {
		q := firstQuestion(parsed)
		run.Log.Append(responder.QueryLogEntry{
			Time:      time.Now(),
			Transport: transport,
			Remote:    src,
			QName:     q.Name,
			QType:     dnswire.TypeName(dnswire.RecordType(q.Type)),
			RCode:     rcode,
			Flags:     resp.Header.Flags,
		})
	}

	h.logRequest(ctx, transport, src, parsed, rcode, source)

	return HandleResult{
		ResponseBytes: respBytes,
		Source:        source,
		Parsed:        parsed,
		ParsedOK:      true,
	}
}

// firstQuestion returns the question section entry. Bounded parsing
// guarantees exactly one, so the zero value only covers hand-built packets.
func firstQuestion(parsed dnswire.Packet) dnswire.Question {
	if len(parsed.Questions) == 0 {
		return dnswire.Question{}
	}
	return parsed.Questions[0]
}

// logRequest logs DNS request details at debug level.
func (h *QueryHandler) logRequest(
	ctx context.Context,
	transport, src string,
	parsed dnswire.Packet,
	rcode string,
	source string,
) {
	if h.Logger == nil || !h.Logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	q := firstQuestion(parsed)
	h.Logger.Debug(
		"dns request",
		"transport", transport,
		"src", src,
		"id", int(parsed.Header.ID),
		"qname", q.Name,
		"qtype", int(q.Type),
		"rcode", rcode,
		"source", source,
	)
}

// mustMarshal serializes a DNS packet, returning nil on error.
func mustMarshal(p dnswire.Packet) []byte {
	b, err := p.Marshal()
	if err != nil {
		return nil
	}
	return b
}

// tryBuildErrorFromRaw attempts to construct an error response from raw bytes.
// This is used when request parsing fails but we can still extract enough
// information (transaction ID, question) to build a valid error response.
//
// Returns nil if even the header cannot be parsed.
func tryBuildErrorFromRaw(reqBytes []byte, rcode uint16) []byte {
	off := 0
	h, err := dnswire.ParseHeader(reqBytes, &off)
	if err != nil {
		return nil
	}

	// Try to include the question in the error response
	qd := int(h.QDCount)
	if qd <= 0 {
		p := dnswire.Packet{Header: dnswire.Header{ID: h.ID, Flags: h.Flags}, Questions: nil}
		b, _ := dnswire.BuildErrorResponse(p, rcode).Marshal()
		return b
	}

	q, err := dnswire.ParseQuestion(reqBytes, &off)
	if err != nil {
		return nil
	}
	p := dnswire.Packet{Header: dnswire.Header{ID: h.ID, Flags: h.Flags}, Questions: []dnswire.Question{q}}
	b, _ := dnswire.BuildErrorResponse(p, rcode).Marshal()
	return b
}
