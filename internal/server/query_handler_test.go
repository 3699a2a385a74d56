package server

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/faultdns/faultdns/internal/dnswire"
	"github.com/faultdns/faultdns/internal/responder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend implements Backend for testing. A nonzero delay holds the
// answer back regardless of ctx, so the timeout and shutdown branches are
// observable.
type fakeBackend struct {
	response  dnswire.Packet
	delay     time.Duration
	callCount int
}

func (f *fakeBackend) Resolve(_ context.Context, _ dnswire.Packet) dnswire.Packet {
	f.callCount++
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.response
}

// newActivatedExchange returns an exchange with a hand-built run serving
// from the given backend.
func newActivatedExchange(backend Backend) *Exchange {
	ex := NewExchange()
	ex.Activate(&Run{
		ID:        1,
		StartedAt: time.Now(),
		Responder: backend,
		Log:       responder.NewQueryLog(),
	})
	return ex
}

// buildTestQuery creates a valid DNS query for testing.
func buildTestQuery(t *testing.T, qname string, qtype dnswire.RecordType) []byte {
	t.Helper()
	p := dnswire.Packet{
		Header: dnswire.Header{ID: 1234, Flags: dnswire.RDFlag, QDCount: 1},
		Questions: []dnswire.Question{
			{Name: qname, Type: uint16(qtype), Class: uint16(dnswire.ClassIN)},
		},
	}
	b, err := p.Marshal()
	require.NoError(t, err, "failed to marshal test query")
	return b
}

// buildAnswerPacket creates a valid DNS response packet for the fake
// backend to return.
func buildAnswerPacket(qname string, qtype dnswire.RecordType) dnswire.Packet {
	return dnswire.Packet{
		Header: dnswire.Header{ID: 1234, Flags: dnswire.QRFlag | dnswire.AAFlag | dnswire.RDFlag, QDCount: 1, ANCount: 1},
		Questions: []dnswire.Question{
			{Name: qname, Type: uint16(qtype), Class: uint16(dnswire.ClassIN)},
		},
		Answers: []dnswire.Record{
			dnswire.NewIPRecord(dnswire.NewRRHeader(qname, dnswire.ClassIN, 300), []byte{192, 0, 2, 1}),
		},
	}
}

func TestQueryHandler_Handle_Success(t *testing.T) {
	qname := "www.dnstest.local"
	queryBytes := buildTestQuery(t, qname, dnswire.TypeA)

	backend := &fakeBackend{response: buildAnswerPacket(qname, dnswire.TypeA)}
	handler := &QueryHandler{
		Exchange: newActivatedExchange(backend),
		Timeout:  5 * time.Second,
	}

	result := handler.Handle(context.Background(), "udp", "192.168.1.1:12345", queryBytes)

	assert.True(t, result.ParsedOK, "expected ParsedOK = true")
	assert.Equal(t, "fixture", result.Source)
	assert.NotEmpty(t, result.ResponseBytes, "expected non-empty response")
	assert.Equal(t, 1, backend.callCount, "expected backend to be called once")
}

func TestQueryHandler_Handle_ParseError(t *testing.T) {
	backend := &fakeBackend{}
	handler := &QueryHandler{
		Exchange: newActivatedExchange(backend),
		Timeout:  5 * time.Second,
	}

	// Invalid DNS request (too short)
	result := handler.Handle(context.Background(), "udp", "192.168.1.1:12345", []byte{0x00, 0x01})

	assert.False(t, result.ParsedOK, "expected ParsedOK = false for invalid request")
	// Should return parse-error or formerr
	assert.True(t, result.Source == "parse-error" || result.Source == "formerr",
		"expected source 'parse-error' or 'formerr', got %q", result.Source)
	assert.Equal(t, 0, backend.callCount, "backend should not be called on parse error")
}

func TestQueryHandler_Handle_TwoQuestionsFormErr(t *testing.T) {
	// Two questions parse fine but fail the bounded check; the FORMERR
	// must still echo the transaction ID and the first question.
	p := dnswire.Packet{
		Header: dnswire.Header{ID: 0x4242, Flags: dnswire.RDFlag},
		Questions: []dnswire.Question{
			{Name: "a.dnstest.local", Type: uint16(dnswire.TypeA), Class: uint16(dnswire.ClassIN)},
			{Name: "b.dnstest.local", Type: uint16(dnswire.TypeA), Class: uint16(dnswire.ClassIN)},
		},
	}
	queryBytes, err := p.Marshal()
	require.NoError(t, err)

	backend := &fakeBackend{}
	handler := &QueryHandler{
		Exchange: newActivatedExchange(backend),
		Timeout:  5 * time.Second,
	}

	result := handler.Handle(context.Background(), "udp", "192.168.1.1:12345", queryBytes)

	assert.False(t, result.ParsedOK)
	assert.Equal(t, "formerr", result.Source)
	require.NotEmpty(t, result.ResponseBytes)

	parsed, err := dnswire.ParsePacket(result.ResponseBytes)
	require.NoError(t, err, "failed to parse FORMERR response")
	assert.Equal(t, uint16(0x4242), parsed.Header.ID)
	assert.Equal(t, dnswire.RCodeFormErr, dnswire.RCodeFromFlags(parsed.Header.Flags))
	require.Len(t, parsed.Questions, 1)
	assert.Equal(t, "a.dnstest.local", parsed.Questions[0].Name)
	assert.Equal(t, 0, backend.callCount)
}

func TestQueryHandler_Handle_NoActiveRun(t *testing.T) {
	queryBytes := buildTestQuery(t, "www.dnstest.local", dnswire.TypeA)

	handler := &QueryHandler{
		Exchange: NewExchange(),
		Timeout:  5 * time.Second,
	}

	result := handler.Handle(context.Background(), "udp", "192.168.1.1:12345", queryBytes)

	assert.True(t, result.ParsedOK)
	assert.Equal(t, "no-run", result.Source)
	require.NotEmpty(t, result.ResponseBytes)

	parsed, err := dnswire.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	assert.Equal(t, uint16(1234), parsed.Header.ID)
	assert.NotZero(t, parsed.Header.Flags&dnswire.QRFlag, "expected QR flag set")
	assert.Equal(t, dnswire.RCodeServFail, dnswire.RCodeFromFlags(parsed.Header.Flags))
}

func TestQueryHandler_Handle_Timeout(t *testing.T) {
	queryBytes := buildTestQuery(t, "www.dnstest.local", dnswire.TypeA)

	backend := &fakeBackend{delay: 500 * time.Millisecond}
	handler := &QueryHandler{
		Exchange: newActivatedExchange(backend),
		Timeout:  50 * time.Millisecond, // Very short budget
	}

	result := handler.Handle(context.Background(), "udp", "192.168.1.1:12345", queryBytes)

	assert.True(t, result.ParsedOK, "expected ParsedOK = true")
	assert.Equal(t, "timeout", result.Source)

	parsed, err := dnswire.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	assert.Equal(t, dnswire.RCodeServFail, dnswire.RCodeFromFlags(parsed.Header.Flags))
}

func TestQueryHandler_Handle_ContextCancelled(t *testing.T) {
	queryBytes := buildTestQuery(t, "www.dnstest.local", dnswire.TypeA)

	backend := &fakeBackend{delay: 500 * time.Millisecond}
	handler := &QueryHandler{
		Exchange: newActivatedExchange(backend),
		Timeout:  5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	// Cancel immediately
	cancel()

	result := handler.Handle(ctx, "udp", "192.168.1.1:12345", queryBytes)

	assert.Equal(t, "shutdown", result.Source)
	parsed, err := dnswire.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	assert.Equal(t, dnswire.RCodeServFail, dnswire.RCodeFromFlags(parsed.Header.Flags))
}

func TestQueryHandler_Handle_WithLogger(t *testing.T) {
	qname := "www.dnstest.local"
	queryBytes := buildTestQuery(t, qname, dnswire.TypeA)

	backend := &fakeBackend{response: buildAnswerPacket(qname, dnswire.TypeA)}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	handler := &QueryHandler{
		Logger:   logger,
		Exchange: newActivatedExchange(backend),
		Timeout:  5 * time.Second,
	}

	result := handler.Handle(context.Background(), "tcp", "10.0.0.1:54321", queryBytes)

	assert.True(t, result.ParsedOK, "expected ParsedOK = true")
}

func TestQueryHandler_Handle_DefaultTimeout(t *testing.T) {
	qname := "www.dnstest.local"
	queryBytes := buildTestQuery(t, qname, dnswire.TypeA)

	backend := &fakeBackend{response: buildAnswerPacket(qname, dnswire.TypeA)}
	handler := &QueryHandler{
		Exchange: newActivatedExchange(backend),
		Timeout:  0, // Should default to 2s
	}

	start := time.Now()
	result := handler.Handle(context.Background(), "udp", "192.168.1.1:12345", queryBytes)
	elapsed := time.Since(start)

	assert.True(t, result.ParsedOK, "expected ParsedOK = true")
	// Should complete quickly (fake has no delay)
	assert.Less(t, elapsed, 100*time.Millisecond, "expected quick response")
}

func TestQueryHandler_Handle_RecordsQueryLog(t *testing.T) {
	qname := "www.dnstest.local"
	queryBytes := buildTestQuery(t, qname, dnswire.TypeA)

	backend := &fakeBackend{response: buildAnswerPacket(qname, dnswire.TypeA)}
	ex := newActivatedExchange(backend)
	handler := &QueryHandler{Exchange: ex, Timeout: 5 * time.Second}

	handler.Handle(context.Background(), "udp", "192.168.1.1:12345", queryBytes)
	handler.Handle(context.Background(), "tcp", "10.0.0.1:54321", queryBytes)

	entries := ex.Current().Log.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "udp", entries[0].Transport)
	assert.Equal(t, "tcp", entries[1].Transport)
	assert.Equal(t, qname, entries[0].QName)
	assert.Equal(t, "A", entries[0].QType)
	assert.Equal(t, "NOERROR", entries[0].RCode)
	assert.NotZero(t, entries[0].Flags&dnswire.QRFlag, "logged flags should be response flags")
	assert.False(t, entries[0].Time.IsZero())
}

func TestQueryHandler_Handle_MalformedSkipsQueryLog(t *testing.T) {
	backend := &fakeBackend{}
	ex := newActivatedExchange(backend)
	handler := &QueryHandler{Exchange: ex, Timeout: 5 * time.Second}

	handler.Handle(context.Background(), "udp", "192.168.1.1:12345", []byte{0x00, 0x01})

	assert.Equal(t, 0, ex.Current().Log.Len(), "malformed requests must not reach the query log")
}

func TestTryBuildErrorFromRaw_ValidHeader(t *testing.T) {
	queryBytes := buildTestQuery(t, "www.dnstest.local", dnswire.TypeA)

	resp := tryBuildErrorFromRaw(queryBytes, uint16(dnswire.RCodeFormErr))

	require.NotNil(t, resp, "expected non-nil response")
	// Parse and verify it's a FORMERR response
	parsed, err := dnswire.ParsePacket(resp)
	require.NoError(t, err, "failed to parse error response")
	assert.Equal(t, dnswire.RCodeFormErr, dnswire.RCodeFromFlags(parsed.Header.Flags), "expected RCODE FORMERR")
}

func TestTryBuildErrorFromRaw_TooShort(t *testing.T) {
	// Too short to parse header
	resp := tryBuildErrorFromRaw([]byte{0x00}, uint16(dnswire.RCodeFormErr))
	assert.Nil(t, resp, "expected nil response for too-short request")
}

func TestTryBuildErrorFromRaw_HeaderOnlyNoQuestion(t *testing.T) {
	// Valid 12-byte header with QDCount=0
	header := []byte{
		0x12, 0x34, // ID
		0x00, 0x00, // Flags
		0x00, 0x00, // QDCount = 0
		0x00, 0x00, // ANCount
		0x00, 0x00, // NSCount
		0x00, 0x00, // ARCount
	}

	resp := tryBuildErrorFromRaw(header, uint16(dnswire.RCodeServFail))
	require.NotNil(t, resp, "expected non-nil response")

	parsed, err := dnswire.ParsePacket(resp)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), parsed.Header.ID)
}

func TestFirstQuestion(t *testing.T) {
	tests := []struct {
		name      string
		packet    dnswire.Packet
		wantQName string
		wantQType uint16
	}{
		{
			name: "with question",
			packet: dnswire.Packet{
				Questions: []dnswire.Question{
					{Name: "test.dnstest.local", Type: uint16(dnswire.TypeAAAA), Class: uint16(dnswire.ClassIN)},
				},
			},
			wantQName: "test.dnstest.local",
			wantQType: uint16(dnswire.TypeAAAA),
		},
		{
			name:      "no question",
			packet:    dnswire.Packet{},
			wantQName: "",
			wantQType: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := firstQuestion(tt.packet)
			assert.Equal(t, tt.wantQName, q.Name)
			assert.Equal(t, tt.wantQType, q.Type)
		})
	}
}

func TestMustMarshal(t *testing.T) {
	t.Run("valid packet", func(t *testing.T) {
		p := dnswire.Packet{
			Header: dnswire.Header{ID: 1234, Flags: dnswire.QRFlag},
		}
		b := mustMarshal(p)
		assert.NotNil(t, b, "expected non-nil result for valid packet")
	})
}
