package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uds "github.com/nordlicht/goudsstack"
	"github.com/nordlicht/goudsstack/pkg/clock"
	"github.com/nordlicht/goudsstack/pkg/event"
	"github.com/nordlicht/goudsstack/pkg/server"
	"github.com/nordlicht/goudsstack/pkg/transport/mock"
)

func newTestServer(t *testing.T, cfg server.Config, handle event.Handler) (*server.Server, *clock.Virtual, *mock.Transport) {
	t.Helper()
	c := clock.NewVirtual()
	tp := mock.New(7)
	srv := server.New(c, tp, handle, cfg, nil)
	return srv, c, tp
}

func request(data ...byte) uds.SDU {
	return uds.SDU{MType: uds.MTypeDiag, TAType: uds.AddressPhysical, Data: data}
}

// Scenario 1: DiagSessCtrl default->extended.
func TestDiagSessCtrlScenario(t *testing.T) {
	cfg := server.DefaultConfig()
	srv, c, tp := newTestServer(t, cfg, func(ev event.Event) event.NRC {
		return event.NRCPositiveResponse
	})

	tp.Push(request(0x10, 0x03))
	srv.Poll(c.NowMs())

	sent := tp.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x50, 0x03, 0x00, 0x32, 0x01, 0xF4}, sent[0].Data)
	assert.Equal(t, uint8(0x03), srv.SessionType())
}

// Scenario 2: ECU reset suppresses later responses while scheduled.
func TestEcuResetScenario(t *testing.T) {
	cfg := server.DefaultConfig()
	srv, c, tp := newTestServer(t, cfg, func(ev event.Event) event.NRC {
		return event.NRCPositiveResponse
	})

	tp.Push(request(0x11, 0x01))
	srv.Poll(c.NowMs())
	sent := tp.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x51, 0x01}, sent[0].Data)

	c.Advance(10) // still inside power_down_time (default 60ms)
	tp.Push(request(0x11, 0x01))
	srv.Poll(c.NowMs())
	assert.Empty(t, tp.Sent(), "requests while not_ready_to_receive must be dropped")

	// A real ECU reset power-cycles the device; this library never
	// simulates that reboot on its own, so the server keeps dropping
	// every request forever, long past power_down_time, until the host
	// builds a fresh Server.
	c.Advance(5000)
	tp.Push(request(0x11, 0x01))
	srv.Poll(c.NowMs())
	assert.Empty(t, tp.Sent(), "server must never resume answering after a scheduled reset fires")
}

// Scenario 3: ReadDataByIdentifier success.
func TestReadDataByIdentScenario(t *testing.T) {
	vin := []byte("W0L0000043MB541326")
	cfg := server.DefaultConfig()
	srv, c, tp := newTestServer(t, cfg, func(ev event.Event) event.NRC {
		if ev.Kind == event.KindReadDataByIdent && ev.ReadDataByIdent.DID == 0xF190 {
			ev.ReadDataByIdent.Writer.Append(vin)
			return event.NRCPositiveResponse
		}
		return event.NRCRequestOutOfRange
	})

	tp.Push(request(0x22, 0xF1, 0x90))
	srv.Poll(c.NowMs())

	sent := tp.Sent()
	require.Len(t, sent, 1)
	want := append([]byte{0x62, 0xF1, 0x90}, vin...)
	assert.Equal(t, want, sent[0].Data)
}

// Scenario 4: SecurityAccess unlock happy path.
func TestSecurityAccessScenario(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.SecAccessBootDelayMs = 0
	srv, c, tp := newTestServer(t, cfg, func(ev event.Event) event.NRC {
		switch ev.Kind {
		case event.KindSecAccessRequestSeed:
			ev.SecAccessRequestSeed.Writer.Append([]byte{0x36, 0x57})
			return event.NRCPositiveResponse
		case event.KindSecAccessValidateKey:
			if string(ev.SecAccessValidateKey.Key) == string([]byte{0xC9, 0xA9}) {
				return event.NRCPositiveResponse
			}
			return event.NRCInvalidKey
		}
		return event.NRCGeneralReject
	})

	tp.Push(request(0x27, 0x01))
	srv.Poll(c.NowMs())
	sent := tp.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x67, 0x01, 0x36, 0x57}, sent[0].Data)

	tp.Push(request(0x27, 0x02, 0xC9, 0xA9))
	srv.Poll(c.NowMs())
	sent = tp.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x67, 0x02}, sent[0].Data)
	assert.Equal(t, uint8(1), srv.SecurityLevel())

	tp.Push(request(0x27, 0x01))
	srv.Poll(c.NowMs())
	sent = tp.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x67, 0x01, 0x00, 0x00}, sent[0].Data)
}

// Scenario 5: RCRRP extends the response until the handler settles.
func TestRCRRPExtendsResponse(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.P2StarMs = 1500
	calls := 0
	srv, c, tp := newTestServer(t, cfg, func(ev event.Event) event.NRC {
		if ev.Kind != event.KindRoutineCtrl {
			return event.NRCGeneralReject
		}
		calls++
		if calls <= 2 {
			return event.NRCRequestCorrectlyReceivedResponsePending
		}
		return event.NRCPositiveResponse
	})

	tp.Push(request(0x31, 0x01, 0x12, 0x34))
	srv.Poll(c.NowMs())
	sent := tp.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x7F, 0x31, 0x78}, sent[0].Data)

	c.Advance(451) // past 0.3 * P2StarMs
	srv.Poll(c.NowMs())
	sent = tp.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x7F, 0x31, 0x78}, sent[0].Data)

	c.Advance(451)
	srv.Poll(c.NowMs())
	sent = tp.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x71, 0x01, 0x12, 0x34}, sent[0].Data)
	assert.Equal(t, 3, calls)
}

// Scenario 6: RequestDownload echoes the callback's block length.
func TestRequestDownloadScenario(t *testing.T) {
	cfg := server.DefaultConfig()
	srv, c, tp := newTestServer(t, cfg, func(ev event.Event) event.NRC {
		if ev.Kind != event.KindRequestDownload {
			return event.NRCGeneralReject
		}
		ev.RequestDownload.MaxBlockLength = 0x81
		return event.NRCPositiveResponse
	})

	tp.Push(request(0x34, 0x11, 0x33, 0x60, 0x20, 0x00, 0x00, 0xFF, 0xFF))
	srv.Poll(c.NowMs())

	sent := tp.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x74, 0x20, 0x00, 0x81}, sent[0].Data)
}

// Suppress-positive-response law: setting bit 0x80 on an eligible SID's
// subfunction with a positive handler result yields no bytes at all.
func TestSuppressPositiveResponse(t *testing.T) {
	cfg := server.DefaultConfig()
	srv, c, tp := newTestServer(t, cfg, func(ev event.Event) event.NRC {
		return event.NRCPositiveResponse
	})

	tp.Push(request(0x10, 0x03|0x80))
	srv.Poll(c.NowMs())
	assert.Empty(t, tp.Sent())
	assert.Equal(t, uint8(0x03), srv.SessionType(), "side effects still apply when suppressed")
}

// Session reset law: S3 expiry reverts session and security atomically.
func TestSessionResetLaw(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.S3Ms = 100
	cfg.SecAccessBootDelayMs = 0
	srv, c, tp := newTestServer(t, cfg, func(ev event.Event) event.NRC {
		return event.NRCPositiveResponse
	})

	tp.Push(request(0x10, 0x03))
	srv.Poll(c.NowMs())
	tp.Sent()

	tp.Push(request(0x27, 0x02, 0x00, 0x00))
	srv.Poll(c.NowMs())
	tp.Sent()
	require.Equal(t, uint8(1), srv.SecurityLevel())

	c.Advance(101)
	srv.Poll(c.NowMs())
	assert.Equal(t, server.SessionDefault, srv.SessionType())
	assert.Equal(t, uint8(0), srv.SecurityLevel())
}

// SID echo law: every positive response's first byte is request SID + 0x40.
func TestSIDEchoLaw(t *testing.T) {
	cfg := server.DefaultConfig()
	srv, c, tp := newTestServer(t, cfg, func(ev event.Event) event.NRC {
		return event.NRCPositiveResponse
	})

	tp.Push(request(0x3E, 0x00))
	srv.Poll(c.NowMs())
	sent := tp.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, byte(0x3E+0x40), sent[0].Data[0])
}
