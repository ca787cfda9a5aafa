package client_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uds "github.com/nordlicht/goudsstack"
	"github.com/nordlicht/goudsstack/pkg/client"
	"github.com/nordlicht/goudsstack/pkg/clock"
	"github.com/nordlicht/goudsstack/pkg/event"
	"github.com/nordlicht/goudsstack/pkg/transport/mock"
)

func newTestClient(t *testing.T, cfg client.Config, handle event.Handler) (*client.Client, *clock.Virtual, *mock.Transport) {
	t.Helper()
	c := clock.NewVirtual()
	tp := mock.New(7)
	cl := client.New(c, tp, handle, cfg, nil)
	return cl, c, tp
}

func response(data ...byte) uds.SDU {
	return uds.SDU{MType: uds.MTypeDiag, TAType: uds.AddressPhysical, Data: data}
}

func TestDiagSessCtrlHappyPath(t *testing.T) {
	var got event.Event
	cl, c, tp := newTestClient(t, client.DefaultConfig(), func(ev event.Event) event.NRC {
		if ev.Kind == event.KindResponseReceived {
			got = ev
		}
		return event.NRCPositiveResponse
	})

	require.NoError(t, cl.DiagSessCtrl(0x7E0, uds.AddressPhysical, 0x03, 0))
	sent := tp.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x10, 0x03}, sent[0].Data)
	assert.Equal(t, client.StateAwaitSendComplete, cl.State())

	tp.Push(response(0x50, 0x03, 0x00, 0x32, 0x01, 0xF4))
	cl.Poll(c.NowMs())
	assert.Equal(t, client.StateAwaitResponse, cl.State())

	cl.Poll(c.NowMs())
	assert.Equal(t, client.StateIdle, cl.State())
	require.NotNil(t, got.ResponseReceived)
	assert.True(t, got.ResponseReceived.Positive)
	assert.Equal(t, int64(0x0032), cl.P2Ms())
	assert.Equal(t, int64(0x01F4)*10, cl.P2StarMs())
}

func TestRCRRPExtendsWait(t *testing.T) {
	var responses int
	cl, c, tp := newTestClient(t, client.DefaultConfig(), func(ev event.Event) event.NRC {
		if ev.Kind == event.KindResponseReceived {
			responses++
		}
		return event.NRCPositiveResponse
	})

	require.NoError(t, cl.RoutineControl(0x7E0, uds.AddressPhysical, 0x01, 0x1234, nil, 0))
	tp.Sent()

	tp.Push(response(0x7F, 0x31, 0x78))
	cl.Poll(c.NowMs()) // send-complete
	cl.Poll(c.NowMs()) // consumes the 0x78, discarded, re-arms timer
	assert.Equal(t, client.StateAwaitResponse, cl.State())
	assert.Equal(t, 0, responses, "0x78 must never reach the callback as a response")

	c.Advance(100)
	tp.Push(response(0x71, 0x01, 0x12, 0x34))
	cl.Poll(c.NowMs())
	assert.Equal(t, client.StateIdle, cl.State())
	assert.Equal(t, 1, responses)
}

func TestNegativeResponseDeliveredAsResponse(t *testing.T) {
	var got event.Event
	cl, c, tp := newTestClient(t, client.DefaultConfig(), func(ev event.Event) event.NRC {
		got = ev
		return event.NRCPositiveResponse
	})

	require.NoError(t, cl.ReadDataByIdentifier(0x7E0, uds.AddressPhysical, []uint16{0xF190}, 0))
	tp.Sent()
	tp.Push(response(0x7F, 0x22, byte(event.NRCRequestOutOfRange)))
	cl.Poll(c.NowMs())
	cl.Poll(c.NowMs())

	require.Equal(t, event.KindResponseReceived, got.Kind)
	assert.False(t, got.ResponseReceived.Positive)
	assert.Equal(t, event.NRCRequestOutOfRange, got.ResponseReceived.NRC)
	assert.Equal(t, client.ErrNone, cl.Err())
}

func TestNegRespIsErrOption(t *testing.T) {
	var got event.Event
	cl, c, tp := newTestClient(t, client.DefaultConfig(), func(ev event.Event) event.NRC {
		got = ev
		return event.NRCPositiveResponse
	})

	require.NoError(t, cl.ReadDataByIdentifier(0x7E0, uds.AddressPhysical, []uint16{0xF190}, client.OptNegRespIsErr))
	tp.Sent()
	tp.Push(response(0x7F, 0x22, byte(event.NRCRequestOutOfRange)))
	cl.Poll(c.NowMs())
	cl.Poll(c.NowMs())

	require.Equal(t, event.KindErr, got.Kind)
	require.NotNil(t, got.Err)
	assert.Equal(t, event.NRCRequestOutOfRange, got.Err.NRC)
}

func TestTimeout(t *testing.T) {
	cfg := client.DefaultConfig()
	cfg.P2Ms = 50
	var got event.Event
	cl, c, tp := newTestClient(t, cfg, func(ev event.Event) event.NRC {
		got = ev
		return event.NRCPositiveResponse
	})

	require.NoError(t, cl.TesterPresent(0x7E0, uds.AddressPhysical, 0))
	tp.Sent()
	cl.Poll(c.NowMs()) // send-complete -> AwaitResponse

	c.Advance(51)
	cl.Poll(c.NowMs())

	assert.Equal(t, client.StateIdle, cl.State())
	assert.Equal(t, client.ErrTimeout, cl.Err())
	require.Equal(t, event.KindErr, got.Kind)
}

func TestSIDMismatch(t *testing.T) {
	cl, c, tp := newTestClient(t, client.DefaultConfig(), func(ev event.Event) event.NRC {
		return event.NRCPositiveResponse
	})

	require.NoError(t, cl.DiagSessCtrl(0x7E0, uds.AddressPhysical, 0x03, 0))
	tp.Sent()
	tp.Push(response(0x62, 0xF1, 0x90)) // unrelated SID
	cl.Poll(c.NowMs())
	cl.Poll(c.NowMs())

	assert.Equal(t, client.ErrSIDMismatch, cl.Err())
	assert.Equal(t, client.StateIdle, cl.State())
}

func TestSubFunctionMismatchOnEcuReset(t *testing.T) {
	cl, c, tp := newTestClient(t, client.DefaultConfig(), func(ev event.Event) event.NRC {
		return event.NRCPositiveResponse
	})

	require.NoError(t, cl.ECUReset(0x7E0, uds.AddressPhysical, 0x01, 0))
	tp.Sent()
	tp.Push(response(0x51, 0x02)) // echoes the wrong reset type
	cl.Poll(c.NowMs())
	cl.Poll(c.NowMs())

	assert.Equal(t, client.ErrSubFunctionMismatch, cl.Err())
}

func TestFunctionalAddressingSkipsResponseWait(t *testing.T) {
	var kinds []event.Kind
	cl, c, tp := newTestClient(t, client.DefaultConfig(), func(ev event.Event) event.NRC {
		kinds = append(kinds, ev.Kind)
		return event.NRCPositiveResponse
	})

	require.NoError(t, cl.TesterPresent(0x7DF, uds.AddressFunctional, client.OptFunctional))
	tp.Sent()
	cl.Poll(c.NowMs())

	assert.Equal(t, client.StateIdle, cl.State())
	assert.Equal(t, []event.Kind{event.KindSendComplete}, kinds)
}

func TestSuppressPositiveResponseOption(t *testing.T) {
	cl, c, tp := newTestClient(t, client.DefaultConfig(), func(ev event.Event) event.NRC {
		return event.NRCPositiveResponse
	})

	require.NoError(t, cl.DiagSessCtrl(0x7E0, uds.AddressPhysical, 0x03, client.OptSuppressPosResp))
	sent := tp.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []byte{0x10, 0x03 | 0x80}, sent[0].Data)

	cl.Poll(c.NowMs())
	assert.Equal(t, client.StateIdle, cl.State())
}

func TestBusyRejectsConcurrentSend(t *testing.T) {
	cl, _, _ := newTestClient(t, client.DefaultConfig(), func(ev event.Event) event.NRC {
		return event.NRCPositiveResponse
	})

	require.NoError(t, cl.DiagSessCtrl(0x7E0, uds.AddressPhysical, 0x03, 0))
	err := cl.ECUReset(0x7E0, uds.AddressPhysical, 0x01, 0)
	assert.Equal(t, client.ErrBusy, err)
}
